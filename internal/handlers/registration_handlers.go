package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/cyphera/cyphera-notify/internal/dispatch"
	"github.com/gin-gonic/gin"
)

const registrationCategory = "registration"

var registrationHTML = template.Must(template.New("registration").Parse(
	`<p>Hi {{.Name}},</p><p>Thank you for registering for <strong>{{.Program}}</strong>. We'll be in touch with more details soon.</p><p>Best regards,<br/>Program Team</p>`,
))

// RegistrationHandler sends registration confirmation emails.
type RegistrationHandler struct {
	sender dispatch.Sender
}

// NewRegistrationHandler creates a RegistrationHandler.
func NewRegistrationHandler(sender dispatch.Sender) *RegistrationHandler {
	return &RegistrationHandler{sender: sender}
}

// RegistrationRequest is the body of a registration confirmation request.
type RegistrationRequest struct {
	Name    string `json:"name" example:"Ada"`
	Email   string `json:"email" example:"ada@example.com"`
	Program string `json:"program" example:"Weekend Coding Club"`
}

// RegistrationResponse is returned when the confirmation was sent.
type RegistrationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendRegistrationConfirmation godoc
// @Summary      Send a registration confirmation
// @Description  Emails a registration confirmation for a program to the registrant
// @Tags         registrations
// @Accept       json
// @Produce      json
// @Param        request  body      RegistrationRequest  true  "Registration"
// @Success      200      {object}  RegistrationResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Router       /registrations/confirmation [post]
func (h *RegistrationHandler) SendRegistrationConfirmation(c *gin.Context) {
	var req RegistrationRequest
	_ = c.ShouldBindJSON(&req)

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Program = strings.TrimSpace(req.Program)
	if req.Name == "" || req.Email == "" || req.Program == "" {
		sendError(c, http.StatusBadRequest, "Missing required fields: name, email, program", nil)
		return
	}

	msg, err := registrationMessage(req)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to send registration email", err)
		return
	}

	if err := h.sender.Send(c.Request.Context(), msg); err != nil {
		if errors.Is(err, dispatch.ErrSenderUnavailable) {
			sendError(c, http.StatusInternalServerError, "Email provider not configured on server", err)
			return
		}
		sendError(c, http.StatusInternalServerError, "Failed to send registration email", err)
		return
	}

	sendSuccess(c, http.StatusOK, RegistrationResponse{
		Success: true,
		Message: "Registration confirmation sent",
	})
}

func registrationMessage(req RegistrationRequest) (dispatch.Message, error) {
	var html bytes.Buffer
	if err := registrationHTML.Execute(&html, req); err != nil {
		return dispatch.Message{}, fmt.Errorf("failed to render registration email: %w", err)
	}

	return dispatch.Message{
		Recipient: req.Email,
		Subject:   "Registration confirmed: " + req.Program,
		Text: fmt.Sprintf("Hi %s,\n\nThank you for registering for %s. We'll be in touch with more details soon.\n\nBest regards,\nProgram Team",
			req.Name, req.Program),
		HTML:     html.String(),
		Category: registrationCategory,
	}, nil
}
