package handlers

import (
	"errors"
	"net/http"

	"github.com/cyphera/cyphera-notify/internal/audit"
	"github.com/cyphera/cyphera-notify/internal/auth"
	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/dispatch"
	"github.com/cyphera/cyphera-notify/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BulkNotificationHandler serves the admin bulk notification endpoint.
type BulkNotificationHandler struct {
	validator     *dispatch.Validator
	authenticator *auth.Authenticator
	dispatcher    *dispatch.Dispatcher
	recorder      *audit.Recorder
}

// NewBulkNotificationHandler creates a BulkNotificationHandler.
func NewBulkNotificationHandler(
	validator *dispatch.Validator,
	authenticator *auth.Authenticator,
	dispatcher *dispatch.Dispatcher,
	recorder *audit.Recorder,
) *BulkNotificationHandler {
	return &BulkNotificationHandler{
		validator:     validator,
		authenticator: authenticator,
		dispatcher:    dispatcher,
		recorder:      recorder,
	}
}

// SendBulkNotificationRequest is the request body of the bulk endpoint.
type SendBulkNotificationRequest struct {
	Recipients []string `json:"recipients" example:"user1@example.com,user2@example.com"`
	Subject    string   `json:"subject" example:"Scheduled maintenance"`
	Body       string   `json:"body" example:"The service will be unavailable tonight."`
	Category   string   `json:"category,omitempty" example:"admin-bulk"`
}

// BulkNotificationResponse is returned by the bulk endpoint for every outcome.
type BulkNotificationResponse struct {
	OperationSucceeded bool                   `json:"operationSucceeded"`
	Summary            *dispatch.BatchSummary `json:"summary,omitempty"`
	Stats              *dispatch.BatchStats   `json:"stats,omitempty"`
	Error              string                 `json:"error,omitempty"`
}

// SendBulkNotification godoc
// @Summary      Send a bulk notification
// @Description  Sends the same email to every recipient (at most 50) and reports the outcome per recipient. Requires the admin role. Resubmitting a batch sends it again.
// @Tags         notifications
// @Accept       json
// @Produce      json
// @Param        request  body      SendBulkNotificationRequest  true  "Batch to send"
// @Success      200      {object}  BulkNotificationResponse
// @Failure      400      {object}  BulkNotificationResponse
// @Failure      401      {object}  BulkNotificationResponse
// @Failure      403      {object}  BulkNotificationResponse
// @Failure      500      {object}  BulkNotificationResponse
// @Security     BearerAuth
// @Router       /notifications/bulk [post]
func (h *BulkNotificationHandler) SendBulkNotification(c *gin.Context) {
	var req dispatch.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, constants.MsgInvalidRequestBody, err)
		return
	}

	batch, err := h.validator.Validate(req, c.GetHeader("Authorization"))
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrMissingCredential):
			h.fail(c, http.StatusUnauthorized, constants.MsgMissingCredential, err)
		case dispatch.IsValidationError(err):
			h.fail(c, http.StatusBadRequest, err.Error(), err)
		default:
			h.fail(c, http.StatusInternalServerError, constants.MsgInternalError, err)
		}
		return
	}

	ctx := c.Request.Context()
	caller, err := h.authenticator.Authenticate(ctx, batch.Token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			h.fail(c, http.StatusUnauthorized, constants.MsgInvalidCredential, err)
			return
		}
		h.fail(c, http.StatusInternalServerError, constants.MsgInternalError, err)
		return
	}

	if err := auth.RequireAdmin(caller); err != nil {
		h.fail(c, http.StatusForbidden, constants.MsgForbidden, err)
		return
	}

	outcomes, err := h.dispatcher.Dispatch(ctx, batch)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, constants.MsgInternalError, err)
		return
	}

	summary := dispatch.Aggregate(outcomes)
	stats := summary.Stats()
	h.recorder.Record(ctx, summary, batch, caller)

	middleware.LogWithCorrelationID(ctx, nil).Info("Bulk notification processed",
		zap.String("sent_by", caller.Identity),
		zap.Int("total", summary.Total),
		zap.Int("failed", stats.TotalFailed),
		zap.String("success_rate", stats.SuccessRate),
	)

	sendSuccess(c, http.StatusOK, BulkNotificationResponse{
		OperationSucceeded: true,
		Summary:            &summary,
		Stats:              &stats,
	})
}

func (h *BulkNotificationHandler) fail(c *gin.Context, statusCode int, message string, err error) {
	logError(c, statusCode, message, err)
	c.JSON(statusCode, BulkNotificationResponse{OperationSucceeded: false, Error: message})
}
