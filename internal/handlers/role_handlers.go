package handlers

import (
	"errors"
	"net/http"

	"github.com/cyphera/cyphera-notify/internal/auth"
	"github.com/cyphera/cyphera-notify/internal/helpers"
	"github.com/cyphera/cyphera-notify/internal/roles"
	"github.com/gin-gonic/gin"
)

// RoleHandler exposes role lookups and assignments.
type RoleHandler struct {
	roles *roles.Service
}

// NewRoleHandler creates a RoleHandler.
func NewRoleHandler(service *roles.Service) *RoleHandler {
	return &RoleHandler{roles: service}
}

// RoleResponse is the role held by an email.
type RoleResponse struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AssignRoleRequest is the body of a role assignment.
type AssignRoleRequest struct {
	Email string `json:"email" binding:"required" example:"ops@example.com"`
	Role  string `json:"role" binding:"required" example:"support"`
}

// GetMyRole godoc
// @Summary      Get the caller's role
// @Tags         roles
// @Produce      json
// @Success      200  {object}  RoleResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /roles/me [get]
func (h *RoleHandler) GetMyRole(c *gin.Context) {
	caller, err := auth.CallerFromContext(c)
	if err != nil {
		sendError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	role, err := h.roles.RoleOf(c.Request.Context(), caller.Identity)
	if err != nil {
		if errors.Is(err, roles.ErrRoleNotFound) {
			sendError(c, http.StatusNotFound, "No role assigned", err)
			return
		}
		sendError(c, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	sendSuccess(c, http.StatusOK, RoleResponse{Email: caller.Identity, Role: role})
}

// AssignRole godoc
// @Summary      Assign a role
// @Description  Assigns admin, support or user to an email, replacing any previous role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Param        request  body      AssignRoleRequest  true  "Assignment"
// @Success      200      {object}  RoleResponse
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Failure      403      {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/roles [put]
func (h *RoleHandler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.roles.Assign(c.Request.Context(), req.Email, req.Role)
	switch {
	case err == nil:
	case errors.Is(err, roles.ErrInvalidRole):
		sendError(c, http.StatusBadRequest, "Role must be one of: admin, support, user", err)
		return
	case errors.Is(err, roles.ErrInvalidEmail):
		sendError(c, http.StatusBadRequest, "Email is required", err)
		return
	default:
		sendError(c, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	sendSuccess(c, http.StatusOK, RoleResponse{Email: helpers.NormalizeEmail(req.Email), Role: req.Role})
}
