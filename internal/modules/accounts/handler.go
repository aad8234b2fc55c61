package accounts

import (
	"errors"
	"net/http"
	"strconv"

	"portal/internal/domain"
	"portal/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler manages all HTTP interactions for account management
type Handler struct {
	service *Service
}

// NewHandler creates a new accounts handler with injected service
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	v1.POST("/auth/register", h.Register)
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	me := protected.Group("/accounts/me")
	{
		me.GET("", h.GetMe)
		me.PUT("", h.UpdateProfile)
		me.PUT("/password", h.ChangePassword)
	}
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/accounts", h.List)
	admin.PUT("/accounts/:id/status", h.SetStatus)
	admin.PUT("/accounts/:id/role", h.SetRole)
}

// Register creates a new account. The first account registered on an
// empty store becomes the super admin.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	account, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
			return
		}
		response.Error(c, http.StatusInternalServerError, "REGISTRATION_FAILED", "Failed to register account")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"account": account})
}

func (h *Handler) GetMe(c *gin.Context) {
	accountID := c.GetInt64("account_id")
	if accountID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	account, err := h.service.GetProfile(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Account not found")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"account": account})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	account, err := h.service.UpdateProfile(c.Request.Context(), accountID, req)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Could not update profile")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"account": account})
}

// ChangePassword installs a new password and revokes every session and
// refresh token of the account. The client must log in again.
func (h *Handler) ChangePassword(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), accountID, req); err != nil {
		if errors.Is(err, ErrWrongPassword) {
			response.Error(c, http.StatusUnauthorized, "WRONG_PASSWORD", "Current password is incorrect")
			return
		}
		response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Could not change password")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) List(c *gin.Context) {
	callerID := c.GetInt64("account_id")

	accounts, err := h.service.List(c.Request.Context(), callerID)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			return
		}
		response.Error(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list accounts")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"accounts": accounts})
}

func (h *Handler) SetStatus(c *gin.Context) {
	callerID := c.GetInt64("account_id")

	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid account ID")
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	if err := h.service.SetStatus(c.Request.Context(), callerID, targetID, domain.AccountStatus(req.Status)); err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			response.Error(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown account status")
		case errors.Is(err, ErrForbidden):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
		case errors.Is(err, ErrAccountNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Account not found")
		default:
			response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Could not update status")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) SetRole(c *gin.Context) {
	callerID := c.GetInt64("account_id")

	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid account ID")
		return
	}

	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	if err := h.service.SetRole(c.Request.Context(), callerID, targetID, domain.Role(req.Role)); err != nil {
		switch {
		case errors.Is(err, ErrInvalidRole):
			response.Error(c, http.StatusBadRequest, "INVALID_ROLE", "Unknown role")
		case errors.Is(err, ErrForbidden):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
		case errors.Is(err, ErrAccountNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Account not found")
		default:
			response.Error(c, http.StatusInternalServerError, "UPDATE_FAILED", "Could not update role")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"ok": true})
}
