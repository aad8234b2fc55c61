package session

import (
	"errors"
	"net/http"
	"strconv"

	"portal/internal/domain"
	"portal/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler manages all HTTP interactions for session lifecycle
type Handler struct {
	service *Service
}

// NewHandler creates a new session handler with injected service
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/login/force", h.ForceLogin)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.GET("/auth/check", h.Check)
}

func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.DELETE("/accounts/:id/session", h.AdminInvalidate)
}

// Login authenticates by email and password and starts the account's
// single session. A second login while one is active returns 409 with
// has_active_session so the client can offer a forced takeover.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password, originHint(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
		case errors.Is(err, ErrAccountDisabled):
			response.Error(c, http.StatusUnauthorized, "ACCOUNT_DISABLED", "This account has been deactivated")
		case errors.Is(err, ErrActiveSessionConflict):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":               "CONFLICT_ACTIVE_SESSION",
					"message":            "Another session is already active for this account",
					"has_active_session": true,
				},
			})
		default:
			response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to login")
		}
		return
	}

	response.Success(c, http.StatusOK, authResultPayload(result))
}

// ForceLogin authenticates and unconditionally takes the session over,
// severing the previous session and its refresh token family.
func (h *Handler) ForceLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	result, err := h.service.ForceLogin(c.Request.Context(), req.Email, req.Password, originHint(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
		case errors.Is(err, ErrAccountDisabled):
			response.Error(c, http.StatusUnauthorized, "ACCOUNT_DISABLED", "This account has been deactivated")
		default:
			response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to login")
		}
		return
	}

	response.Success(c, http.StatusOK, authResultPayload(result))
}

// Refresh rotates the refresh token and returns a new token pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "refresh_token is required", err.Error())
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), req.RefreshToken, originHint(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid refresh token")
		case errors.Is(err, ErrSessionTerminated):
			response.Error(c, http.StatusUnauthorized, "SESSION_TERMINATED", "Session has been terminated, please login again")
		case errors.Is(err, ErrSessionMismatch):
			response.Error(c, http.StatusUnauthorized, "SESSION_MISMATCH", "Session was superseded elsewhere, please login again")
		case errors.Is(err, ErrAccountDisabled):
			response.Error(c, http.StatusUnauthorized, "ACCOUNT_DISABLED", "This account has been deactivated")
		default:
			response.Error(c, http.StatusInternalServerError, "REFRESH_FAILED", "Failed to refresh tokens")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

// Logout revokes the presented refresh token's family. Always returns
// ok, even for unknown tokens.
func (h *Handler) Logout(c *gin.Context) {
	var req LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if req.RefreshToken != "" {
		if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to logout")
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

// Check returns the authenticated account if it is still active. Runs
// behind the JWT middleware; with strict checking enabled it also
// verifies the account still holds a live session.
func (h *Handler) Check(c *gin.Context) {
	accountID := c.GetInt64("account_id")
	if accountID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	account, err := h.service.CheckSession(c.Request.Context(), accountID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountDisabled):
			response.Error(c, http.StatusUnauthorized, "ACCOUNT_DISABLED", "This account has been deactivated")
		case errors.Is(err, ErrSessionMismatch):
			response.Error(c, http.StatusUnauthorized, "SESSION_MISMATCH", "No live session for this account")
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Account not found")
		default:
			response.Error(c, http.StatusInternalServerError, "CHECK_FAILED", "Failed to check session")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"account": accountPublic(account)})
}

// AdminInvalidate revokes the target account's refresh tokens and
// terminates its session. Caller must be admin or super_admin; admins
// act only inside their own organization.
func (h *Handler) AdminInvalidate(c *gin.Context) {
	callerID := c.GetInt64("account_id")
	if callerID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid account ID")
		return
	}

	if err := h.service.AdminInvalidate(c.Request.Context(), callerID, targetID); err != nil {
		switch {
		case errors.Is(err, ErrForbidden):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
		default:
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Account not found")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

func authResultPayload(result *AuthResult) gin.H {
	payload := gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"account":       accountPublic(result.Account),
	}
	if result.PreviousSessionTerminated {
		payload["previous_session_terminated"] = true
	}
	return payload
}

func accountPublic(a *domain.Account) AccountPublic {
	return AccountPublic{
		ID:             a.ID,
		Email:          a.Email,
		Name:           a.Name,
		Role:           string(a.Role),
		OrganizationID: a.OrganizationID,
	}
}

// originHint is advisory client metadata recorded on the session.
func originHint(c *gin.Context) string {
	hint := c.ClientIP()
	if ua := c.Request.UserAgent(); ua != "" {
		if len(ua) > 200 {
			ua = ua[:200]
		}
		hint += " " + ua
	}
	return hint
}
