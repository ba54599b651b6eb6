package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/avasiliev/accountkeeper/internal/common"
	"github.com/avasiliev/accountkeeper/internal/logging"
	"github.com/avasiliev/accountkeeper/internal/server/models"
	"github.com/avasiliev/accountkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Handler exposes the account service over HTTP.
type Handler struct {
	accounts *services.AccountService
	logger   logging.Logger
}

func NewHandler(accounts *services.AccountService, logger logging.Logger) *Handler {
	return &Handler{accounts: accounts, logger: logger.With("module", "httpapi")}
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, _, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorInvalidCredentials) {
			c.Header("WWW-Authenticate", "Bearer")
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) listUsers(c *gin.Context) {
	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", 100)

	list, err := h.accounts.List(c.Request.Context(), offset, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponses(list))
}

func (h *Handler) createUser(c *gin.Context) {
	// same semantics as register, but behind the gate
	h.register(c)
}

func (h *Handler) readMe(c *gin.Context) {
	c.JSON(http.StatusOK, toUserResponse(mustCurrentUser(c)))
}

func (h *Handler) updateMe(c *gin.Context) {
	h.update(c, mustCurrentUser(c).ID)
}

func (h *Handler) readUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	user, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	h.update(c, id)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	user, err := h.accounts.DeleteAccount(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *Handler) update(c *gin.Context, id int64) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), id, &services.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// writeError maps taxonomy errors to response codes on CRUD and auth paths.
// 404 here means "the user addressed by the request is absent", which is
// different from the gate's "current user vanished" (401, see gateFailure).
func (h *Handler) writeError(c *gin.Context, err error) {
	if ce, ok := common.IsConflict(err); ok {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("the user with this %s already exists", ce.Field)})
		return
	}

	switch {
	case errors.Is(err, common.ErrorInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
	case errors.Is(err, common.ErrorInactiveUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": "inactive user"})
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, common.ErrorUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable, retry later"})
	default:
		h.logger.Error(c.Request.Context(), "unhandled error", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// gateFailure maps auth-gate errors for protected routes: everything that
// means "we cannot tie this token to an existing account" is 401, an
// existing but suspended account is 400, a store outage is 503.
func gateFailure(err error) (int, gin.H) {
	switch {
	case errors.Is(err, common.ErrorInactiveUser):
		return http.StatusBadRequest, gin.H{"error": "inactive user"}
	case errors.Is(err, common.ErrorUnavailable):
		return http.StatusServiceUnavailable, gin.H{"error": "store unavailable, retry later"}
	default:
		return http.StatusUnauthorized, gin.H{"error": "could not validate credentials"}
	}
}

func mustCurrentUser(c *gin.Context) *models.User {
	return c.MustGet(currentUserKey).(*models.User)
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
