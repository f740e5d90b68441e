package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/cartline/user-service/internal/application"
	"github.com/cartline/user-service/internal/interface/middleware"
	"github.com/cartline/user-service/pkg/response"
	"github.com/cartline/user-service/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Name     string `json:"name" binding:"omitempty,max=100"`
}

// updateProfileRequest carries only the mutable fields; any other key in the
// payload is a validation error.
type updateProfileRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
}

// Register POST /api/users
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, p, "user registered", nil)
}

// GetProfile GET /api/users/:id (self or admin)
func (h *UserHandler) GetProfile(c *gin.Context) {
	p, err := h.Svc.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, p, "profile", nil)
}

// UpdateProfile PATCH /api/users/:id (self or admin)
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		detail := map[string]string{"payload": "invalid json"}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			detail = map[string]string{"payload": "request body too large"}
		}
		response.Error[any](c, http.StatusBadRequest, "invalid payload", detail)
		return
	}
	p, err := h.Svc.UpdateProfile(c.Request.Context(), c.Param("id"), userapp.UpdateProfileInput{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, p, "profile updated", nil)
}

// ChangePassword PUT /api/users/:id/password (self only)
func (h *UserHandler) ChangePassword(c *gin.Context) {
	if c.GetString(middleware.CtxUserIDKey) != c.Param("id") {
		response.Error[any](c, http.StatusForbidden, "forbidden", nil)
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), c.Param("id"), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"changed": true}, "password updated", nil)
}

// Deactivate DELETE /api/users/:id (self or admin)
func (h *UserHandler) Deactivate(c *gin.Context) {
	if err := h.Svc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadAvatar POST /api/users/:id/avatar (self only)
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	if c.GetString(middleware.CtxUserIDKey) != c.Param("id") {
		response.Error[any](c, http.StatusForbidden, "forbidden", nil)
		return
	}
	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "missing avatar file", nil)
		return
	}
	defer func() { _ = file.Close() }()

	p, err := h.Svc.UploadAvatar(c.Request.Context(), c.Param("id"), file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, p, "avatar uploaded", nil)
}

// Search GET /api/users/search?q=&size= (admin only)
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	size := 10
	if s := c.Query("size"); s != "" {
		if n, err := parsePositive(s); err == nil {
			size = n
		}
	}
	res, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, res, "search results", map[string]any{"count": len(res)})
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
