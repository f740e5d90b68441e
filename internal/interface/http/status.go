package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cartline/user-service/internal/domain/errs"
	"github.com/cartline/user-service/pkg/response"
)

// writeError is the single point where the domain taxonomy becomes HTTP
// status codes. Untyped errors become opaque 500s logged with the request id.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	// the per-request deadline expired before the backend answered
	if errors.Is(err, context.DeadlineExceeded) {
		response.Error[any](c, http.StatusGatewayTimeout, "request timed out", nil)
		return
	}

	code := errs.CodeOf(err)

	status := http.StatusInternalServerError
	msg := "internal server error"

	switch code {
	case errs.CodeValidation:
		status, msg = http.StatusBadRequest, err.Error()
	case errs.CodeEmailTaken:
		status, msg = http.StatusConflict, "email already registered"
	case errs.CodeInvalidCredentials:
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errs.CodeNotFound:
		status, msg = http.StatusNotFound, "user not found"
	case errs.CodeUnauthorized:
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errs.CodeForbidden:
		status, msg = http.StatusForbidden, "forbidden"
	case errs.CodeStorageUnavailable:
		status, msg = http.StatusServiceUnavailable, "service unavailable"
	}

	if status == http.StatusInternalServerError && logger != nil {
		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
			"error":      err.Error(),
		}).Error("request failed")
	}
	response.Error[any](c, status, msg, nil)
}
