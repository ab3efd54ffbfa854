package handlers

import (
	"errors"
	"net/http"

	"arena-indexer/internal/apperrors"

	"github.com/gin-gonic/gin"
)

const maskedMessage = "An error occurred"

// respondError renders err as {error:{message, code}}. Outside production
// the stack captured at construction is included; in production server
// errors are masked.
func respondError(c *gin.Context, err error, production bool) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.KindInternal, "", "Internal server error")
	}

	status := appErr.StatusCode()
	message := appErr.Error()
	if production && status >= http.StatusInternalServerError {
		message = maskedMessage
	}

	body := gin.H{"message": message, "code": appErr.Code}
	if !production {
		if stack := appErr.Stack(); stack != "" {
			body["stack"] = stack
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// NotFound answers unknown routes in the error envelope
func NotFound(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondError(c, apperrors.NotFound(apperrors.CodeNotFound, "Route %s %s not found", c.Request.Method, c.Request.URL.Path), production)
	}
}
