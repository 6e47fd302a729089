package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/prompt-gateway/internal/api/dto"
	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

// statusFor maps an error kind onto an HTTP status and a stable code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *JobHandler) respondError(c *gin.Context, msg string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		c.JSON(status, dto.ErrorResponse{Error: msg, Code: code})
		return
	}

	h.logger.Warn(msg, slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	c.JSON(status, dto.ErrorResponse{Error: err.Error(), Code: code})
}
