package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
	"github.com/fachebot/meeting-issue-bot/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusOf 按错误分类映射 HTTP 状态码
func statusOf(err error) (int, string) {
	var httpErr *echo.HTTPError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code, "request_error"
	case errors.As(err, &validationErrs):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity, "extraction_error"
	case errors.Is(err, domain.ErrSynthesis):
		return http.StatusUnprocessableEntity, "synthesis_error"
	case errors.Is(err, domain.ErrExternalCall):
		return http.StatusBadGateway, "external_call_error"
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, context.Canceled):
		return http.StatusConflict, "cancelled"
	}
	return http.StatusInternalServerError, "internal_error"
}

// handleError 统一输出错误响应
func handleError(c echo.Context, err error) error {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("[HTTP] %s %s 失败: %v", c.Request().Method, c.Path(), err)
	} else {
		logger.Debugf("[HTTP] %s %s 失败: %v", c.Request().Method, c.Path(), err)
	}

	message := err.Error()
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
	}
	return c.JSON(status, errorBody{Code: code, Message: message})
}
