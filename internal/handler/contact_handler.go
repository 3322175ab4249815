package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bluedjedi/djedi/internal/notifier"
	"github.com/bluedjedi/djedi/internal/protocol"
	"github.com/bluedjedi/djedi/internal/service"
	"github.com/bluedjedi/djedi/internal/telemetry"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ContactHandler 联系表单和 Telegram 测试
type ContactHandler struct {
	logger    *zap.Logger
	service   *service.ContactService
	telemetry *telemetry.Telemetry
}

// NewContactHandler 创建处理器
func NewContactHandler(logger *zap.Logger, service *service.ContactService, telemetry *telemetry.Telemetry) *ContactHandler {
	return &ContactHandler{
		logger:    logger,
		service:   service,
		telemetry: telemetry,
	}
}

// Submit 提交联系表单。校验通过后总是返回成功，转发失败时消息写入备份日志
// POST /contact
func (h *ContactHandler) Submit(c echo.Context) error {
	var req protocol.ContactRequest
	if err := c.Bind(&req); err != nil {
		h.telemetry.ObserveContact(telemetry.ContactInvalid)
		return c.JSON(http.StatusBadRequest, protocol.MessageResponse{
			Status:  protocol.StatusError,
			Message: protocol.ContactInvalid,
		})
	}

	err := h.service.Submit(c.Request().Context(), c.RealIP(), req)

	var verr *service.ValidationError
	switch {
	case err == nil:
		h.telemetry.ObserveContact(telemetry.ContactAccepted)
		return c.JSON(http.StatusOK, protocol.MessageResponse{
			Status:  protocol.StatusSuccess,
			Message: protocol.ContactAccepted,
		})
	case errors.As(err, &verr):
		h.telemetry.ObserveContact(telemetry.ContactInvalid)
		return c.JSON(http.StatusBadRequest, protocol.MessageResponse{
			Status:  protocol.StatusError,
			Message: protocol.ContactInvalid,
			Errors:  verr.Fields,
		})
	case errors.Is(err, service.ErrThrottled):
		h.telemetry.ObserveContact(telemetry.ContactThrottled)
		return c.JSON(http.StatusTooManyRequests, protocol.MessageResponse{
			Status:  protocol.StatusError,
			Message: protocol.ContactThrottled,
		})
	default:
		h.telemetry.ObserveContact(telemetry.ContactFailed)
		h.logger.Error("处理联系表单失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, protocol.MessageResponse{
			Status:  protocol.StatusError,
			Message: protocol.ContactFailed,
		})
	}
}

// TelegramTest 发送 Telegram 测试消息
// POST /api/telegram/test
func (h *ContactHandler) TelegramTest(c echo.Context) error {
	err := h.service.SendTestMessage(c.Request().Context())
	if err == nil {
		return c.JSON(http.StatusOK, protocol.MessageResponse{
			Status:  protocol.StatusSuccess,
			Message: protocol.TelegramTestSent,
		})
	}

	h.logger.Error("发送 Telegram 测试消息失败", zap.Error(err))

	message := fmt.Sprintf("Error: %v", err)
	var apiErr *notifier.APIError
	switch {
	case errors.Is(err, notifier.ErrSecretsMissing):
		message = protocol.TelegramNotConfigured
	case errors.As(err, &apiErr):
		message = fmt.Sprintf("Telegram API error: %d", apiErr.StatusCode)
	}
	return c.JSON(http.StatusInternalServerError, protocol.MessageResponse{
		Status:  protocol.StatusError,
		Message: message,
	})
}
