package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/seedbot/internal/pipeline"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// EventHandler processes one Telegram update.
type EventHandler interface {
	Handle(ctx context.Context, update *tgbotapi.Update) pipeline.Outcome
}

// WebhookHandler receives Telegram webhook calls. It answers 200 "ok" to
// every request that reaches the right path, whatever happens while
// processing it, so Telegram never redelivers an update.
type WebhookHandler struct {
	logger   *slog.Logger
	secret   string
	pipeline EventHandler
}

func NewWebhookHandler(log *slog.Logger, secret string, events EventHandler) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:   log.With(slog.String("handler", "telegram_webhook")),
		secret:   secret,
		pipeline: events,
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/:secret", h.Handle)
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(h.secret)) != 1 {
		return echo.ErrNotFound
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		h.logger.Warn("read webhook body failed", slog.Any("error", err))
		return ack(c)
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		h.logger.Warn("webhook body too large", slog.Int64("max_bytes", webhookMaxBodyBytes))
		return ack(c)
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		h.logger.Warn("decode webhook body failed", slog.Any("error", err))
		return ack(c)
	}

	// Telegram may hang up before we reply; finish the event anyway.
	h.pipeline.Handle(context.WithoutCancel(c.Request().Context()), &update)
	return ack(c)
}

func ack(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
