package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/getvoyage/summy/internal/eventlog"
	"github.com/getvoyage/summy/internal/message"
	"github.com/getvoyage/summy/internal/pipeline"
	"github.com/getvoyage/summy/internal/signature"
)

// signatureHeader is the HMAC header set by the platform on every delivery.
const signatureHeader = "X-Hub-Signature-256"

// maxWebhookBody caps how much of a delivery body is read.
const maxWebhookBody = 1 << 20

// MessagePipeline handles one normalized inbound message.
type MessagePipeline interface {
	Handle(ctx context.Context, msg message.Inbound) pipeline.Outcome
}

// WebhookHandler handles the platform webhook: the GET subscription handshake
// and POST deliveries.
type WebhookHandler struct {
	verifier    *signature.Verifier
	verifyToken string
	strict      bool
	normalizer  *message.Normalizer
	pipe        MessagePipeline
	events      *eventlog.Log
	logger      *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(log *slog.Logger, verifier *signature.Verifier, verifyToken string, strict bool, normalizer *message.Normalizer, pipe MessagePipeline, events *eventlog.Log) *WebhookHandler {
	return &WebhookHandler{
		verifier:    verifier,
		verifyToken: verifyToken,
		strict:      strict,
		normalizer:  normalizer,
		pipe:        pipe,
		events:      events,
		logger:      log.With(slog.String("handler", "webhook")),
	}
}

// Register mounts the webhook routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook", h.Verify)
	e.POST("/webhook", h.Receive)
}

// Verify answers the platform's subscription handshake: when the mode and
// token match, the challenge is echoed back verbatim.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && token != "" {
		h.logger.Info("webhook subscription verified")
		return c.String(http.StatusOK, challenge)
	}
	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return c.JSON(http.StatusForbidden, ErrorResponse{Message: "verification failed"})
}

// Receive processes one webhook delivery. The raw body is read before any
// decoding because the signature covers the exact bytes on the wire. Every
// delivery leaves a receipt in the event log, whatever its outcome.
func (h *WebhookHandler) Receive(c echo.Context) error {
	receipt := eventlog.NewReceipt()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		receipt.Status = eventlog.StatusError
		receipt.Error = err.Error()
		h.events.Append(receipt)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "could not read body"})
	}
	receipt.PayloadSize = len(body)

	receipt.SignatureValid = h.verifier.Verify(body, c.Request().Header.Get(signatureHeader))
	switch {
	case receipt.SignatureValid:
		receipt.Status = eventlog.StatusSignatureVerified
	case h.strict:
		receipt.Status = eventlog.StatusSignatureRejected
		h.events.Append(receipt)
		h.logger.Warn("rejecting delivery with invalid signature")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid signature"})
	default:
		receipt.Status = eventlog.StatusSignatureSoftFail
		h.logger.Warn("signature verification failed, processing anyway")
	}

	var payload message.PushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		receipt.Status = eventlog.StatusNoJSON
		receipt.Error = err.Error()
		h.events.Append(receipt)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid JSON payload"})
	}

	receipt.EntriesFound = len(payload.Entry)
	receipt.Status = eventlog.StatusProcessingMessages

	processed := 0
	for _, entry := range payload.Entry {
		for _, msg := range h.normalizer.NormalizeEntry(entry) {
			outcome := h.pipe.Handle(c.Request().Context(), msg)
			if outcome == pipeline.OutcomeReplied || outcome == pipeline.OutcomeReplyFailed {
				processed++
			}
		}
	}

	receipt.MessagesProcessed = processed
	receipt.Status = eventlog.StatusCompleted
	h.events.Append(receipt)

	return c.JSON(http.StatusOK, map[string]any{
		"status":             "ok",
		"entries":            receipt.EntriesFound,
		"messages_processed": processed,
	})
}
