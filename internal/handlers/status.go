package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/getvoyage/summy/internal/config"
	"github.com/getvoyage/summy/internal/dedup"
	"github.com/getvoyage/summy/internal/eventlog"
	"github.com/getvoyage/summy/internal/version"
)

// recentEvents is how many receipts the events endpoint returns.
const recentEvents = 10

// PollStatus reports whether the background poller is running.
type PollStatus interface {
	Active() bool
}

// StatusHandler serves liveness and introspection endpoints.
type StatusHandler struct {
	cfg    config.Config
	store  *dedup.Store
	events *eventlog.Log
	poll   PollStatus
	logger *slog.Logger
}

// NewStatusHandler creates a status handler. poll may be nil when polling is
// disabled.
func NewStatusHandler(log *slog.Logger, cfg config.Config, store *dedup.Store, events *eventlog.Log, poll PollStatus) *StatusHandler {
	return &StatusHandler{
		cfg:    cfg,
		store:  store,
		events: events,
		poll:   poll,
		logger: log.With(slog.String("handler", "status")),
	}
}

// Register mounts the status routes.
func (h *StatusHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
	e.GET("/api/stats", h.Stats)
	e.GET("/api/webhook-events", h.WebhookEvents)
	e.GET("/debug", h.Debug)
}

func (h *StatusHandler) polling() bool {
	return h.poll != nil && h.poll.Active()
}

// Health returns 200 JSON with processing counters.
func (h *StatusHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":             "ok",
		"processed_messages": h.store.Len(),
		"polling":            h.polling(),
	})
}

// HealthHead returns 200 No Content for health checks.
func (h *StatusHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Stats returns aggregate counters for the dashboard.
func (h *StatusHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"processed_messages": h.store.Len(),
		"webhook_receipts":   h.events.Total(),
		"polling":            h.polling(),
		"version":            version.GetInfo(),
	})
}

// WebhookEvents returns the most recent webhook receipts.
func (h *StatusHandler) WebhookEvents(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"events": h.events.Recent(recentEvents),
		"total":  h.events.Total(),
	})
}

// Debug reports the effective non-secret configuration. Credentials are
// reported only as present or absent.
func (h *StatusHandler) Debug(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"server_addr":          h.cfg.Server.Addr,
		"graph_base_url":       h.cfg.Instagram.GraphBaseURL,
		"graph_alt_url":        h.cfg.Instagram.GraphAltURL,
		"strict_signature":     h.cfg.Webhook.StrictSignature,
		"poller_enabled":       h.cfg.Poller.Enabled,
		"poll_interval":        h.cfg.Poller.Interval().String(),
		"transcript_path":      h.cfg.Transcript.Path,
		"access_token_set":     h.cfg.Instagram.AccessToken != "",
		"app_secret_set":       h.cfg.Instagram.AppSecret != "",
		"verify_token_set":     h.cfg.Webhook.VerifyToken != "",
		"business_account_set": h.cfg.Instagram.BusinessAccountID != "",
	})
}
