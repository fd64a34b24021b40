package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/getvoyage/summy/internal/reply"
	"github.com/getvoyage/summy/internal/transcript"
)

// MessagesHandler serves the recorded transcript and the local test endpoint.
type MessagesHandler struct {
	book      *transcript.Book
	replies   *reply.Generator
	indexPage string
	logger    *slog.Logger
}

// NewMessagesHandler creates a MessagesHandler. indexPage is the path of the
// dashboard page served at /; empty disables it.
func NewMessagesHandler(log *slog.Logger, book *transcript.Book, replies *reply.Generator, indexPage string) *MessagesHandler {
	return &MessagesHandler{
		book:      book,
		replies:   replies,
		indexPage: indexPage,
		logger:    log.With(slog.String("handler", "messages")),
	}
}

// Register mounts the transcript routes and the dashboard page.
func (h *MessagesHandler) Register(e *echo.Echo) {
	e.GET("/api/messages", h.ListMessages)
	e.POST("/test-message", h.TestMessage)
	if h.indexPage != "" {
		e.File("/", h.indexPage)
	}
}

// ListMessages returns recorded exchanges, newest first.
func (h *MessagesHandler) ListMessages(c echo.Context) error {
	entries, err := h.book.List()
	if err != nil {
		h.logger.Error("transcript read failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "could not read transcript"})
	}
	reverseEntries(entries)
	return c.JSON(http.StatusOK, map[string]any{
		"messages": entries,
		"count":    len(entries),
	})
}

func reverseEntries(entries []transcript.Entry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// TestMessageRequest is the body of POST /test-message.
type TestMessageRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// TestMessage generates and records a reply without touching the platform
// API, so the reply rules and transcript can be exercised locally.
func (h *MessagesHandler) TestMessage(c echo.Context) error {
	var req TestMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "message is required"})
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = "test_user"
	}

	replyText := h.replies.Generate(username, req.Message)
	if err := h.book.Record(username, req.Message, replyText, time.Now().UTC()); err != nil {
		h.logger.Error("transcript record failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "could not record message"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"username": username,
		"message":  req.Message,
		"reply":    replyText,
	})
}
