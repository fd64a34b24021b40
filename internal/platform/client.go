// Package platform is the REST client for the messaging platform's Graph API.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/getvoyage/summy/internal/config"
)

// Client calls the platform REST API. Every call carries the http.Client
// timeout so a hung upstream cannot stall the poller or webhook workers, and
// outbound calls share one rate limiter.
type Client struct {
	baseURL     string
	altURL      string
	accessToken string
	businessID  string
	logger      *slog.Logger
	http        *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a platform client from the Instagram config section.
func NewClient(log *slog.Logger, cfg config.InstagramConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.GraphBaseURL, "/"),
		altURL:      strings.TrimRight(cfg.GraphAltURL, "/"),
		accessToken: cfg.AccessToken,
		businessID:  cfg.BusinessAccountID,
		logger:      log.With(slog.String("client", "platform")),
		http: &http.Client{
			Timeout: cfg.APITimeout(),
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// GetUserInfo fetches a user's profile. The primary endpoint is tried first;
// the alternate Graph host serves as fallback because some account types only
// resolve there.
func (c *Client) GetUserInfo(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, fmt.Errorf("user id is required")
	}
	var user User
	err := c.getJSON(ctx, c.baseURL+"/"+url.PathEscape(userID), url.Values{"fields": {"id,username"}}, &user)
	if err == nil {
		return user, nil
	}
	altErr := c.getJSON(ctx, c.altURL+"/"+url.PathEscape(userID), url.Values{"fields": {"id,name"}}, &user)
	if altErr != nil {
		return User{}, fmt.Errorf("get user info: %w", err)
	}
	return user, nil
}

// GetConversations lists the account's conversations with participants.
func (c *Client) GetConversations(ctx context.Context) ([]Conversation, error) {
	var out listEnvelope[Conversation]
	params := url.Values{"fields": {"id,participants,updated_time"}}
	if err := c.getJSON(ctx, c.baseURL+"/me/conversations", params, &out); err != nil {
		return nil, fmt.Errorf("get conversations: %w", err)
	}
	return out.Data, nil
}

// GetConversationMessages fetches the most recent messages of a conversation.
func (c *Client) GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]ConversationMessage, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	params := url.Values{"fields": {"id,from,message,created_time"}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out listEnvelope[ConversationMessage]
	if err := c.getJSON(ctx, c.baseURL+"/"+url.PathEscape(conversationID)+"/messages", params, &out); err != nil {
		return nil, fmt.Errorf("get conversation messages: %w", err)
	}
	return out.Data, nil
}

// SendMessage sends a direct reply to a user via the business account's
// messages endpoint.
func (c *Client) SendMessage(ctx context.Context, recipientID, text string) error {
	if strings.TrimSpace(recipientID) == "" {
		return fmt.Errorf("recipient id is required")
	}
	payload := map[string]any{
		"messaging_product": "instagram",
		"recipient":         map[string]string{"id": recipientID},
		"message":           map[string]string{"text": text},
		"access_token":      c.accessToken,
	}
	endpoint := "/" + url.PathEscape(c.businessID) + "/messages"
	err := c.postJSON(ctx, c.baseURL+endpoint, payload)
	if err == nil {
		return nil
	}
	if altErr := c.postJSON(ctx, c.altURL+endpoint, payload); altErr == nil {
		return nil
	}
	return fmt.Errorf("send message: %w", err)
}

// SendConversationMessage sends a reply into an existing conversation thread.
func (c *Client) SendConversationMessage(ctx context.Context, conversationID, text string) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	payload := map[string]any{
		"message":      text,
		"access_token": c.accessToken,
	}
	if err := c.postJSON(ctx, c.baseURL+"/"+url.PathEscape(conversationID)+"/messages", payload); err != nil {
		return fmt.Errorf("send conversation message: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	params.Set("access_token", c.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, body)
	}
	return nil
}

func apiError(status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("platform api status %d: %s", status, snippet)
}
