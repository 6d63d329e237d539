package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIBase is the production messaging API host.
const DefaultAPIBase = "https://api.line.me"

const (
	replyPath = "/v2/bot/message/reply"
	pushPath  = "/v2/bot/message/push"

	// The reply API answers in well under a second; only the gateway side of
	// the bridge needs thinking-model timeouts.
	requestTimeout = 30 * time.Second

	bodyExcerptLimit = 512
)

// DispatchError reports a non-2xx response from the messaging API.
type DispatchError struct {
	Status int
	Body   string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("line: message API returned status %d: %s", e.Status, e.Body)
}

// Client sends messages through the platform messaging API. It is safe for
// concurrent use; the underlying HTTP client is long-lived and pools
// connections across requests.
type Client struct {
	apiBase     string
	accessToken string
	httpClient  *http.Client
	log         *slog.Logger
}

// NewClient validates the credentials and builds a messaging API client.
// apiBase is overridable for tests; empty means the production host.
func NewClient(apiBase, accessToken string) (*Client, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("line: channel access token is required")
	}
	if strings.TrimSpace(apiBase) == "" {
		apiBase = DefaultAPIBase
	}

	return &Client{
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: requestTimeout},
		log:         slog.Default().With("component", "line.client"),
	}, nil
}

// TextMessage is the wire shape of one outgoing text message.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextMessage builds a text message payload.
func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: MessageTypeText, Text: text}
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []TextMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []TextMessage `json:"messages"`
}

// Reply answers one inbound event through its reply token.
//
// Reply tokens are single use and expire quickly, so Reply never retries: a
// second attempt with a consumed or expired token cannot succeed. Failures
// surface as DispatchError for the caller to log.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if strings.TrimSpace(replyToken) == "" {
		return errors.New("line: reply token is required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("line: reply text is required")
	}

	return c.post(ctx, replyPath, replyRequest{
		ReplyToken: replyToken,
		Messages:   []TextMessage{NewTextMessage(text)},
	})
}

// Push sends a message to a user outside any reply flow.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("line: push recipient is required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("line: push text is required")
	}

	return c.post(ctx, pushPath, pushRequest{
		To:       to,
		Messages: []TextMessage{NewTextMessage(text)},
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("line: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	startedAt := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("line: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := readExcerpt(resp.Body)
		c.log.Error("Message API request failed", "path", path, "status", resp.StatusCode, "duration_ms", time.Since(startedAt).Milliseconds(), "body", excerpt)
		return &DispatchError{Status: resp.StatusCode, Body: excerpt}
	}

	// Drain so the connection returns to the pool.
	_, _ = io.Copy(io.Discard, resp.Body)
	c.log.Debug("Message API request completed", "path", path, "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

func readExcerpt(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, bodyExcerptLimit))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
