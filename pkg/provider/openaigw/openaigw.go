// Package openaigw implements the provider.Client interface against a local
// AI gateway exposing an OpenAI-compatible chat-completions API.
package openaigw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"linebridge/pkg/config"
	"linebridge/pkg/provider"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// Separate short budget for the health probe; it must answer quickly even
	// while completions are allowed to think for minutes.
	healthTimeout = 5 * time.Second

	detailExcerptLimit = 512
)

// Client calls the gateway's /v1/chat/completions endpoint.
//
// The request timeout is far above typical HTTP defaults because the backing
// models can reason for a long time before producing output; the floor is
// enforced by config.GatewayConfig.Timeout. Transient transport failures are
// retried by the SDK up to the configured count.
type Client struct {
	sdk     osdk.Client
	model   string
	baseURL string
	probe   *http.Client
	log     *slog.Logger
}

// New validates the gateway configuration and builds a client.
func New(cfg config.GatewayConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("gateway model is required")
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL + "/v1"),
		option.WithAPIKey(strings.TrimSpace(cfg.Token)),
		option.WithRequestTimeout(cfg.Timeout()),
		option.WithMaxRetries(cfg.MaxRetries),
	}

	return &Client{
		sdk:     osdk.NewClient(opts...),
		model:   model,
		baseURL: baseURL,
		probe:   &http.Client{Timeout: healthTimeout},
		log:     slog.Default().With("component", "provider.openaigw"),
	}, nil
}

// Health probes the gateway's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("gateway health check: %w", err)
	}

	resp, err := c.probe.Do(req)
	if err != nil {
		return fmt.Errorf("gateway health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway health check: status %d", resp.StatusCode)
	}

	return nil
}

// Complete relays one user message and returns the first non-empty choice.
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &provider.GatewayError{Kind: provider.KindEmptyCompletion, Detail: "empty prompt"}
	}

	log := c.log.With("operation", "complete")
	startedAt := time.Now()
	log.Debug("Gateway request started", "model", c.model, "prompt_length", len(text))

	completion, err := c.sdk.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Model: osdk.ChatModel(c.model),
		Messages: []osdk.ChatCompletionMessageParamUnion{
			osdk.UserMessage(text),
		},
	})
	if err != nil {
		gatewayErr := classify(err)
		log.Debug("Gateway request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "kind", string(gatewayErr.Kind), "error", err)
		return "", gatewayErr
	}

	reply := firstChoiceText(completion)
	if reply == "" {
		log.Debug("Gateway request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "kind", string(provider.KindEmptyCompletion))
		return "", &provider.GatewayError{Kind: provider.KindEmptyCompletion, Detail: "completion contained no text choices"}
	}

	log.Debug("Gateway request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(reply))
	return reply, nil
}

func firstChoiceText(completion *osdk.ChatCompletion) string {
	if completion == nil {
		return ""
	}
	for _, choice := range completion.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text
		}
	}

	return ""
}

// classify maps SDK and transport errors onto the gateway error taxonomy.
func classify(err error) *provider.GatewayError {
	var apiErr *osdk.Error
	if errors.As(err, &apiErr) {
		return &provider.GatewayError{
			Kind:   provider.KindBadStatus,
			Status: apiErr.StatusCode,
			Detail: excerpt(err.Error()),
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &provider.GatewayError{Kind: provider.KindTimeout, Detail: excerpt(err.Error())}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &provider.GatewayError{Kind: provider.KindTimeout, Detail: excerpt(err.Error())}
	}

	return &provider.GatewayError{Kind: provider.KindUnreachable, Detail: excerpt(err.Error())}
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= detailExcerptLimit {
		return text
	}

	return text[:detailExcerptLimit]
}
