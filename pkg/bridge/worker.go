package bridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"linebridge/pkg/line"
	"linebridge/pkg/provider"
)

// processWebhook relays one webhook delivery's events in arrival order.
//
// It runs detached from the inbound HTTP request: the platform already got
// its 200, and a dropped inbound connection must not cancel work whose
// result is delivered through a separate outbound call keyed by the reply
// token. Each event gets its own deadline; a failed event terminates only
// itself, never its siblings.
func (s *Server) processWebhook(hook line.Webhook) {
	defer s.workers.Done()

	for _, event := range hook.Events {
		text, ok := event.PromptText()
		if !ok {
			s.log.Debug("Skipping event without relayable text", "type", event.Type)
			continue
		}
		s.relayEvent(event, text)
	}
}

func (s *Server) relayEvent(event line.Event, text string) {
	log := s.log.With("component", "bridge.worker", "event_type", event.Type, "user_id", event.Source.UserID)

	ctx, cancel := context.WithTimeout(context.Background(), s.eventBudget())
	defer cancel()

	startedAt := time.Now()
	reply, err := s.gateway.Complete(ctx, text)
	if err != nil {
		// Silence toward the chat user; the reply token is left unconsumed.
		var gatewayErr *provider.GatewayError
		if errors.As(err, &gatewayErr) && gatewayErr.Kind == provider.KindEmptyCompletion {
			log.Warn("Gateway returned no usable text, dropping event")
		} else {
			log.Error("Dropping event after gateway failure", "error", err, "duration_ms", time.Since(startedAt).Milliseconds())
		}
		return
	}

	if err := s.line.Reply(ctx, event.ReplyToken, reply); err != nil {
		// No retry: the token is single use and may already be consumed.
		log.Error("Failed to deliver reply", "error", err)
		return
	}

	log.Info("Reply delivered", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(reply), "preview", previewText(reply))
}

// eventBudget bounds one event's relay: the gateway's full retry budget plus
// room to dispatch the reply.
func (s *Server) eventBudget() time.Duration {
	attempts := time.Duration(s.cfg.Gateway.MaxRetries + 1)
	return s.cfg.Gateway.Timeout()*attempts + dispatchGrace
}

const previewLimit = 120

// previewText returns a bounded log-safe preview of reply text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= previewLimit {
		return trimmed
	}

	return trimmed[:previewLimit] + "..."
}
