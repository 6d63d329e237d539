package bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"linebridge/pkg/line"
	"linebridge/pkg/provider"

	"github.com/stretchr/testify/require"
)

type platformStub struct {
	mu      sync.Mutex
	replies []map[string]any
}

func (p *platformStub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		require.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))

		p.mu.Lock()
		p.replies = append(p.replies, body)
		p.mu.Unlock()

		_, _ = io.WriteString(w, `{}`)
	})
}

func (p *platformStub) recorded() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	replies := make([]map[string]any, len(p.replies))
	copy(replies, p.replies)
	return replies
}

func signedCallback(t *testing.T, server *Server, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader(body))
	req.Header.Set(line.SignatureHeader, line.Sign([]byte(testSecret), body))
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	return rec
}

func TestCallbackE2ERelaysTextEventsInOrder(t *testing.T) {
	platform := &platformStub{}
	platformServer := httptest.NewServer(platform.handler(t))
	defer platformServer.Close()

	gateway := &stubGateway{reply: "echoed by gateway"}
	server := testServer(t, gateway, platformServer.URL)

	body := []byte(`{
	  "events": [
	    {"type":"message","replyToken":"rt-1","source":{"userId":"u1"},"message":{"id":"m1","type":"text","text":"first"}},
	    {"type":"message","replyToken":"rt-2","source":{"userId":"u1"},"message":{"id":"m2","type":"sticker"}},
	    {"type":"postback","replyToken":"rt-3","source":{"userId":"u2"},"postback":{"data":"action=go"}},
	    {"type":"message","replyToken":"rt-4","source":{"userId":"u3"},"message":{"id":"m4","type":"text","text":"last"}}
	  ]
	}`)

	rec := signedCallback(t, server, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())

	server.workers.Wait()

	require.Equal(t, []string{"first", "action=go", "last"}, gateway.recordedPrompts())

	replies := platform.recorded()
	require.Len(t, replies, 3)
	require.Equal(t, "rt-1", replies[0]["replyToken"])
	require.Equal(t, "rt-3", replies[1]["replyToken"])
	require.Equal(t, "rt-4", replies[2]["replyToken"])

	messages := replies[0]["messages"].([]any)
	require.Len(t, messages, 1)
	message := messages[0].(map[string]any)
	require.Equal(t, "text", message["type"])
	require.Equal(t, "echoed by gateway", message["text"])
}

func TestCallbackE2EEmptyCompletionSendsNoReply(t *testing.T) {
	platform := &platformStub{}
	platformServer := httptest.NewServer(platform.handler(t))
	defer platformServer.Close()

	gateway := &stubGateway{completeErr: &provider.GatewayError{Kind: provider.KindEmptyCompletion, Detail: "no choices"}}
	server := testServer(t, gateway, platformServer.URL)

	body := []byte(`{"events":[{"type":"message","replyToken":"rt-1","message":{"type":"text","text":"hi"}}]}`)
	rec := signedCallback(t, server, body)
	require.Equal(t, http.StatusOK, rec.Code)

	server.workers.Wait()

	require.Len(t, gateway.recordedPrompts(), 1)
	require.Empty(t, platform.recorded())
}

func TestCallbackE2EDispatchFailureTerminatesOnlyThatEvent(t *testing.T) {
	var calls int
	var mu sync.Mutex

	platformServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n == 1 {
			// First reply token already consumed upstream.
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"Invalid reply token"}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer platformServer.Close()

	gateway := &stubGateway{reply: "reply"}
	server := testServer(t, gateway, platformServer.URL)

	body := []byte(`{
	  "events": [
	    {"type":"message","replyToken":"rt-1","message":{"type":"text","text":"one"}},
	    {"type":"message","replyToken":"rt-2","message":{"type":"text","text":"two"}}
	  ]
	}`)
	rec := signedCallback(t, server, body)
	require.Equal(t, http.StatusOK, rec.Code)

	server.workers.Wait()

	// Both events reached the gateway even though the first dispatch failed.
	require.Equal(t, []string{"one", "two"}, gateway.recordedPrompts())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, calls)
}
