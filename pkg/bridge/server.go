// Package bridge wires the webhook pipeline together: signature gate, event
// decode, gateway completion, and reply dispatch.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linebridge/pkg/config"
	"linebridge/pkg/line"
	"linebridge/pkg/provider"
)

// Version is the service version reported by the banner and version command.
const Version = "0.1.0"

const serviceName = "linebridge"

const (
	maxBodyBytes        = 1 << 20
	healthProbeInterval = 30 * time.Second
	shutdownTimeout     = 10 * time.Second

	// Extra room after the gateway budget for the reply API call.
	dispatchGrace = 30 * time.Second
)

// Server is the bridge orchestrator. Configuration and the two outbound
// clients are set once at construction and shared read-only across request
// handlers; the mutex only guards the health-probe snapshot.
type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	line    *line.Client
	gateway provider.Client
	router  chi.Router

	httpServer *http.Server
	workers    sync.WaitGroup

	mu              sync.RWMutex
	startedAt       time.Time
	gatewayLastOKAt time.Time
	gatewayLastErr  string
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Gateway string `json:"gateway"`
	Uptime  int64  `json:"uptime_seconds"`
}

// New builds the bridge server.
func New(cfg *config.Config, lineClient *line.Client, gateway provider.Client, log *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if lineClient == nil {
		return nil, errors.New("line client is required")
	}
	if gateway == nil {
		return nil, errors.New("gateway client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		log:     log.With("component", "bridge.server"),
		line:    lineClient,
		gateway: gateway,
	}
	s.router = s.buildRouter()

	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/callback", s.handleCallback)

	return r
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully and
// drains in-flight webhook workers.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	// Best effort: the bridge stays up when the gateway is down, it just
	// reports the state on /health and drops replies until recovery.
	s.checkGatewayHealth(ctx)
	go s.runHealthProber(ctx)

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("serve http: %w", err)
		}
	}()

	s.log.Info("Bridge started", "address", addr, "gateway", s.cfg.Gateway.BaseURL, "model", s.cfg.Gateway.Model)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		s.drainWorkers(shutdownCtx)
		return nil
	case err := <-serverErrors:
		return err
	}
}

func (s *Server) drainWorkers(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Shutdown grace expired with webhook workers still running")
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s v%s", serviceName, Version)
}

// handleHealth always answers 200: liveness of the bridge itself does not
// depend on the gateway. The gateway field reports the last probe outcome.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	gatewayState := "online"
	if s.gatewayLastErr != "" || s.gatewayLastOKAt.IsZero() {
		gatewayState = "unreachable"
	}
	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{
		Status:  "ok",
		Service: serviceName,
		Gateway: gatewayState,
		Uptime:  uptime,
	}); err != nil {
		s.log.Error("Failed to write health response", "error", err)
	}
}

// handleCallback is the webhook entry point. Signature verification is a hard
// gate; after it passes the platform always gets a fast 200, because its
// retry policy is outside our control and redelivering a payload into a slow
// gateway call would only compound latency. Event processing continues on a
// detached worker.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.log.Warn("Failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	header := r.Header.Get(line.SignatureHeader)
	if header == "" {
		s.log.Warn("Missing webhook signature header")
		http.Error(w, "missing signature", http.StatusBadRequest)
		return
	}
	if !line.VerifySignature([]byte(s.cfg.Line.ChannelSecret), body, header) {
		s.log.Error("Webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	hook, err := line.DecodeWebhook(body)
	if err != nil {
		// Accepted anyway: the platform retries rejected deliveries, and a
		// payload that does not parse now will not parse on redelivery.
		s.log.Error("Dropping undecodable webhook payload", "error", err)
		s.respondOK(w)
		return
	}

	s.log.Info("Webhook accepted", "events", len(hook.Events), "request_id", middleware.GetReqID(r.Context()))

	s.workers.Add(1)
	go s.processWebhook(hook)

	s.respondOK(w)
}

func (s *Server) respondOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (s *Server) runHealthProber(ctx context.Context) {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkGatewayHealth(ctx)
		}
	}
}

func (s *Server) checkGatewayHealth(ctx context.Context) {
	err := s.gateway.Health(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.gatewayLastErr == "" {
			s.log.Warn("Gateway health check failed", "error", err)
		}
		s.gatewayLastErr = err.Error()
		return
	}
	if s.gatewayLastErr != "" {
		s.log.Info("Gateway recovered")
	}
	s.gatewayLastErr = ""
	s.gatewayLastOKAt = time.Now().UTC()
}
