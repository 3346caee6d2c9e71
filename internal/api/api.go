// Package api provides the bot's thin HTTP surface: the Twilio inbound
// webhook, a health endpoint, and the static file mount backing document
// delivery over Twilio.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FuncStore/FuncBot/internal/messaging"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string

	// Twilio, when set, mounts the inbound webhook at /webhook/twilio.
	Twilio *messaging.TwilioService

	// FileDir, when set, is served read-only under /files/.
	FileDir string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithTwilioWebhook mounts the inbound webhook for the given service.
func WithTwilioWebhook(s *messaging.TwilioService) Option {
	return func(o *Opts) {
		o.Twilio = s
	}
}

// WithFileDir serves the given directory under /files/.
func WithFileDir(dir string) Option {
	return func(o *Opts) {
		o.FileDir = dir
	}
}

// Server is the HTTP listener.
type Server struct {
	opts Opts
	srv  *http.Server
}

// NewServer builds the server and its routes.
func NewServer(options ...Option) *Server {
	opts := Opts{Addr: DefaultAddr}
	for _, opt := range options {
		opt(&opts)
	}

	s := &Server{opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	if opts.Twilio != nil {
		mux.HandleFunc("/webhook/twilio", s.twilioWebhookHandler)
	}
	if opts.FileDir != "" {
		mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FileDir))))
	}

	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the route table, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start runs the listener until Shutdown or a listener error.
func (s *Server) Start() error {
	slog.Info("Server listening", "addr", s.opts.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// healthHandler reports liveness for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// twilioWebhookHandler accepts inbound Twilio form posts and feeds them to
// the messaging service.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("Server.twilioWebhookHandler: failed to parse form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Server.twilioWebhookHandler: missing fields", "from", from)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	if err := s.opts.Twilio.ReceiveInbound(from, body); err != nil {
		slog.Error("Server.twilioWebhookHandler: inbound delivery failed", "error", err, "from", from)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response any) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		statusCode = http.StatusInternalServerError
		jsonData = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}
