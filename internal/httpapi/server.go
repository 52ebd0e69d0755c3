// Package httpapi exposes the webhook endpoint and a small operational API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/grupovorp/adpilot/internal/channels"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// signatureVerifier is implemented by adapters that sign their webhooks.
type signatureVerifier interface {
	VerifySignature(body []byte, signatureHeader string) bool
}

// subscriptionVerifier is implemented by adapters with a GET handshake.
type subscriptionVerifier interface {
	VerifySubscription(mode, token, challenge string) (string, error)
}

type Server struct {
	adapter  channels.Adapter
	pipeline *Pipeline
	limiter  *WebhookRateLimiter
	httpSrv  *http.Server
}

func NewServer(addr string, adapter channels.Adapter, pipeline *Pipeline) *Server {
	s := &Server{
		adapter:  adapter,
		pipeline: pipeline,
		limiter:  NewWebhookRateLimiter(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /webhook/whatsapp", s.handleWebhookVerify)
	mux.HandleFunc("POST /webhook/whatsapp", s.handleWebhook)
	mux.HandleFunc("POST /send", s.handleSend)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhookVerify answers the subscription handshake Meta performs when
// the webhook URL is registered.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	verifier, ok := s.adapter.(subscriptionVerifier)
	if !ok {
		http.Error(w, "verification not supported", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	challenge, err := verifier.VerifySubscription(
		q.Get("hub.mode"),
		q.Get("hub.verify_token"),
		q.Get("hub.challenge"),
	)
	if err != nil {
		slog.Warn("webhook verification rejected", "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	if verifier, ok := s.adapter.(signatureVerifier); ok {
		if !verifier.VerifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
			slog.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	event, err := s.adapter.ParseWebhook(body)
	if err != nil {
		slog.Warn("webhook parse failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}
	if event == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if event.Kind == channels.EventMessage && !s.limiter.Allow(event.Phone) {
		slog.Warn("webhook rate limited", "phone", event.Phone)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := s.pipeline.HandleEvent(r.Context(), event); err != nil {
		slog.Error("webhook handling failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// handleSend lets operators push a plain message to a contact, bypassing
// the agent. Delivery goes through the dispatcher so manual messages get
// the same formatting, splitting and persistence as agent replies.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Phone == "" || req.Message == "" {
		http.Error(w, "phone and message are required", http.StatusBadRequest)
		return
	}

	if err := s.pipeline.SendManual(r.Context(), req.Phone, req.Message); err != nil {
		slog.Error("manual send failed", "phone", req.Phone, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
