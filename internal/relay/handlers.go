package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ciphera/internal/domain"
	"ciphera/internal/protocol/message"
	"ciphera/internal/relaystore"
)

type registerRequest struct {
	ID domain.Username `json:"id"`
}

type registerResponse struct {
	ID domain.Username `json:"id"`
}

// handleRegister implements `register`: POST /v1/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeErr(w, http.StatusBadRequest, "id required")
		return
	}
	if _, err := s.store.RegisterUser(string(req.ID), nowMs()); err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{ID: req.ID})
}

type uploadBundleRequest struct {
	ID     domain.Username    `json:"id"`
	Bundle domain.PreKeyBundle `json:"bundle"`
}

// handleUploadBundle implements `upload_bundle`: POST /v1/prekeys.
func (s *Server) handleUploadBundle(w http.ResponseWriter, r *http.Request) {
	var req uploadBundleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeErr(w, http.StatusBadRequest, "id required")
		return
	}
	has, err := s.store.HasUser(string(req.ID))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !has {
		writeErr(w, http.StatusNotFound, "user_not_registered")
		return
	}

	blob, err := json.Marshal(req.Bundle)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad bundle")
		return
	}
	if err := s.store.UpsertBundle(string(req.ID), blob, nowMs()); err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type fetchBundleResponse struct {
	ID     domain.Username    `json:"id"`
	Bundle domain.PreKeyBundle `json:"bundle"`
}

// handleFetchBundle implements `fetch_bundle`: GET /v1/prekeys/{id}.
func (s *Server) handleFetchBundle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeErr(w, http.StatusBadRequest, "id required")
		return
	}
	blob, ok, err := s.store.FetchBundle(id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "bundle_not_found")
		return
	}
	var bundle domain.PreKeyBundle
	if err := json.Unmarshal(blob, &bundle); err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, fetchBundleResponse{ID: domain.Username(id), Bundle: bundle})
}

type sendMessageRequest struct {
	From domain.Username `json:"from"`
	To   domain.Username `json:"to"`
	Env  domain.Envelope `json:"envelope"`
}

type sendMessageResponse struct {
	OK        bool `json:"ok"`
	Queued    bool `json:"queued"`
	Delivered bool `json:"delivered"`
}

// handleSendMessage implements `send_message`: POST /v1/messages.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := message.ValidateEnvelope(req.Env); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	has, err := s.store.HasUser(string(req.To))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !has {
		writeErr(w, http.StatusNotFound, "recipient_not_registered")
		return
	}

	envJSON, err := json.Marshal(req.Env)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad envelope")
		return
	}

	msgID := uuid.NewString()
	createdAtMs := nowMs()
	if err := s.store.EnqueueMessage(relaystore.QueuedMessage{
		ID:           msgID,
		To:           string(req.To),
		From:         string(req.From),
		EnvelopeJSON: envJSON,
		CreatedAtMs:  createdAtMs,
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	delivered := s.pushToSubscriber(req.To, req.From, req.Env)
	if delivered {
		if err := s.store.MarkDelivered(msgID); err != nil {
			writeErr(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{OK: true, Queued: true, Delivered: delivered})
}

type diagnosticsResponse struct {
	UptimeSec          int64              `json:"uptime_sec"`
	Counts             diagnosticsCounts  `json:"counts"`
	QueueDepthHistogram map[string]int    `json:"queue_depth_histogram"`
	Metrics            *domain.HostMetrics `json:"metrics"`
}

type diagnosticsCounts struct {
	Users             int `json:"users"`
	Prekeys           int `json:"prekeys"`
	QueuedMessages    int `json:"queued_messages"`
	ActiveConnections int `json:"active_connections"`
}

// handleDiagnostics implements `diagnostics`: GET /diagnostics.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	users, prekeys, queued, err := s.store.Counts()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	allUsers, err := s.store.AllUserIDs()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	undelivered, err := s.store.UndeliveredCountsByRecipient()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.mu.Lock()
	active := len(s.subs)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, diagnosticsResponse{
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
		Counts: diagnosticsCounts{
			Users:             users,
			Prekeys:           prekeys,
			QueuedMessages:    queued,
			ActiveConnections: active,
		},
		QueueDepthHistogram: QueueDepthHistogram(allUsers, undelivered),
		Metrics:             s.latestMetrics(),
	})
}

// handleIngestMetrics implements `ingest_metrics`: POST /diagnostics/metrics.
func (s *Server) handleIngestMetrics(w http.ResponseWriter, r *http.Request) {
	var metrics domain.HostMetrics
	if !decodeJSON(w, r, &metrics) {
		return
	}
	s.metricsMu.Lock()
	s.metrics = &metrics
	s.metricsMu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleHealth implements GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) latestMetrics() *domain.HostMetrics {
	s.metricsMu.RLock()
	defer s.metricsMu.RUnlock()
	return s.metrics
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return false
	}
	return true
}

func nowMs() int64 { return time.Now().UnixMilli() }
