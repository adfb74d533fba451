// Package negotiation is the demo HTTP/SSE facade over the negotiation
// engine: submit a demand, inspect a channel, and watch the event stream.
// Grounded on the teacher's pkg/api/debate handlers (SSE via http.Flusher,
// CORS headers, heartbeat ticker) repointed at the Coordinator/Channel
// Administrator instead of the debate orchestrator.
package negotiation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"negotiation-engine/pkg/core/engine"
)

// Handler wires HTTP routes to one Engine instance.
type Handler struct {
	eng *engine.Engine
	log zerolog.Logger
}

func NewHandler(eng *engine.Engine, log zerolog.Logger) *Handler {
	return &Handler{eng: eng, log: log.With().Str("component", "negotiation_api").Logger()}
}

// Register mounts every route onto router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/demands", h.HandleSubmitDemand).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/channels/{id}", h.HandleChannelSnapshot).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/events/recent", h.HandleRecentEvents).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/events/stream", h.HandleStreamEvents).Methods(http.MethodGet, http.MethodOptions)
}

func withCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

type submitDemandRequest struct {
	SubmitterID string `json:"submitter_id"`
	RawText     string `json:"raw_text"`
}

type submitDemandResponse struct {
	ChannelID string `json:"channel_id"`
}

// HandleSubmitDemand is the single entry point for a human's raw demand.
func (h *Handler) HandleSubmitDemand(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req submitDemandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.SubmitterID == "" || req.RawText == "" {
		http.Error(w, "submitter_id and raw_text are required", http.StatusBadRequest)
		return
	}

	channelID, err := h.eng.SubmitDemand(r.Context(), req.SubmitterID, req.RawText)
	if err != nil {
		h.log.Error().Err(err).Msg("submit demand failed")
		http.Error(w, fmt.Sprintf("failed to submit demand: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(submitDemandResponse{ChannelID: channelID})
}

// HandleChannelSnapshot returns the current read-only state of one channel.
func (h *Handler) HandleChannelSnapshot(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	channelID := mux.Vars(r)["id"]

	snap, ok := h.eng.ChannelSnapshot(channelID)
	if !ok {
		http.Error(w, "channel not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// HandleRecentEvents returns the Event Bus's bounded ring-buffer backlog.
func (h *Handler) HandleRecentEvents(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.eng.RecentEvents())
}

// HandleStreamEvents is an SSE feed over the event bus, optionally scoped by
// a "pattern" query parameter (exact event type or "prefix.*" wildcard).
func (h *Handler) HandleStreamEvents(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Content-Type", "text/event-stream")

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	sub := h.eng.SubscribeEvents(pattern)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	notify := r.Context().Done()

	for {
		select {
		case evt, open := <-sub.C:
			if !open {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
