package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	whatssend "github.com/ortizmas/whats-send"
	"github.com/ortizmas/whats-send/gateway"
	"github.com/ortizmas/whats-send/job"
	"github.com/ortizmas/whats-send/outcome"
	"github.com/ortizmas/whats-send/registry"
)

// startRequest is the POST /start body. Hostname pins the session to a
// specific worker; omitted, placement is hash-balanced.
type startRequest struct {
	Session  string `json:"session"`
	Hostname string `json:"hostname,omitempty"`
}

// sendRequest is the POST /send body.
type sendRequest struct {
	Session  string `json:"session"`
	Number   string `json:"number"`
	Message  string `json:"message"`
	Hostname string `json:"hostname,omitempty"`
	Random   bool   `json:"random,omitempty"`
}

// dispatchResponse echoes where a fire-and-forget job went.
type dispatchResponse struct {
	Message   string             `json:"message"`
	Placement *gateway.Placement `json:"placement"`
}

// workersResponse is the GET /workers body.
type workersResponse struct {
	Replicas int                `json:"replicas"`
	Workers  []*registry.Record `json:"workers"`
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	records, err := s.gateway.Workers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "worker registry unavailable")
		return
	}
	respondJSON(w, http.StatusOK, workersResponse{Replicas: len(records), Workers: records})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Session == "" {
		respondError(w, http.StatusBadRequest, "session is required")
		return
	}

	placement, err := s.gateway.Route(r.Context(), job.StartSession(req.Session), gateway.RouteOptions{
		Target: req.Hostname,
	})
	if err != nil {
		s.respondRouteError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dispatchResponse{
		Message:   fmt.Sprintf("session %s dispatched, poll /qr/%s for the pairing code", req.Session, req.Session),
		Placement: placement,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Session == "" || req.Number == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "session, number and message are required")
		return
	}

	placement, err := s.gateway.Route(r.Context(), job.SendMessage(req.Session, req.Number, req.Message), gateway.RouteOptions{
		Target: req.Hostname,
		Random: req.Random,
	})
	if err != nil {
		s.respondRouteError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, dispatchResponse{
		Message:   "message dispatched, poll /status/" + req.Session + " for delivery state",
		Placement: placement,
	})
}

// respondRouteError maps routing failures to HTTP statuses. A dead pinned
// worker is a conflict, not a server fault: the caller named a target that
// cannot take the job.
func (s *Server) respondRouteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, whatssend.ErrWorkerUnavailable):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, whatssend.ErrInvalidJob), errors.Is(err, whatssend.ErrUnknownAction):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("route failed", "error", err)
		respondError(w, http.StatusInternalServerError, "dispatch failed")
	}
}

var qrPage = template.Must(template.New("qr").Parse(
	`<html><body><h2>QR code for session {{.Session}}</h2><img src="{{.QR}}" /></body></html>`))

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")

	payload, err := s.gateway.LastOutcome(r.Context(), session, outcome.EventQRCode)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "outcome cache unavailable")
		return
	}
	if payload == nil {
		respondError(w, http.StatusNotFound, "QR code not available")
		return
	}

	o, err := outcome.Decode(payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cached QR is malformed")
		return
	}

	if r.URL.Query().Get("base64") != "" {
		respondJSON(w, http.StatusOK, map[string]string{"base64": o.QR})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := qrPage.Execute(w, map[string]string{"Session": session, "QR": o.QR}); err != nil {
		s.logger.Error("qr page render failed", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")

	payload, err := s.gateway.LastOutcome(r.Context(), session, outcome.EventStatus)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "outcome cache unavailable")
		return
	}
	if payload == nil {
		respondError(w, http.StatusNotFound, "no status available")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
