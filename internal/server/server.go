// Package server implements the admin JSON HTTP API for the FIX daemon,
// routed with gorilla/mux: a thin adapter between HTTP and the session
// registry, mirroring the teacher's "adapter over Manager" shape.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dantte-lp/gofix/internal/registry"
	"github.com/dantte-lp/gofix/internal/session"
)

// sessionView is the JSON representation of a session returned by the
// admin API.
type sessionView struct {
	BeginString       string `json:"begin_string"`
	SenderCompID      string `json:"sender_comp_id"`
	SenderSubID       string `json:"sender_sub_id,omitempty"`
	TargetCompID      string `json:"target_comp_id"`
	TargetSubID       string `json:"target_sub_id,omitempty"`
	ConnectionState   string `json:"connection_state"`
	LoggedOn          bool   `json:"logged_on"`
	NextSenderSeqNum  int    `json:"next_sender_seq_num"`
	NextTargetSeqNum  int    `json:"next_target_seq_num"`
}

// enabledRequest is the JSON body for PUT /sessions/{...}/enabled.
type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

// disconnectRequest is the JSON body for POST /sessions/{...}/disconnect.
type disconnectRequest struct {
	Reason string `json:"reason"`
}

// resetRequest is the JSON body for POST /sessions/{...}/reset.
type resetRequest struct {
	Reason string `json:"reason"`
}

// sequenceResetRequest is the JSON body for POST
// /sessions/{...}/sequence-reset.
type sequenceResetRequest struct {
	NewSeqNo int `json:"new_seq_no"`
}

// Server is the admin HTTP API, backed by a registry.Registry.
type Server struct {
	registry *registry.Registry
	logger   *slog.Logger
	router   *mux.Router
}

// New builds a Server and its route table.
func New(reg *registry.Registry, logger *slog.Logger) *Server {
	s := &Server{
		registry: reg,
		logger:   logger.With(slog.String("component", "server")),
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))

	s.router.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions/{begin}/{sender}/{target}", s.handleGetSession).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions/{begin}/{sender}/{target}/enabled", s.handleSetEnabled).Methods(http.MethodPut)
	s.router.HandleFunc("/sessions/{begin}/{sender}/{target}/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	s.router.HandleFunc("/sessions/{begin}/{sender}/{target}/reset", s.handleReset).Methods(http.MethodPost)
	s.router.HandleFunc("/sessions/{begin}/{sender}/{target}/sequence-reset", s.handleSequenceReset).Methods(http.MethodPost)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.All()
	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, viewFromSession(sess))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupFromPath(r)
	if !ok {
		writeError(w, http.StatusNotFound, registry.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewFromSession(sess))
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupFromPath(r)
	if !ok {
		writeError(w, http.StatusNotFound, registry.ErrSessionNotFound)
		return
	}

	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess.SetEnabled(r.Context(), req.Enabled)
	writeJSON(w, http.StatusOK, viewFromSession(sess))
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupFromPath(r)
	if !ok {
		writeError(w, http.StatusNotFound, registry.ErrSessionNotFound)
		return
	}

	var req disconnectRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "admin requested disconnect"
	}

	sess.Disconnect(r.Context(), req.Reason)
	writeJSON(w, http.StatusOK, viewFromSession(sess))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupFromPath(r)
	if !ok {
		writeError(w, http.StatusNotFound, registry.ErrSessionNotFound)
		return
	}

	var req resetRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "admin requested reset"
	}

	if err := sess.Reset(r.Context(), req.Reason); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, viewFromSession(sess))
}

func (s *Server) handleSequenceReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupFromPath(r)
	if !ok {
		writeError(w, http.StatusNotFound, registry.ErrSessionNotFound)
		return
	}

	var req sequenceResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sent, err := sess.SendSequenceReset(r.Context(), req.NewSeqNo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !sent {
		writeError(w, http.StatusConflict, session.ErrNotConnected)
		return
	}
	writeJSON(w, http.StatusOK, viewFromSession(sess))
}

func (s *Server) lookupFromPath(r *http.Request) (*session.Session, bool) {
	vars := mux.Vars(r)
	id := session.ID{
		BeginString:  vars["begin"],
		SenderCompID: vars["sender"],
		TargetCompID: vars["target"],
	}
	return s.registry.Lookup(id)
}

func viewFromSession(sess *session.Session) sessionView {
	id := sess.ID()
	nextSender, nextTarget := sess.SeqNums()
	return sessionView{
		BeginString:      id.BeginString,
		SenderCompID:     id.SenderCompID,
		SenderSubID:      id.SenderSubID,
		TargetCompID:     id.TargetCompID,
		TargetSubID:      id.TargetSubID,
		ConnectionState:  sess.ConnectionState().String(),
		LoggedOn:         sess.IsLoggedOn(),
		NextSenderSeqNum: nextSender,
		NextTargetSeqNum: nextTarget,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
