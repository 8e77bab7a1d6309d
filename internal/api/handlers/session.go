package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/arcadenet/netplay/internal/domain"
	"github.com/arcadenet/netplay/internal/service"
	"github.com/arcadenet/netplay/internal/signaling"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

type CreateSessionRequest struct {
	HostUserID string  `json:"hostUserId"`
	RomID      *string `json:"romId"`
	TTLMs      int64   `json:"ttlMs"`
}

type JoinSessionRequest struct {
	UserID string `json:"userId"`
}

type EndSessionRequest struct {
	EndedByID *string `json:"endedById"`
}

type ExpireSessionsResponse struct {
	Expired int `json:"expired"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.HostUserID == "" {
		http.Error(w, "hostUserId is required", http.StatusBadRequest)
		return
	}

	session, err := h.sessionService.CreateSession(r.Context(), service.CreateSessionInput{
		HostUserID: req.HostUserID,
		RomID:      req.RomID,
		TTL:        time.Duration(req.TTLMs) * time.Millisecond,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "idOrCode")

	var req JoinSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	session, err := h.sessionService.JoinSession(r.Context(), code, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	idOrCode := chi.URLParam(r, "idOrCode")

	var session *domain.Session
	var err error
	// Try UUID first, then fall back to join code.
	if id, parseErr := uuid.Parse(idOrCode); parseErr == nil {
		session, err = h.sessionService.GetSession(r.Context(), id)
	} else {
		session, err = h.sessionService.GetSessionByCode(r.Context(), idOrCode)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	sessions, err := h.sessionService.ListSessionsForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "idOrCode"))
	if err != nil {
		http.Error(w, "Invalid session id", http.StatusBadRequest)
		return
	}

	var req EndSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	session, err := h.sessionService.EndSession(r.Context(), id, req.EndedByID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) Expire(w http.ResponseWriter, r *http.Request) {
	count, err := h.sessionService.ExpireStaleSessions(r.Context(), time.Time{})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ExpireSessionsResponse{Expired: count})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var extErr *signaling.ExternalError
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, service.ErrSessionExpired):
		http.Error(w, "Session expired", http.StatusGone)
	case errors.Is(err, service.ErrSessionClosed):
		http.Error(w, "Session is closed", http.StatusGone)
	case errors.As(err, &extErr):
		http.Error(w, "Signaling service unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
