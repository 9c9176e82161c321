package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/legionews/legio/auth"
	"github.com/legionews/legio/store"
	"github.com/legionews/legio/wphash"
	"github.com/legionews/legio/wpsource"
	"github.com/legionews/legio/wpsync"
)

const tokenTTL = 24 * time.Hour

// rehashCost is the bcrypt cost used when upgrading legacy credentials.
const rehashCost = 10

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userPayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Points   int    `json:"points"`
	Level    int    `json:"level"`
	Avatar   string `json:"avatar"`
}

// handleLogin verifies credentials against whatever hash the sync copied
// over (phpass portable, any bcrypt variant, or plaintext) and issues a
// JWT. Legacy hashes are transparently upgraded to bcrypt on success.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	account, err := s.store.AccountByUsername(r.Context(), req.Username)
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !wphash.Verify(req.Password, account.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if wphash.NeedsRehash(account.Password) {
		// Best effort: a failed upgrade must not block the login.
		if hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), rehashCost); err != nil {
			s.logger.Error("password rehash failed", "user", account.ID, "error", err)
		} else if err := s.store.UpdatePassword(r.Context(), account.ID, string(hash)); err != nil {
			s.logger.Error("password rehash store failed", "user", account.ID, "error", err)
		}
	}

	if err := s.store.TouchLastSeen(r.Context(), account.ID); err != nil {
		s.logger.Warn("touch last seen failed", "user", account.ID, "error", err)
	}

	token, err := auth.GenerateToken(s.secret, &auth.Claims{
		UserID:   account.ID,
		Username: account.Username,
		Role:     account.Role,
	}, tokenTTL)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": userPayload{
			ID:       account.ID,
			Username: account.Username,
			Name:     account.Name,
			Role:     account.Role,
			Points:   account.Points,
			Level:    account.Level,
			Avatar:   account.Avatar,
		},
	})
}

// handleSync triggers a WordPress sync. The fullReplace query parameter
// overrides the configured default. The run is detached from the request
// context so a closed connection cannot abort a half-finished import.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	cfg := s.syncCfg
	if raw := r.URL.Query().Get("fullReplace"); raw != "" {
		full, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "fullReplace must be a boolean")
			return
		}
		cfg.FullReplace = full
	}

	stats, err := wpsync.Run(context.WithoutCancel(r.Context()), s.logger, s.store, cfg)
	if err != nil {
		s.logger.Error("wordpress sync failed", "error", err)
		switch {
		case errors.Is(err, wpsource.ErrNotConfigured), errors.Is(err, wpsource.ErrBadPrefix):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, wpsource.ErrConnect):
			writeError(w, http.StatusBadGateway, err.Error())
		case errors.Is(err, wpsync.ErrEmptySource):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "sync failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type resolveRequest struct {
	CorrectOptionID int64 `json:"correctOptionId"`
}

func (s *Server) handleResolvePoll(w http.ResponseWriter, r *http.Request) {
	pollID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid poll id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CorrectOptionID == 0 {
		writeError(w, http.StatusBadRequest, "correctOptionId is required")
		return
	}

	result, err := s.store.ResolvePoll(r.Context(), pollID, req.CorrectOptionID)
	switch {
	case errors.Is(err, store.ErrPollNotFound):
		writeError(w, http.StatusNotFound, "poll not found")
		return
	case errors.Is(err, store.ErrOptionNotFound):
		writeError(w, http.StatusBadRequest, "option does not belong to poll")
		return
	case errors.Is(err, store.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "poll already resolved")
		return
	case err != nil:
		s.logger.Error("poll resolution failed", "poll", pollID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"wpSyncEnabled": s.syncCfg.Source.Configured(),
	})
}
