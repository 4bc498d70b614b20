package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opscore/internal/auth"
	"opscore/internal/models"
	"opscore/internal/session"
)

const sessionHeader = "X-Session-ID"

func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(sessionHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login submits primary credentials for the client session. Accounts with
// two-factor enabled receive step_up_required instead of a token.
func Login(mgr *session.Manager, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			http.Error(w, "email and password required", http.StatusBadRequest)
			return
		}
		sid := sessionID(r)
		m, err := mgr.Machine(r.Context(), sid)
		if err != nil {
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}
		st, err := m.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		switch st {
		case session.StateAwaitingStepUp:
			respondJSON(w, map[string]any{"session_id": sid, "step_up_required": true})
		case session.StateAuthenticated:
			respondJSON(w, map[string]any{"session_id": sid, "token": m.Token()})
		default:
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
		}
	}
}

type stepUpReq struct {
	Code string `json:"code"`
}

// StepUp completes the two-factor step for a session that is awaiting it.
func StepUp(mgr *session.Manager, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stepUpReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sid := strings.TrimSpace(r.Header.Get(sessionHeader))
		if sid == "" {
			http.Error(w, "session id required", http.StatusBadRequest)
			return
		}
		m, err := mgr.Machine(r.Context(), sid)
		if err != nil {
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}
		st, err := m.SubmitStepUpCode(r.Context(), req.Code)
		if err != nil || st != session.StateAuthenticated {
			http.Error(w, "invalid code", http.StatusUnauthorized)
			return
		}
		respondJSON(w, map[string]any{"session_id": sid, "token": m.Token()})
	}
}

// SessionState reports the session's current auth state after the
// mandatory validity re-check, so an expired token shows up as anonymous.
// The endpoint is unauthenticated by design: the random session id is the
// capability, and the response carries state only, never the token.
func SessionState(mgr *session.Manager, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(r.Header.Get(sessionHeader))
		if sid == "" {
			http.Error(w, "session id required", http.StatusBadRequest)
			return
		}
		m, err := mgr.Machine(r.Context(), sid)
		if err != nil {
			http.Error(w, "session error", http.StatusInternalServerError)
			return
		}
		st := m.CheckValidity(r.Context())
		respondJSON(w, map[string]any{
			"session_id":    sid,
			"state":         st,
			"authenticated": m.Authenticated(),
		})
	}
}

// Logout clears the client session and drops its cached machine.
func Logout(mgr *session.Manager, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(r.Header.Get(sessionHeader))
		if sid != "" {
			if m, err := mgr.Machine(r.Context(), sid); err == nil {
				m.Logout(r.Context())
			}
			mgr.Evict(sid)
		}
		respondJSON(w, map[string]any{"logged_out": true})
	}
}

// Me returns the authenticated user's profile.
func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.Subject(r.Context())
		var u models.User
		if err := db.WithContext(r.Context()).Preload("Roles").First(&u, "id = ?", sub).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		respondJSON(w, map[string]any{
			"id": u.ID, "email": u.Email, "display_name": u.DisplayName,
			"roles": u.Roles, "is_active": u.IsActive,
			"two_factor_enabled": u.TwoFactorEnabled,
		})
	}
}
