package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opscore/internal/auth"
	"opscore/internal/logger"
	"opscore/internal/session"
)

type scriptedVerifier struct {
	codec    *auth.Codec
	stepUp   bool
	reject   bool
	wantCode string
}

func (v *scriptedVerifier) VerifyPrimary(ctx context.Context, email, password string) (session.VerifyResult, error) {
	if v.reject {
		return session.VerifyResult{}, errors.New("rejected")
	}
	if v.stepUp {
		return session.VerifyResult{StepUpRequired: true}, nil
	}
	tok, err := v.codec.Sign("u1", []string{"manager"}, "Alice", email)
	return session.VerifyResult{Token: tok}, err
}

func (v *scriptedVerifier) VerifyStepUp(ctx context.Context, email, code string) (string, error) {
	if code != v.wantCode {
		return "", errors.New("rejected")
	}
	return v.codec.Sign("u1", []string{"manager"}, "Alice", email)
}

func newManager(v *scriptedVerifier) *session.Manager {
	codec := auth.NewCodec([]byte("test-secret"), time.Hour)
	v.codec = codec
	return session.NewManager(codec, v, session.NewMemoryStore(), logger.Nop())
}

func postJSON(handler http.HandlerFunc, path, body, sid string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if sid != "" {
		r.Header.Set(sessionHeader, sid)
	}
	handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLoginIssuesToken(t *testing.T) {
	mgr := newManager(&scriptedVerifier{})
	w := postJSON(Login(mgr, logger.Nop()), "/v1/auth/login",
		`{"email":"alice@example.com","password":"pw"}`, "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["session_id"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mgr := newManager(&scriptedVerifier{reject: true})
	w := postJSON(Login(mgr, logger.Nop()), "/v1/auth/login",
		`{"email":"alice@example.com","password":"bad"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginValidatesInput(t *testing.T) {
	mgr := newManager(&scriptedVerifier{})
	w := postJSON(Login(mgr, logger.Nop()), "/v1/auth/login", `{"email":"","password":""}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(Login(mgr, logger.Nop()), "/v1/auth/login", `not json`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStepUpFlow(t *testing.T) {
	mgr := newManager(&scriptedVerifier{stepUp: true, wantCode: "123456"})
	lg := logger.Nop()

	w := postJSON(Login(mgr, lg), "/v1/auth/login",
		`{"email":"alice@example.com","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["step_up_required"])
	assert.Nil(t, body["token"])
	sid := body["session_id"].(string)

	// Wrong code fails and does not authenticate the session.
	w = postJSON(StepUp(mgr, lg), "/v1/auth/step-up", `{"code":"000000"}`, sid)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Back to anonymous, then run the flow again with the right code.
	m, err := mgr.Machine(context.Background(), sid)
	require.NoError(t, err)
	m.Retry(context.Background())

	w = postJSON(Login(mgr, lg), "/v1/auth/login",
		`{"email":"alice@example.com","password":"pw"}`, sid)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(StepUp(mgr, lg), "/v1/auth/step-up", `{"code":"123456"}`, sid)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.NotEmpty(t, body["token"])
}

func TestStepUpRequiresSession(t *testing.T) {
	mgr := newManager(&scriptedVerifier{stepUp: true, wantCode: "123456"})
	w := postJSON(StepUp(mgr, logger.Nop()), "/v1/auth/step-up", `{"code":"123456"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionStateReflectsMachine(t *testing.T) {
	mgr := newManager(&scriptedVerifier{})
	lg := logger.Nop()

	w := postJSON(Login(mgr, lg), "/v1/auth/login",
		`{"email":"alice@example.com","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	sid := decodeBody(t, w)["session_id"].(string)

	sw := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
	r.Header.Set(sessionHeader, sid)
	SessionState(mgr, lg).ServeHTTP(sw, r)
	require.Equal(t, http.StatusOK, sw.Code)
	body := decodeBody(t, sw)
	assert.Equal(t, string(session.StateAuthenticated), body["state"])
	assert.Equal(t, true, body["authenticated"])
}

func TestLogoutClearsSession(t *testing.T) {
	mgr := newManager(&scriptedVerifier{})
	lg := logger.Nop()

	w := postJSON(Login(mgr, lg), "/v1/auth/login",
		`{"email":"alice@example.com","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	sid := decodeBody(t, w)["session_id"].(string)

	w = postJSON(Logout(mgr, lg), "/v1/auth/logout", ``, sid)
	require.Equal(t, http.StatusOK, w.Code)

	m, err := mgr.Machine(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, session.StateAnonymous, m.State())
	assert.False(t, m.Authenticated())
}
