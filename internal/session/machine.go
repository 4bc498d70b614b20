// Package session tracks a client session's authentication progress from
// anonymous through primary-credential verification and two-factor step-up
// to authenticated, with mandatory auto-logout once the cached token is no
// longer valid.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"opscore/internal/auth"
	"opscore/internal/models"
)

type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAwaitingStepUp State = "awaiting_step_up"
	StateAuthenticated  State = "authenticated"
	StateFailed         State = "failed"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidStepUpCode  = errors.New("invalid step-up code")
	ErrNotAwaitingStepUp  = errors.New("session is not awaiting step-up")
)

// VerifyResult is the outcome of a primary-credential check. StepUpRequired
// with an empty token means the account needs a second factor before any
// token is issued.
type VerifyResult struct {
	Token          string
	StepUpRequired bool
}

// CredentialVerifier abstracts the external credential store.
type CredentialVerifier interface {
	VerifyPrimary(ctx context.Context, email, password string) (VerifyResult, error)
	VerifyStepUp(ctx context.Context, email, code string) (string, error)
}

// Machine is the single authoritative mutator for one client session's
// record. All transitions serialize through its mutex; concurrent checks
// racing a login can only observe the record before or after a transition,
// never a half-applied one.
type Machine struct {
	mu       sync.Mutex
	codec    *auth.Codec
	verifier CredentialVerifier
	store    Store
	lg       *zap.SugaredLogger
	rec      models.SessionRecord
}

// NewMachine loads the session record for id, creating an anonymous one if
// none is persisted, so a reload within the client session boundary does
// not force re-authentication.
func NewMachine(ctx context.Context, id string, codec *auth.Codec, verifier CredentialVerifier, store Store, lg *zap.SugaredLogger) (*Machine, error) {
	m := &Machine{codec: codec, verifier: verifier, store: store, lg: lg}
	rec, err := store.Load(ctx, id)
	switch {
	case err == nil:
		m.rec = *rec
	case errors.Is(err, ErrSessionNotFound):
		m.rec = models.SessionRecord{ID: id, State: string(StateAnonymous)}
	default:
		return nil, err
	}
	return m, nil
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State(m.rec.State)
}

func (m *Machine) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Authenticated
}

// Principal returns the resolved principal while the session is
// authenticated.
func (m *Machine) Principal() (auth.Principal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rec.Authenticated || m.rec.UserID == nil {
		return auth.Principal{}, false
	}
	return auth.Principal{
		ID:                 *m.rec.UserID,
		DisplayName:        m.rec.DisplayName,
		Roles:              decodeRoles(m.rec.Roles),
		TwoFactorSatisfied: m.rec.TwoFactorSatisfied,
	}, true
}

// Token returns the cached credential token, if the session holds one.
func (m *Machine) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Token
}

// Login submits primary credentials. The session passes through
// Authenticating and lands in AwaitingStepUp, Authenticated, or Failed.
func (m *Machine) Login(ctx context.Context, email, password string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rec.State = string(StateAuthenticating)
	m.rec.PendingEmail = email
	m.rec.Loading = true
	m.persist(ctx)

	res, err := m.verifier.VerifyPrimary(ctx, email, password)
	if err != nil {
		m.toFailed(ctx)
		return StateFailed, ErrInvalidCredentials
	}
	if res.StepUpRequired {
		// No token is cached yet; only the email survives to scope the
		// upcoming verification call.
		m.rec.State = string(StateAwaitingStepUp)
		m.rec.Loading = false
		m.rec.Authenticated = false
		m.persist(ctx)
		return StateAwaitingStepUp, nil
	}
	if err := m.enterAuthenticated(ctx, res.Token, false); err != nil {
		m.toFailed(ctx)
		return StateFailed, err
	}
	return StateAuthenticated, nil
}

// SubmitStepUpCode completes the two-factor step with the code sent to the
// pending email.
func (m *Machine) SubmitStepUpCode(ctx context.Context, code string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if State(m.rec.State) != StateAwaitingStepUp {
		return State(m.rec.State), ErrNotAwaitingStepUp
	}
	token, err := m.verifier.VerifyStepUp(ctx, m.rec.PendingEmail, code)
	if err != nil {
		m.toFailed(ctx)
		return StateFailed, ErrInvalidStepUpCode
	}
	if err := m.enterAuthenticated(ctx, token, true); err != nil {
		m.toFailed(ctx)
		return StateFailed, err
	}
	return StateAuthenticated, nil
}

// Retry moves a failed session back to anonymous so credentials can be
// submitted again.
func (m *Machine) Retry(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if State(m.rec.State) == StateFailed {
		m.clear(ctx)
	}
	return State(m.rec.State)
}

// Logout clears the session unconditionally.
func (m *Machine) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear(ctx)
}

// CheckValidity re-evaluates the cached token and forces the session back
// to anonymous the moment it is no longer valid. Called on every request
// issuance and on scheduled checks; the auto-logout is mandatory.
func (m *Machine) CheckValidity(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rec.Authenticated {
		return State(m.rec.State)
	}
	if m.rec.Token == "" || !m.codec.IsValid(m.rec.Token) {
		m.lg.Infow("session token no longer valid, forcing logout", "session_id", m.rec.ID)
		m.clear(ctx)
	}
	return State(m.rec.State)
}

// enterAuthenticated decodes the freshly granted token exactly once and
// populates the principal and cached expiry from its claims. Caller holds
// the mutex.
func (m *Machine) enterAuthenticated(ctx context.Context, token string, stepUp bool) error {
	claims, err := m.codec.Validate(token)
	if err != nil {
		return err
	}
	sub := claims.Subject
	exp := claims.ExpiresAt
	jti := claims.JWTID
	m.rec.State = string(StateAuthenticated)
	m.rec.Token = token
	m.rec.TokenJTI = &jti
	m.rec.TokenExpiry = &exp
	m.rec.UserID = &sub
	m.rec.DisplayName = claims.Name
	m.rec.Roles = encodeRoles(claims.Roles)
	m.rec.TwoFactorSatisfied = stepUp
	m.rec.Authenticated = true
	m.rec.Loading = false
	m.rec.PendingEmail = ""
	m.persist(ctx)
	return nil
}

func (m *Machine) toFailed(ctx context.Context) {
	m.rec.State = string(StateFailed)
	m.rec.Loading = false
	m.rec.Authenticated = false
	m.rec.Token = ""
	m.rec.TokenJTI = nil
	m.rec.TokenExpiry = nil
	m.persist(ctx)
}

// clear resets the record to anonymous, dropping token and principal.
func (m *Machine) clear(ctx context.Context) {
	id := m.rec.ID
	created := m.rec.CreatedAt
	m.rec = models.SessionRecord{ID: id, State: string(StateAnonymous), CreatedAt: created}
	m.persist(ctx)
}

func (m *Machine) persist(ctx context.Context) {
	m.rec.UpdatedAt = time.Now().UTC()
	if err := m.store.Save(ctx, &m.rec); err != nil {
		m.lg.Warnw("session persist failed", "session_id", m.rec.ID, "error", err)
	}
}
