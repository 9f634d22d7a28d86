package session

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-calendar-sync/client/apierr"
	"github.com/jrsteele09/go-calendar-sync/client/broadcast"
	"github.com/jrsteele09/go-calendar-sync/client/storage"
)

const (
	pathRegister = "/auth/register"
	pathLogin    = "/auth/login"
	pathRenew    = "/auth/renew"
)

// authResponse is the body of every /auth endpoint.
type authResponse struct {
	Token string    `json:"token"`
	User  *Identity `json:"user"`
}

// Login authenticates with email and password.
func (m *Machine) Login(ctx context.Context, creds Credentials) error {
	return m.authenticate(ctx, pathLogin, creds)
}

// Register creates an account and signs it in.
func (m *Machine) Register(ctx context.Context, profile Profile) error {
	return m.authenticate(ctx, pathRegister, profile)
}

func (m *Machine) authenticate(ctx context.Context, path string, body any) error {
	var (
		prev  State
		epoch uint64
	)
	m.transition(func() {
		prev = m.snapshotLocked()
		epoch = m.epoch
		m.status = StatusAuthenticating
		m.errMsg = ""
	})

	var resp authResponse
	err := m.gw.Do(ctx, http.MethodPost, path, body, &resp)
	if err == nil && (resp.Token == "" || resp.User == nil || resp.User.ID == "") {
		err = apierr.New(apierr.ServerFailure, "The calendar service returned an incomplete session")
	}
	if err != nil {
		return m.authenticationFailed(prev, err)
	}

	var commitErr error
	m.transition(func() {
		if m.epoch != epoch {
			// Logout happened while the request was in flight.
			commitErr = apierr.New(apierr.AuthFailure, "Signed out before sign-in completed")
			m.status = StatusAnonymous
			return
		}
		if commitErr = m.persistLocked(resp.Token, resp.User); commitErr != nil {
			m.status = StatusErrored
			m.errMsg = commitErr.Error()
			return
		}
		m.status = StatusAuthenticated
		m.token = resp.Token
		m.identity = resp.User
		m.errMsg = ""
	})
	return commitErr
}

// authenticationFailed records the failure without touching a session that
// was authenticated before the attempt and is still intact.
func (m *Machine) authenticationFailed(prev State, err error) error {
	normalized := apierr.Wrap(err, apierr.ServerFailure, "Sign-in failed")

	m.transition(func() {
		m.errMsg = normalized.Message
		if prev.Authenticated() && m.token == prev.Token && m.identity != nil {
			m.status = StatusAuthenticated
			return
		}
		m.status = StatusErrored
		m.token = ""
		m.identity = nil
	})
	m.log.Debug().Str("kind", string(normalized.Kind)).Msg("authentication failed")
	return normalized
}

// Renew silently exchanges the current credential for a fresh one. The
// status stays authenticated on success; any failure signs the user out.
func (m *Machine) Renew(ctx context.Context) error {
	m.lock.RLock()
	authenticated := m.snapshotLocked().Authenticated()
	epoch, sent := m.epoch, m.token
	m.lock.RUnlock()

	if !authenticated {
		return apierr.New(apierr.AuthFailure, "No session to renew")
	}

	var resp authResponse
	err := m.gw.Do(ctx, http.MethodPost, pathRenew, nil, &resp)
	if err == nil && (resp.Token == "" || resp.User == nil || resp.User.ID == "") {
		err = apierr.New(apierr.ServerFailure, "The calendar service returned an incomplete session")
	}
	if err != nil {
		m.lock.RLock()
		stale := m.epoch != epoch || m.token != sent
		m.lock.RUnlock()
		if !stale {
			m.forceSignOut(broadcast.ReasonRenewal)
		}
		m.log.Warn().Err(err).Msg("token renewal failed, signed out")
		return apierr.Wrap(err, apierr.AuthFailure, "Token renewal failed")
	}

	var commitErr error
	m.transition(func() {
		if m.epoch != epoch || m.status != StatusAuthenticated || m.token != sent {
			commitErr = apierr.New(apierr.AuthFailure, "Session ended during renewal")
			return
		}
		if commitErr = m.persistLocked(resp.Token, resp.User); commitErr != nil {
			return
		}
		m.token = resp.Token
		m.identity = resp.User
	})
	if commitErr != nil {
		return commitErr
	}
	m.log.Debug().Msg("session renewed")
	return nil
}

// Logout clears the in-memory and durable session. It always succeeds and is
// a no-op when already anonymous.
func (m *Machine) Logout() {
	m.forceSignOut(broadcast.ReasonLogout)
}

// ClearError forgets the last error; an errored machine returns to anonymous.
func (m *Machine) ClearError() {
	m.transition(func() {
		m.errMsg = ""
		if m.status == StatusErrored {
			m.status = StatusAnonymous
		}
	})
}

// forceSignOut tears the session down and tells the other state holders.
func (m *Machine) forceSignOut(reason broadcast.Reason) {
	var hadSession bool
	m.transition(func() {
		hadSession = m.token != "" || m.identity != nil || m.status != StatusAnonymous
		m.epoch++
		m.resetLocked()
		m.status = StatusAnonymous
		m.errMsg = ""
	})
	if hadSession {
		m.hub.Broadcast(broadcast.Invalidation{Reason: reason})
	}
}

// onInvalidated reacts to the hub exactly like Logout, without re-broadcasting.
// A rejection carrying an older credential than the one now held is stale and
// ignored, and a sign-in already in flight is left to finish. Every other
// in-flight operation is cancelled through the epoch.
func (m *Machine) onInvalidated(msg broadcast.Invalidation) {
	m.lock.RLock()
	stale := msg.Reason == broadcast.ReasonRejected && m.token != "" && msg.Token != m.token
	idle := m.status == StatusAnonymous && m.token == "" && m.identity == nil
	m.lock.RUnlock()
	if stale || idle {
		return
	}

	m.transition(func() {
		m.resetLocked()
		if m.status != StatusAuthenticating {
			m.epoch++
			m.status = StatusAnonymous
			m.errMsg = ""
		}
	})
}

// resetLocked drops the session from memory and durable storage.
func (m *Machine) resetLocked() {
	m.token = ""
	m.identity = nil
	if err := m.store.Clear(storage.SessionKeys...); err != nil {
		m.log.Error().Err(err).Msg("clearing stored session failed")
	}
}

// persistLocked writes token and identity in one atomic store update.
func (m *Machine) persistLocked(token string, identity *Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return apierr.Wrap(err, apierr.ServerFailure, "Session could not be saved")
	}
	if err := m.store.Set(map[string]string{
		storage.KeyToken: token,
		storage.KeyUser:  string(data),
	}); err != nil {
		return apierr.Wrap(err, apierr.ServerFailure, "Session could not be saved")
	}
	return nil
}
