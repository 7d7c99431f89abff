package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/boxsync/internal/provider"
)

// Authenticator performs the login and token round trips.
// *provider.Client satisfies this interface.
type Authenticator interface {
	CreateSession(ctx context.Context, username, password string) (provider.Session, error)
	FetchToken(ctx context.Context, s provider.Session) (string, error)
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Credentials are everything needed to talk to the broker and the
// authenticated HTTP services. A value is never modified after creation.
type Credentials struct {
	Session provider.Session

	// Token is the broker password.
	Token string

	// TokenExpiry is decoded from the token; zero if it carries none.
	TokenExpiry time.Time

	AcquiredAt time.Time
}

// Valid reports whether the credentials hold a session and a token.
func (c Credentials) Valid() bool {
	return c.Session.HouseholdID != "" && c.Session.AccessToken != "" && c.Token != ""
}

// Expired reports whether the token carries an expiry that is before now.
func (c Credentials) Expired(now time.Time) bool {
	return !c.TokenExpiry.IsZero() && now.After(c.TokenExpiry)
}

// Manager holds the current Credentials.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Current never blocks.
type Manager struct {
	auth     Authenticator
	username string
	password string
	logger   Logger

	current atomic.Pointer[Credentials]
	group   singleflight.Group

	renewMu sync.RWMutex
	onRenew func(Credentials)

	now func() time.Time
}

// NewManager creates a Manager for one account.
//
// Returns:
//   - *Manager: Without credentials until Acquire succeeds
//   - error: ErrNoAuthenticator or ErrNoCredentials
func NewManager(auth Authenticator, username, password string, logger Logger) (*Manager, error) {
	if auth == nil {
		return nil, ErrNoAuthenticator
	}
	if username == "" || password == "" {
		return nil, ErrNoCredentials
	}
	if logger == nil {
		logger = noopLogger{}
	}
	m := &Manager{
		auth:     auth,
		username: username,
		password: password,
		logger:   logger,
		now:      time.Now,
	}
	m.current.Store(&Credentials{})
	return m, nil
}

// SetOnRenew registers fn to be called with every newly stored Credentials.
// It runs synchronously before Acquire or Reauthenticate returns.
func (m *Manager) SetOnRenew(fn func(Credentials)) {
	m.renewMu.Lock()
	m.onRenew = fn
	m.renewMu.Unlock()
}

// Acquire logs in, fetches a broker token and stores the result.
//
// Returns:
//   - Credentials: The stored credentials
//   - error: provider.ErrAuthentication or provider.ErrConnection, wrapped
func (m *Manager) Acquire(ctx context.Context) (Credentials, error) {
	sess, err := m.auth.CreateSession(ctx, m.username, m.password)
	if err != nil {
		return Credentials{}, fmt.Errorf("acquiring session: %w", err)
	}

	token, err := m.auth.FetchToken(ctx, sess)
	if err != nil {
		return Credentials{}, fmt.Errorf("acquiring token: %w", err)
	}

	creds := Credentials{
		Session:     sess,
		Token:       token,
		TokenExpiry: tokenExpiry(token),
		AcquiredAt:  m.now().UTC(),
	}
	m.current.Store(&creds)

	m.logger.Info("session acquired",
		"household_id", sess.HouseholdID,
		"token_expiry", creds.TokenExpiry,
	)

	m.renewMu.RLock()
	fn := m.onRenew
	m.renewMu.RUnlock()
	if fn != nil {
		fn(creds)
	}

	return creds, nil
}

// Reauthenticate replaces the credentials entirely.
//
// Callers arriving while a re-authentication is in flight wait for it and
// receive its result instead of starting another. On failure the previous
// credentials stay in place.
func (m *Manager) Reauthenticate(ctx context.Context) (Credentials, error) {
	v, err, shared := m.group.Do("reauthenticate", func() (any, error) {
		return m.Acquire(ctx)
	})
	if shared {
		m.logger.Debug("joined in-flight re-authentication")
	}
	if err != nil {
		return Credentials{}, err
	}
	return v.(Credentials), nil
}

// Current returns the stored credentials; the zero value before Acquire.
func (m *Manager) Current() Credentials {
	return *m.current.Load()
}

// tokenExpiry reads the exp claim of a JWT without verifying it.
// Tokens that do not parse, or carry no exp, yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
