package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/galactavista/galactavista-go/client"
	"github.com/galactavista/galactavista-go/types"
)

// State is the authentication state of the session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateInitializing    State = "initializing"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
)

// ErrNotAuthenticated is returned by operations that require an
// authenticated session.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// Snapshot is an immutable view of the session handed to subscribers.
type Snapshot struct {
	State State
	User  *types.User
	Token string
}

// Authenticated reports whether both a token and a cached user are present.
func (s Snapshot) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Manager owns the session state machine, keeps it mirrored into the
// persisted credential store and pushes the bearer token into the API
// client. All consumers share one Manager instead of re-deriving session
// state per screen; changes fan out through Subscribe.
//
// Every mutating operation is serialized by a single mutex, so a login
// racing a logout cannot interleave their store and token writes.
type Manager struct {
	client *client.Client
	store  Store
	logger *slog.Logger

	mu    sync.Mutex // serializes mutating operations end to end
	state State
	user  *types.User
	token string

	initOnce sync.Once

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewManager builds a Manager over the given API client and credential
// store. Call Initialize before use.
func NewManager(c *client.Client, store Store, logger *slog.Logger) *Manager {
	return &Manager{
		client: c,
		store:  store,
		logger: logger,
		state:  StateUnauthenticated,
		subs:   make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	var user *types.User
	if m.user != nil {
		u := *m.user
		user = &u
	}
	return Snapshot{State: m.state, User: user, Token: m.token}
}

// Subscribe registers a callback invoked on every state change. The
// returned function unsubscribes.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify(snap Snapshot) {
	m.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// setState mutates the session under the manager lock and notifies
// subscribers after releasing it.
func (m *Manager) setState(state State, user *types.User, token string) Snapshot {
	m.state = state
	m.user = user
	m.token = token
	return m.snapshotLocked()
}

// Initialize restores the session from the persisted credential store. It
// runs at most once per Manager; later calls are no-ops. A corrupt or
// expired credential pair is cleared and the session comes up
// unauthenticated — initialization never fails the caller over bad stored
// state.
func (m *Manager) Initialize(ctx context.Context) error {
	var initErr error
	m.initOnce.Do(func() {
		m.mu.Lock()
		snap := m.setState(StateInitializing, nil, "")
		m.mu.Unlock()
		m.notify(snap)

		m.mu.Lock()
		defer func() {
			snap := m.snapshotLocked()
			m.mu.Unlock()
			m.notify(snap)
		}()

		token, tokenOK, err := m.store.Get(KeyToken)
		if err != nil {
			m.logger.Warn("Credential store unreadable, clearing it", slog.Any("error", err))
			m.clearStore()
			m.setState(StateUnauthenticated, nil, "")
			return
		}
		userJSON, userOK, err := m.store.Get(KeyUser)
		if err != nil {
			m.logger.Warn("Credential store unreadable, clearing it", slog.Any("error", err))
			m.clearStore()
			m.setState(StateUnauthenticated, nil, "")
			return
		}
		if !tokenOK || !userOK || token == "" {
			m.setState(StateUnauthenticated, nil, "")
			return
		}

		var user types.User
		if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
			m.logger.Warn("Stored user record is corrupt, clearing credentials", slog.Any("error", err))
			m.clearStore()
			m.setState(StateUnauthenticated, nil, "")
			return
		}
		if tokenExpired(token) {
			m.logger.Info("Stored token has expired, clearing credentials")
			m.clearStore()
			m.setState(StateUnauthenticated, nil, "")
			return
		}

		m.client.SetToken(token)
		m.setState(StateAuthenticated, &user, token)
	})
	return initErr
}

// Login authenticates and, on success, persists the credentials and leaves
// both the manager and the API client ready for authenticated calls.
// Failures propagate unchanged; there is no retry and no error swallowing.
func (m *Manager) Login(ctx context.Context, email, password string) (Snapshot, error) {
	m.mu.Lock()
	snap := m.setState(StateAuthenticating, m.user, m.token)
	m.mu.Unlock()
	m.notify(snap)

	resp, err := m.client.Login(ctx, types.UserLoginRequest{Email: email, Password: password})

	m.mu.Lock()
	if err != nil {
		m.clearStore()
		snap = m.setState(StateUnauthenticated, nil, "")
		m.mu.Unlock()
		m.notify(snap)
		return snap, err
	}

	m.persistToken(resp.Token)
	m.persistUser(&resp.User)
	snap = m.setState(StateAuthenticated, &resp.User, resp.Token)
	m.mu.Unlock()
	m.notify(snap)
	return snap, nil
}

// Register creates an account. Registration is intentionally decoupled from
// login: no token is issued and the session returns to whatever
// authentication state held before the call.
func (m *Manager) Register(ctx context.Context, userData types.UserRegisterRequest) (types.User, error) {
	if err := validateRegistration(userData); err != nil {
		return types.User{}, err
	}

	m.mu.Lock()
	prevState, prevUser, prevToken := m.state, m.user, m.token
	snap := m.setState(StateAuthenticating, prevUser, prevToken)
	m.mu.Unlock()
	m.notify(snap)

	user, err := m.client.Register(ctx, userData)

	m.mu.Lock()
	snap = m.setState(prevState, prevUser, prevToken)
	m.mu.Unlock()
	m.notify(snap)
	return user, err
}

// Logout clears the store, the API client token and the in-memory session.
// It always succeeds from the caller's perspective.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.clearStore()
	m.client.ClearToken()
	snap := m.setState(StateUnauthenticated, nil, "")
	m.mu.Unlock()
	m.notify(snap)
}

// UpdateProfile applies a partial profile update. On success the updated
// user is written through to the store; the token is unchanged. An
// authentication failure tears the session down (the 401 already
// invalidated the client token); any other failure leaves the session in
// its prior state.
func (m *Manager) UpdateProfile(ctx context.Context, update types.UserUpdateRequest) (types.User, error) {
	return m.profileOp(ctx, func() (types.User, error) {
		return m.client.UpdateProfile(ctx, update)
	})
}

// RefreshProfile re-fetches the authenticated user's record from the
// backend and writes it through to the store.
func (m *Manager) RefreshProfile(ctx context.Context) (types.User, error) {
	return m.profileOp(ctx, func() (types.User, error) {
		return m.client.GetProfile(ctx)
	})
}

func (m *Manager) profileOp(ctx context.Context, call func() (types.User, error)) (types.User, error) {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return types.User{}, ErrNotAuthenticated
	}
	prevUser, token := m.user, m.token
	snap := m.setState(StateAuthenticating, prevUser, token)
	m.mu.Unlock()
	m.notify(snap)

	user, err := call()

	m.mu.Lock()
	if err != nil {
		var authErr *client.AuthenticationError
		if errors.As(err, &authErr) {
			m.clearStore()
			m.client.ClearToken()
			snap = m.setState(StateUnauthenticated, nil, "")
		} else {
			snap = m.setState(StateAuthenticated, prevUser, token)
		}
		m.mu.Unlock()
		m.notify(snap)
		return types.User{}, err
	}

	m.persistUser(&user)
	snap = m.setState(StateAuthenticated, &user, token)
	m.mu.Unlock()
	m.notify(snap)
	return user, nil
}

func (m *Manager) persistToken(token string) {
	if err := m.store.Set(KeyToken, token); err != nil {
		m.logger.Error("Failed to persist token", slog.Any("error", err))
	}
}

func (m *Manager) persistUser(user *types.User) {
	buf, err := json.Marshal(user)
	if err != nil {
		m.logger.Error("Failed to encode user record", slog.Any("error", err))
		return
	}
	if err := m.store.Set(KeyUser, string(buf)); err != nil {
		m.logger.Error("Failed to persist user record", slog.Any("error", err))
	}
}

func (m *Manager) clearStore() {
	if err := m.store.Delete(KeyToken); err != nil {
		m.logger.Error("Failed to clear stored token", slog.Any("error", err))
	}
	if err := m.store.Delete(KeyUser); err != nil {
		m.logger.Error("Failed to clear stored user", slog.Any("error", err))
	}
}

// tokenExpired inspects a bearer token locally. Only tokens that parse as a
// JWT with an exp claim in the past count as expired; opaque tokens are
// left for the server to judge.
func tokenExpired(token string) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

func validateRegistration(userData types.UserRegisterRequest) error {
	if userData.Email == "" {
		return &client.ValidationError{Field: "email", Message: "email is required"}
	}
	if len(userData.Password) < 8 {
		return &client.ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	if !userData.Role.Valid() {
		return &client.ValidationError{Field: "role", Message: "unknown role"}
	}
	return nil
}
