package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"
	"tutorhub-portal-svc/src/internal/storage"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Backend is the part of the REST API the auth session needs.
type Backend interface {
	Login(ctx context.Context, credentials models.Credentials) (*models.AuthPayload, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthPayload, error)
	SSOLogin(ctx context.Context, credentials models.SSOCredentials) (*models.AuthPayload, error)
	Refresh(ctx context.Context, refreshToken string) (*clients.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, creds clients.Credentials) (*models.User, error)
	Permissions(ctx context.Context, creds clients.Credentials) ([]string, error)
}

// Result is what login, register and SSO login report to the caller
// instead of an error, so pages can render the message inline.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Session is the auth state of one portal client: who is logged in and what
// they may do. It is created when the client first shows up, verified once
// against the backend, and torn down at logout.
//
// Every mutation bumps generation. A verification that started before a
// login therefore cannot overwrite the login's result.
type Session struct {
	clientID string
	backend  Backend
	store    storage.Storage
	now      func() time.Time

	mu          sync.RWMutex
	user        *models.User
	permissions []string
	loading     bool
	generation  uint64

	refreshGroup singleflight.Group
	ready        chan struct{}
	readyOnce    sync.Once
}

func NewSession(clientID string, backend Backend, store storage.Storage) *Session {
	return &Session{
		clientID: clientID,
		backend:  backend,
		store:    store,
		now:      time.Now,
		loading:  true,
		ready:    make(chan struct{}),
	}
}

func (s *Session) ClientID() string {
	return s.clientID
}

// Ready is closed once the auth status is known.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Permissions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.permissions...)
}

func (s *Session) HasPermission(permission string) bool {
	for _, p := range s.Permissions() {
		if p == permission {
			return true
		}
	}
	return false
}

func (s *Session) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Role == role
}

func (s *Session) HasAnyRole(roles ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return false
	}
	for _, role := range roles {
		if s.user.Role == role {
			return true
		}
	}
	return false
}

func (s *Session) Login(ctx context.Context, credentials models.Credentials) Result {
	payload, err := s.backend.Login(ctx, credentials)
	return s.complete(ctx, "login", payload, err)
}

func (s *Session) Register(ctx context.Context, req models.RegisterRequest) Result {
	payload, err := s.backend.Register(ctx, req)
	return s.complete(ctx, "register", payload, err)
}

func (s *Session) SSOLogin(ctx context.Context, credentials models.SSOCredentials) Result {
	payload, err := s.backend.SSOLogin(ctx, credentials)
	return s.complete(ctx, "sso_login", payload, err)
}

func (s *Session) complete(ctx context.Context, action string, payload *models.AuthPayload, err error) Result {
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"client_id": s.clientID,
			"action":    action,
		}).Warn("Authentication failed")
		return Result{Success: false, Message: clients.Message(err)}
	}

	generation, err := s.establish(ctx, payload)
	if err != nil {
		logrus.WithError(err).WithField("client_id", s.clientID).Error("Failed to persist auth state")
		return Result{Success: false, Message: "Could not save the login, please try again"}
	}

	s.hydratePermissions(ctx, generation)

	logrus.WithFields(logrus.Fields{
		"client_id": s.clientID,
		"user_id":   payload.User.ID,
		"role":      payload.User.Role,
		"action":    action,
	}).Info("User authenticated")

	return Result{Success: true}
}

// establish stores the token pair and user and makes the user visible.
func (s *Session) establish(ctx context.Context, payload *models.AuthPayload) (uint64, error) {
	if payload == nil || payload.User == nil || payload.AccessToken == "" {
		return 0, errors.New("incomplete auth payload")
	}
	userJSON, err := json.Marshal(payload.User)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if err := s.store.Set(ctx, s.clientID, storage.KeyAccessToken, payload.AccessToken); err != nil {
		return 0, err
	}
	if payload.RefreshToken != "" {
		if err := s.store.Set(ctx, s.clientID, storage.KeyRefreshToken, payload.RefreshToken); err != nil {
			return 0, err
		}
	}
	if err := s.store.Set(ctx, s.clientID, storage.KeyUser, string(userJSON)); err != nil {
		return 0, err
	}
	if err := s.store.Remove(ctx, s.clientID, storage.KeyPermissions); err != nil {
		return 0, err
	}

	user := *payload.User
	s.user = &user
	s.permissions = nil
	s.loading = false
	s.markReady()

	return s.generation, nil
}

// hydratePermissions is best effort: a user without a permission set can
// still use every role-gated page.
func (s *Session) hydratePermissions(ctx context.Context, generation uint64) {
	permissions, err := s.backend.Permissions(ctx, s)
	if err != nil {
		logrus.WithError(err).WithField("client_id", s.clientID).Debug("Permissions unavailable")
		return
	}

	data, err := json.Marshal(permissions)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return
	}
	if err := s.store.Set(ctx, s.clientID, storage.KeyPermissions, string(data)); err != nil {
		logrus.WithError(err).WithField("client_id", s.clientID).Warn("Failed to persist permissions")
	}
	s.permissions = permissions
}

// Logout invalidates the refresh token on the backend when possible and then
// always clears the local state. It never fails and may be called repeatedly.
func (s *Session) Logout(ctx context.Context) {
	refreshToken, err := s.store.Get(ctx, s.clientID, storage.KeyRefreshToken)
	if err == nil && refreshToken != "" {
		if err := s.backend.Logout(ctx, refreshToken); err != nil {
			logrus.WithError(err).WithField("client_id", s.clientID).Warn("Backend logout failed, clearing local state anyway")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.clearLocked(ctx)

	logrus.WithField("client_id", s.clientID).Info("User logged out")
}

func (s *Session) clearLocked(ctx context.Context) {
	if err := s.store.Remove(ctx, s.clientID, storage.AllKeys...); err != nil {
		logrus.WithError(err).WithField("client_id", s.clientID).Error("Failed to clear persisted auth state")
	}
	s.user = nil
	s.permissions = nil
	s.loading = false
	s.markReady()
}

// clearIf clears the state unless something changed it since generation.
func (s *Session) clearIf(ctx context.Context, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return false
	}
	s.generation++
	s.clearLocked(ctx)
	return true
}

func (s *Session) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Verify checks the stored login against the backend. The cached user is
// shown while the check runs; any failure logs the client out.
func (s *Session) Verify(ctx context.Context) {
	defer s.markReady()
	generation := s.currentGeneration()

	token, err := s.store.Get(ctx, s.clientID, storage.KeyAccessToken)
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, models.ErrStorageNotFound) {
			logrus.WithError(err).WithField("client_id", s.clientID).Warn("Failed to read stored token")
		}
		s.finishLoading(generation)
		return
	}

	s.restoreCached(ctx, generation)

	user, err := s.backend.Me(ctx, s)
	if err == nil && user == nil {
		err = models.ErrNotAuthenticated
	}
	if err != nil {
		logrus.WithError(err).WithField("client_id", s.clientID).Warn("Stored session is no longer valid, logging out")
		if s.currentGeneration() == generation {
			s.bestEffortBackendLogout(ctx)
		}
		s.clearIf(ctx, generation)
		return
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		s.finishLoading(generation)
		return
	}

	s.mu.Lock()
	if s.generation == generation {
		if err := s.store.Set(ctx, s.clientID, storage.KeyUser, string(userJSON)); err != nil {
			logrus.WithError(err).WithField("client_id", s.clientID).Warn("Failed to refresh cached user")
		}
		s.user = user
		s.loading = false
	}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"client_id": s.clientID,
		"user_id":   user.ID,
	}).Debug("Stored session verified")
}

func (s *Session) bestEffortBackendLogout(ctx context.Context) {
	refreshToken, err := s.store.Get(ctx, s.clientID, storage.KeyRefreshToken)
	if err != nil || refreshToken == "" {
		return
	}
	if err := s.backend.Logout(ctx, refreshToken); err != nil {
		logrus.WithError(err).WithField("client_id", s.clientID).Debug("Backend logout failed during verification")
	}
}

func (s *Session) finishLoading(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == generation {
		s.loading = false
	}
}

func (s *Session) restoreCached(ctx context.Context, generation uint64) {
	var user *models.User
	if raw, err := s.store.Get(ctx, s.clientID, storage.KeyUser); err == nil {
		var cached models.User
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			user = &cached
		}
	}

	var permissions []string
	if raw, err := s.store.Get(ctx, s.clientID, storage.KeyPermissions); err == nil {
		_ = json.Unmarshal([]byte(raw), &permissions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return
	}
	s.user = user
	s.permissions = permissions
}

// AccessToken implements clients.Credentials. A token whose exp claim has
// passed is refreshed before use.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	token, err := s.store.Get(ctx, s.clientID, storage.KeyAccessToken)
	if errors.Is(err, models.ErrStorageNotFound) || (err == nil && token == "") {
		return "", models.ErrNotAuthenticated
	}
	if err != nil {
		return "", err
	}

	if tokenExpired(token, s.now()) {
		logrus.WithField("client_id", s.clientID).Debug("Access token past exp claim, refreshing")
		return s.Refresh(ctx)
	}
	return token, nil
}

// Refresh implements clients.Credentials. Concurrent callers share a single
// backend call. A failed refresh logs the client out.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	token, err, _ := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	generation := s.currentGeneration()

	refreshToken, err := s.store.Get(ctx, s.clientID, storage.KeyRefreshToken)
	if err != nil || refreshToken == "" {
		clients.RecordRefresh(false)
		s.clearIf(ctx, generation)
		return "", models.ErrNoRefreshToken
	}

	result, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		clients.RecordRefresh(false)
		logrus.WithError(err).WithField("client_id", s.clientID).Warn("Token refresh failed, logging out")
		s.clearIf(ctx, generation)
		return "", fmt.Errorf("%w: %v", models.ErrRefreshFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		// Logged out or in again meanwhile; the refreshed token belongs to
		// a session that no longer exists.
		return "", models.ErrNotAuthenticated
	}
	if err := s.store.Set(ctx, s.clientID, storage.KeyAccessToken, result.AccessToken); err != nil {
		return "", err
	}
	if result.RefreshToken != "" {
		if err := s.store.Set(ctx, s.clientID, storage.KeyRefreshToken, result.RefreshToken); err != nil {
			return "", err
		}
	}

	clients.RecordRefresh(true)
	logrus.WithField("client_id", s.clientID).Debug("Access token refreshed")
	return result.AccessToken, nil
}
