// Package session holds the authenticated identity of one visitor and owns
// every call that changes it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/model"
)

// LandingPath is where successful login, signup, logout and report
// submissions navigate to.
const LandingPath = "/"

// duplicateKeyCode is the API error code for a uniqueness conflict.
const duplicateKeyCode = 11000

// ErrNotAuthenticated is returned by SubmitReport when nobody is logged in.
var ErrNotAuthenticated = errors.New("user not authenticated")

// API is the subset of the REST API the store calls.
type API interface {
	Me(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	Signup(ctx context.Context, name, email, password, passwordConfirm string) (*model.User, error)
	Logout(ctx context.Context) error
	CreateItem(ctx context.Context, r model.Report) error
}

// Navigator moves the visitor to another page.
type Navigator interface {
	Navigate(path string)
}

// NoticeKind classifies user notifications.
type NoticeKind string

// Notice kinds.
const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notifier shows a short message to the visitor.
type Notifier interface {
	Notify(kind NoticeKind, message string)
}

// FlowError is a failed user-facing operation. Message is safe to show.
type FlowError struct {
	Message string
	Err     error
}

func (e *FlowError) Error() string { return e.Message }

func (e *FlowError) Unwrap() error { return e.Err }

// Store is the single writer of the visitor's identity. Readers either call
// User or subscribe to changes.
type Store struct {
	api    API
	nav    Navigator
	notify Notifier

	mu     sync.RWMutex
	user   *model.User
	subs   map[int]func(*model.User)
	nextID int

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a store with no user. Call CheckSession once to resolve the
// initial state.
func New(api API, nav Navigator, notify Notifier) *Store {
	return &Store{
		api:    api,
		nav:    nav,
		notify: notify,
		subs:   make(map[int]func(*model.User)),
		ready:  make(chan struct{}),
	}
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsLoggedIn reports whether a user is set.
func (s *Store) IsLoggedIn() bool {
	return s.User() != nil
}

// Ready is closed once the initial session check has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Loaded reports whether the initial session check has finished.
func (s *Store) Loaded() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Subscribe registers fn to be called after every identity change. The
// returned func removes the subscription.
func (s *Store) Subscribe(fn func(*model.User)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) setUser(u *model.User) {
	s.mu.Lock()
	if u != nil {
		cp := *u
		u = &cp
	}
	s.user = u
	subs := make([]func(*model.User), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(s.User())
	}
}

func (s *Store) markLoaded() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// CheckSession asks the API who owns the current credential. A 401 is the
// ordinary logged-out state; any other failure also clears the session but
// is logged. The initial load is marked complete exactly once.
func (s *Store) CheckSession(ctx context.Context) {
	defer s.markLoaded()

	u, err := s.api.Me(ctx)
	switch {
	case err == nil:
		s.setUser(u)
	case errors.Is(err, client.ErrUnauthorized):
		s.setUser(nil)
	default:
		slog.Warn("session check failed", "error", err)
		s.setUser(nil)
	}
}

// Login authenticates and navigates to the landing page. On failure the
// session is left unchanged.
func (s *Store) Login(ctx context.Context, email, password string) error {
	u, err := s.api.Login(ctx, email, password)
	if err != nil {
		slog.Warn("login failed", "email", email, "error", err)
		return &FlowError{
			Message: failureMessage(err, "Login failed", "Failed to login. Please try again."),
			Err:     err,
		}
	}

	s.setUser(u)
	slog.Info("user logged in", "user", u.ID)
	s.nav.Navigate(LandingPath)
	return nil
}

// Signup registers, logs in and navigates to the landing page.
func (s *Store) Signup(ctx context.Context, name, email, password, passwordConfirm string) error {
	u, err := s.api.Signup(ctx, name, email, password, passwordConfirm)
	if err != nil {
		slog.Warn("signup failed", "email", email, "error", err)

		msg := failureMessage(err, "Signup failed", "Failed to signup. Please try again.")
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code == duplicateKeyCode {
			msg = "Email already in use"
		}
		s.notify.Notify(NoticeError, msg)
		return &FlowError{Message: msg, Err: err}
	}

	s.setUser(u)
	slog.Info("user signed up", "user", u.ID)
	s.nav.Navigate(LandingPath)
	return nil
}

// Logout asks the API to drop the credential. Whatever the outcome, the
// local session is cleared and the visitor is sent to the landing page.
func (s *Store) Logout(ctx context.Context) {
	defer func() {
		s.setUser(nil)
		s.nav.Navigate(LandingPath)
	}()

	if err := s.api.Logout(ctx); err != nil {
		slog.Error("logout failed", "error", err)
		s.notify.Notify(NoticeError, "Logout failed")
		return
	}
	s.notify.Notify(NoticeSuccess, "Logout successful")
}

// SubmitReport posts a new item report on behalf of the current user and
// navigates to the landing page. Errors are returned for the caller to
// display; the session is never modified.
func (s *Store) SubmitReport(ctx context.Context, r model.Report) error {
	u := s.User()
	if u == nil || u.ID == "" {
		return &FlowError{Message: "User not authenticated", Err: ErrNotAuthenticated}
	}
	if r.User == "" {
		r.User = u.ID
	}

	if err := s.api.CreateItem(ctx, r); err != nil {
		slog.Error("creating item failed", "user", u.ID, "error", err)
		return &FlowError{
			Message: failureMessage(err, "Failed to create item", "Failed to create item"),
			Err:     err,
		}
	}

	slog.Info("item reported", "user", u.ID, "type", r.ItemType, "name", r.Name)
	s.nav.Navigate(LandingPath)
	return nil
}

// failureMessage prefers the server's message, falls back to rejected when
// the server answered without one, and to transport for network failures.
func failureMessage(err error, rejected, transport string) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return rejected
	}
	return transport
}
