package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/remindly/internal/credential"
	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/netcheck"
	"github.com/nhle/remindly/internal/store"
	"github.com/nhle/remindly/internal/sync"
)

// ErrOffline is returned by flows that need the server while the device has
// no connectivity.
var ErrOffline = errors.New("no internet connection")

// minPasswordLength is the shortest password accepted at sign-up.
const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Remote is the part of the server API used by account flows.
type Remote interface {
	SignIn(ctx context.Context, email, password string) (string, error)
	SignUp(ctx context.Context, name, email, password string) error
}

// Syncer runs a sync pass.
type Syncer interface {
	Synchronize(ctx context.Context, opts sync.Options) sync.Result
}

// Service implements sign-in, sign-up and sign-out on top of the local store
// and the token cache.
type Service struct {
	store  store.Store
	tokens *credential.TokenCache
	remote Remote
	syncer Syncer
	oracle netcheck.Oracle
	log    *zap.SugaredLogger
}

// NewService creates a Service. A nil logger discards output.
func NewService(
	s store.Store,
	tokens *credential.TokenCache,
	r Remote,
	syncer Syncer,
	oracle netcheck.Oracle,
	log *zap.SugaredLogger,
) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{store: s, tokens: tokens, remote: r, syncer: syncer, oracle: oracle, log: log}
}

// SignIn exchanges credentials for a token, records the user locally and
// runs a first sync. A failed sync does not fail the sign-in; its result is
// returned alongside the user.
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.User, sync.Result, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, sync.Result{}, &model.ValidationError{Field: "credentials", Message: "email and password are required"}
	}
	if !s.oracle.Online(ctx) {
		return nil, sync.Result{}, ErrOffline
	}

	token, err := s.remote.SignIn(ctx, email, password)
	if err != nil {
		return nil, sync.Result{}, err
	}
	if err := s.tokens.Store(token); err != nil {
		return nil, sync.Result{}, fmt.Errorf("saving token: %w", err)
	}

	user, err := s.store.EnsureUser(ctx, email)
	if err != nil {
		return nil, sync.Result{}, fmt.Errorf("recording user %s: %w", email, err)
	}
	s.log.Infow("Signed in", "email", email)

	result := s.syncer.Synchronize(ctx, sync.DefaultOptions())
	if !result.Success {
		s.log.Warnw("Initial sync after sign-in failed", "message", result.Message)
	}
	return user, result, nil
}

// SignUp validates the form locally and registers the account. It does not
// sign in.
func (s *Service) SignUp(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	switch {
	case name == "" || email == "" || password == "":
		return &model.ValidationError{Field: "form", Message: "all fields are required"}
	case !emailPattern.MatchString(email):
		return &model.ValidationError{Field: "email", Message: "please enter a valid email address"}
	case len(password) < minPasswordLength:
		return &model.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters long", minPasswordLength),
		}
	}

	if !s.oracle.Online(ctx) {
		return ErrOffline
	}
	if err := s.remote.SignUp(ctx, name, email, password); err != nil {
		return err
	}
	s.log.Infow("Account created", "email", email)
	return nil
}

// SignOut pushes what it can, then forgets the token, the checkpoint and the
// active user. Local rows are kept. Failures are logged, never returned.
func (s *Service) SignOut(ctx context.Context) {
	if s.oracle.Online(ctx) && s.tokens.Valid() {
		result := s.syncer.Synchronize(ctx, sync.Options{SkipOnOffline: true, Silent: true})
		if !result.Success {
			s.log.Warnw("Final sync before sign-out failed", "message", result.Message)
		}
	}

	if err := s.tokens.Clear(); err != nil {
		s.log.Warnw("Clearing token failed", "error", err)
	}
	if err := s.tokens.ClearCheckpoint(); err != nil {
		s.log.Warnw("Clearing sync checkpoint failed", "error", err)
	}

	user, err := s.store.CurrentUser(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		s.log.Warnw("Reading current user failed", "error", err)
	default:
		if err := s.store.DeactivateUser(ctx, user.Email); err != nil {
			s.log.Warnw("Deactivating user failed", "email", user.Email, "error", err)
		}
	}
	s.log.Infow("Signed out")
}

// RefreshTokenIfNeeded drops an expired or unreadable token and reports
// whether a usable one remains.
func (s *Service) RefreshTokenIfNeeded(context.Context) bool {
	if s.tokens.Valid() {
		return true
	}
	token, _ := s.tokens.Token()
	if token != "" {
		s.log.Infow("Stored token expired, clearing it")
		if err := s.tokens.Clear(); err != nil {
			s.log.Warnw("Clearing expired token failed", "error", err)
		}
	}
	return false
}

// Authenticated reports whether a token is stored and a user is active.
func (s *Service) Authenticated(ctx context.Context) bool {
	token, err := s.tokens.Token()
	if err != nil || token == "" {
		return false
	}
	_, err = s.store.CurrentUser(ctx)
	return err == nil
}
