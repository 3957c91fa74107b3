package account_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/remindly/internal/account"
	"github.com/nhle/remindly/internal/credential"
	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/netcheck"
	"github.com/nhle/remindly/internal/store"
	"github.com/nhle/remindly/internal/sync"
	"github.com/nhle/remindly/tests/testutil"
)

type fakeRemote struct {
	token     string
	signInErr error
	signUpErr error
	signIns   int
	signUps   []string
}

func (f *fakeRemote) SignIn(_ context.Context, email, password string) (string, error) {
	f.signIns++
	if f.signInErr != nil {
		return "", f.signInErr
	}
	return f.token, nil
}

func (f *fakeRemote) SignUp(_ context.Context, name, email, password string) error {
	f.signUps = append(f.signUps, email)
	return f.signUpErr
}

type fakeSyncer struct {
	result sync.Result
	calls  []sync.Options
}

func (f *fakeSyncer) Synchronize(_ context.Context, opts sync.Options) sync.Result {
	f.calls = append(f.calls, opts)
	return f.result
}

type fixture struct {
	store  *store.SQLiteStore
	tokens *credential.TokenCache
	remote *fakeRemote
	syncer *fakeSyncer
	online *bool
	svc    *account.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := testutil.NewTestStore(t)
	tokens := credential.NewTokenCache(testutil.NewTestVault(t), 0, nil)
	online := true
	f := &fixture{
		store:  s,
		tokens: tokens,
		remote: &fakeRemote{token: "tok-1"},
		syncer: &fakeSyncer{result: sync.Result{Success: true}},
		online: &online,
	}
	oracle := netcheck.OracleFunc(func(context.Context) bool { return *f.online })
	f.svc = account.NewService(s, tokens, f.remote, f.syncer, oracle, nil)
	return f
}

func TestSignIn_StoresTokenAndSyncs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, result, err := f.svc.SignIn(ctx, " ada@example.com ", "secret123")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "ada", user.Name)

	token, err := f.tokens.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.True(t, f.tokens.Valid())
	assert.Equal(t, []sync.Options{sync.DefaultOptions()}, f.syncer.calls)
	assert.True(t, f.svc.Authenticated(ctx))
}

func TestSignIn_SyncFailureIsReportedNotRaised(t *testing.T) {
	f := newFixture(t)
	f.syncer.result = sync.Result{Success: false, Message: "server returned 500: boom"}

	user, result, err := f.svc.SignIn(context.Background(), "ada@example.com", "secret123")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, result.Success)
	assert.Equal(t, "server returned 500: boom", result.Message)
}

func TestSignIn_Offline(t *testing.T) {
	f := newFixture(t)
	*f.online = false

	_, _, err := f.svc.SignIn(context.Background(), "ada@example.com", "secret123")
	assert.ErrorIs(t, err, account.ErrOffline)
	assert.EqualError(t, err, "no internet connection")
	assert.Zero(t, f.remote.signIns)
}

func TestSignIn_RejectedCredentialsStoreNothing(t *testing.T) {
	f := newFixture(t)
	f.remote.signInErr = errors.New("signing in: server returned 401: Invalid credentials")

	_, _, err := f.svc.SignIn(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)

	_, err = f.tokens.Token()
	assert.ErrorIs(t, err, credential.ErrNoToken)
	_, err = f.store.CurrentUser(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.syncer.calls)
}

func TestSignUp_Validation(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		email    string
		password string
		field    string
	}{
		{"missing name", "", "ada@example.com", "secret123", "form"},
		{"missing password", "Ada", "ada@example.com", "", "form"},
		{"bad email", "Ada", "ada@example", "secret123", "email"},
		{"email with space", "Ada", "ada lovelace@example.com", "secret123", "email"},
		{"short password", "Ada", "ada@example.com", "1234567", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.svc.SignUp(context.Background(), tt.userName, tt.email, tt.password)

			var vErr *model.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Empty(t, f.remote.signUps)
		})
	}
}

func TestSignUp_Registers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.SignUp(context.Background(), "Ada", "ada@example.com", "12345678"))
	assert.Equal(t, []string{"ada@example.com"}, f.remote.signUps)

	_, err := f.tokens.Token()
	assert.ErrorIs(t, err, credential.ErrNoToken, "sign-up does not sign in")
}

func TestSignOut_SyncsThenForgetsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.SignIn(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.tokens.SetLastSync(1234))
	_, err = f.store.CreateList(ctx, model.TaskList{Email: "ada@example.com", Name: "Keep me"})
	require.NoError(t, err)

	f.svc.SignOut(ctx)

	require.Len(t, f.syncer.calls, 2)
	assert.Equal(t, sync.Options{SkipOnOffline: true, Silent: true}, f.syncer.calls[1])

	_, err = f.tokens.Token()
	assert.ErrorIs(t, err, credential.ErrNoToken)
	since, err := f.tokens.LastSync()
	require.NoError(t, err)
	assert.Zero(t, since)

	_, err = f.store.CurrentUser(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, f.svc.Authenticated(ctx))

	lists, err := f.store.GetLists(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Len(t, lists, 1, "local rows survive sign-out")
}

func TestSignOut_OfflineSkipsSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.SignIn(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)
	*f.online = false

	f.svc.SignOut(ctx)
	assert.Len(t, f.syncer.calls, 1)
	assert.False(t, f.svc.Authenticated(ctx))
}

func TestSignOut_WithoutSessionIsHarmless(t *testing.T) {
	f := newFixture(t)
	f.svc.SignOut(context.Background())
	assert.Empty(t, f.syncer.calls)
}

func TestRefreshTokenIfNeeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.tokens.SetClock(func() time.Time { return now })

	assert.False(t, f.svc.RefreshTokenIfNeeded(ctx))

	require.NoError(t, f.tokens.Store("tok-1"))
	assert.True(t, f.svc.RefreshTokenIfNeeded(ctx))

	now = now.Add(credential.DefaultTokenTTL)
	assert.False(t, f.svc.RefreshTokenIfNeeded(ctx))
	_, err := f.tokens.Token()
	assert.ErrorIs(t, err, credential.ErrNoToken, "expired token is cleared")
}

func TestAuthenticated_NeedsActiveUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tokens.Store("tok-1"))
	assert.False(t, f.svc.Authenticated(ctx))

	_, err := f.store.EnsureUser(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, f.svc.Authenticated(ctx))
}
