package credential_test

import (
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/remindly/internal/credential"
)

func newCache(t *testing.T, now *time.Time) (*credential.TokenCache, *credential.Vault) {
	t.Helper()
	vault := credential.NewVault(keyring.NewArrayKeyring(nil))
	cache := credential.NewTokenCache(vault, 0, nil)
	cache.SetClock(func() time.Time { return *now })
	return cache, vault
}

func TestValid_NoToken(t *testing.T) {
	now := time.Now()
	cache, _ := newCache(t, &now)

	assert.False(t, cache.Valid())
	_, err := cache.Token()
	assert.ErrorIs(t, err, credential.ErrNoToken)
}

func TestValid_ExpiresAfterWholeDays(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache, _ := newCache(t, &now)
	require.NoError(t, cache.Store("tok"))

	now = now.Add(7*24*time.Hour - time.Minute)
	assert.True(t, cache.Valid(), "six full days old")

	now = now.Add(time.Minute)
	assert.False(t, cache.Valid(), "seven full days old")
}

func TestValid_MissingTimestampIsTrusted(t *testing.T) {
	now := time.Now()
	cache, vault := newCache(t, &now)
	require.NoError(t, vault.Set(credential.KeyAuthToken, "tok"))

	assert.True(t, cache.Valid())
}

func TestValid_MalformedTimestampIsInvalid(t *testing.T) {
	now := time.Now()
	cache, vault := newCache(t, &now)
	require.NoError(t, vault.Set(credential.KeyAuthToken, "tok"))
	require.NoError(t, vault.Set(credential.KeyTokenTimestamp, "yesterday"))

	assert.False(t, cache.Valid())
}

func TestClear_RemovesTokenButKeepsCheckpoint(t *testing.T) {
	now := time.Now()
	cache, _ := newCache(t, &now)
	require.NoError(t, cache.Store("tok"))
	require.NoError(t, cache.SetLastSync(42))

	require.NoError(t, cache.Clear())
	require.NoError(t, cache.Clear(), "clearing twice is harmless")

	assert.False(t, cache.Valid())
	since, err := cache.LastSync()
	require.NoError(t, err)
	assert.EqualValues(t, 42, since)

	require.NoError(t, cache.ClearCheckpoint())
	since, err = cache.LastSync()
	require.NoError(t, err)
	assert.Zero(t, since)
}

func TestStore_RejectsEmptyToken(t *testing.T) {
	now := time.Now()
	cache, _ := newCache(t, &now)

	assert.ErrorIs(t, cache.Store(""), credential.ErrNoToken)
}
