package testutil

import (
	"testing"
	"time"

	"github.com/99designs/keyring"

	"github.com/nhle/remindly/internal/credential"
	"github.com/nhle/remindly/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestVault returns a Vault backed by an in-memory keyring.
func NewTestVault(t *testing.T) *credential.Vault {
	t.Helper()
	return credential.NewVault(keyring.NewArrayKeyring(nil))
}

// Clock is a manually advanced time source for deterministic timestamps.
type Clock struct {
	t time.Time
}

// NewClock returns a Clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	return c.t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}
