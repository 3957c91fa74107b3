package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/remindly/internal/model"
)

// Vault keys.
const (
	KeyAuthToken      = "authToken"
	KeyTokenTimestamp = "tokenTimestamp"
	KeyLastSync       = "lastSync"
)

// DefaultTokenTTL is how long an issued token is trusted.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrNoToken is returned when an operation needs a stored token and there
// is none.
var ErrNoToken = errors.New("no auth token stored")

// TokenCache keeps the bearer token, its issuance time and the sync
// checkpoint in a Vault.
type TokenCache struct {
	vault *Vault
	ttl   time.Duration
	now   func() time.Time
	log   *zap.SugaredLogger
}

// NewTokenCache creates a TokenCache. A non-positive ttl selects
// DefaultTokenTTL; a nil logger discards output.
func NewTokenCache(vault *Vault, ttl time.Duration, log *zap.SugaredLogger) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TokenCache{vault: vault, ttl: ttl, now: time.Now, log: log}
}

// SetClock replaces the time source used for issuance and age checks.
func (c *TokenCache) SetClock(now func() time.Time) {
	c.now = now
}

// Store saves token and stamps its issuance time.
func (c *TokenCache) Store(token string) error {
	if token == "" {
		return ErrNoToken
	}
	if err := c.vault.Set(KeyAuthToken, token); err != nil {
		return err
	}
	stamp := strconv.FormatInt(model.Millis(c.now()), 10)
	return c.vault.Set(KeyTokenTimestamp, stamp)
}

// Token returns the stored token without checking its age.
func (c *TokenCache) Token() (string, error) {
	token, err := c.vault.Get(KeyAuthToken)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Valid reports whether a token is stored and younger than the TTL, counted
// in whole days. A token without an issuance time is trusted. Read errors
// make the token invalid.
func (c *TokenCache) Valid() bool {
	token, err := c.Token()
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			c.log.Warnw("Reading auth token failed", "error", err)
		}
		return false
	}
	if token == "" {
		return false
	}

	stamp, err := c.vault.Get(KeyTokenTimestamp)
	if err != nil {
		c.log.Warnw("Reading token timestamp failed", "error", err)
		return false
	}
	if stamp == "" {
		return true
	}

	issued, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		c.log.Warnw("Token timestamp is malformed", "value", stamp)
		return false
	}

	day := 24 * time.Hour
	ageDays := int64(c.now().Sub(model.FromMillis(issued)) / day)
	ttlDays := int64(c.ttl / day)
	if ageDays >= ttlDays {
		c.log.Infow("Auth token expired", "age_days", ageDays, "max_days", ttlDays)
		return false
	}
	return true
}

// Clear removes the token and its issuance time.
func (c *TokenCache) Clear() error {
	return errors.Join(
		c.vault.Delete(KeyAuthToken),
		c.vault.Delete(KeyTokenTimestamp),
	)
}

// LastSync returns the checkpoint of the last fully successful sync in epoch
// milliseconds; 0 when none was recorded.
func (c *TokenCache) LastSync() (int64, error) {
	raw, err := c.vault.Get(KeyLastSync)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", KeyLastSync, raw, err)
	}
	return since, nil
}

// SetLastSync persists the sync checkpoint.
func (c *TokenCache) SetLastSync(ms int64) error {
	return c.vault.Set(KeyLastSync, strconv.FormatInt(ms, 10))
}

// ClearCheckpoint forgets the sync checkpoint so the next pull starts from 0.
func (c *TokenCache) ClearCheckpoint() error {
	return c.vault.Delete(KeyLastSync)
}
