package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/remindly/internal/account"
	"github.com/nhle/remindly/internal/credential"
	"github.com/nhle/remindly/internal/logging"
	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/netcheck"
	"github.com/nhle/remindly/internal/remote"
	"github.com/nhle/remindly/internal/store"
	"github.com/nhle/remindly/internal/sync"
)

// env holds every component a command may need, wired from the config.
type env struct {
	cfg     *model.AppConfig
	log     *zap.SugaredLogger
	flush   func()
	store   *store.SQLiteStore
	tokens  *credential.TokenCache
	oracle  netcheck.Oracle
	engine  *sync.Engine
	account *account.Service
}

func openEnv() (*env, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, flush := logging.New(cfg.Log)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o700); err != nil {
		flush()
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		flush()
		return nil, err
	}

	vault, err := credential.Open(cfg.Keyring)
	if err != nil {
		s.Close()
		flush()
		return nil, err
	}
	ttl := time.Duration(cfg.Sync.TokenTTLDays) * 24 * time.Hour
	tokens := credential.NewTokenCache(vault, ttl, log.Named("credential"))

	oracle, err := netcheck.NewDialOracle(cfg.Server.BaseURL, 0)
	if err != nil {
		s.Close()
		flush()
		return nil, err
	}

	client := remote.NewClient(cfg.Server.BaseURL, tokens.Token,
		remote.WithTimeout(time.Duration(cfg.Server.TimeoutSec)*time.Second),
		remote.WithMaxRetries(cfg.Server.MaxRetries),
		remote.WithLogger(log.Named("remote")),
	)

	engine := sync.NewEngine(s, client, tokens, oracle,
		sync.WithLogger(log.Named("sync")),
		sync.WithConflictPolicy(cfg.Sync.ConflictPolicy),
	)

	return &env{
		cfg:     cfg,
		log:     log,
		flush:   flush,
		store:   s,
		tokens:  tokens,
		oracle:  oracle,
		engine:  engine,
		account: account.NewService(s, tokens, client, engine, oracle, log.Named("account")),
	}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Warnw("Closing store failed", "error", err)
	}
	e.flush()
}

// withEnv opens the environment for the duration of fn.
func withEnv(fn func(ctx context.Context, e *env) error) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(context.Background(), e)
}

// currentEmail returns the signed-in user's e-mail.
func (e *env) currentEmail(ctx context.Context) (string, error) {
	user, err := e.store.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("not signed in, run `remindly signin` first: %w", err)
	}
	return user.Email, nil
}

// afterChange pushes a local edit right away when possible. Being offline
// or signed out is not an error: the edit stays pending.
func (e *env) afterChange(ctx context.Context) {
	if !e.tokens.Valid() {
		return
	}
	result := e.engine.Synchronize(ctx, sync.Options{SkipOnOffline: true, Silent: true, HasChanges: true})
	if !result.Success {
		fmt.Println(describeResult(result))
	}
}

func (e *env) now() time.Time { return time.Now() }
