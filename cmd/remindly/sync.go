package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nhle/remindly/internal/model"
	"github.com/nhle/remindly/internal/sync"
	"github.com/nhle/remindly/internal/theme"
)

func syncCmd() *cobra.Command {
	var noSkipOffline, silent bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push local changes and pull remote ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				result := e.engine.Synchronize(ctx, sync.Options{
					SkipOnOffline: !noSkipOffline,
					Silent:        silent,
				})
				fmt.Println(describeResult(result))
				if !result.Success {
					return errors.New("sync failed")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noSkipOffline, "no-skip-offline", false, "Report being offline as a failure")
	cmd.Flags().BoolVar(&silent, "silent", false, "Do not fail when offline")
	return cmd
}

func daemonCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync in the background until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				addr := metricsAddr
				if addr == "" {
					addr = e.cfg.Metrics.Addr
				}
				if addr != "" {
					srv := &http.Server{Addr: addr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
					go func() {
						if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							e.log.Errorw("Metrics server failed", "addr", addr, "error", err)
						}
					}()
					defer srv.Close()
					e.log.Infow("Serving metrics", "addr", addr)
				}

				runner := sync.NewRunner(e.engine, time.Duration(e.cfg.Sync.IntervalSec)*time.Second)
				runner.Start(ctx)
				runner.Trigger()
				e.log.Infow("Background sync started", "interval_sec", e.cfg.Sync.IntervalSec)

				for {
					select {
					case <-ctx.Done():
						runner.Stop()
						e.log.Infow("Background sync stopped")
						return nil
					case result := <-runner.Results():
						if !result.Success {
							e.log.Warnw("Background pass failed", "message", result.Message)
						}
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	return cmd
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and the pending backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(ctx context.Context, e *env) error {
				backlog, err := e.store.PendingBacklog(ctx)
				if err != nil {
					return err
				}
				since, err := e.tokens.LastSync()
				if err != nil {
					return err
				}

				user := "not signed in"
				if u, err := e.store.CurrentUser(ctx); err == nil {
					user = u.Email
				}
				fmt.Println(theme.BorderStyle.Render(renderStatus(statusView{
					User:       user,
					TokenValid: e.tokens.Valid(),
					Online:     e.oracle.Online(ctx),
					LastSync:   since,
					Backlog:    backlog,
				})))
				return nil
			})
		},
	}
}

// describeResult renders a sync result as one line.
func describeResult(r sync.Result) string {
	switch {
	case r.Queued:
		return theme.HelpStyle.Render("Sync already running, queued")
	case r.Success && r.Offline:
		return theme.HelpStyle.Render("Offline: changes will sync later")
	case r.Success:
		return theme.ResultStyle(true).Render(fmt.Sprintf(
			"Synced: %d pushed, %d deleted, %d pulled", r.Stats.Pushed, r.Stats.Deleted, r.Stats.Pulled))
	case r.TokenError:
		return theme.ResultStyle(false).Render(r.Message + ". Run `remindly signin`.")
	}
	return theme.ResultStyle(false).Render("Sync failed: " + r.Message)
}

func formatCheckpoint(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return model.FromMillis(ms).Format("2006-01-02 15:04:05")
}
