package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/clipstash/internal/api"
	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/config"
	"go.klb.dev/clipstash/internal/detector"
	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/hub"
	"go.klb.dev/clipstash/internal/ipc"
	"go.klb.dev/clipstash/internal/journal"
	"go.klb.dev/clipstash/internal/metrics"
	"go.klb.dev/clipstash/internal/retention"
	"go.klb.dev/clipstash/internal/tlsconf"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the clipboard and serve the history",
		Long: `Starts the clipstash daemon. It restores the history from the journal in
--data-dir, records every new clipboard text, and serves the history on the
local socket. With --listen it also serves gRPC and an HTTP/JSON API over TLS
on that address; the TLS key and the bearer token both come from --token.

max-history and retention-days are re-read when the config file changes.

Config file search order:
  /etc/clipstash/clipstash.toml
  $HOME/.config/clipstash/clipstash.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPSTASH_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.Int("max-history", history.DefaultMaxSize, "entries kept in memory")
	f.String("dedup", string(history.DedupAdjacent), "duplicate handling: adjacent|global")
	f.Duration("poll-interval", detector.DefaultPollInterval, "clipboard poll period (negative disables polling)")
	f.Int("read-attempts", detector.DefaultAttempts, "clipboard reads per change while the clipboard is locked")
	f.Duration("retry-delay", detector.DefaultRetryDelay, "wait between locked-clipboard reads")
	f.String("data-dir", "", "journal directory (default $HOME/.clipstash)")
	f.String("storage", journal.DriverFiles, "journal driver: files|sqlite")
	f.Int("retention-days", retention.DefaultDays, "days of history kept on disk (1-365)")
	f.String("prune-schedule", retention.DefaultSchedule, "cron schedule for retention pruning")
	f.Bool("headless", false, "use an in-memory clipboard instead of the system one")
	f.String("listen", "", "TCP address for remote access, e.g. 127.0.0.1:8752 (empty = local socket only)")
	f.String("token", "", "shared secret for TCP clients")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(ctx context.Context, v *viper.Viper) error {
	logCloser, err := setupLogging(v)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	dedup, err := history.ParseDedup(cfg.Dedup)
	if err != nil {
		return err
	}

	if ipc.IsRunning() {
		return fmt.Errorf("a daemon is already listening on %s", ipc.SocketPath())
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	j, err := journal.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer j.Close()

	store := history.New(history.Options{MaxSize: cfg.MaxHistory, Dedup: dedup})
	if entries, err := j.Load(ctx); err != nil {
		slog.Warn("journal load failed, starting empty", "err", err)
	} else {
		store.Restore(entries)
	}

	var backend clip.Backend
	if cfg.Headless {
		backend = clip.NewHeadless()
	} else {
		backend = clip.New()
	}
	defer backend.Close()

	h := hub.New()
	writer := journal.NewWriter(j)
	h.Register(writer)
	defer h.Unregister(writer)

	det := detector.New(backend, store, h, detector.Config{
		Attempts:     cfg.ReadAttempts,
		RetryDelay:   cfg.RetryDelay,
		PollInterval: cfg.PollInterval,
	})

	pruner := retention.NewPruner(j, store, cfg.RetentionDays)
	sched, err := retention.NewScheduler(cfg.PruneSchedule, pruner)
	if err != nil {
		return err
	}

	svc := api.New(api.Options{
		Store:   store,
		Hub:     h,
		Writer:  backend,
		Token:   cfg.Token,
		Version: Version,
		Storage: cfg.Storage,
		Archive: j,
		Prune: func(ctx context.Context) (int, string, error) {
			n, err := pruner.Prune(ctx)
			return n, pruner.Cutoff(), err
		},
	})

	var (
		gateway http.Handler
		creds   *tlsconf.Credentials
		tcpLn   net.Listener
	)
	if cfg.Listen != "" {
		reg := metrics.NewRegistry(metrics.Sources{
			Detector:      det.Stats(),
			Store:         store,
			Hub:           h,
			JournalFailed: writer.Failed,
			PrunedDays:    pruner.Removed,
		})
		if gateway, err = api.NewGateway(svc, metrics.Handler(reg)); err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		if creds, err = tlsconf.New(cfg.Token); err != nil {
			return err
		}
		if tcpLn, err = net.Listen("tcp", cfg.Listen); err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Listen, err)
		}
	}

	localLn, err := ipc.Listen()
	if err != nil {
		if tcpLn != nil {
			_ = tcpLn.Close()
		}
		return fmt.Errorf("ipc socket: %w", err)
	}
	srv := api.NewServer(svc, gateway, creds)

	watchConfig(v, j, store, pruner)

	slog.Info("clipstash daemon starting",
		"version", Version,
		"backend", backend.Name(),
		"storage", cfg.Storage,
		"data_dir", cfg.DataDir,
		"entries", store.Len(),
		"max_history", cfg.MaxHistory,
		"retention_days", cfg.RetentionDays,
		"listen", cfg.Listen,
		"auth", cfg.Token != "",
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return writer.Run(ctx) })
	g.Go(func() error { return det.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return srv.Serve(ctx, localLn, tcpLn) })

	err = g.Wait()
	slog.Info("clipstash daemon stopped",
		"captures", det.Stats().Captures.Load(),
		"journal_failures", writer.Failed(),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchConfig applies max-history and retention-days changes from the config
// file while the daemon runs. Other keys need a restart.
func watchConfig(v *viper.Viper, j journal.Journal, store *history.Store, pruner *retention.Pruner) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.Load(v)
		if err != nil {
			slog.Warn("config reload rejected", "file", e.Name, "err", err)
			return
		}
		if prev := store.MaxSize(); cfg.MaxHistory != prev {
			store.SetMaxSize(cfg.MaxHistory)
			var restored int
			if cfg.MaxHistory > prev {
				// Refill from disk below the oldest entry held in memory.
				entries, err := j.Load(context.Background())
				if err != nil {
					slog.Warn("journal reload failed", "err", err)
				} else {
					restored = store.Backfill(entries)
				}
			}
			slog.Info("max-history changed", "from", prev, "to", cfg.MaxHistory, "restored", restored)
		}
		if prev := pruner.Days(); cfg.RetentionDays != prev {
			pruner.SetDays(cfg.RetentionDays)
			slog.Info("retention-days changed", "from", prev, "to", cfg.RetentionDays)
		}
	})
	v.WatchConfig()
	slog.Debug("watching config file", "path", v.ConfigFileUsed())
}
