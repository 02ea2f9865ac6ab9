package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	store "github.com/goliatone/go-store"
	"github.com/goliatone/go-store/internal/logging"
	"github.com/goliatone/go-store/internal/manifest"
	"github.com/goliatone/go-store/pkg/activity"
	"github.com/goliatone/go-store/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <manifest>",
	Short: "Dispatch the manifest's calls and print snapshots",
	Long: `Dispatches every call of the manifest concurrently. While calls are in
flight the annotated state is printed as one JSON line per interval, loading
objects carrying "_loading": true. The final state is printed last.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		levelName, _ := cmd.Flags().GetString("log-level")
		level, err := logging.ParseLevel(levelName)
		if err != nil {
			return err
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runManifest(ctx, cmd.OutOrStdout(), args[0], runConfig{
			logger:      logging.New(level),
			interval:    interval,
			metricsAddr: metricsAddr,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Duration("interval", 100*time.Millisecond, "Time between printed snapshots while calls are in flight")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run, e.g. :2112")
}

type runConfig struct {
	logger      *slog.Logger
	interval    time.Duration
	metricsAddr string
}

func runManifest(ctx context.Context, w io.Writer, path string, cfg runConfig) error {
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	m, err := loadManifest(path)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry, "modstore")
	if err != nil {
		return err
	}
	if cfg.metricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			cfg.logger.Info("serving metrics", "addr", cfg.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cfg.logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	s, err := manifest.Open(m,
		store.WithLogger(cfg.logger),
		store.WithActivityHooks(activity.Hooks{collector}, activity.Config{Channel: "modstore"}),
	)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	var encodeErr error
	outcomes, runErr := manifest.Run(ctx, s, m.Calls, manifest.RunOptions{
		Interval: cfg.interval,
		Observe: func(snap store.Snapshot) {
			if encodeErr != nil || !snap.Loading() {
				return
			}
			encodeErr = enc.Encode(snap.Annotated())
		},
	})
	if encodeErr != nil {
		return encodeErr
	}

	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
			cfg.logger.Warn("call failed", "modifier", out.Call.Modifier, "instance", out.Instance.ID, "error", out.Err)
		}
	}
	cfg.logger.Info("run finished", "calls", len(outcomes), "failed", failed)

	if err := enc.Encode(s.State()); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	return nil
}
