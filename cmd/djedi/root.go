package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluedjedi/djedi/internal/app"
	"github.com/bluedjedi/djedi/internal/config"
	"github.com/bluedjedi/djedi/internal/logger"
	"github.com/bluedjedi/djedi/internal/metric"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "djedi",
		Short: "Blue Djedi dashboard backend",
		Long: `djedi serves the Blue Djedi admin dashboard API: host metrics from
Prometheus, local system information, service liveness and the public
contact form relayed to Telegram.

Configuration is read from an optional YAML file and DJEDI_* environment
variables (DJEDI_PROMETHEUS__URL overrides prometheus.url).`,
		SilenceUsage: true,
		Version:      app.Version,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSnapshotCmd(opts))
	cmd.AddCommand(newPingCmd(opts))
	return cmd
}

func (o *rootOptions) load() (*config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log), nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			a, err := app.InitializeApp(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
}

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one dashboard snapshot and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			svc := app.InitializeMetricService(cfg, log)
			snapshot := svc.GetDashboardMetrics(cmd.Context())
			return writeSnapshot(cmd.OutOrStdout(), snapshot, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func newPingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Send a test message to the configured Telegram chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if err := app.InitializeContactService(cfg, log).SendTestMessage(ctx); err != nil {
				return fmt.Errorf("send test message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test message sent to Telegram")
			return nil
		},
	}
}

func writeSnapshot(w io.Writer, snapshot metric.MetricsSnapshot, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(snapshot)
	default:
		return fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}
