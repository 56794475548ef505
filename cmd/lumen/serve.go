package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/logger"
	"github.com/ajitpratap0/lumen/pkg/observability"
	"github.com/ajitpratap0/lumen/pkg/server"
	"github.com/ajitpratap0/lumen/pkg/table"
	"github.com/ajitpratap0/lumen/pkg/transport/httptransport"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tables over HTTP",
		Long: `Run a lumen server and accept wire requests on /v1/rpc. Prometheus
metrics are exposed on /metrics and a health check on /healthz.

Example:
  lumen serve --addr 127.0.0.1:8760 --compression zstd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			if err := logger.Init(logger.Config{
				Level:       cfg.Observability.LogLevel,
				Encoding:    cfg.Observability.LogEncoding,
				Development: cfg.Observability.Development,
			}); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.With(zap.String("component", "serve"))

			opts := []server.Option{server.WithLogger(log)}
			if cfg.Observability.EnableTracing {
				tp, err := observability.NewTracerProvider(cfg.Observability, version, os.Stderr)
				if err != nil {
					return err
				}
				defer func() { _ = observability.Shutdown(context.Background(), tp) }()
				opts = append(opts, server.WithTracerProvider(tp))
			}

			srv, err := server.New(cfg, opts...)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			hs := httptransport.NewServer(srv)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- hs.Start() }()
			log.Info("lumen server started",
				zap.String("version", version),
				zap.String("addr", cfg.Transport.Addr),
				zap.String("compression", cfg.Transport.Compression))

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from configuration, 127.0.0.1:8760)")
	_ = v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func newTablesCommand(v *viper.Viper) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List or describe the tables of a running server",
		Long: `Without arguments, list the registered table names. With names,
describe those tables.

Example:
  lumen tables --remote http://127.0.0.1:8760 animals`,
		PreRun: func(cmd *cobra.Command, args []string) {
			_ = v.BindPFlag("remote", cmd.Flags().Lookup("remote"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v.GetString("remote") == "" {
				return fmt.Errorf("--remote is required")
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			c, cleanup, err := openClient(v, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 0 {
				names, err := c.TableNames(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			infos := make([]table.Info, 0, len(args))
			for _, name := range args {
				tbl, err := c.OpenTable(cmd.Context(), name)
				if err != nil {
					return err
				}
				infos = append(infos, tbl.Info())
			}
			return printInfos(cmd.OutOrStdout(), infos, output)
		},
	}

	cmd.Flags().String("remote", "", "URL of a running lumen server")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	return cmd
}
