package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/searchidx/internal/emulator"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		addr        string
		definitions []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory emulator of the search service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Emulator.Addr
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			emu, err := emulator.New(
				emulator.WithAPIKey(a.cfg.Emulator.APIKey),
				emulator.WithLogger(a.logger),
				emulator.WithMetrics(reg, a.cfg.Emulator.MetricsPath),
			)
			if err != nil {
				return err
			}
			defer func() { _ = emu.Close() }()

			for _, path := range definitions {
				def, err := readDefinition(path)
				if err != nil {
					return err
				}
				if err := emu.CreateIndex(def); err != nil {
					return fmt.Errorf("seed index %s: %w", def.Name(), err)
				}
				a.logger.Info("Index created", zap.String("index", def.Name()))
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, ln, emu.Handler(), a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: emulator.addr from config)")
	cmd.Flags().StringArrayVar(&definitions, "definition", nil, "index definition file to create at startup (repeatable)")
	return cmd
}

// serve runs the HTTP server on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, ln net.Listener, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting emulator", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("emulator server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("Emulator stopped gracefully")
		return nil
	})
	return g.Wait()
}
