package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	goSocialAuth "github.com/MrEthical07/goSocialAuth"
	"github.com/MrEthical07/goSocialAuth/httpapi"
	"github.com/MrEthical07/goSocialAuth/internal/telemetry"
	"github.com/MrEthical07/goSocialAuth/middleware"
)

// NewServeCmd returns the command that runs the HTTP API.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sign-in HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			srvCfg, err := LoadServerConfig()
			if err != nil {
				return err
			}
			cfg, err := goSocialAuth.LoadConfigFromEnv()
			if err != nil {
				return err
			}

			logger := telemetry.SetupLogger(srvCfg.LogLevel, srvCfg.LogFormat, os.Stderr)
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return serve(ctx, srvCfg, cfg, logger)
		},
	}
}

func serve(ctx context.Context, srvCfg ServerConfig, cfg goSocialAuth.Config, logger *slog.Logger) error {
	logger.Info("starting gosocialauth", "addr", srvCfg.Addr, "store", srvCfg.Store, "mail", srvCfg.Mail)

	a, err := newApp(ctx, srvCfg, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.run(ctx)
}

// app is a wired HTTP server and the resources behind it.
type app struct {
	logger          *slog.Logger
	rt              *runtime
	engine          *goSocialAuth.Engine
	server          *http.Server
	shutdownTimeout time.Duration
}

func newApp(ctx context.Context, srvCfg ServerConfig, cfg goSocialAuth.Config, logger *slog.Logger) (*app, error) {
	rt, err := openRuntime(ctx, srvCfg, logger, os.Stdout)
	if err != nil {
		return nil, err
	}

	var (
		registerer prometheus.Registerer
		gatherer   prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer, gatherer = reg, reg
	}

	engine, err := buildEngine(rt, cfg, registerer)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	logger.Info("providers enabled", "providers", engine.Providers())

	handler := httpapi.NewHandler(httpapi.Config{
		Engine:      engine,
		Logger:      logger,
		Gatherer:    gatherer,
		Limiter:     middleware.NewIPLimiter(srvCfg.ThrottleRPS, srvCfg.ThrottleBurst, srvCfg.ThrottleIdle),
		TrustProxy:  srvCfg.TrustProxy,
		PopupOrigin: srvCfg.PopupOrigin,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &app{
		logger: logger,
		rt:     rt,
		engine: engine,
		server: &http.Server{
			Addr:              srvCfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: srvCfg.ShutdownTimeout,
	}, nil
}

// run serves until ctx ends, then shuts the server down gracefully.
func (a *app) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("stopped")
	return nil
}

// Close flushes audit events and releases the runtime resources.
func (a *app) Close() {
	a.engine.Close()
	if err := a.rt.Close(); err != nil {
		a.logger.Error("close resources", "error", err)
	}
}
