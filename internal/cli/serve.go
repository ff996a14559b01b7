package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"observe/dashboard/internal/config"
	"observe/dashboard/internal/handler"
	"observe/dashboard/internal/service"
	"observe/dashboard/internal/session"
	jwtpkg "observe/dashboard/pkg/jwt"
)

var errNoSigningKey = errors.New("jwt.signing_key is required to serve")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	Long: `Run the dashboard HTTP API.

Logins exchange an Observe access token for a dashboard session token.
Sessions are kept in the configured session backend and their profile is
refreshed in the background until Observe rejects the token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.SigningKey == "" {
			return errNoSigningKey
		}
		logger, err := config.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer logger.Sync()

		return serve(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionStore, err := a.openSessionStore()
	if err != nil {
		return err
	}
	sessions := session.NewManager(a.api, sessionStore, session.Options{
		TTL:             cfg.Session.TTL,
		RefreshInterval: cfg.Session.RefreshInterval,
	}, logger)
	defer sessions.Shutdown()

	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TokenTTL)
	dashboardService := service.NewDashboardService(a.api, sessions, a.audit, jwtManager, a.loading, logger)
	router := handler.SetupRouter(cfg, logger, jwtManager, sessions, a.loading, dashboardService)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("observe_api", cfg.Observe.APIURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("server exited gracefully")
	return nil
}
