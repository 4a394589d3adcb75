package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coedit/coedit/internal/config"
	"github.com/coedit/coedit/internal/lock"
	"github.com/coedit/coedit/internal/logging"
	"github.com/coedit/coedit/internal/presence"
	"github.com/coedit/coedit/internal/protocol"
	"github.com/coedit/coedit/internal/registry"
	"github.com/coedit/coedit/internal/server"
	"github.com/coedit/coedit/internal/store"
	"github.com/coedit/coedit/internal/transport"
	"github.com/coedit/coedit/internal/transport/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coedit server",
	Long: `Starts the WebSocket endpoint, the document registry, and the
idle-lock eviction sweep. Clients connect to ws://<listen_addr>/ws?user=<name>.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides server.listen_addr)")
	_ = viper.BindPFlag("server.listen_addr", serveCmd.Flags().Lookup("listen"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logger.Close()

	docStore, err := store.New(cfg.Server.ResolveDocumentDir(), logger)
	if err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}

	locks := lock.NewTable(lock.WithIdleWindow(cfg.Locks.IdleWindow()))
	reg := registry.New(locks, docStore, logger,
		registry.WithCapacity(cfg.Server.MaxDocuments))
	tracker := presence.NewTracker(logger)

	// The WebSocket endpoint and the core reference each other; the
	// indirection lets the core be built first.
	var endpoint *ws.Server
	core := server.New(
		transport.SenderFunc(func(peer string, msg protocol.Message) error {
			return endpoint.Send(peer, msg)
		}),
		reg, locks, tracker, logger,
		server.WithSweepInterval(cfg.Locks.SweepInterval()),
	)
	endpoint = ws.NewServer(core, logger)

	core.Start()
	defer core.Stop()

	// Settings are read once at startup; a changed file takes effect on
	// restart. The watch only makes that visible in the log.
	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, restart to apply", "file", e.Name)
	})
	viper.WatchConfig()

	mux := http.NewServeMux()
	mux.Handle("/ws", endpoint)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", cfg.Server.ListenAddr,
			"documents", cfg.Server.ResolveDocumentDir())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err.Error())
	}
	endpoint.Close()
	return nil
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLoggerWithRotation(
		cfg.Logging.ResolveLogDir(),
		cfg.Logging.Level,
		logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	)
}
