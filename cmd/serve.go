package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/cverag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket prompt server",
	Long:  `Starts the prompt server: the model and RAG type menus, the prompt endpoint with file uploads, the WebSocket endpoint and the request history.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "address to listen on (overrides config)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger, appOptions{history: true, timeout: cfg.Server.RequestTimeout})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowAll:       cfg.Server.AllowAllOrigins,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	}, a.service, a.history, logger)

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("cverag server starting",
		zap.String("version", Version),
		zap.String("addr", srv.Addr()),
		zap.Strings("models", a.service.Models()),
		zap.Bool("cve_pipeline", a.service.Pipeline() != nil),
		zap.Bool("history", a.history != nil),
	)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
