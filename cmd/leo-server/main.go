package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/leoftp/leo/internal/config"
	"github.com/leoftp/leo/internal/logging"
	"github.com/leoftp/leo/pkg/protocol"
	"github.com/leoftp/leo/pkg/session"
	"github.com/leoftp/leo/pkg/storage"
)

var rootCmd = &cobra.Command{
	Use:   "leo-server",
	Short: "LEO secure file transfer server",
	RunE:  runServer,
}

var (
	configPath string
	logFile    string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a YAML server config file (optional, LEO_* env vars also apply)")
	flags.StringVar(&logFile, "log-file", "", "rotate logs to this path instead of stdout/stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}

	level := levelFromString(cfg.LogLevel)
	var logger *logging.Logger
	if logFile != "" {
		logger = logging.NewRotatingFile("leo-server", level, logFile, 100, 5, 28)
	} else {
		logger = logging.New("leo-server", level)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("leo-server: storage: %w", err)
	}

	var maxUploadSize *int64
	if cfg.MaxUploadSize > 0 {
		maxUploadSize = &cfg.MaxUploadSize
	}

	info := session.Info{
		Version:         "1.0.0",
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    cfg.Capabilities,
		StorageRoot:     store.Root(),
		MaxUploadSize:   maxUploadSize,
	}
	creds := session.Credentials{Username: cfg.Credentials.Username, Password: cfg.Credentials.Password}

	srv := session.NewServer(store, creds, info, logger)
	if cfg.GetRateLimitBytesPerSec > 0 {
		burst := int(cfg.GetRateLimitBytesPerSec)
		if burst < protocol.GetChunkSize {
			burst = protocol.GetChunkSize
		}
		srv.GetRateLimiter = rate.NewLimiter(rate.Limit(cfg.GetRateLimitBytesPerSec), burst)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down", nil)
		return srv.Close()
	}
}

func levelFromString(s string) logging.Level {
	switch s {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}
