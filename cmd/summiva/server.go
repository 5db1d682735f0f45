package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/inbox"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/server"
	"github.com/INFO-698-InfoSci-Capstone/summiva/pkg/utils"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP API and the directory inbox",
	Args:  cobra.NoArgs,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, resolvedConfigPath, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}
	debug := cfg.Debug || flagDebug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", debug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("engine close failed", zap.Error(err))
		}
	}()

	if len(cfg.Inbox.Directories) > 0 {
		in := inbox.New(eng, cfg.Inbox.Directories, cfg.Inbox.Extensions, cfg.Inbox.RecursiveOrDefault(),
			inbox.WithLogger(logger.Named("inbox")))
		if err := in.Start(ctx); err != nil {
			return err
		}
		defer in.Stop()
	}

	srv := server.NewServer(eng, cfg, logger.Named("http"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
