package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/cli"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/config"
	"github.com/INFO-698-InfoSci-Capstone/summiva/pkg/utils"
)

const defaultConfigPath = "/usr/local/etc/summiva/config.yaml"

var (
	flagConfig string
	flagDebug  bool
	flagServer string
	flagFormat string
)

var rootCmd = &cobra.Command{
	Use:          "summiva",
	Short:        "Hybrid retrieval and document clustering",
	SilenceUsage: true,
	Long: `Summiva keeps a vector index and an incremental clustering of your documents,
and answers queries by fusing keyword and vector search.

Commands run against the local data directories unless --server points at a
running "summiva server", in which case they go through its HTTP API.`,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", defaultConfigPath, "config file path")
	pf.BoolVar(&flagDebug, "debug", false, "enable debug logging")
	pf.StringVar(&flagServer, "server", "", "server URL, e.g. http://localhost:8080 (empty = open local data)")
	pf.StringVarP(&flagFormat, "format", "o", "text", "output format: text or json")
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present; a missing default file means built-in defaults.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				cfg, err := config.Load(local)
				return cfg, local, err
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", config.Validate(cfg)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func outputFormat() (cli.OutputFormat, error) {
	return cli.ParseFormat(flagFormat)
}

// setup loads config and builds the command logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, _, err := loadConfig(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug || flagDebug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// openBackend returns the remote server when --server is set and reachable, otherwise the
// local engine.
func openBackend(ctx context.Context) (backend, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}
	if flagServer != "" {
		client := cli.NewClient(flagServer)
		if client.Ping(ctx) {
			return &remoteBackend{client: client}, nil
		}
		logger.Warn("server not reachable, opening local data", zap.String("server", flagServer))
	}
	eng, err := openEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &localBackend{engine: eng}, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
