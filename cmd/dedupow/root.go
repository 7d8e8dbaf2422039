package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dedupow/libdedupow-go/client"
	"github.com/dedupow/libdedupow-go/config"
	"github.com/dedupow/libdedupow-go/discovery"
	"github.com/dedupow/libdedupow-go/pow"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	Server     string // service base URL for claimant commands
	ConfigPath string // config file path override
	DataDir    string // data directory override
	LogLevel   string // log level override
}

var (
	flags  globalFlags
	cfg    config.Config
	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "dedupow",
	Short: "Proof-of-ownership deduplication service and client",
	Long: `dedupow runs a deduplicating storage service and talks to one.

The service stores content under its SHA-256 tag. When a claimant offers
content the service already holds, the service challenges the claimant
with a random seed instead of accepting the bytes again; the claimant
answers with a hash chain over the content's blocks, each block masked
with a seed-derived value. A correct answer proves the claimant holds
the full content, and the upload is skipped.

Server side:
  dedupow serve                 run the storage service

Claimant side:
  dedupow tag <file>            print a file's content tag
  dedupow check <file>          ask the service whether it holds the file
  dedupow upload <file>         upload, or prove ownership if it exists
  dedupow prove <file> <seed>   answer a challenge locally`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return initLogger()
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.Server, "server", "http://localhost:8080", "service base URL")
	rootCmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file (default {datadir}/config)")
	rootCmd.PersistentFlags().StringVar(&flags.DataDir, "datadir", "", "data directory (default ~/.dedupow)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "loglevel", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(proveCmd)
	rootCmd.AddCommand(configCmd)
}

// initConfig layers configuration: defaults, then the config file, then
// command-line flags.
func initConfig() error {
	path := flags.ConfigPath
	if path == "" {
		dataDir := flags.DataDir
		if dataDir == "" {
			dataDir = config.DefaultDataDir()
		}
		path = config.ConfigPath(dataDir)
	}

	loaded, err := config.LoadConfig(path)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return err
	}
	cfg = loaded

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	return nil
}

// initLogger applies the configured level and output to the shared logger.
func initLogger() error {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
	}
	return nil
}

// newClient builds a protocol client with the configured suite, block
// size, and prover parallelism.
func newClient(baseURL string) (*client.Client, error) {
	suite, err := pow.ParseSuite(cfg.HashSuite)
	if err != nil {
		return nil, err
	}
	return client.New(baseURL,
		client.WithSuite(suite),
		client.WithBlockSize(cfg.BlockSize),
		client.WithWorkers(cfg.Workers),
	), nil
}

// resolveServer picks the service base URL: an SRV/TXT lookup when a
// domain is given, the --server flag otherwise. With dnssec set the
// lookup must come back authenticated (AD flag) or it fails.
func resolveServer(domain string, dnssec bool) (string, error) {
	if domain == "" {
		if dnssec {
			return "", fmt.Errorf("--dnssec requires --domain")
		}
		return flags.Server, nil
	}
	if dnssec {
		return discovery.ResolveBaseURLWithResolver(domain, discovery.NewDNSSECResolver())
	}
	return discovery.ResolveBaseURL(domain)
}
