// Package config loads and saves the flat key = value configuration file
// shared by the service and the CLI.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dedupow/libdedupow-go/blocks"
	"github.com/dedupow/libdedupow-go/challenge"
)

// Config holds every tunable of the service and the CLI.
type Config struct {
	// DataDir is the root directory for the bolt database and content store.
	DataDir string

	// ListenAddr is the host:port the HTTP service binds.
	ListenAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFile receives log output when set; empty logs to stderr.
	LogFile string

	// BlockSize is the proof segmentation granularity in bytes. Both
	// protocol sides must agree on it.
	BlockSize int

	// HashSuite names the protocol hash function (sha256 or blake2b256).
	HashSuite string

	// ChallengeTTL bounds challenge lifetime. Zero disables expiry.
	ChallengeTTL time.Duration

	// SweepInterval is how often expired challenges are evicted. Zero
	// disables the sweeper.
	SweepInterval time.Duration

	// MaxUpload caps upload request bodies in bytes.
	MaxUpload int64

	// Workers is how many goroutines hash blocks during verification.
	Workers int
}

// DefaultDataDir returns the per-user data directory (~/.dedupow).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dedupow"
	}
	return filepath.Join(home, ".dedupow")
}

// ConfigPath returns the config file path inside a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		DataDir:       DefaultDataDir(),
		ListenAddr:    ":8080",
		LogLevel:      "info",
		LogFile:       "",
		BlockSize:     blocks.DefaultBlockSize,
		HashSuite:     "sha256",
		ChallengeTTL:  challenge.DefaultTTL,
		SweepInterval: time.Minute,
		MaxUpload:     1 << 30,
		Workers:       1,
	}
}

// LoadConfig reads a config file. Values not present in the file keep
// their defaults; unknown keys are ignored so older binaries tolerate
// newer files.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return cfg, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	return cfg, nil
}

// set applies one key = value pair. Unknown keys are ignored.
func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "listen":
		c.ListenAddr = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "hashsuite":
		c.HashSuite = value
	case "blocksize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: blocksize %q", ErrInvalidConfigValue, value)
		}
		c.BlockSize = n
	case "challengettl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: challengettl %q", ErrInvalidConfigValue, value)
		}
		c.ChallengeTTL = d
	case "sweepinterval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: sweepinterval %q", ErrInvalidConfigValue, value)
		}
		c.SweepInterval = d
	case "maxupload":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: maxupload %q", ErrInvalidConfigValue, value)
		}
		c.MaxUpload = n
	case "workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: workers %q", ErrInvalidConfigValue, value)
		}
		c.Workers = n
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Dedupow Configuration\n")
	b.WriteString("# Generated file; edit freely, unknown keys are ignored.\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "listen = %s\n", cfg.ListenAddr)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	fmt.Fprintf(&b, "blocksize = %d\n", cfg.BlockSize)
	fmt.Fprintf(&b, "hashsuite = %s\n", cfg.HashSuite)
	fmt.Fprintf(&b, "challengettl = %s\n", cfg.ChallengeTTL)
	fmt.Fprintf(&b, "sweepinterval = %s\n", cfg.SweepInterval)
	fmt.Fprintf(&b, "maxupload = %d\n", cfg.MaxUpload)
	fmt.Fprintf(&b, "workers = %d\n", cfg.Workers)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
