package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/dedupow/libdedupow-go/pow"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within
// acceptable ranges and returns the first error encountered, or nil if
// valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if _, err := pow.ParseSuite(cfg.HashSuite); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHashSuite, cfg.HashSuite)
	}

	if cfg.BlockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, cfg.BlockSize)
	}

	if cfg.ChallengeTTL < 0 {
		return fmt.Errorf("%w: challengettl must not be negative", ErrInvalidConfigValue)
	}
	if cfg.SweepInterval < 0 {
		return fmt.Errorf("%w: sweepinterval must not be negative", ErrInvalidConfigValue)
	}
	if cfg.MaxUpload <= 0 {
		return fmt.Errorf("%w: maxupload must be positive", ErrInvalidConfigValue)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfigValue)
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
