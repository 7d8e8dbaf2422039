package config

import "errors"

var (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidConfigValue indicates a configuration value could not be
	// parsed or is out of range.
	ErrInvalidConfigValue = errors.New("config: invalid configuration value")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidHashSuite indicates the hash suite name is not recognized.
	ErrInvalidHashSuite = errors.New("config: invalid hash suite (must be \"sha256\" or \"blake2b256\")")

	// ErrInvalidBlockSize indicates the block size is not a positive number.
	ErrInvalidBlockSize = errors.New("config: invalid block size")
)
