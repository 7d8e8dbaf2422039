package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dedupow/libdedupow-go/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the dedupow configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to disk",
	Long: `Write the effective configuration (defaults merged with any
existing file and command line flags) to the data directory, creating
it if necessary.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateConfig(cfg); err != nil {
			return err
		}
		path := config.ConfigPath(cfg.DataDir)
		if err := config.SaveConfig(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "datadir = %s\n", cfg.DataDir)
		fmt.Fprintf(out, "listen = %s\n", cfg.ListenAddr)
		fmt.Fprintf(out, "loglevel = %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "logfile = %s\n", cfg.LogFile)
		fmt.Fprintf(out, "hashsuite = %s\n", cfg.HashSuite)
		fmt.Fprintf(out, "blocksize = %d\n", cfg.BlockSize)
		fmt.Fprintf(out, "challengettl = %s\n", cfg.ChallengeTTL)
		fmt.Fprintf(out, "sweepinterval = %s\n", cfg.SweepInterval)
		fmt.Fprintf(out, "maxupload = %d\n", cfg.MaxUpload)
		fmt.Fprintf(out, "workers = %d\n", cfg.Workers)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
