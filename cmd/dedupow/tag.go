package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dedupow/libdedupow-go/blocks"
	"github.com/dedupow/libdedupow-go/pow"
)

var tagCmd = &cobra.Command{
	Use:   "tag <file>",
	Short: "Print a file's content tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		suite, err := pow.ParseSuite(cfg.HashSuite)
		if err != nil {
			return err
		}

		tag, err := pow.ComputeTag(suite, blocks.FileSource{Path: args[0]})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), tag)
		return nil
	},
}
