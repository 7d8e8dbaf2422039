package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dedupow/libdedupow-go/blocks"
	"github.com/dedupow/libdedupow-go/pow"
)

var checkTagFlag string

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Ask the service whether it already holds content",
	Long: `Ask the service whether it already holds the given file (or the
tag passed with --tag). A duplicate answer carries a challenge seed;
pass it to "dedupow prove" to compute the ownership proof.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tag pow.Tag
		var err error

		switch {
		case checkTagFlag != "":
			tag, err = pow.ParseTag(checkTagFlag)
			if err != nil {
				return err
			}
		case len(args) == 1:
			suite, suiteErr := pow.ParseSuite(cfg.HashSuite)
			if suiteErr != nil {
				return suiteErr
			}
			tag, err = pow.ComputeTag(suite, blocks.FileSource{Path: args[0]})
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("pass a file or --tag")
		}

		c, err := newClient(flags.Server)
		if err != nil {
			return err
		}

		res, err := c.CheckFile(cmd.Context(), tag)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !res.Exists {
			fmt.Fprintln(out, "new")
			return nil
		}
		fmt.Fprintln(out, "exists")
		fmt.Fprintf(out, "seed: %s\n", res.Seed)
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkTagFlag, "tag", "", "check a tag instead of a file")
}
