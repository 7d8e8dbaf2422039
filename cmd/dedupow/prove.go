package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dedupow/libdedupow-go/blocks"
	"github.com/dedupow/libdedupow-go/pow"
)

var proveCmd = &cobra.Command{
	Use:   "prove <file> <seed>",
	Short: "Answer an ownership challenge locally",
	Long: `Compute the proof for a challenge seed over a local file. The
printed proof answers the seed from a "dedupow check" response; submit
it before requesting another check, since each check replaces the
pending challenge.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := pow.ParseSeed(args[1])
		if err != nil {
			return err
		}
		suite, err := pow.ParseSuite(cfg.HashSuite)
		if err != nil {
			return err
		}

		prover := &pow.Prover{Suite: suite, BlockSize: cfg.BlockSize, Workers: cfg.Workers}
		proof, err := prover.Prove(blocks.FileSource{Path: args[0]}, seed)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), proof)
		return nil
	},
}
