package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dedupow/libdedupow-go/blocks"
)

var (
	uploadDomainFlag string
	uploadNameFlag   string
	uploadDNSSECFlag bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file, or prove ownership if the service has it",
	Long: `Run the full claimant flow: tag the file, ask the service whether
it already holds the content, then either upload the bytes or answer
the service's challenge with a locally computed proof.

With --domain the service is located through DNS (_dedupow._tcp SRV
records, or a dedupow= TXT base URL) instead of --server. Adding
--dnssec requires the DNS answers to be validated by the resolver;
unauthenticated answers fail the lookup.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL, err := resolveServer(uploadDomainFlag, uploadDNSSECFlag)
		if err != nil {
			return err
		}
		c, err := newClient(baseURL)
		if err != nil {
			return err
		}

		name := uploadNameFlag
		if name == "" {
			name = filepath.Base(args[0])
		}

		res, err := c.AttemptUpload(cmd.Context(), blocks.FileSource{Path: args[0]}, name)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case !res.Deduplicated:
			fmt.Fprintf(out, "uploaded %s\n", name)
		case res.Verified:
			fmt.Fprintln(out, "ownership verified, upload skipped")
		default:
			return fmt.Errorf("ownership proof rejected for tag %s", res.Tag)
		}
		fmt.Fprintf(out, "tag: %s\n", res.Tag)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadDomainFlag, "domain", "", "locate the service via DNS for this domain")
	uploadCmd.Flags().BoolVar(&uploadDNSSECFlag, "dnssec", false, "require DNSSEC-validated discovery answers")
	uploadCmd.Flags().StringVar(&uploadNameFlag, "name", "", "filename to register (default: the file's base name)")
}
