// Command topsellers fetches the Steam storefront global top sellers listing
// page by page with a bounded worker pool and writes the merged item list to
// a JSON file.
//
// Exit codes: 0 on success, 1 on fatal errors (configuration, strict-mode
// aggregation failure, output write failure), 2 when best-effort mode wrote
// a partial document.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// errPartialFailure marks a best-effort run that wrote a partial document.
var errPartialFailure = errors.New("partial failure")

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topsellers",
		Short: "One-shot batch fetcher for the Steam global top sellers listing.",
		Long: `topsellers fetches N pages of the Steam storefront global-top-sellers
listing concurrently, merges them in display-rank order, and writes the
result to a JSON file. Optionally it also fetches per-app details.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.{yaml,json,toml})")
	cmd.AddCommand(newFetchCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errPartialFailure) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
