// Command trustd runs the trust score pipelines: chain event ingestion,
// score aggregation, on-chain publication, the query API, and snapshot
// exports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "trustd <command>",
	Short:        "Trust score indexer and oracle daemon",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
