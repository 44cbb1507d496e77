// pulse-bench drives synthetic reactive graphs against the runtime and
// reports throughput and flush latency.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulse-bench",
		Short: "Benchmark harness for the pulse reactive runtime",
		Long: `pulse-bench runs synthetic reactive workloads against the runtime
and reports throughput, flush latency percentiles, and allocation counts.

Workloads are described by profiles. Built-in profiles cover a wide
fan-out graph, a deep computed chain, and effect churn; a YAML file can
add or override profiles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		profilesCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pulse-bench %s (%s)\n", version, commit)
		},
	}
}
