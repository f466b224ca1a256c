package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	vaultRoot string
	cfgFile   string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Autonomous knowledge-vault heartbeat",
	Long: `heartbeat runs the perception, evaluation, execution, and maintenance
cycle over a knowledge vault: a directory of markdown thoughts, an inbox,
self-state, and operational queue/commitment records.

Commands:
  run    Run one heartbeat cycle
  graph  Print the thought-graph topology without running a cycle`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&vaultRoot, "vault", ".", "Path to the vault root")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a config file (overrides vault/home config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func verbosePrintf(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format, args...)
	}
}
