package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/janelia-flyem/recospark/internal/common/logger"
)

var (
	// Version information (set during build)
	Version = "dev"
	Commit  = "unknown"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "brickctl",
	Short: "Exercise the brick regridding and padding core from the command line",
	Long: `brickctl is a demonstration harness over the regridding core:
generate a brick wall over a local volume, realign it onto a new grid,
and downsample it, reporting Prometheus metrics along the way.

This is a thin driver, not a production pipeline runner; it exists to
exercise the wired storage, cache, and metrics dependencies end to end.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults embedded if omitted)")
	rootCmd.AddCommand(generateCmd, realignCmd, downsampleCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print brickctl's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("brickctl %s (%s)\n", Version, Commit)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("brickctl: %v", err)
		os.Exit(1)
	}
}
