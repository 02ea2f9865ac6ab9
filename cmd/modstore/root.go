package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-store/internal/manifest"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "modstore",
	Short: "Run store manifests",
	Long: `modstore loads a YAML manifest describing an initial state, modifiers and
calls, and runs it against an in-memory store while printing its snapshots.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
}

func loadManifest(path string) (*manifest.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return manifest.Load(f)
}
