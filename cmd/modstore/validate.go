package main

import (
	"fmt"
	"io"

	"github.com/goliatone/go-store/internal/manifest"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <manifest>",
	Short: "Check a manifest and compile its expressions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(w io.Writer, path string) error {
	m, err := loadManifest(path)
	if err != nil {
		return err
	}
	mods, err := manifest.Build(m, nil)
	if err != nil {
		return err
	}
	reducers := 0
	for _, mod := range mods {
		reducers += len(mod.Reducers)
	}
	fmt.Fprintf(w, "%s is valid: %d modifiers, %d reducers, %d calls\n", path, len(mods), reducers, len(m.Calls))
	return nil
}
