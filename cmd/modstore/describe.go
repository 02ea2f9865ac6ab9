package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goliatone/go-store/tree"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <manifest>",
	Short: "List the leaf paths of a manifest's initial state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDescribe(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(w io.Writer, path string) error {
	m, err := loadManifest(path)
	if err != nil {
		return err
	}
	state, err := tree.NormalizeObject(m.State)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTYPE")
	for _, field := range tree.Describe(state) {
		fmt.Fprintf(tw, "%s\t%s\n", field.Path, field.Type)
	}
	return tw.Flush()
}
