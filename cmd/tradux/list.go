package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradux/tradux/internal/language"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List supported languages",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Source Languages:")
			for _, l := range language.SourceOptions() {
				fmt.Fprintf(out, "  %-20s [%s]\n", l.Name, l.Code)
			}
			fmt.Fprintln(out, "\nTarget Languages:")
			for _, l := range language.Supported() {
				fmt.Fprintf(out, "  %-20s [%s]\n", l.Name, l.Code)
			}
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
