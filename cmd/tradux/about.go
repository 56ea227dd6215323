package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradux/tradux/internal/version"
)

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show a short description and link",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "tradux: click-to-translate text reader")
			fmt.Fprintln(out, version.Info())
			fmt.Fprintln(out, "https://github.com/tradux/tradux")
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
