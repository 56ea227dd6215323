package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tradux/tradux/internal/cleanup"
	"github.com/tradux/tradux/internal/version"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "tradux",
		Short: "Click-to-translate text reader",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.Version = version.Info()
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default ~/.tradux/config.yaml)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.logFile, "log-file", "", "Path to save machine-readable JSONL logs")
	flags.BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API keys from environment variables")

	cmd.AddCommand(
		newAboutCmd(),
		newReadCmd(opts),
		newTranslateCmd(opts),
		newUsageCmd(opts),
		newStatsCmd(opts),
		newListCmd(),
		newEnvCmd(),
		newConfigCmd(opts),
	)

	cmd.InitDefaultCompletionCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "completion" {
			sub.Short = "Generate shell completion scripts"
			sub.SetUsageTemplate(subcommandUsageTemplate)
			break
		}
	}

	return cmd
}
