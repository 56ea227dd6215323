package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tradux/tradux/internal/quota"
	"github.com/tradux/tradux/internal/reader"
	"github.com/tradux/tradux/internal/session"
)

func newUsageCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show today's translation usage for this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsage(cmd, g)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runUsage(cmd *cobra.Command, g *globalOptions) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	sessions := session.NewStore(cfg.SessionPath)
	if !sessions.Exists() {
		fmt.Fprintf(out, "No usage recorded yet. Daily limit: %d characters.\n", cfg.DailyLimit)
		return nil
	}
	id, err := sessions.ID()
	if err != nil {
		return err
	}

	store, closeStore, err := reader.OpenLedger(cfg, keyResolver, g.allowEnv)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signalContext()
	defer stop()

	sum, err := quota.NewGuard(store, cfg.DailyLimit).Summary(ctx, id)
	if err != nil {
		return err
	}
	printSummary(out, sum)
	return nil
}

func printSummary(out io.Writer, sum quota.Summary) {
	fmt.Fprintf(out, "Today: %d / %d characters (%.0f%%), %d remaining\n",
		sum.TodayUsage, sum.Limit, sum.Percent, sum.Remaining)
	fmt.Fprintf(out, "All time: %d characters\n", sum.TotalUsage)
	if sum.NearLimit {
		fmt.Fprintln(out, "Warning: close to the daily limit.")
	}
}
