package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tradux/tradux/internal/language"
	"github.com/tradux/tradux/internal/ledger"
	"github.com/tradux/tradux/internal/reader"
)

const dateLayout = "2006-01-02"

// dateValue is a YYYY-MM-DD flag. endOfDay makes the date inclusive as an
// upper bound.
type dateValue struct {
	t        *time.Time
	endOfDay bool
}

var _ pflag.Value = (*dateValue)(nil)

func (d *dateValue) String() string {
	if d.t == nil || d.t.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d *dateValue) Set(s string) error {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("expected YYYY-MM-DD")
	}
	if d.endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	*d.t = t
	return nil
}

func (d *dateValue) Type() string { return "date" }

type statsOptions struct {
	filter ledger.StatsFilter
	source string
	target string
}

func newStatsCmd(g *globalOptions) *cobra.Command {
	opts := &statsOptions{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate usage across all sessions in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, g, opts)
		},
	}
	flags := cmd.Flags()
	flags.Var(&dateValue{t: &opts.filter.Since}, "since", "Only count records on or after this UTC date (YYYY-MM-DD)")
	flags.Var(&dateValue{t: &opts.filter.Until, endOfDay: true}, "until", "Only count records on or before this UTC date (YYYY-MM-DD)")
	flags.StringVar(&opts.source, "source", "", "Only count this source language")
	flags.StringVar(&opts.target, "target", "", "Only count this target language")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runStats(cmd *cobra.Command, g *globalOptions, opts *statsOptions) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}
	filter := opts.filter
	if opts.source != "" {
		if filter.SourceLang, err = resolveLanguageCode(opts.source, true); err != nil {
			return err
		}
	}
	if opts.target != "" {
		if filter.TargetLang, err = resolveLanguageCode(opts.target, false); err != nil {
			return err
		}
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return fmt.Errorf("--until is before --since")
	}

	store, closeStore, err := reader.OpenLedger(cfg, keyResolver, g.allowEnv)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signalContext()
	defer stop()

	stats, err := store.Stats(ctx, filter, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total characters: %d\n", stats.TotalCharacters)
	fmt.Fprintf(out, "Today:            %d\n", stats.TodayCharacters)
	fmt.Fprintf(out, "Sessions:         %d\n", stats.UniqueSessions)
	if len(stats.TopTargetLanguages) > 0 {
		fmt.Fprintln(out, "\nTop target languages:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, lt := range stats.TopTargetLanguages {
			fmt.Fprintf(w, "  %s\t%d\n", language.Name(lt.Language), lt.Characters)
		}
		w.Flush()
	}
	if len(stats.Recent) > 0 {
		fmt.Fprintln(out, "\nRecent:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, rec := range stats.Recent {
			fmt.Fprintf(w, "  %s\t%s -> %s\t%d\n", rec.CreatedAt.UTC().Format(time.DateTime), rec.SourceLang, rec.TargetLang, rec.Characters)
		}
		w.Flush()
	}
	return nil
}
