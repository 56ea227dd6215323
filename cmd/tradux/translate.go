package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradux/tradux/internal/orchestrator"
	"github.com/tradux/tradux/internal/reader"
	"github.com/tradux/tradux/internal/text"
)

func newTranslateCmd(g *globalOptions) *cobra.Command {
	langs := langOptions{}
	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate one word or phrase through the quota and provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, g, langs, strings.Join(args, " "))
		},
	}
	addLangFlags(cmd, &langs)
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runTranslate(cmd *cobra.Command, g *globalOptions, langs langOptions, input string) error {
	cfg, err := g.setup()
	if err != nil {
		return err
	}
	if err := langs.apply(&cfg); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	r, err := newReader(ctx, cfg, reader.Options{Keys: keyResolver, AllowEnv: g.allowEnv})
	if err != nil {
		return err
	}
	defer r.Close()

	doc := r.SetText(input)
	first, last := -1, -1
	for _, t := range doc.Tokens() {
		if t.IsWhitespace {
			continue
		}
		if first < 0 {
			first = t.Index
		}
		last = t.Index
	}
	if first < 0 {
		return fmt.Errorf("nothing to translate")
	}

	if first == last {
		_, err = r.Click(ctx, first)
	} else {
		lastTok, _ := doc.Token(last)
		_, err = r.Select(ctx, text.Selection{
			Anchor: text.Boundary{Token: first},
			Focus:  text.Boundary{Token: last, Offset: len(lastTok.Text)},
		}, true)
	}
	if err != nil {
		return err
	}
	r.Wait()

	s := r.State()
	switch s.Phase {
	case orchestrator.ShowingResult:
		fmt.Fprintln(cmd.OutOrStdout(), s.Result.TranslatedText)
		return nil
	case orchestrator.ShowingError:
		return errors.New(s.Message)
	default:
		return fmt.Errorf("translation did not complete (%s)", s.Phase)
	}
}
