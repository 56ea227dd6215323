package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/language"
	"github.com/tradux/tradux/internal/orchestrator"
	"github.com/tradux/tradux/internal/reader"
	"github.com/tradux/tradux/internal/text"
)

func newReadCmd(g *globalOptions) *cobra.Command {
	langs := langOptions{}
	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Open a text or subtitle file in an interactive reading session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, g, langs, args[0])
		},
	}
	addLangFlags(cmd, &langs)
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func addLangFlags(cmd *cobra.Command, l *langOptions) {
	cmd.Flags().StringVarP(&l.source, "from", "s", "", "Source language code or name (auto to detect)")
	cmd.Flags().StringVarP(&l.target, "to", "t", "", "Target language code or name")
}

func runRead(cmd *cobra.Command, g *globalOptions, langs langOptions, path string) error {
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

	doc, err := r.LoadFile(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %s: %d words. Translating %s -> %s. Type 'help' for commands.\n\n",
		path, doc.WordCount(), language.Name(cfg.SourceLang), language.Name(cfg.TargetLang))
	printDocument(out, doc)
	return runSession(ctx, r, cmd.InOrStdin(), out)
}

var errQuit = errors.New("quit")

// runSession reads commands from in until EOF or quit.
func runSession(ctx context.Context, r *reader.Reader, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		err := execLine(ctx, r, scanner.Text(), out)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "error: %s\n", apperrors.PublicMessage(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func execLine(ctx context.Context, r *reader.Reader, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		fmt.Fprint(out, sessionHelp)
	case "show":
		printDocument(out, r.Document())
	case "state":
		printState(out, r.State())
	case "dismiss":
		r.Dismiss()
		printState(out, r.State())
	case "click":
		if len(args) != 1 {
			return fmt.Errorf("usage: click <i>")
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid token index %q", args[0])
		}
		if _, err := r.Click(ctx, i); err != nil {
			return err
		}
		r.Wait()
		printState(out, r.State())
	case "select":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("usage: select <i>[:off] <j>[:off] [drag]")
		}
		sel, err := parseSelection(r.Document(), args[0], args[1])
		if err != nil {
			return err
		}
		dragged := len(args) == 3 && strings.EqualFold(args[2], "drag")
		exp, err := r.Select(ctx, sel, dragged)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "selected %d..%d: %q\n", exp.Span.Start, exp.Span.End, exp.Text)
		r.Wait()
		printState(out, r.State())
	case "lang":
		if len(args) != 2 {
			return fmt.Errorf("usage: lang <source> <target>")
		}
		src, err := resolveLanguageCode(args[0], true)
		if err != nil {
			return err
		}
		tgt, err := resolveLanguageCode(args[1], false)
		if err != nil {
			return err
		}
		r.SetLanguages(src, tgt)
		fmt.Fprintf(out, "Translating %s -> %s\n", language.Name(src), language.Name(tgt))
	case "usage":
		sum, err := r.Usage(ctx)
		if err != nil {
			return err
		}
		printSummary(out, sum)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return nil
}

// parseSelection reads "i" or "i:off" boundaries. A bare start index means
// offset 0; a bare end index means the end of that token.
func parseSelection(doc *text.Document, from, to string) (text.Selection, error) {
	start, err := parseBoundary(doc, from, false)
	if err != nil {
		return text.Selection{}, err
	}
	end, err := parseBoundary(doc, to, true)
	if err != nil {
		return text.Selection{}, err
	}
	return text.Selection{Anchor: start, Focus: end}, nil
}

func parseBoundary(doc *text.Document, s string, atEnd bool) (text.Boundary, error) {
	idxStr, offStr, hasOff := strings.Cut(s, ":")
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return text.Boundary{}, fmt.Errorf("invalid token index %q", idxStr)
	}
	tok, ok := doc.Token(idx)
	if !ok {
		return text.Boundary{}, fmt.Errorf("token index %d out of range", idx)
	}
	b := text.Boundary{Token: idx}
	switch {
	case hasOff:
		off, err := strconv.Atoi(offStr)
		if err != nil {
			return text.Boundary{}, fmt.Errorf("invalid offset %q", offStr)
		}
		b.Offset = off
	case atEnd:
		b.Offset = len(tok.Text)
	}
	return b, nil
}

func printDocument(out io.Writer, doc *text.Document) {
	var b strings.Builder
	for _, t := range doc.Tokens() {
		if t.IsWhitespace {
			b.WriteString(t.Text)
			continue
		}
		fmt.Fprintf(&b, "%s\x1b[2m[%d]\x1b[0m", t.Text, t.Index)
	}
	fmt.Fprintln(out, b.String())
	fmt.Fprintln(out)
}

func printState(out io.Writer, s orchestrator.State) {
	switch s.Phase {
	case orchestrator.Idle:
		fmt.Fprintln(out, "idle")
		return
	case orchestrator.ShowingResult:
		fmt.Fprintf(out, "[%s #%d] %q -> %q", s.Kind(), s.Request.ID, s.Request.Text, s.Result.TranslatedText)
		if s.Result.DetectedSourceLanguage != "" {
			fmt.Fprintf(out, " (detected: %s)", language.Name(s.Result.DetectedSourceLanguage))
		}
		fmt.Fprintln(out)
	case orchestrator.ShowingError:
		fmt.Fprintf(out, "[%s #%d] %s\n", s.Kind(), s.Request.ID, s.Message)
	default:
		fmt.Fprintf(out, "[%s #%d] %s\n", s.Kind(), s.Request.ID, s.Phase)
	}
	side := "above"
	if s.Placement.Flip {
		side = "below"
	}
	fmt.Fprintf(out, "  popup at (%.0f, %.0f), %s the text\n", s.Placement.AnchorX, s.Placement.AnchorY, side)
}
