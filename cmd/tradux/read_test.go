package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tradux/tradux/internal/text"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRead_SessionClickAndSelect(t *testing.T) {
	tr := &recordingTranslator{}
	withReaderStubs(t, tr, nil)
	path := writeFile(t, "story.txt", "The quick brown fox")

	input := strings.Join([]string{
		"click 2",
		"select 4:2 6:1 drag",
		"dismiss",
		"quit",
	}, "\n")
	out, err := executeCommandWithInput(t, input, "read", path, "--to", "de")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	for _, want := range []string{
		"Loaded " + path + ": 4 words",
		"[word #1] \"quick\" -> \"QUICK\"",
		"selected 4..6: \"brown fox\"",
		"[selection #2] \"brown fox\" -> \"BROWN FOX\"",
		"idle",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if len(tr.calls) != 2 {
		t.Fatalf("unexpected provider calls: %v", tr.calls)
	}
}

func TestRead_SessionErrorsDoNotEndSession(t *testing.T) {
	tr := &recordingTranslator{}
	withReaderStubs(t, tr, nil)
	path := writeFile(t, "story.txt", "one two")

	input := "click 1\nclick 99\nbogus\nlang xx en\nclick 0\n"
	out, err := executeCommandWithInput(t, input, "read", path)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "error: No actionable selection") {
		t.Errorf("expected whitespace click to be rejected:\n%s", out)
	}
	if !strings.Contains(out, "unknown command \"bogus\"") {
		t.Errorf("expected unknown command error:\n%s", out)
	}
	if !strings.Contains(out, "\"one\" -> \"ONE\"") {
		t.Errorf("session did not continue after errors:\n%s", out)
	}
}

func TestRead_SubtitleFile(t *testing.T) {
	tr := &recordingTranslator{}
	withReaderStubs(t, tr, nil)
	srt := "1\n00:00:01,000 --> 00:00:02,000\nHello there\n\n2\n00:00:03,000 --> 00:00:04,000\nGeneral Kenobi\n"
	path := writeFile(t, "movie.srt", srt)

	out, err := executeCommandWithInput(t, "show\nquit\n", "read", path)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, ": 4 words") || strings.Contains(out, "-->") {
		t.Fatalf("unexpected subtitle rendering:\n%s", out)
	}
}

func TestRead_UsageAndLang(t *testing.T) {
	tr := &recordingTranslator{}
	withReaderStubs(t, tr, nil)
	path := writeFile(t, "story.txt", "hola mundo")

	out, err := executeCommandWithInput(t, "lang es fr\nclick 0\nusage\n", "read", path)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "Translating Spanish -> French") {
		t.Errorf("missing lang confirmation:\n%s", out)
	}
	if !strings.Contains(out, "Today: 4 / 500 characters") {
		t.Errorf("missing usage line:\n%s", out)
	}
	if len(tr.pairs) != 1 || tr.pairs[0] != "es>fr" {
		t.Fatalf("unexpected pairs: %v", tr.pairs)
	}
}

func TestParseSelection(t *testing.T) {
	doc := text.NewDocument("alpha beta")

	sel, err := parseSelection(doc, "0:2", "2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sel.Anchor != (text.Boundary{Token: 0, Offset: 2}) || sel.Focus != (text.Boundary{Token: 2, Offset: 4}) {
		t.Fatalf("unexpected selection: %+v", sel)
	}
	if _, err := parseSelection(doc, "0", "5"); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := parseSelection(doc, "x", "1"); err == nil {
		t.Fatalf("expected invalid index error")
	}
}
