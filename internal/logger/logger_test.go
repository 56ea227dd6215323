package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestPrettyHandler_Structural(t *testing.T) {
	var buf bytes.Buffer
	opts := &slog.HandlerOptions{Level: LevelDebug}
	h := NewPrettyHandler(&buf, opts, false)
	l := slog.New(h)

	t.Run("WithAttrs", func(t *testing.T) {
		buf.Reset()
		l.With("request_id", 7).Info("translation applied", "kind", "word")

		output := buf.String()
		if !strings.Contains(output, "request_id=7") {
			t.Errorf("output missing persistent attr: %q", output)
		}
		if !strings.Contains(output, "kind=word") {
			t.Errorf("output missing record attr: %q", output)
		}
	})

	t.Run("NestedGroups", func(t *testing.T) {
		buf.Reset()
		l.WithGroup("quota").WithGroup("check").With("limit", 500).Info("msg")

		output := buf.String()
		if !strings.Contains(output, "quota.check.limit=500") {
			t.Errorf("output missing nested grouped attr: %q", output)
		}
	})

	t.Run("OneLinePerRecord", func(t *testing.T) {
		buf.Reset()
		l.Info("a")
		l.Warn("b")
		if got := strings.Count(buf.String(), "\n"); got != 2 {
			t.Errorf("expected 2 lines, got %d: %q", got, buf.String())
		}
	})
}

func TestRedactAttr(t *testing.T) {
	t.Run("KeyBasedRedaction", func(t *testing.T) {
		got := RedactAttr(nil, slog.String("api_key", "sk-1234567890abcdef"))
		if got.Value.String() != "[REDACTED]" {
			t.Fatalf("expected redaction, got %q", got.Value.String())
		}
	})

	t.Run("ReaderTextRedaction", func(t *testing.T) {
		for _, key := range []string{"text", "word", "translated_text", "selection"} {
			got := RedactAttr(nil, slog.String(key, "Hallo Welt"))
			if got.Value.String() != "[REDACTED]" {
				t.Fatalf("expected %s to be redacted, got %q", key, got.Value.String())
			}
		}
	})

	t.Run("ValuePatternRedaction", func(t *testing.T) {
		got := RedactAttr(nil, slog.String("message", "bearer sk-1234567890abcdef"))
		if got.Value.String() != "[REDACTED]" {
			t.Fatalf("expected redaction, got %q", got.Value.String())
		}
	})

	t.Run("SessionMasked", func(t *testing.T) {
		got := RedactAttr(nil, slog.String("session_id", "0b6e7a52-5a4f-4c8e-9d0e-2f1c3b4a5d6e"))
		if got.Value.String() != "0b6e7a52…" {
			t.Fatalf("expected masked session, got %q", got.Value.String())
		}
	})

	t.Run("NonSensitive", func(t *testing.T) {
		got := RedactAttr(nil, slog.Int("remaining", 20))
		if got.Value.Int64() != 20 {
			t.Fatalf("unexpected redaction: %v", got.Value)
		}
	})
}

func TestPrettyHandler_NoColorWhenNotTTY(t *testing.T) {
	prevIsTerminal := isTerminal
	isTerminal = func(_ int) bool { return false }
	defer func() { isTerminal = prevIsTerminal }()

	prevStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	defer func() { os.Stderr = prevStderr }()

	Init(LevelInfo, nil)
	Info("test message", "state", "idle")

	_ = w.Close()
	out, _ := io.ReadAll(r)
	if strings.Contains(string(out), "\033[") {
		t.Fatalf("unexpected ANSI codes in output: %q", string(out))
	}
}

func TestInit_JSONLCopy(t *testing.T) {
	prevStderr := os.Stderr
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	os.Stderr = devNull
	defer func() {
		os.Stderr = prevStderr
		_ = devNull.Close()
		Init(LevelInfo, nil)
	}()

	var logBuf bytes.Buffer
	Init(LevelInfo, &logBuf)
	Info("quota checked", "remaining", 20, "text", "secret words")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(logBuf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", logBuf.String(), err)
	}
	if rec["msg"] != "quota checked" {
		t.Fatalf("unexpected msg: %v", rec["msg"])
	}
	if rec["text"] != "[REDACTED]" {
		t.Fatalf("expected redacted text in JSONL, got %v", rec["text"])
	}
}
