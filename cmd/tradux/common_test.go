package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tradux/tradux/internal/config"
	"github.com/tradux/tradux/internal/reader"
	"github.com/tradux/tradux/internal/translator"
)

type keyStubs struct {
	promptCalls int
	keyCalls    int
	envCalls    int
	saved       map[string]string
	deleted     []string
}

func withKeyStubs(t *testing.T, terminal bool, promptVal string, keychainVal string, envVal string) *keyStubs {
	t.Helper()
	stubs := &keyStubs{saved: map[string]string{}}

	prevIsTerminal := isTerminal
	prevPrompt := promptForKey
	prevGetKey := getKey
	prevGetEnv := getEnvKey
	prevSave := saveKey
	prevDelete := deleteKey
	prevStatus := getStatus

	isTerminal = func(_ int) bool { return terminal }
	promptForKey = func(_ string) (string, error) {
		stubs.promptCalls++
		return promptVal, nil
	}
	getKey = func(_ string, _ bool) (string, string) {
		stubs.keyCalls++
		if keychainVal == "" {
			return "", ""
		}
		return keychainVal, "Keychain"
	}
	getEnvKey = func(_ string) (string, bool) {
		stubs.envCalls++
		if envVal == "" {
			return "", false
		}
		return envVal, true
	}
	getStatus = func(_ string) bool { return keychainVal != "" }
	saveKey = func(svc, key string) error {
		stubs.saved[svc] = key
		return nil
	}
	deleteKey = func(svc string) error {
		stubs.deleted = append(stubs.deleted, svc)
		return nil
	}

	t.Cleanup(func() {
		isTerminal = prevIsTerminal
		promptForKey = prevPrompt
		getKey = prevGetKey
		getEnvKey = prevGetEnv
		saveKey = prevSave
		deleteKey = prevDelete
		getStatus = prevStatus
	})
	return stubs
}

// withReaderStubs makes commands run against a memory ledger, a temp
// session file and tr instead of a real provider.
func withReaderStubs(t *testing.T, tr translator.Translator, mutate func(*config.Config)) {
	t.Helper()
	dir := t.TempDir()

	prevLoad := loadConfig
	prevNew := newReader
	loadConfig = func(string) (config.Config, error) {
		cfg := config.Default()
		cfg.Ledger = config.LedgerMemory
		cfg.SessionPath = filepath.Join(dir, "session_id")
		cfg.LedgerPath = filepath.Join(dir, "usage.db")
		cfg.DebounceDelay = 10 * time.Millisecond
		if mutate != nil {
			mutate(&cfg)
		}
		return cfg, nil
	}
	newReader = func(ctx context.Context, cfg config.Config, opts reader.Options) (*reader.Reader, error) {
		opts.Translator = tr
		return reader.New(ctx, cfg, opts)
	}
	t.Cleanup(func() {
		loadConfig = prevLoad
		newReader = prevNew
	})
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommandWithInput(t, "", args...)
}

func executeCommandWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(bytes.NewBufferString(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestKeyResolver_KeychainFirst(t *testing.T) {
	stubs := withKeyStubs(t, true, "", "keychain-key", "env-key")

	key, source := keyResolver("gemini", true)
	if key != "keychain-key" || source != "Keychain" {
		t.Fatalf("unexpected key/source: %q %q", key, source)
	}
	if stubs.envCalls != 0 {
		t.Fatalf("env should not be consulted when keychain has a key")
	}
}

func TestKeyResolver_EnvOnlyWhenAllowed(t *testing.T) {
	stubs := withKeyStubs(t, true, "", "", "env-key")

	if key, _ := keyResolver("openai", false); key != "" {
		t.Fatalf("env key used without --allow-env: %q", key)
	}
	if stubs.envCalls != 0 {
		t.Fatalf("env consulted without --allow-env")
	}

	key, source := keyResolver("openai", true)
	if key != "env-key" || source != "Environment Variable" {
		t.Fatalf("unexpected key/source: %q %q", key, source)
	}
}

func TestResolveLanguageCode(t *testing.T) {
	tests := []struct {
		input   string
		source  bool
		want    string
		wantErr bool
	}{
		{input: "fr", want: "fr"},
		{input: "French", want: "fr"},
		{input: "  german ", want: "de"},
		{input: "pt-BR", want: "pt"},
		{input: "auto", source: true, want: "auto"},
		{input: "auto", wantErr: true},
		{input: "klingon", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := resolveLanguageCode(tt.input, tt.source)
		if tt.wantErr {
			if err == nil {
				t.Errorf("resolveLanguageCode(%q, %v) expected error, got %q", tt.input, tt.source, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("resolveLanguageCode(%q, %v) = %q, %v; want %q", tt.input, tt.source, got, err, tt.want)
		}
	}
}

func TestLangOptionsApply(t *testing.T) {
	cfg := config.Default()
	if err := (langOptions{source: "Spanish", target: "ja"}).apply(&cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.SourceLang != "es" || cfg.TargetLang != "ja" {
		t.Fatalf("unexpected pair: %s -> %s", cfg.SourceLang, cfg.TargetLang)
	}
	if err := (langOptions{target: "auto"}).apply(&cfg); err == nil {
		t.Fatalf("expected auto target to be rejected")
	}
}

func TestValidService(t *testing.T) {
	if svc, err := validService(" Gemini "); err != nil || svc != "gemini" {
		t.Fatalf("unexpected: %q %v", svc, err)
	}
	if _, err := validService("deepl"); err == nil {
		t.Fatalf("expected invalid service error")
	}
}
