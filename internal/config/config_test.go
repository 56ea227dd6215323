package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "auto", cfg.SourceLang)
	assert.Equal(t, 500, cfg.DailyLimit)
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceDelay)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "none.yaml"), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ProviderMyMemory, cfg.Provider)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: Gemini
target_lang: de
daily_limit: 800
debounce_delay: 500ms
ledger: memory
`), 0o600))

	cfg, err := load(path, map[string]string{
		"TRADUX_TARGET_LANG": "fr",
		"TRADUX_DEBUG":       "true",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "fr", cfg.TargetLang)
	assert.Equal(t, 800, cfg.DailyLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceDelay)
	assert.Equal(t, LedgerMemory, cfg.Ledger)
	assert.True(t, cfg.Debug)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		want    string
	}{
		{"provider", map[string]string{"TRADUX_PROVIDER": "deepl"}, "unknown provider"},
		{"target auto", map[string]string{"TRADUX_TARGET_LANG": "auto"}, "auto"},
		{"limit", map[string]string{"TRADUX_DAILY_LIMIT": "0"}, "daily_limit"},
		{"postgrest url", map[string]string{"TRADUX_LEDGER": "postgrest"}, "ledger_url"},
		{"bad int", map[string]string{"TRADUX_DAILY_LIMIT": "lots"}, "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(filepath.Join(t.TempDir(), "none.yaml"), tt.environ)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [oops"), 0o600))
	_, err := load(path, map[string]string{})
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestNormalize(t *testing.T) {
	cfg := Default()
	cfg.Provider = " OpenAI "
	cfg.DebounceDelay = time.Millisecond
	cfg.ProviderQPS = 500
	notes := cfg.Normalize()
	assert.Len(t, notes, 2)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, minDebounce, cfg.DebounceDelay)
	assert.Equal(t, float64(maxProviderQPS), cfg.ProviderQPS)
	assert.Empty(t, cfg.Normalize())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Provider = ProviderOpenAI
	cfg.DebounceDelay = 450 * time.Millisecond
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := load(path, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
