package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/auth"
	"github.com/tradux/tradux/internal/config"
	"github.com/tradux/tradux/internal/gemini"
	"github.com/tradux/tradux/internal/ledger"
	"github.com/tradux/tradux/internal/ledger/postgrest"
	"github.com/tradux/tradux/internal/ledger/sqlite"
	"github.com/tradux/tradux/internal/mymemory"
	"github.com/tradux/tradux/internal/openai"
	"github.com/tradux/tradux/internal/translator"
)

// KeyFunc resolves an API key for a credential service. It mirrors
// auth.GetKey.
type KeyFunc func(service string, allowEnv bool) (key, source string)

// Store is a ledger that may also answer admin statistics.
type Store interface {
	ledger.Ledger
	ledger.StatsReader
}

var openSQLite = func(path string) (Store, func() error, error) {
	s, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// OpenLedger builds the usage ledger selected by cfg.
func OpenLedger(cfg config.Config, keys KeyFunc, allowEnv bool) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Ledger {
	case config.LedgerMemory:
		return ledger.NewMemory(), noop, nil
	case config.LedgerSQLite:
		return openSQLite(cfg.LedgerPath)
	case config.LedgerPostgREST:
		key, _ := keys(auth.Ledger, allowEnv)
		if key == "" {
			return nil, nil, fmt.Errorf("no API key for the usage ledger: run 'tradux env setup --service ledger' or set %s", auth.EnvVar(auth.Ledger))
		}
		c, err := postgrest.New(cfg.LedgerURL, key)
		if err != nil {
			return nil, nil, err
		}
		return c, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger %q", cfg.Ledger)
	}
}

// NewTranslator builds the configured provider wrapped with the request
// timeout and QPS limit.
func NewTranslator(ctx context.Context, cfg config.Config, keys KeyFunc, allowEnv bool) (translator.Translator, func() error, error) {
	var (
		base    translator.Translator
		closeFn = func() error { return nil }
	)
	switch cfg.Provider {
	case config.ProviderMyMemory:
		key, _ := keys(auth.MyMemory, allowEnv)
		base = mymemory.NewClient(mymemory.Options{
			Endpoint:    cfg.MyMemoryEndpoint,
			RapidAPIKey: key,
			Email:       cfg.MyMemoryEmail,
		})
	case config.ProviderGemini:
		key, _ := keys(auth.Gemini, allowEnv)
		if key == "" {
			return nil, nil, missingKey(auth.Gemini)
		}
		c, err := gemini.NewClient(ctx, key, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		base, closeFn = c, c.Close
	case config.ProviderOpenAI:
		key, _ := keys(auth.OpenAI, allowEnv)
		if key == "" {
			return nil, nil, missingKey(auth.OpenAI)
		}
		base = openai.NewClient(key, cfg.Model)
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	tr := translator.WithTimeout(base, timeoutOrDefault(cfg.RequestTimeout))
	return translator.WithRateLimit(tr, translator.NewLimiter(cfg.ProviderQPS)), closeFn, nil
}

func missingKey(service string) error {
	return apperrors.New(apperrors.KindAuth,
		fmt.Sprintf("No %s API key found: run 'tradux env setup --service %s' or set %s.", auth.Label(service), service, auth.EnvVar(service)),
		nil,
	)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Second
	}
	return d
}
