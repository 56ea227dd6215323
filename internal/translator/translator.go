// Package translator defines the translation capability the reader engine
// depends on, and provider-independent wrappers around it.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/language"
)

// Result is a successful translation.
type Result struct {
	TranslatedText string
	// DetectedSourceLanguage is empty when the provider did not report one.
	DetectedSourceLanguage string
}

// Translator translates text. Implementations return apperrors provider
// kinds on transport, HTTP or parse failures.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error)
}

// Func adapts a function to Translator.
type Func func(ctx context.Context, text, sourceLang, targetLang string) (Result, error)

func (f Func) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	return f(ctx, text, sourceLang, targetLang)
}

// WithTimeout bounds every call to next. A call that runs out of time
// fails with a transient provider error instead of hanging.
func WithTimeout(next Translator, d time.Duration) Translator {
	if d <= 0 {
		return next
	}
	return Func(func(ctx context.Context, text, src, tgt string) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		res, err := next.Translate(ctx, text, src, tgt)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return Result{}, apperrors.New(apperrors.KindTransient,
				"Translation timed out.",
				fmt.Errorf("translation exceeded %s: %w", d, err))
		}
		return res, err
	})
}

// NewLimiter returns a limiter allowing qps calls per second with a burst of
// one. A non-positive qps disables limiting.
func NewLimiter(qps float64) *rate.Limiter {
	if qps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(qps), 1)
}

// WithRateLimit waits for limiter before every call to next.
func WithRateLimit(next Translator, limiter *rate.Limiter) Translator {
	if limiter == nil {
		return next
	}
	return Func(func(ctx context.Context, text, src, tgt string) (Result, error) {
		if err := limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("wait for provider rate limit: %w", err)
		}
		return next.Translate(ctx, text, src, tgt)
	})
}

// SystemPrompt is the instruction sent to LLM providers.
func SystemPrompt(sourceLang, targetLang string) string {
	source := "the source language (detect it)"
	if sourceLang != "" && sourceLang != language.Auto {
		source = language.Name(sourceLang)
	}
	target := language.Name(targetLang)
	return fmt.Sprintf(`You are a professional translator helping someone read a text.
Translate the user's text from %s into %s.

Rules:
- The text is a word or a phrase selected by a reader; translate it as it would be understood in running prose.
- Keep the meaning, tone and punctuation of the original.
- Respond ONLY with a JSON object of the form {"translation": "...", "detected_source_language": "<ISO 639-1 code>"}.`,
		source, target)
}

// Reply is the JSON object LLM providers are asked to return.
type Reply struct {
	Translation            string `json:"translation"`
	DetectedSourceLanguage string `json:"detected_source_language,omitempty"`
}

// Result converts a decoded reply, rejecting empty translations.
func (r Reply) Result() (Result, error) {
	text := strings.TrimSpace(r.Translation)
	if text == "" {
		return Result{}, apperrors.Validation(fmt.Errorf("empty translation in provider reply"))
	}
	return Result{TranslatedText: text, DetectedSourceLanguage: strings.TrimSpace(r.DetectedSourceLanguage)}, nil
}
