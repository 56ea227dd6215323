package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	// KindNoActionableSelection is a no-op signal, not a failure.
	KindNoActionableSelection Kind = "no_actionable_selection"
	KindQuotaExceeded         Kind = "quota_exceeded"
	KindLedgerUnavailable     Kind = "ledger_unavailable"

	// Provider failures. All of them collapse to one generic message for the reader.
	KindProvider   Kind = "provider"
	KindTransient  Kind = "transient"
	KindRateLimit  Kind = "rate_limit"
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindBadRequest Kind = "bad_request"
)

// GenericTranslationMessage is what the reader sees for any provider failure.
const GenericTranslationMessage = "Translation error occurred"

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindNoActionableSelection:
		return "No actionable selection."
	case KindQuotaExceeded:
		return "Daily translation limit reached."
	case KindLedgerUnavailable:
		return "Usage ledger is unavailable."
	case KindTransient:
		return "Temporary upstream error. Please try again."
	case KindRateLimit:
		return "Rate limit exceeded. Please try again later."
	case KindAuth:
		return "Authentication failed. Please verify your API key and permissions."
	case KindValidation:
		return "Response validation failed."
	case KindBadRequest:
		return "Request rejected by upstream API."
	default:
		return GenericTranslationMessage
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func NoActionableSelection() error {
	return New(KindNoActionableSelection, "", nil)
}

func QuotaExceeded(msg string) error {
	return New(KindQuotaExceeded, msg, nil)
}

func LedgerUnavailable(err error) error {
	return New(KindLedgerUnavailable, "", err)
}

func Provider(err error) error {
	return New(KindProvider, "", err)
}

func Transient(err error) error {
	return New(KindTransient, "", err)
}

func RateLimit(err error) error {
	return New(KindRateLimit, "", err)
}

func Auth(err error) error {
	return New(KindAuth, "", err)
}

func Validation(err error) error {
	return New(KindValidation, "", err)
}

func BadRequest(err error) error {
	return New(KindBadRequest, "", err)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

// IsProviderError reports whether err came from the translation capability.
// Unclassified errors count as provider errors because that is the only
// boundary that returns them to the orchestrator.
func IsProviderError(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	switch kind {
	case KindProvider, KindTransient, KindRateLimit, KindAuth, KindValidation, KindBadRequest:
		return true
	}
	return false
}

func IsQuotaExceeded(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindQuotaExceeded
}

func IsLedgerUnavailable(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindLedgerUnavailable
}

func IsRateLimit(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindRateLimit
}
