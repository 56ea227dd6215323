package orchestrator

import (
	"github.com/tradux/tradux/internal/placement"
	"github.com/tradux/tradux/internal/quota"
	"github.com/tradux/tradux/internal/translator"
)

// Phase is the orchestrator's position in the request lifecycle.
type Phase int

const (
	Idle Phase = iota
	AwaitingQuota
	Translating
	ShowingResult
	ShowingError
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingQuota:
		return "awaiting_quota"
	case Translating:
		return "translating"
	case ShowingResult:
		return "showing_result"
	case ShowingError:
		return "showing_error"
	default:
		return "unknown"
	}
}

// PopupKind names which popup a request renders into. Only one kind is
// visible at a time.
type PopupKind int

const (
	NoPopup PopupKind = iota
	WordPopup
	SelectionPopup
)

func (k PopupKind) String() string {
	switch k {
	case WordPopup:
		return "word"
	case SelectionPopup:
		return "selection"
	default:
		return "none"
	}
}

// Request is one translation request as captured when it was issued.
type Request struct {
	ID         uint64
	Kind       PopupKind
	Text       string
	Characters int
	SourceLang string
	TargetLang string
}

// State is a snapshot of what the presentation layer should render.
type State struct {
	Phase     Phase
	Request   Request
	Placement placement.Placement
	Result    translator.Result
	// Message is the user-facing error text in ShowingError.
	Message string
	// Quota is the budget seen by the request's quota check.
	Quota quota.State
}

// Kind returns the popup kind owning the state, NoPopup when idle.
func (s State) Kind() PopupKind {
	if s.Phase == Idle {
		return NoPopup
	}
	return s.Request.Kind
}

// Busy reports whether a request is still waiting on quota or the provider.
func (s State) Busy() bool {
	return s.Phase == AwaitingQuota || s.Phase == Translating
}
