// Package orchestrator coordinates word and selection translation requests:
// quota checks, usage recording, provider calls and popup placement. Only
// the newest request may change what is shown.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/debounce"
	"github.com/tradux/tradux/internal/language"
	"github.com/tradux/tradux/internal/logger"
	"github.com/tradux/tradux/internal/placement"
	"github.com/tradux/tradux/internal/quota"
	"github.com/tradux/tradux/internal/text"
	"github.com/tradux/tradux/internal/translator"
)

// QuotaGuard is the subset of quota.Guard the orchestrator needs.
type QuotaGuard interface {
	CheckDailyLimit(ctx context.Context, sessionID string, proposed int) quota.Decision
	RecordUsage(ctx context.Context, u quota.Usage) error
	CanRecord() bool
}

// SessionSource yields the client session id.
type SessionSource interface {
	ID() (string, error)
}

// Listener is called with every new state, in order. It must not call back
// into the orchestrator's event methods.
type Listener func(State)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithListener registers fn for state changes.
func WithListener(fn Listener) Option {
	return func(o *Orchestrator) { o.listener = fn }
}

// WithDebounceDelay sets the selection settle period.
func WithDebounceDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.debouncer = debounce.New(d) }
}

// WithCalculator overrides popup placement margins.
func WithCalculator(c placement.Calculator) Option {
	return func(o *Orchestrator) { o.calc = c }
}

// WithLanguages sets the initial language pair.
func WithLanguages(source, target string) Option {
	return func(o *Orchestrator) { o.sourceLang, o.targetLang = source, target }
}

// WithKeyFunc overrides how usage idempotency keys are generated.
func WithKeyFunc(fn func() string) Option {
	return func(o *Orchestrator) { o.newKey = fn }
}

// Orchestrator owns one State value and updates it only through the
// request lifecycle transitions.
type Orchestrator struct {
	translator translator.Translator
	guard      QuotaGuard
	sessions   SessionSource
	debouncer  *debounce.Debouncer
	calc       placement.Calculator
	listener   Listener
	newKey     func() string
	log        *slog.Logger

	notifyMu sync.Mutex

	mu         sync.Mutex
	state      State
	lastID     uint64
	cancel     context.CancelFunc
	sourceLang string
	targetLang string
	// settle releases the WaitGroup slot held by a pending selection.
	settle func()

	wg sync.WaitGroup
}

// New returns an idle orchestrator.
func New(tr translator.Translator, guard QuotaGuard, sessions SessionSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		translator: tr,
		guard:      guard,
		sessions:   sessions,
		debouncer:  debounce.New(debounce.DefaultDelay),
		calc:       placement.DefaultCalculator,
		newKey:     func() string { return uuid.NewString() },
		sourceLang: language.Auto,
		targetLang: "en",
		log:        logger.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns a copy of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SetLanguages changes the pair captured by subsequent requests.
func (o *Orchestrator) SetLanguages(source, target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sourceLang, o.targetLang = source, target
}

// Languages returns the current pair.
func (o *Orchestrator) Languages() (source, target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sourceLang, o.targetLang
}

// OnWordInteraction translates a clicked word immediately. Any pending
// selection is dropped.
func (o *Orchestrator) OnWordInteraction(ctx context.Context, word string, rect placement.Rect) (uint64, error) {
	o.cancelPendingSelection()
	return o.start(ctx, WordPopup, word, rect)
}

// OnSelectionSettled translates a selection that stopped changing. An
// empty expansion clears a visible selection popup.
func (o *Orchestrator) OnSelectionSettled(ctx context.Context, exp text.Expansion, rect placement.Rect) (uint64, error) {
	if strings.TrimSpace(exp.Text) == "" {
		// A cleared selection supersedes one still settling.
		o.cancelPendingSelection()
	}
	return o.start(ctx, SelectionPopup, exp.Text, rect)
}

// OnSelectionChanged schedules OnSelectionSettled after the settle period.
// Later changes replace earlier ones.
func (o *Orchestrator) OnSelectionChanged(ctx context.Context, exp text.Expansion, rect placement.Rect) {
	o.wg.Add(1)
	done := sync.OnceFunc(o.wg.Done)

	o.debouncer.Schedule(func(gen uint64) {
		defer done()
		if !o.debouncer.IsCurrent(gen) {
			return
		}
		if _, err := o.OnSelectionSettled(ctx, exp, rect); err != nil {
			o.log.Debug("settled selection ignored", "error", err)
		}
	})

	o.mu.Lock()
	prev := o.settle
	o.settle = done
	o.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Pending reports whether a selection is waiting for its settle period.
func (o *Orchestrator) Pending() bool {
	return o.debouncer.Pending()
}

func (o *Orchestrator) cancelPendingSelection() {
	o.debouncer.CancelPending()
	o.mu.Lock()
	done := o.settle
	o.settle = nil
	o.mu.Unlock()
	if done != nil {
		done()
	}
}

// OnGlobalDismiss returns to Idle and invalidates every outstanding
// request, including a pending debounced selection.
func (o *Orchestrator) OnGlobalDismiss() {
	o.cancelPendingSelection()

	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	changed := o.state.Phase != Idle
	if changed || o.cancel != nil {
		o.lastID++
		o.cancelLocked()
	}
	o.state = State{}
	snapshot := o.state
	o.mu.Unlock()

	if changed {
		o.emit(snapshot)
	}
}

// Wait blocks until every pending selection has settled and every
// in-flight request has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close dismisses everything and waits for in-flight work.
func (o *Orchestrator) Close() {
	o.OnGlobalDismiss()
	o.Wait()
}

func (o *Orchestrator) start(ctx context.Context, kind PopupKind, raw string, rect placement.Rect) (uint64, error) {
	if strings.TrimSpace(raw) == "" {
		o.clearKind(kind)
		return 0, apperrors.NoActionableSelection()
	}

	reqCtx, cancel := context.WithCancel(ctx)

	o.notifyMu.Lock()
	o.mu.Lock()
	o.cancelLocked()
	o.cancel = cancel
	o.lastID++
	req := Request{
		ID:         o.lastID,
		Kind:       kind,
		Text:       raw,
		Characters: quota.CountCharacters(raw),
		SourceLang: o.sourceLang,
		TargetLang: o.targetLang,
	}
	o.state = State{
		Phase:     AwaitingQuota,
		Request:   req,
		Placement: o.calc.Calculate(rect),
	}
	snapshot := o.state
	o.mu.Unlock()
	o.emit(snapshot)
	o.notifyMu.Unlock()

	o.log.Debug("request issued", "request_id", req.ID, "kind", kind.String(), "characters", req.Characters)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.run(reqCtx, req)
	}()
	return req.ID, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request) {
	sessionID, err := o.sessions.ID()
	if err != nil {
		o.log.Warn("session id unavailable, skipping quota", "request_id", req.ID, "error", err)
	}

	var decision quota.Decision
	if sessionID == "" {
		decision = quota.Decision{Allowed: true, Degraded: true}
	} else {
		decision = o.guard.CheckDailyLimit(ctx, sessionID, req.Characters)
	}

	if !decision.Allowed {
		o.log.Info("quota denied", "request_id", req.ID, "remaining", decision.Remaining, "limit", decision.Limit)
		o.apply(req.ID, func(s *State) {
			s.Phase = ShowingError
			s.Message = decision.DenialMessage()
			s.Quota = decision.State
		})
		return
	}

	if !o.apply(req.ID, func(s *State) {
		s.Phase = Translating
		s.Quota = decision.State
	}) {
		return
	}

	if sessionID != "" && o.guard.CanRecord() {
		err := o.guard.RecordUsage(ctx, quota.Usage{
			Key:        o.newKey(),
			SessionID:  sessionID,
			Characters: req.Characters,
			SourceLang: req.SourceLang,
			TargetLang: req.TargetLang,
		})
		if err != nil {
			o.log.Warn("usage not recorded", "request_id", req.ID, "error", err)
		}
	}

	res, err := o.translator.Translate(ctx, req.Text, req.SourceLang, req.TargetLang)
	if err != nil {
		if !o.isCurrent(req.ID) {
			o.log.Debug("stale request failed", "request_id", req.ID, "error", err)
			return
		}
		o.log.Error("translation failed",
			"request_id", req.ID,
			"kind", errorKind(err),
			"error", err,
		)
		o.apply(req.ID, func(s *State) {
			s.Phase = ShowingError
			s.Message = apperrors.GenericTranslationMessage
		})
		return
	}

	if !o.apply(req.ID, func(s *State) {
		s.Phase = ShowingResult
		s.Result = res
	}) {
		o.log.Debug("stale result discarded", "request_id", req.ID)
	}
}

// apply mutates the state when id still owns it and reports whether it did.
func (o *Orchestrator) apply(id uint64, fn func(*State)) bool {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if id != o.lastID || o.state.Request.ID != id {
		o.mu.Unlock()
		return false
	}
	fn(&o.state)
	snapshot := o.state
	o.mu.Unlock()

	o.emit(snapshot)
	return true
}

func (o *Orchestrator) isCurrent(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return id == o.lastID
}

// clearKind hides the popup of kind without issuing a request.
func (o *Orchestrator) clearKind(kind PopupKind) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.state.Kind() != kind {
		o.mu.Unlock()
		return
	}
	o.lastID++
	o.cancelLocked()
	o.state = State{}
	snapshot := o.state
	o.mu.Unlock()

	o.emit(snapshot)
}

func (o *Orchestrator) cancelLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) emit(s State) {
	if o.listener != nil {
		o.listener(s)
	}
}

func errorKind(err error) string {
	if kind, ok := apperrors.KindOf(err); ok {
		return string(kind)
	}
	return fmt.Sprintf("%T", err)
}
