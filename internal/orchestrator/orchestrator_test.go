package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/ledger"
	"github.com/tradux/tradux/internal/placement"
	"github.com/tradux/tradux/internal/quota"
	"github.com/tradux/tradux/internal/text"
	"github.com/tradux/tradux/internal/translator"
)

type fixedSession string

func (s fixedSession) ID() (string, error) { return string(s), nil }

type brokenSession struct{}

func (brokenSession) ID() (string, error) { return "", errors.New("disk full") }

type failingLedger struct{}

func (failingLedger) Insert(context.Context, ledger.Record) error { return errors.New("down") }
func (failingLedger) SumCharacters(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

// gatedTranslator blocks each call until its text is released.
type gatedTranslator struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls []string
}

func newGated(texts ...string) *gatedTranslator {
	g := &gatedTranslator{gates: map[string]chan struct{}{}}
	for _, t := range texts {
		g.gates[t] = make(chan struct{})
	}
	return g
}

func (g *gatedTranslator) Translate(_ context.Context, text, _, _ string) (translator.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, text)
	gate := g.gates[text]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return translator.Result{TranslatedText: "T(" + text + ")"}, nil
}

func (g *gatedTranslator) release(text string) { close(g.gates[text]) }

func (g *gatedTranslator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func echo() translator.Translator {
	return translator.Func(func(_ context.Context, text, _, _ string) (translator.Result, error) {
		return translator.Result{TranslatedText: "T(" + text + ")", DetectedSourceLanguage: "de"}, nil
	})
}

var lowRect = placement.Rect{Left: 100, Top: 200, Width: 40, Height: 16}

func waitFor(t *testing.T, o *Orchestrator, cond func(State) bool) State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(o.State()) }, 2*time.Second, 5*time.Millisecond)
	return o.State()
}

func TestWordClick_ShowsResult(t *testing.T) {
	mem := ledger.NewMemory()
	var states []Phase
	o := New(echo(), quota.NewGuard(mem, 500), fixedSession("s1"),
		WithLanguages("de", "en"),
		WithListener(func(s State) { states = append(states, s.Phase) }),
	)

	id, err := o.OnWordInteraction(context.Background(), "Hallo", lowRect)
	require.NoError(t, err)
	o.Wait()

	s := o.State()
	assert.Equal(t, ShowingResult, s.Phase)
	assert.Equal(t, WordPopup, s.Kind())
	assert.Equal(t, id, s.Request.ID)
	assert.Equal(t, "T(Hallo)", s.Result.TranslatedText)
	assert.Equal(t, placement.Placement{AnchorX: 120, AnchorY: 190}, s.Placement)
	assert.Equal(t, []Phase{AwaitingQuota, Translating, ShowingResult}, states)

	used, err := mem.SumCharacters(context.Background(), "s1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 5, used)
}

func TestPlacementCapturedBeforeTranslation(t *testing.T) {
	tr := newGated("oben")
	o := New(tr, quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"))

	_, err := o.OnWordInteraction(context.Background(), "oben", placement.Rect{Left: 0, Top: 20, Width: 10, Height: 10})
	require.NoError(t, err)
	s := o.State()
	assert.True(t, s.Busy())
	assert.True(t, s.Placement.Flip)
	assert.Equal(t, 40.0, s.Placement.AnchorY)

	tr.release("oben")
	o.Wait()
}

func TestQuotaDenied_NoProviderCall(t *testing.T) {
	mem := ledger.NewMemory()
	require.NoError(t, mem.Insert(context.Background(), ledger.Record{Key: "k0", SessionID: "s1", Characters: 480, CreatedAt: time.Now()}))
	tr := newGated()
	o := New(tr, quota.NewGuard(mem, 500), fixedSession("s1"))

	_, err := o.OnSelectionSettled(context.Background(), text.Expansion{Text: "this text is far longer than twenty chars", Span: text.SelectionSpan{Start: 0, End: 14}}, lowRect)
	require.NoError(t, err)
	o.Wait()

	s := o.State()
	assert.Equal(t, ShowingError, s.Phase)
	assert.Equal(t, SelectionPopup, s.Kind())
	assert.Equal(t, 20, s.Quota.Remaining)
	assert.Contains(t, s.Message, "20 of 500")
	assert.Zero(t, tr.callCount())

	used, _ := mem.SumCharacters(context.Background(), "s1", time.Time{})
	assert.Equal(t, 480, used, "denied requests are not recorded")
}

func TestLedgerDown_FailsOpen(t *testing.T) {
	o := New(echo(), quota.NewGuard(failingLedger{}, 500), fixedSession("s1"))
	_, err := o.OnWordInteraction(context.Background(), "Welt", lowRect)
	require.NoError(t, err)
	o.Wait()

	s := o.State()
	assert.Equal(t, ShowingResult, s.Phase)
	assert.Equal(t, 500, s.Quota.Remaining)
}

func TestSessionUnavailable_FailsOpen(t *testing.T) {
	o := New(echo(), quota.NewGuard(ledger.NewMemory(), 500), brokenSession{})
	_, err := o.OnWordInteraction(context.Background(), "Welt", lowRect)
	require.NoError(t, err)
	o.Wait()
	assert.Equal(t, ShowingResult, o.State().Phase)
}

func TestProviderError_GenericMessage(t *testing.T) {
	tr := translator.Func(func(context.Context, string, string, string) (translator.Result, error) {
		return translator.Result{}, apperrors.New(apperrors.KindAuth, "Gemini API authentication failed", errors.New("key=SECRET"))
	})
	mem := ledger.NewMemory()
	o := New(tr, quota.NewGuard(mem, 500), fixedSession("s1"))
	_, err := o.OnWordInteraction(context.Background(), "Haus", lowRect)
	require.NoError(t, err)
	o.Wait()

	s := o.State()
	assert.Equal(t, ShowingError, s.Phase)
	assert.Equal(t, apperrors.GenericTranslationMessage, s.Message)

	used, _ := mem.SumCharacters(context.Background(), "s1", time.Time{})
	assert.Equal(t, 4, used, "usage reflects intent even when the provider fails")
}

func TestStaleResponseDiscarded(t *testing.T) {
	tr := newGated("first", "second")
	var mu sync.Mutex
	var shown []string
	o := New(tr, quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"),
		WithListener(func(s State) {
			if s.Phase == ShowingResult {
				mu.Lock()
				shown = append(shown, s.Result.TranslatedText)
				mu.Unlock()
			}
		}),
	)
	ctx := context.Background()

	// Four finished clicks so the racing pair gets ids 5 and 6.
	for _, w := range []string{"a", "b", "c", "d"} {
		_, err := o.OnWordInteraction(ctx, w, lowRect)
		require.NoError(t, err)
		o.Wait()
	}
	mu.Lock()
	shown = nil
	mu.Unlock()
	first, err := o.OnWordInteraction(ctx, "first", lowRect)
	require.NoError(t, err)
	waitFor(t, o, func(s State) bool { return s.Phase == Translating })
	second, err := o.OnWordInteraction(ctx, "second", lowRect)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), first)
	assert.Equal(t, uint64(6), second)

	require.Eventually(t, func() bool { return tr.callCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	tr.release("second")
	waitFor(t, o, func(s State) bool { return s.Phase == ShowingResult })

	tr.release("first")
	o.Wait()

	s := o.State()
	assert.Equal(t, ShowingResult, s.Phase)
	assert.Equal(t, second, s.Request.ID)
	assert.Equal(t, "T(second)", s.Result.TranslatedText)
	mu.Lock()
	assert.Equal(t, []string{"T(second)"}, shown)
	mu.Unlock()
}

func TestNewKindReplacesOld(t *testing.T) {
	o := New(echo(), quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"))
	ctx := context.Background()

	_, err := o.OnSelectionSettled(ctx, text.Expansion{Text: "Hello world", Span: text.SelectionSpan{Start: 0, End: 2}}, lowRect)
	require.NoError(t, err)
	o.Wait()
	require.Equal(t, SelectionPopup, o.State().Kind())

	_, err = o.OnWordInteraction(ctx, "Hello", lowRect)
	require.NoError(t, err)
	o.Wait()
	s := o.State()
	assert.Equal(t, WordPopup, s.Kind())
	assert.Equal(t, "T(Hello)", s.Result.TranslatedText)
}

func TestGlobalDismiss(t *testing.T) {
	tr := newGated("slow")
	o := New(tr, quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"))

	_, err := o.OnWordInteraction(context.Background(), "slow", lowRect)
	require.NoError(t, err)
	o.OnGlobalDismiss()
	assert.Equal(t, Idle, o.State().Phase)

	tr.release("slow")
	o.Wait()
	assert.Equal(t, Idle, o.State().Phase, "in-flight result lands after dismiss")
	assert.Equal(t, NoPopup, o.State().Kind())
}

func TestDebouncedSelection(t *testing.T) {
	tr := newGated()
	o := New(tr, quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"), WithDebounceDelay(20*time.Millisecond))
	ctx := context.Background()

	o.OnSelectionChanged(ctx, text.Expansion{Text: "Hello"}, lowRect)
	o.OnSelectionChanged(ctx, text.Expansion{Text: "Hello big"}, lowRect)
	o.OnSelectionChanged(ctx, text.Expansion{Text: "Hello big world"}, lowRect)

	s := waitFor(t, o, func(s State) bool { return s.Phase == ShowingResult })
	o.Wait()
	assert.Equal(t, "T(Hello big world)", s.Result.TranslatedText)
	assert.Equal(t, 1, tr.callCount())
}

func TestWordClickCancelsPendingSelection(t *testing.T) {
	tr := newGated()
	o := New(tr, quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"), WithDebounceDelay(30*time.Millisecond))
	ctx := context.Background()

	o.OnSelectionChanged(ctx, text.Expansion{Text: "Hello world"}, lowRect)
	_, err := o.OnWordInteraction(ctx, "Hello", lowRect)
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)
	o.Wait()
	s := o.State()
	assert.Equal(t, WordPopup, s.Kind())
	assert.Equal(t, 1, tr.callCount())
}

func TestDismissCancelsPendingSelection(t *testing.T) {
	tr := newGated()
	o := New(tr, quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"), WithDebounceDelay(30*time.Millisecond))

	o.OnSelectionChanged(context.Background(), text.Expansion{Text: "Hello world"}, lowRect)
	o.OnGlobalDismiss()

	time.Sleep(80 * time.Millisecond)
	o.Wait()
	assert.Equal(t, Idle, o.State().Phase)
	assert.Zero(t, tr.callCount())
}

func TestDismissWhileIdleKeepsIDs(t *testing.T) {
	o := New(echo(), quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"))
	o.OnGlobalDismiss()
	o.OnGlobalDismiss()

	id, err := o.OnWordInteraction(context.Background(), "Hallo", lowRect)
	require.NoError(t, err)
	o.Wait()
	assert.Equal(t, uint64(1), id)

	o.OnGlobalDismiss()
	next, err := o.OnWordInteraction(context.Background(), "Welt", lowRect)
	require.NoError(t, err)
	o.Wait()
	assert.Greater(t, next, id)
}

func TestEmptySelectionCancelsPendingSelection(t *testing.T) {
	tr := newGated()
	o := New(tr, quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"), WithDebounceDelay(30*time.Millisecond))
	ctx := context.Background()

	o.OnSelectionChanged(ctx, text.Expansion{Text: "one two"}, lowRect)
	_, err := o.OnSelectionSettled(ctx, text.Expansion{}, lowRect)
	kind, _ := apperrors.KindOf(err)
	assert.Equal(t, apperrors.KindNoActionableSelection, kind)

	time.Sleep(80 * time.Millisecond)
	o.Wait()
	assert.Equal(t, Idle, o.State().Phase)
	assert.Zero(t, tr.callCount())
	assert.False(t, o.Pending())
}

func TestLedgerMissingStillTranslates(t *testing.T) {
	o := New(echo(), quota.NewGuard(nil, 500), fixedSession("s1"))
	_, err := o.OnWordInteraction(context.Background(), "Hallo", lowRect)
	require.NoError(t, err)
	o.Wait()

	s := o.State()
	assert.Equal(t, ShowingResult, s.Phase)
	assert.Equal(t, "T(Hallo)", s.Result.TranslatedText)
}

func TestNoActionableSelection(t *testing.T) {
	o := New(echo(), quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"))
	ctx := context.Background()

	_, err := o.OnSelectionSettled(ctx, text.Expansion{Text: "Hello world"}, lowRect)
	require.NoError(t, err)
	o.Wait()

	_, err = o.OnSelectionSettled(ctx, text.Expansion{}, lowRect)
	kind, _ := apperrors.KindOf(err)
	assert.Equal(t, apperrors.KindNoActionableSelection, kind)
	assert.Equal(t, Idle, o.State().Phase)

	_, err = o.OnWordInteraction(ctx, "   ", lowRect)
	assert.Error(t, err)
}

func TestLanguagesCapturedPerRequest(t *testing.T) {
	var gotSrc, gotTgt string
	tr := translator.Func(func(_ context.Context, text, src, tgt string) (translator.Result, error) {
		gotSrc, gotTgt = src, tgt
		return translator.Result{TranslatedText: text}, nil
	})
	o := New(tr, quota.NewGuard(ledger.NewMemory(), 500), fixedSession("s1"))
	o.SetLanguages("fr", "de")
	_, err := o.OnWordInteraction(context.Background(), "Bonjour", lowRect)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, "fr", gotSrc)
	assert.Equal(t, "de", gotTgt)
	assert.Equal(t, "fr", o.State().Request.SourceLang)
}

func TestUsageKeysAreUnique(t *testing.T) {
	mem := ledger.NewMemory()
	o := New(echo(), quota.NewGuard(mem, 500), fixedSession("s1"))
	for _, w := range []string{"eins", "zwei", "drei"} {
		_, err := o.OnWordInteraction(context.Background(), w, lowRect)
		require.NoError(t, err)
		o.Wait()
	}
	assert.Equal(t, 3, mem.Len())
}

func TestPhaseStrings(t *testing.T) {
	assert.Equal(t, "translating", Translating.String())
	assert.Equal(t, "selection", SelectionPopup.String())
	assert.Equal(t, "none", NoPopup.String())
}
