// Package reader assembles a reading session: the loaded document, the
// translation provider, the usage ledger, the quota guard and the
// orchestrator that ties them together.
package reader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/config"
	"github.com/tradux/tradux/internal/logger"
	"github.com/tradux/tradux/internal/orchestrator"
	"github.com/tradux/tradux/internal/quota"
	"github.com/tradux/tradux/internal/session"
	"github.com/tradux/tradux/internal/text"
	"github.com/tradux/tradux/internal/textsource"
	"github.com/tradux/tradux/internal/translator"
)

// Options tune New. The zero value resolves keys from the keychain only.
type Options struct {
	Keys     KeyFunc
	AllowEnv bool
	Grid     Grid
	Listener orchestrator.Listener
	// Translator replaces the configured provider.
	Translator translator.Translator
}

// Reader is one reading session over a loaded document.
type Reader struct {
	cfg      config.Config
	store    Store
	guard    *quota.Guard
	sessions *session.Store
	orch     *orchestrator.Orchestrator
	grid     Grid
	closers  []func() error
	log      *slog.Logger

	mu  sync.RWMutex
	doc *text.Document
}

// New wires a Reader from cfg.
func New(ctx context.Context, cfg config.Config, opts Options) (*Reader, error) {
	if opts.Keys == nil {
		return nil, errors.New("reader: key resolver is required")
	}
	if opts.Grid == (Grid{}) {
		opts.Grid = DefaultGrid
	}

	r := &Reader{
		cfg:      cfg,
		sessions: session.NewStore(cfg.SessionPath),
		grid:     opts.Grid,
		doc:      text.NewDocument(""),
		log:      logger.With("component", "reader"),
	}

	store, closeStore, err := OpenLedger(cfg, opts.Keys, opts.AllowEnv)
	if err != nil {
		// The quota check fails open; a missing ledger must not stop reading.
		r.log.Warn("usage ledger unavailable, quota will not be enforced", "ledger", cfg.Ledger, "error", err)
	} else {
		r.store = store
		r.closers = append(r.closers, closeStore)
	}
	r.guard = quota.NewGuard(r.store, cfg.DailyLimit)

	tr := opts.Translator
	if tr == nil {
		var closeTr func() error
		tr, closeTr, err = NewTranslator(ctx, cfg, opts.Keys, opts.AllowEnv)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.closers = append(r.closers, closeTr)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithDebounceDelay(cfg.DebounceDelay),
		orchestrator.WithLanguages(cfg.SourceLang, cfg.TargetLang),
	}
	if opts.Listener != nil {
		orchOpts = append(orchOpts, orchestrator.WithListener(opts.Listener))
	}
	r.orch = orchestrator.New(tr, r.guard, r.sessions, orchOpts...)
	return r, nil
}

// Close stops in-flight work and releases the ledger and provider.
func (r *Reader) Close() error {
	if r.orch != nil {
		r.orch.Close()
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Orchestrator exposes the underlying state machine.
func (r *Reader) Orchestrator() *orchestrator.Orchestrator { return r.orch }

// Guard exposes the quota guard.
func (r *Reader) Guard() *quota.Guard { return r.guard }

// Store returns the ledger, or nil when it could not be opened.
func (r *Reader) Store() Store { return r.store }

// SessionID returns the persisted client session id.
func (r *Reader) SessionID() (string, error) { return r.sessions.ID() }

// Document returns the loaded document.
func (r *Reader) Document() *text.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc
}

// SetText replaces the document. Visible popups belong to the old text and
// are dismissed.
func (r *Reader) SetText(src string) *text.Document {
	doc := text.NewDocument(src)
	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
	r.orch.OnGlobalDismiss()
	return doc
}

// LoadFile reads path through textsource and makes it the document.
func (r *Reader) LoadFile(path string) (*text.Document, error) {
	src, err := textsource.Load(path)
	if err != nil {
		return nil, err
	}
	r.log.Info("Document loaded", "name", src.Name, "format", string(src.Format))
	return r.SetText(src.Text), nil
}

// Click translates the word at token index i.
func (r *Reader) Click(ctx context.Context, i int) (text.Expansion, error) {
	doc := r.Document()
	exp, ok := doc.ExpandWord(i)
	if !ok {
		return text.Expansion{}, apperrors.NoActionableSelection()
	}
	_, err := r.orch.OnWordInteraction(ctx, exp.Text, r.grid.SpanRect(doc, exp.Span))
	return exp, err
}

// Select widens sel to whole words and schedules its translation after the
// settle period. A single word that was clicked rather than dragged goes
// through the word path instead. An unusable selection clears the
// selection popup.
func (r *Reader) Select(ctx context.Context, sel text.Selection, dragged bool) (text.Expansion, error) {
	doc := r.Document()
	exp, ok := doc.Expand(sel)
	if !ok {
		_, err := r.orch.OnSelectionSettled(ctx, text.Expansion{}, r.grid.TokenRect(doc, sel.Anchor.Token))
		return text.Expansion{}, err
	}
	if !text.IsSelectionTranslation(exp, dragged) {
		return r.Click(ctx, exp.Span.Start)
	}
	r.orch.OnSelectionChanged(ctx, exp, r.grid.SpanRect(doc, exp.Span))
	return exp, nil
}

// Dismiss handles a click outside every popup and word.
func (r *Reader) Dismiss() { r.orch.OnGlobalDismiss() }

// SetLanguages changes the pair used by subsequent requests.
func (r *Reader) SetLanguages(source, target string) { r.orch.SetLanguages(source, target) }

// State returns the orchestrator state.
func (r *Reader) State() orchestrator.State { return r.orch.State() }

// Wait blocks until in-flight requests finish.
func (r *Reader) Wait() { r.orch.Wait() }

// Usage summarizes this client's quota.
func (r *Reader) Usage(ctx context.Context) (quota.Summary, error) {
	sid, err := r.sessions.ID()
	if err != nil {
		return quota.Summary{}, err
	}
	return r.guard.Summary(ctx, sid)
}
