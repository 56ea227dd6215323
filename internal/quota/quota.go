// Package quota enforces the per-session daily character budget against the
// usage ledger.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rivo/uniseg"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/ledger"
	"github.com/tradux/tradux/internal/logger"
)

const (
	// DefaultDailyLimit is the free tier budget in characters per UTC day.
	DefaultDailyLimit = 500
	// NearLimitPercent marks usage summaries as close to the limit.
	NearLimitPercent = 80.0
)

// State is the quota derived from the ledger. It is never stored.
type State struct {
	TodayUsage int
	Limit      int
	Remaining  int
}

// NewState derives remaining = max(0, limit - todayUsage).
func NewState(todayUsage, limit int) State {
	return State{TodayUsage: todayUsage, Limit: limit, Remaining: max(0, limit-todayUsage)}
}

// Decision is the outcome of CheckDailyLimit.
type Decision struct {
	Allowed bool
	State
	// Degraded is set when the ledger could not be read and the check
	// failed open.
	Degraded bool
}

// DenialMessage is the user-facing text for a denied decision.
func (d Decision) DenialMessage() string {
	return fmt.Sprintf("Daily translation limit reached: %d of %d characters remaining today", d.Remaining, d.Limit)
}

// Usage describes one accepted request to record.
type Usage struct {
	// Key identifies the logical request; recording the same key twice
	// counts once.
	Key        string
	SessionID  string
	Characters int
	SourceLang string
	TargetLang string
}

// Summary is the per-session usage overview.
type Summary struct {
	State
	TotalUsage int
	Percent    float64
	NearLimit  bool
}

// Guard checks and records usage for one ledger.
type Guard struct {
	ledger ledger.Ledger
	limit  int
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// NewGuard returns a guard enforcing limit characters per UTC day. A
// non-positive limit uses DefaultDailyLimit.
func NewGuard(l ledger.Ledger, limit int, opts ...Option) *Guard {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	g := &Guard{ledger: l, limit: limit, now: time.Now, log: logger.With("component", "quota")}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Limit returns the daily budget.
func (g *Guard) Limit() int { return g.limit }

// CanRecord reports whether a ledger backs the guard.
func (g *Guard) CanRecord() bool { return g.ledger != nil }

// CountCharacters measures text the way the quota does: in user-perceived
// characters (grapheme clusters).
func CountCharacters(text string) int {
	return uniseg.GraphemeClusterCount(text)
}

// CheckDailyLimit reports whether proposed more characters fit in today's
// budget. A ledger failure never blocks translation: the check then allows
// the request with the full budget remaining.
func (g *Guard) CheckDailyLimit(ctx context.Context, sessionID string, proposed int) Decision {
	used, err := g.todayUsage(ctx, sessionID)
	if err != nil {
		g.log.Warn("usage ledger unavailable, allowing request",
			"session_id", sessionID,
			"error", apperrors.LedgerUnavailable(err),
		)
		return Decision{Allowed: true, State: State{Limit: g.limit, Remaining: g.limit}, Degraded: true}
	}
	d := Decision{Allowed: used+proposed <= g.limit, State: NewState(used, g.limit)}
	g.log.Debug("quota checked",
		"session_id", sessionID,
		"proposed", proposed,
		"today", used,
		"remaining", d.Remaining,
		"allowed", d.Allowed,
	)
	return d
}

// RecordUsage appends u to the ledger. Callers invoke it once per accepted
// request, after CheckDailyLimit allowed it.
func (g *Guard) RecordUsage(ctx context.Context, u Usage) error {
	if !g.CanRecord() {
		return apperrors.LedgerUnavailable(fmt.Errorf("no usage ledger configured"))
	}
	err := g.ledger.Insert(ctx, ledger.Record{
		Key:        u.Key,
		SessionID:  u.SessionID,
		Characters: u.Characters,
		SourceLang: u.SourceLang,
		TargetLang: u.TargetLang,
		CreatedAt:  g.now().UTC(),
	})
	if err != nil {
		return apperrors.LedgerUnavailable(fmt.Errorf("record usage: %w", err))
	}
	return nil
}

// Summary reports today's and all-time usage for sessionID.
func (g *Guard) Summary(ctx context.Context, sessionID string) (Summary, error) {
	today, err := g.todayUsage(ctx, sessionID)
	if err != nil {
		return Summary{}, apperrors.LedgerUnavailable(err)
	}
	total, err := g.ledger.SumCharacters(ctx, sessionID, time.Time{})
	if err != nil {
		return Summary{}, apperrors.LedgerUnavailable(err)
	}
	pct := min(100, float64(today)/float64(g.limit)*100)
	return Summary{
		State:      NewState(today, g.limit),
		TotalUsage: total,
		Percent:    pct,
		NearLimit:  pct > NearLimitPercent,
	}, nil
}

func (g *Guard) todayUsage(ctx context.Context, sessionID string) (int, error) {
	if g.ledger == nil {
		return 0, fmt.Errorf("no usage ledger configured")
	}
	return g.ledger.SumCharacters(ctx, sessionID, ledger.StartOfDay(g.now()))
}
