// Package ledger defines the append-only usage log that backs the daily
// translation quota, plus the aggregate statistics shown to operators.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// TopLanguages is the number of target languages reported by Stats.
	TopLanguages = 5
	// RecentLimit is the number of most recent records reported by Stats.
	RecentLimit = 100
	// UnknownLanguage labels records stored without a target language.
	UnknownLanguage = "unknown"
)

// Record is one permitted translation attempt.
type Record struct {
	// Key identifies the logical request. Inserting the same key twice
	// never double-counts.
	Key        string
	SessionID  string
	Characters int
	SourceLang string
	TargetLang string
	CreatedAt  time.Time
}

// Validate checks the fields every store requires.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("record key is required")
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if r.Characters < 0 {
		return fmt.Errorf("characters must not be negative")
	}
	return nil
}

// Ledger is the capability the quota guard consumes.
type Ledger interface {
	Insert(ctx context.Context, rec Record) error
	SumCharacters(ctx context.Context, sessionID string, since time.Time) (int, error)
}

// StatsFilter narrows Stats. Zero fields match everything; Until is
// inclusive.
type StatsFilter struct {
	Since      time.Time
	Until      time.Time
	SourceLang string
	TargetLang string
}

// Match reports whether rec passes the filter.
func (f StatsFilter) Match(rec Record) bool {
	if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.CreatedAt.After(f.Until) {
		return false
	}
	if f.SourceLang != "" && rec.SourceLang != f.SourceLang {
		return false
	}
	if f.TargetLang != "" && rec.TargetLang != f.TargetLang {
		return false
	}
	return true
}

// LanguageTotal is the character volume translated into one language.
type LanguageTotal struct {
	Language   string
	Characters int
}

// Stats summarises the ledger for operators.
type Stats struct {
	TotalCharacters    int
	TodayCharacters    int
	UniqueSessions     int
	TopTargetLanguages []LanguageTotal
	Recent             []Record
}

// StatsReader is implemented by ledgers that can report aggregate usage.
type StatsReader interface {
	Stats(ctx context.Context, filter StatsFilter, now time.Time) (Stats, error)
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Aggregate computes Stats over records that already passed the filter.
func Aggregate(records []Record, now time.Time) Stats {
	dayStart := StartOfDay(now)
	sessions := make(map[string]struct{})
	byLang := make(map[string]int)

	var st Stats
	for _, rec := range records {
		st.TotalCharacters += rec.Characters
		if !rec.CreatedAt.Before(dayStart) {
			st.TodayCharacters += rec.Characters
		}
		sessions[rec.SessionID] = struct{}{}
		lang := rec.TargetLang
		if lang == "" {
			lang = UnknownLanguage
		}
		byLang[lang] += rec.Characters
	}
	st.UniqueSessions = len(sessions)
	st.TopTargetLanguages = topLanguages(byLang)

	recent := make([]Record, len(records))
	copy(recent, records)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}
	st.Recent = recent
	return st
}

func topLanguages(byLang map[string]int) []LanguageTotal {
	out := make([]LanguageTotal, 0, len(byLang))
	for lang, chars := range byLang {
		out = append(out, LanguageTotal{Language: lang, Characters: chars})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Characters != out[j].Characters {
			return out[i].Characters > out[j].Characters
		}
		return out[i].Language < out[j].Language
	})
	if len(out) > TopLanguages {
		out = out[:TopLanguages]
	}
	return out
}
