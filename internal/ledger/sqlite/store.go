// Package sqlite provides the local SQLite-backed usage ledger.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tradux/tradux/internal/ledger"
	"github.com/tradux/tradux/internal/ledger/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists usage records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ ledger.Ledger      = (*Store)(nil)
	_ ledger.StatsReader = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the ledger database at path and applies
// embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Insert appends rec. A record whose key is already stored is ignored.
func (s *Store) Insert(ctx context.Context, rec ledger.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO usage_metrics (
		   request_key,
		   session_id,
		   characters_processed,
		   source_language,
		   target_language,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(rec.Key),
		strings.TrimSpace(rec.SessionID),
		rec.Characters,
		rec.SourceLang,
		rec.TargetLang,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// SumCharacters totals the session's records created at or after since.
func (s *Store) SumCharacters(ctx context.Context, sessionID string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var total int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(characters_processed), 0)
		   FROM usage_metrics
		  WHERE session_id = ? AND created_at >= ?`,
		sessionID,
		toMillis(since),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	return int(total), nil
}

// Stats aggregates the records matching filter.
func (s *Store) Stats(ctx context.Context, filter ledger.StatsFilter, now time.Time) (ledger.Stats, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Stats{}, err
	}
	if s == nil || s.sqlDB == nil {
		return ledger.Stats{}, fmt.Errorf("storage is not configured")
	}
	where, args := whereClause(filter)

	var st ledger.Stats
	var total, sessions int64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(characters_processed), 0), COUNT(DISTINCT session_id)
		   FROM usage_metrics`+where, args...,
	).Scan(&total, &sessions); err != nil {
		return ledger.Stats{}, fmt.Errorf("stats totals: %w", err)
	}
	st.TotalCharacters = int(total)
	st.UniqueSessions = int(sessions)

	todayArgs := append(append([]any{}, args...), toMillis(ledger.StartOfDay(now)))
	var today int64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(characters_processed), 0)
		   FROM usage_metrics`+and(where, "created_at >= ?"), todayArgs...,
	).Scan(&today); err != nil {
		return ledger.Stats{}, fmt.Errorf("stats today: %w", err)
	}
	st.TodayCharacters = int(today)

	langs, err := s.topLanguages(ctx, where, args)
	if err != nil {
		return ledger.Stats{}, err
	}
	st.TopTargetLanguages = langs

	recent, err := s.recent(ctx, where, args)
	if err != nil {
		return ledger.Stats{}, err
	}
	st.Recent = recent
	return st, nil
}

func (s *Store) topLanguages(ctx context.Context, where string, args []any) ([]ledger.LanguageTotal, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT CASE WHEN target_language = '' THEN ? ELSE target_language END AS lang,
		        SUM(characters_processed) AS chars
		   FROM usage_metrics`+where+`
		  GROUP BY lang
		  ORDER BY chars DESC, lang ASC
		  LIMIT ?`,
		append(append([]any{ledger.UnknownLanguage}, args...), ledger.TopLanguages)...,
	)
	if err != nil {
		return nil, fmt.Errorf("stats languages: %w", err)
	}
	defer rows.Close()

	var out []ledger.LanguageTotal
	for rows.Next() {
		var lt ledger.LanguageTotal
		var chars int64
		if err := rows.Scan(&lt.Language, &chars); err != nil {
			return nil, fmt.Errorf("scan language total: %w", err)
		}
		lt.Characters = int(chars)
		out = append(out, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language totals: %w", err)
	}
	return out, nil
}

func (s *Store) recent(ctx context.Context, where string, args []any) ([]ledger.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT request_key, session_id, characters_processed, source_language, target_language, created_at
		   FROM usage_metrics`+where+`
		  ORDER BY created_at DESC, rowid DESC
		  LIMIT ?`,
		append(append([]any{}, args...), ledger.RecentLimit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("stats recent: %w", err)
	}
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		var chars, createdAt int64
		if err := rows.Scan(&rec.Key, &rec.SessionID, &chars, &rec.SourceLang, &rec.TargetLang, &createdAt); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		rec.Characters = int(chars)
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage records: %w", err)
	}
	return out, nil
}

func whereClause(f ledger.StatsFilter) (string, []any) {
	var conds []string
	var args []any
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, toMillis(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, toMillis(f.Until))
	}
	if f.SourceLang != "" {
		conds = append(conds, "source_language = ?")
		args = append(args, f.SourceLang)
	}
	if f.TargetLang != "" {
		conds = append(conds, "target_language = ?")
		args = append(args, f.TargetLang)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func and(where, cond string) string {
	if where == "" {
		return " WHERE " + cond
	}
	return where + " AND " + cond
}
