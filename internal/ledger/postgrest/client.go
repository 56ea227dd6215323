// Package postgrest stores usage records in a remote usage_metrics table
// exposed through a PostgREST endpoint, such as a Supabase project.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradux/tradux/internal/httpclient"
	"github.com/tradux/tradux/internal/ledger"
)

const (
	table = "usage_metrics"
	// StatsScanLimit bounds the rows fetched to compute Stats client side.
	StatsScanLimit = 10000
)

// Client talks to {BaseURL}/rest/v1/usage_metrics.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var (
	_ ledger.Ledger      = (*Client)(nil)
	_ ledger.StatsReader = (*Client)(nil)
)

// New returns a client for the project at baseURL.
func New(baseURL, apiKey string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ledger url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ledger url %q", baseURL)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ledger api key is required")
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, client: httpclient.GetDefaultClient()}, nil
}

type row struct {
	RequestKey          string    `json:"request_key"`
	SessionID           string    `json:"session_id"`
	CharactersProcessed int       `json:"characters_processed"`
	SourceLanguage      string    `json:"source_language"`
	TargetLanguage      string    `json:"target_language"`
	CreatedAt           time.Time `json:"created_at"`
}

func (r row) record() ledger.Record {
	return ledger.Record{
		Key:        r.RequestKey,
		SessionID:  r.SessionID,
		Characters: r.CharactersProcessed,
		SourceLang: r.SourceLanguage,
		TargetLang: r.TargetLanguage,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// Insert posts rec. Rows whose request_key already exists are ignored by
// the server.
func (c *Client) Insert(ctx context.Context, rec ledger.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	body, err := json.Marshal(row{
		RequestKey:          rec.Key,
		SessionID:           rec.SessionID,
		CharactersProcessed: rec.Characters,
		SourceLanguage:      rec.SourceLang,
		TargetLanguage:      rec.TargetLang,
		CreatedAt:           createdAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}

	q := url.Values{}
	q.Set("on_conflict", "request_key")
	req, err := c.newRequest(ctx, http.MethodPost, q, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=ignore-duplicates,return=minimal")

	respBody, resp, err := httpclient.DoAndRead(c.client, req)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	if !httpclient.IsSuccess(resp) {
		return statusError("insert usage record", resp, respBody)
	}
	return nil
}

// SumCharacters totals the session's records created at or after since.
func (c *Client) SumCharacters(ctx context.Context, sessionID string, since time.Time) (int, error) {
	q := url.Values{}
	q.Set("select", "characters_processed")
	q.Set("session_id", "eq."+sessionID)
	q.Set("created_at", "gte."+since.UTC().Format(time.RFC3339Nano))

	rows, err := c.query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	total := 0
	for _, r := range rows {
		total += r.CharactersProcessed
	}
	return total, nil
}

// Stats fetches up to StatsScanLimit matching rows, newest first, and
// aggregates them locally.
func (c *Client) Stats(ctx context.Context, filter ledger.StatsFilter, now time.Time) (ledger.Stats, error) {
	q := url.Values{}
	q.Set("select", "request_key,session_id,characters_processed,source_language,target_language,created_at")
	q.Set("order", "created_at.desc")
	q.Set("limit", fmt.Sprint(StatsScanLimit))
	var created []string
	if !filter.Since.IsZero() {
		created = append(created, "created_at.gte."+filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if !filter.Until.IsZero() {
		created = append(created, "created_at.lte."+filter.Until.UTC().Format(time.RFC3339Nano))
	}
	if len(created) > 0 {
		q.Set("and", "("+strings.Join(created, ",")+")")
	}
	if filter.SourceLang != "" {
		q.Set("source_language", "eq."+filter.SourceLang)
	}
	if filter.TargetLang != "" {
		q.Set("target_language", "eq."+filter.TargetLang)
	}

	rows, err := c.query(ctx, q)
	if err != nil {
		return ledger.Stats{}, fmt.Errorf("usage stats: %w", err)
	}
	records := make([]ledger.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return ledger.Aggregate(records, now), nil
}

func (c *Client) query(ctx context.Context, q url.Values) ([]row, error) {
	req, err := c.newRequest(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, resp, err := httpclient.DoAndRead(c.client, req)
	if err != nil {
		return nil, err
	}
	if !httpclient.IsSuccess(resp) {
		return nil, statusError("query usage", resp, body)
	}
	var rows []row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode usage rows: %w", err)
	}
	return rows, nil
}

func (c *Client) newRequest(ctx context.Context, method string, q url.Values, body *bytes.Reader) (*http.Request, error) {
	endpoint := c.baseURL + "/rest/v1/" + table
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

func statusError(op string, resp *http.Response, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, snippet)
}
