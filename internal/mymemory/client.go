// Package mymemory implements the translator capability on the MyMemory
// translation memory API, either directly or through RapidAPI.
package mymemory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tradux/tradux/internal/apperrors"
	"github.com/tradux/tradux/internal/httpclient"
	"github.com/tradux/tradux/internal/language"
	"github.com/tradux/tradux/internal/logger"
	"github.com/tradux/tradux/internal/translator"
	"github.com/tradux/tradux/internal/version"
)

const (
	// PublicEndpoint is the keyless MyMemory API.
	PublicEndpoint = "https://api.mymemory.translated.net/get"
	// RapidAPIHost fronts MyMemory on RapidAPI.
	RapidAPIHost     = "translated-mymemory---translation-memory.p.rapidapi.com"
	RapidAPIEndpoint = "https://" + RapidAPIHost + "/get"

	autodetect = "Autodetect"
)

// Options configures a Client.
type Options struct {
	// Endpoint overrides the API URL. Defaults to RapidAPIEndpoint when
	// RapidAPIKey is set, PublicEndpoint otherwise.
	Endpoint string
	// RapidAPIKey authenticates through RapidAPI.
	RapidAPIKey string
	// Email raises the public API's anonymous daily allowance.
	Email string
}

// Client calls MyMemory's /get endpoint.
type Client struct {
	endpoint string
	apiKey   string
	email    string
	client   *http.Client
}

var _ translator.Translator = (*Client)(nil)

// NewClient returns a MyMemory client.
func NewClient(opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = PublicEndpoint
		if opts.RapidAPIKey != "" {
			endpoint = RapidAPIEndpoint
		}
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(opts.RapidAPIKey),
		email:    strings.TrimSpace(opts.Email),
		client:   httpclient.GetDefaultClient(),
	}
}

type response struct {
	ResponseData struct {
		TranslatedText   string      `json:"translatedText"`
		Match            json.Number `json:"match"`
		DetectedLanguage string      `json:"detectedLanguage"`
	} `json:"responseData"`
	// responseStatus arrives as a number or a numeric string.
	ResponseStatus  json.RawMessage `json:"responseStatus"`
	ResponseDetails string          `json:"responseDetails"`
}

func (r response) status() int {
	raw := strings.Trim(strings.TrimSpace(string(r.ResponseStatus)), `"`)
	if raw == "" {
		return http.StatusOK
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// Translate implements translator.Translator.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (translator.Result, error) {
	if strings.TrimSpace(text) == "" {
		return translator.Result{}, apperrors.BadRequest(fmt.Errorf("text is empty"))
	}
	src := sourceLang
	if src == "" || src == language.Auto {
		src = autodetect
	}

	q := url.Values{}
	q.Set("langpair", src+"|"+targetLang)
	q.Set("q", text)
	q.Set("mt", "1")
	q.Set("onlyprivate", "0")
	if c.email != "" {
		q.Set("de", c.email)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return translator.Result{}, apperrors.BadRequest(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
		req.Header.Set("X-RapidAPI-Host", hostOf(c.endpoint))
	}

	body, resp, err := httpclient.DoAndRead(c.client, req)
	if err != nil {
		if ctx.Err() != nil {
			return translator.Result{}, ctx.Err()
		}
		return translator.Result{}, apperrors.New(apperrors.KindTransient,
			"MyMemory request failed due to a temporary network error.",
			fmt.Errorf("mymemory request failed: %w", err))
	}
	if !httpclient.IsSuccess(resp) {
		return translator.Result{}, classifyStatus(resp.StatusCode, resp.Status, snippet(body))
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return translator.Result{}, apperrors.Validation(fmt.Errorf("decode mymemory response: %w", err))
	}
	if st := parsed.status(); st != http.StatusOK {
		return translator.Result{}, classifyStatus(st, strconv.Itoa(st), parsed.ResponseDetails)
	}
	translated := strings.TrimSpace(parsed.ResponseData.TranslatedText)
	if translated == "" {
		return translator.Result{}, apperrors.Validation(fmt.Errorf("mymemory returned no translation"))
	}

	logger.Debug("MyMemory translation received", "status", resp.Status, "match", parsed.ResponseData.Match.String())
	return translator.Result{
		TranslatedText:         translated,
		DetectedSourceLanguage: parsed.ResponseData.DetectedLanguage,
	}, nil
}

func classifyStatus(code int, status, detail string) error {
	cause := fmt.Errorf("mymemory status=%s detail=%s", status, detail)
	switch {
	case code == http.StatusTooManyRequests:
		return apperrors.New(apperrors.KindRateLimit, "MyMemory rate limit exceeded (429).", cause)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.New(apperrors.KindAuth, fmt.Sprintf("MyMemory rejected the credentials (%d).", code), cause)
	case code >= 500:
		return apperrors.New(apperrors.KindTransient, fmt.Sprintf("MyMemory server error (%d).", code), cause)
	default:
		return apperrors.New(apperrors.KindBadRequest, fmt.Sprintf("MyMemory API error (%s).", status), cause)
	}
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return RapidAPIHost
	}
	return u.Host
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
