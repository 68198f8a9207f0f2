package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	MangaUpdatesName       = "mangaupdates"
	defaultMangaUpdatesURL = "https://api.mangaupdates.com/v1"
	searchPageSize         = 5
	maxBodyBytes           = 2 << 20
)

// MangaUpdates looks up where an anime adaptation ends using the series
// metadata of api.mangaupdates.com. Alternate spellings of the title are
// tried in turn, capped at maxAttempts with a fixed delay in between.
type MangaUpdates struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	delay       time.Duration
	sleep       func(context.Context, time.Duration) error
	logger      *zap.Logger
}

// MangaUpdatesOption customizes the client.
type MangaUpdatesOption func(*MangaUpdates)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) MangaUpdatesOption {
	return func(m *MangaUpdates) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithAttempts sets how many title variants are tried and the pause between them.
func WithAttempts(attempts int, delay time.Duration) MangaUpdatesOption {
	return func(m *MangaUpdates) {
		m.maxAttempts = attempts
		m.delay = delay
	}
}

// WithSleeper replaces the inter-attempt wait (tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) MangaUpdatesOption {
	return func(m *MangaUpdates) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) MangaUpdatesOption {
	return func(m *MangaUpdates) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMangaUpdates(baseURL string, opts ...MangaUpdatesOption) *MangaUpdates {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultMangaUpdatesURL
	}
	m := &MangaUpdates{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		maxAttempts: 3,
		delay:       time.Second,
		sleep:       sleepContext,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = 1
	}
	m.logger = m.logger.With(zap.String("component", MangaUpdatesName))
	return m
}

func (m *MangaUpdates) Name() string { return MangaUpdatesName }

// Lookup returns the chapter after the one where the anime ends.
func (m *MangaUpdates) Lookup(ctx context.Context, title string) (Finding, error) {
	variants := TitleVariants(title, m.maxAttempts)
	if len(variants) == 0 {
		return Finding{}, newError(MangaUpdatesName, ErrorTypeNoContent, "empty title", nil)
	}

	var lastErr error
	for i, v := range variants {
		if i > 0 {
			if err := m.sleep(ctx, m.delay); err != nil {
				return Finding{}, newError(MangaUpdatesName, ErrorTypeTimeout, "lookup cancelled", err)
			}
		}
		f, err := m.lookupOnce(ctx, v)
		if err == nil {
			m.logger.Debug("anime end found",
				zap.String("query", v),
				zap.String("matched", f.MatchedTitle),
				zap.Int("end_chapter", f.EndChapter),
			)
			return f, nil
		}
		m.logger.Debug("variant failed", zap.String("query", v), zap.Int("attempt", i+1), zap.Error(err))
		lastErr = err
		if le, ok := err.(*LookupError); ok && le.Type != ErrorTypeNoContent && !le.IsRetryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return Finding{}, lastErr
}

type muSearchRequest struct {
	Search  string `json:"search"`
	PerPage int    `json:"per_page"`
}

type muSearchResponse struct {
	Results []struct {
		Record struct {
			SeriesID int64  `json:"series_id"`
			Title    string `json:"title"`
		} `json:"record"`
	} `json:"results"`
}

type muSeries struct {
	SeriesID int64  `json:"series_id"`
	Title    string `json:"title"`
	Anime    struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"anime"`
}

func (m *MangaUpdates) lookupOnce(ctx context.Context, title string) (Finding, error) {
	body, err := json.Marshal(muSearchRequest{Search: title, PerPage: searchPageSize})
	if err != nil {
		return Finding{}, newError(MangaUpdatesName, ErrorTypeUnknown, "encode search", err)
	}

	var search muSearchResponse
	if err := m.do(ctx, http.MethodPost, m.baseURL+"/series/search", bytes.NewReader(body), &search); err != nil {
		return Finding{}, err
	}
	if len(search.Results) == 0 {
		return Finding{}, newError(MangaUpdatesName, ErrorTypeNoContent, fmt.Sprintf("no series for %q", title), nil)
	}

	// exact title, else the first containing one, else the top hit
	best := search.Results[0].Record
	exact := false
	for _, r := range search.Results {
		if normalizeKey(r.Record.Title) == normalizeKey(title) {
			best, exact = r.Record, true
			break
		}
	}
	if !exact {
		for _, r := range search.Results {
			if sameTitle(r.Record.Title, title) {
				best = r.Record
				break
			}
		}
	}
	if best.SeriesID == 0 {
		return Finding{}, newError(MangaUpdatesName, ErrorTypeMalformed, "search result without series id", nil)
	}

	var series muSeries
	endpoint := m.baseURL + "/series/" + strconv.FormatInt(best.SeriesID, 10)
	if err := m.do(ctx, http.MethodGet, endpoint, nil, &series); err != nil {
		return Finding{}, err
	}
	end := strings.TrimSpace(series.Anime.End)
	if end == "" {
		return Finding{}, newError(MangaUpdatesName, ErrorTypeNoContent, "series has no anime end", nil)
	}
	chapter, volume, ok := ParseEndNote(end)
	if !ok {
		return Finding{}, newError(MangaUpdatesName, ErrorTypeNoContent, fmt.Sprintf("unparseable anime end %q", end), nil)
	}

	matched := series.Title
	if matched == "" {
		matched = best.Title
	}
	return Finding{
		Source:       MangaUpdatesName,
		MatchedTitle: matched,
		Chapter:      chapter + 1,
		EndChapter:   chapter,
		Volume:       volume,
		Detail:       end,
	}, nil
}

func (m *MangaUpdates) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return newError(MangaUpdatesName, ErrorTypeUnknown, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return requestError(ctx, MangaUpdatesName, err)
	}
	defer resp.Body.Close()
	m.logger.Debug("request complete",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return &LookupError{
			Type:       ErrorTypeUpstream,
			Source:     MangaUpdatesName,
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return requestError(ctx, MangaUpdatesName, err)
		}
		return newError(MangaUpdatesName, ErrorTypeMalformed, "decode response", err)
	}
	return nil
}

var (
	seasonSuffix = regexp.MustCompile(`(?i)[\s:-]*(?:\bseason\s*\d+|\b\d+(?:st|nd|rd|th)\s+season|\bpart\s*\d+|\bcour\s*\d+|\bs\d+)\s*$`)
	subtitleSep  = regexp.MustCompile(`\s*[:\-–]\s+`)
)

// TitleVariants lists the spellings worth searching for: the title as given,
// without a trailing season marker, then without its subtitle. Duplicates
// are dropped and at most max variants are returned.
func TitleVariants(title string, max int) []string {
	title = strings.TrimSpace(title)
	if title == "" || max <= 0 {
		return nil
	}
	candidates := []string{title, strings.TrimSpace(seasonSuffix.ReplaceAllString(title, ""))}
	if loc := subtitleSep.FindStringIndex(title); loc != nil && loc[0] > 0 {
		candidates = append(candidates, strings.TrimSpace(title[:loc[0]]))
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		key := normalizeKey(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
