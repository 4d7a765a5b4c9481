package api

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"leadscope/adapters/excel"
	"leadscope/internal/errors"
)

// SeriesFetcher downloads one indicator series from a REST endpoint
type SeriesFetcher struct {
	source     SeriesSource
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// page is one parsed response
type page struct {
	keys   []string
	values []float64
	cursor string
}

// NewSeriesFetcher validates source and builds a fetcher. A nil client gets
// one with the source timeout.
func NewSeriesFetcher(source SeriesSource, client *http.Client, logger zerolog.Logger) (*SeriesFetcher, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	source = source.WithDefaults()
	if client == nil {
		client = &http.Client{Timeout: source.Timeout}
	}

	settings := gobreaker.Settings{
		Name:    source.Name,
		Timeout: source.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= source.BreakerFailures
		},
	}

	return &SeriesFetcher{
		source:     source,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(source.RateLimit)), 1),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger.With().Str("source", source.Name).Logger(),
	}, nil
}

// Name is the series name the fetched values are stored under
func (f *SeriesFetcher) Name() string {
	return f.source.Name
}

// Fetch walks every page and returns a single-series table. Records whose
// value is missing or not numeric become NaN.
func (f *SeriesFetcher) Fetch(ctx context.Context) (*excel.SeriesTable, error) {
	start := time.Now()
	var keys []string
	var values []float64
	cursor := ""

	for pageIndex := 0; pageIndex < f.source.MaxPages; pageIndex++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter wait aborted")
		}

		requestURL, err := f.buildURL(cursor, pageIndex)
		if err != nil {
			return nil, err
		}
		raw, err := f.breaker.Execute(func() (interface{}, error) {
			return f.get(ctx, requestURL)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch %s page %d", f.source.Name, pageIndex)
		}

		p, err := f.parse(raw.([]byte))
		if err != nil {
			return nil, err
		}
		keys = append(keys, p.keys...)
		values = append(values, p.values...)

		if !f.hasMorePages(p) {
			break
		}
		cursor = p.cursor
	}

	if len(values) == 0 {
		return nil, errors.InsufficientData("source " + f.source.Name + " returned no records")
	}
	if f.source.KeyField == "" {
		keys = make([]string, len(values))
		for i := range keys {
			keys[i] = strconv.Itoa(i)
		}
	}

	table := excel.NewKeyedTable(keys)
	if err := table.AddSeries(f.source.Name, values); err != nil {
		return nil, err
	}
	f.logger.Debug().
		Int("records", len(values)).
		Dur("elapsed", time.Since(start)).
		Msg("series fetched")
	return table, nil
}

// buildURL adds the configured query parameters and pagination
func (f *SeriesFetcher) buildURL(cursor string, pageIndex int) (string, error) {
	u, err := url.Parse(f.source.URL)
	if err != nil {
		return "", errors.Wrap(errors.ConfigInvalid(err.Error()), "bad source url")
	}
	q := u.Query()
	for k, v := range f.source.QueryParams {
		q.Set(k, v)
	}
	switch f.source.PaginationType {
	case "offset":
		q.Set("offset", strconv.Itoa(pageIndex*f.source.PageSize))
		q.Set("limit", strconv.Itoa(f.source.PageSize))
	case "page":
		q.Set("page", strconv.Itoa(pageIndex+1))
		q.Set("per_page", strconv.Itoa(f.source.PageSize))
	case "cursor":
		if cursor != "" {
			q.Set("cursor", cursor)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *SeriesFetcher) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range f.source.Headers {
		req.Header.Set(k, v)
	}
	switch f.source.AuthMethod {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+f.source.AuthToken)
	case "api_key":
		req.Header.Set("X-API-Key", f.source.AuthToken)
	case "basic":
		req.SetBasicAuth(f.source.Username, f.source.Password)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// parse extracts keys and values from a response body
func (f *SeriesFetcher) parse(body []byte) (page, error) {
	if !gjson.ValidBytes(body) {
		return page{}, errors.InvalidInput("response from " + f.source.Name + " is not valid JSON")
	}
	data := gjson.ParseBytes(body)
	if f.source.DataPath != "" {
		data = data.Get(f.source.DataPath)
	}
	if !data.IsArray() {
		return page{}, errors.InvalidInput(fmt.Sprintf("data path %q of %s is not an array", f.source.DataPath, f.source.Name))
	}

	var p page
	data.ForEach(func(_, record gjson.Result) bool {
		if f.source.KeyField != "" {
			p.keys = append(p.keys, record.Get(f.source.KeyField).String())
		}
		p.values = append(p.values, numeric(record.Get(f.source.ValueField)))
		return true
	})
	p.cursor = nextCursor(body)
	return p, nil
}

// hasMorePages stops on short or empty pages and on a missing cursor
func (f *SeriesFetcher) hasMorePages(p page) bool {
	switch f.source.PaginationType {
	case "offset", "page":
		return len(p.values) >= f.source.PageSize
	case "cursor":
		return p.cursor != "" && len(p.values) > 0
	}
	return false
}

func numeric(value gjson.Result) float64 {
	switch value.Type {
	case gjson.Number:
		return value.Float()
	case gjson.String:
		if v, err := strconv.ParseFloat(strings.TrimSpace(value.Str), 64); err == nil {
			return v
		}
	}
	return math.NaN()
}

func nextCursor(body []byte) string {
	for _, field := range []string{"next_cursor", "cursor", "next", "continuation_token"} {
		if cursor := gjson.GetBytes(body, field); cursor.Exists() && cursor.String() != "" {
			return cursor.String()
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
