package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscope/internal/errors"
)

func TestSeriesFetcher_PagedRecords(t *testing.T) {
	pages := map[string]string{
		"1": `{"data":{"items":[{"date":"d1","value":1.5},{"date":"d2","value":"2.5"}]}}`,
		"2": `{"data":{"items":[{"date":"d3","value":null}]}}`,
	}
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "trends", r.URL.Query().Get("kind"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, pages[r.URL.Query().Get("page")])
	}))
	defer srv.Close()

	fetcher, err := NewSeriesFetcher(SeriesSource{
		Name:           "searches",
		URL:            srv.URL + "/series",
		QueryParams:    map[string]string{"kind": "trends"},
		AuthMethod:     "bearer",
		AuthToken:      "secret",
		DataPath:       "data.items",
		KeyField:       "date",
		ValueField:     "value",
		PaginationType: "page",
		PageSize:       2,
		RateLimit:      60000,
	}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "searches", fetcher.Name())

	table, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"d1", "d2", "d3"}, table.Keys)
	values, ok := table.Column("searches")
	require.True(t, ok)
	assert.Equal(t, []float64{1.5, 2.5}, values[:2])
	assert.True(t, math.IsNaN(values[2]))
}

func TestSeriesFetcher_CursorPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprint(w, `{"rows":[{"v":1},{"v":2}],"next_cursor":"abc"}`)
			return
		}
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		fmt.Fprint(w, `{"rows":[{"v":3}]}`)
	}))
	defer srv.Close()

	fetcher, err := NewSeriesFetcher(SeriesSource{
		Name:           "lead",
		URL:            srv.URL,
		DataPath:       "rows",
		ValueField:     "v",
		PaginationType: "cursor",
		RateLimit:      60000,
	}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	table, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	values, _ := table.Column("lead")
	assert.Equal(t, []float64{1, 2, 3}, values)
	assert.Equal(t, []string{"0", "1", "2"}, table.Keys)
}

func TestSeriesFetcher_Failures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	fetcher, err := NewSeriesFetcher(SeriesSource{
		Name:            "flaky",
		URL:             srv.URL,
		ValueField:      "v",
		RateLimit:       60000,
		BreakerFailures: 1,
	}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	_, err = fetcher.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSeriesFetcher_BadPayloads(t *testing.T) {
	bodies := map[string]string{
		"not json":  `<html>`,
		"no array":  `{"rows":{"v":1}}`,
		"empty set": `{"rows":[]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			fetcher, err := NewSeriesFetcher(SeriesSource{
				Name:       "bad",
				URL:        srv.URL,
				DataPath:   "rows",
				ValueField: "v",
			}, srv.Client(), zerolog.Nop())
			require.NoError(t, err)

			_, err = fetcher.Fetch(context.Background())
			require.Error(t, err)
		})
	}
}

func TestSeriesSource_Validate(t *testing.T) {
	_, err := NewSeriesFetcher(SeriesSource{Name: "x", URL: "not a url", ValueField: "v"}, nil, zerolog.Nop())
	assert.True(t, errors.IsConfigurationError(err))

	_, err = NewSeriesFetcher(SeriesSource{Name: "x", URL: "http://localhost/x"}, nil, zerolog.Nop())
	assert.True(t, errors.IsConfigurationError(err))

	_, err = NewSeriesFetcher(SeriesSource{Name: "x", URL: "http://localhost/x", ValueField: "v", PaginationType: "scroll"}, nil, zerolog.Nop())
	assert.True(t, errors.IsConfigurationError(err))

	src := SeriesSource{Name: "x", URL: "http://localhost/x", ValueField: "v"}.WithDefaults()
	assert.Equal(t, "none", src.PaginationType)
	assert.Equal(t, 60, src.RateLimit)
	assert.Equal(t, uint32(3), src.BreakerFailures)
}
