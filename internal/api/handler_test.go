package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-metrics/internal/model"
)

type fakeReader struct {
	rows        map[string][]model.DailyMetric
	checkpoints map[string]time.Time
	err         error

	lastFrom, lastTo string
}

func (f *fakeReader) ListDailyMetrics(_ context.Context, repo, from, to string) ([]model.DailyMetric, error) {
	f.lastFrom, f.lastTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	var out []model.DailyMetric
	for _, r := range f.rows[repo] {
		if r.Date >= from && r.Date <= to {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReader) LookupCheckpoint(_ context.Context, org, repo string) (time.Time, bool, error) {
	if org != "strands-agents" {
		return time.Time{}, false, nil
	}
	t, ok := f.checkpoints[repo]
	return t, ok, nil
}

func newTestServer(t *testing.T, reader *fakeReader) *httptest.Server {
	t.Helper()
	h := &Handler{
		db:     reader,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		org:    "strands-agents",
		now:    func() time.Time { return time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC) },
	}
	server := httptest.NewServer(newRouter(h))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, server *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t, &fakeReader{})

	resp, body := get(t, server, "/health")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestGetMetrics(t *testing.T) {
	avg := 5.0
	reader := &fakeReader{
		rows: map[string][]model.DailyMetric{
			"sdk": {
				{Date: "2024-06-01", Repo: "sdk", PRsOpened: 2, TimeToFirstResponse: &avg},
				{Date: "2024-06-02", Repo: "sdk", Stars: 10},
			},
		},
		checkpoints: map[string]time.Time{
			"sdk":   time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
			"quiet": time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		},
	}
	server := newTestServer(t, reader)

	t.Run("explicit range", func(t *testing.T) {
		resp, body := get(t, server, "/v1/repos/sdk/metrics?from=2024-06-01&to=2024-06-01")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rows []map[string]any
		require.NoError(t, json.Unmarshal(body, &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "2024-06-01", rows[0]["date"])
		assert.EqualValues(t, 2, rows[0]["prs_opened"])
		assert.EqualValues(t, 5, rows[0]["time_to_first_response"])
		assert.Nil(t, rows[0]["time_to_merge_internal"])
	})

	t.Run("defaults to the trailing thirty days", func(t *testing.T) {
		resp, body := get(t, server, "/v1/repos/sdk/metrics")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2024-05-16", reader.lastFrom)
		assert.Equal(t, "2024-06-15", reader.lastTo)

		var rows []model.DailyMetric
		require.NoError(t, json.Unmarshal(body, &rows))
		assert.Len(t, rows, 2)
	})

	t.Run("synced repository without rows returns an empty list", func(t *testing.T) {
		resp, body := get(t, server, "/v1/repos/quiet/metrics")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[]`, string(body))
	})

	t.Run("unknown repository", func(t *testing.T) {
		resp, _ := get(t, server, "/v1/repos/nope/metrics")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed date", func(t *testing.T) {
		resp, body := get(t, server, "/v1/repos/sdk/metrics?from=06-01-2024")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(body), "'from'")
	})

	t.Run("inverted range", func(t *testing.T) {
		resp, _ := get(t, server, "/v1/repos/sdk/metrics?from=2024-06-10&to=2024-06-01")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetMetrics_StoreError(t *testing.T) {
	server := newTestServer(t, &fakeReader{err: errors.New("disk I/O error")})

	resp, body := get(t, server, "/v1/repos/sdk/metrics")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Internal server error"}`, string(body))
}

func TestGetCheckpoint(t *testing.T) {
	server := newTestServer(t, &fakeReader{
		checkpoints: map[string]time.Time{"sdk": time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)},
	})

	resp, body := get(t, server, "/v1/repos/sdk/checkpoint")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"repo":"sdk","last_sync":"2024-06-15T12:00:00Z"}`, string(body))

	resp, _ = get(t, server, "/v1/repos/docs/checkpoint")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
