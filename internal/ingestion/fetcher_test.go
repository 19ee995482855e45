package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/newsarticle-sync/internal/models"
)

func newFeedServer(t *testing.T, status int, body string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetcher_Fetch(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, `{"status":"success","data":[
		{"source":"BBC","title":"A","description":"d1","pubDate":"2024-01-01T00:00:00Z"},
		{"source":"CNN","title":"B","description":"d2","pubDate":"2024-01-02T00:00:00Z"}
	]}`)

	items, err := NewFetcher(server.URL, &http.Client{Timeout: 5 * time.Second}).Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.RawNewsItem{Source: "BBC", Title: "A", Description: "d1", PubDate: "2024-01-01T00:00:00Z"}, items[0])
	assert.Equal(t, "CNN", items[1].Source)
}

func TestFetcher_Fetch_MalformedEntryBecomesEmptyItem(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, `{"status":"success","data":[
		{"source":"BBC","title":5},
		"just a string",
		{"source":"CNN","title":"B"}
	]}`)

	items, err := NewFetcher(server.URL, http.DefaultClient).Fetch(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, models.RawNewsItem{}, items[0])
	assert.Equal(t, models.RawNewsItem{}, items[1])
	assert.Equal(t, "B", items[2].Title)
}

func TestFetcher_Fetch_InvalidResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "", want: ErrBadStatus},
		{name: "not found", status: http.StatusNotFound, body: `{"status":"success","data":[{}]}`, want: ErrBadStatus},
		{name: "invalid json", status: http.StatusOK, body: "invalid json", want: ErrBadBody},
		{name: "status not success", status: http.StatusOK, body: `{"status":"error","data":[{"title":"A"}]}`, want: ErrUnexpectedStatus},
		{name: "missing status", status: http.StatusOK, body: `{"data":[{"title":"A"}]}`, want: ErrUnexpectedStatus},
		{name: "empty data", status: http.StatusOK, body: `{"status":"success","data":[]}`, want: ErrEmptyData},
		{name: "missing data", status: http.StatusOK, body: `{"status":"success"}`, want: ErrEmptyData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFeedServer(t, tt.status, tt.body)

			items, err := NewFetcher(server.URL, http.DefaultClient).Fetch(context.Background())

			assert.Nil(t, items)
			assert.ErrorIs(t, err, tt.want)
			var fetchErr *FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, FetchInvalidResponse, fetchErr.Kind)
			assert.Equal(t, tt.status, fetchErr.StatusCode)
		})
	}
}

func TestFetcher_Fetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewFetcher(url, http.DefaultClient).Fetch(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, FetchNetwork, fetchErr.Kind)
	assert.Contains(t, err.Error(), "fetch network")
}

func TestFetcher_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewFetcher(server.URL, &http.Client{Timeout: 20 * time.Millisecond}).Fetch(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, FetchNetwork, fetchErr.Kind)
}
