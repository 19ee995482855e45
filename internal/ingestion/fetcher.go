package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/cyderes/newsarticle-sync/internal/models"
)

const feedStatusSuccess = "success"

// feedResponse is the envelope returned by the news API
type feedResponse struct {
	Status string            `json:"status"`
	Data   []json.RawMessage `json:"data"`
}

// Fetcher downloads the news feed. It performs exactly one request per call.
type Fetcher struct {
	url        string
	httpClient *http.Client
}

// NewFetcher creates a fetcher for url using client
func NewFetcher(url string, client *http.Client) *Fetcher {
	return &Fetcher{url: url, httpClient: client}
}

// Fetch performs a single GET and returns the feed items in feed order
func (f *Fetcher) Fetch(ctx context.Context) ([]models.RawNewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, Err: fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Kind: FetchInvalidResponse, StatusCode: resp.StatusCode, Err: ErrBadStatus}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, &FetchError{Kind: FetchInvalidResponse, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrBadBody, err)}
	}
	if feed.Status != feedStatusSuccess {
		return nil, &FetchError{Kind: FetchInvalidResponse, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %q", ErrUnexpectedStatus, feed.Status)}
	}
	if len(feed.Data) == 0 {
		return nil, &FetchError{Kind: FetchInvalidResponse, StatusCode: resp.StatusCode, Err: ErrEmptyData}
	}

	items := make([]models.RawNewsItem, len(feed.Data))
	for i, raw := range feed.Data {
		// a malformed entry stays in place as an empty item and is skipped by validation
		if err := json.Unmarshal(raw, &items[i]); err != nil {
			log.Printf("[WARN] feed item %d is malformed, %v", i, err)
			items[i] = models.RawNewsItem{}
		}
	}

	return items, nil
}
