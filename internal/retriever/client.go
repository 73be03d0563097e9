package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPRetriever queries a vector-index service over HTTP.
type HTTPRetriever struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRetriever creates a client for the index service at baseURL.
func NewHTTPRetriever(baseURL string) *HTTPRetriever {
	return &HTTPRetriever{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Documents []Document `json:"documents"`
}

// Search asks the index for the k most relevant documents.
func (r *HTTPRetriever) Search(ctx context.Context, query string, k int) ([]Document, error) {
	body, err := json.Marshal(searchRequest{Query: query, K: k})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: unexpected status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Documents, nil
}
