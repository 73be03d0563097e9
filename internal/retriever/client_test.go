package retriever

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)

		var req struct {
			Query string `json:"query"`
			K     int    `json:"k"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "warranty terms", req.Query)
		assert.Equal(t, 3, req.K)

		json.NewEncoder(w).Encode(map[string]any{
			"documents": []Document{
				{ID: "d1", Content: "Warranty covers 5 years.", Score: 0.92},
				{ID: "d2", Content: "Claims need proof of purchase.", Score: 0.81},
			},
		})
	}))
	defer srv.Close()

	docs, err := NewHTTPRetriever(srv.URL).Search(context.Background(), "warranty terms", 3)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d1", docs[0].ID)
	assert.Equal(t, 0.92, docs[0].Score)
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPRetriever(srv.URL).Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}
