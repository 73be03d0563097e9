// Package retriever wraps the external document-retrieval collaborator.
package retriever

import "context"

// Document is one retrieved content chunk.
type Document struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Retriever returns the documents most relevant to a query. The index
// itself is an opaque external service.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}
