package api

import (
	"context"
	"io"
	"net/url"

	"agentdesk/internal/domain"
)

// ListRAGFiles returns the documents in the retrieval index with their
// ingestion status.
func (c *Client) ListRAGFiles(ctx context.Context) ([]domain.RAGFile, error) {
	var out struct {
		Files []domain.RAGFile `json:"files"`
	}
	if err := c.get(ctx, "/api/rag/files", &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// UploadRAGFile submits a document for ingestion. The returned record starts
// in the pending state; callers poll ListRAGFiles for completion.
func (c *Client) UploadRAGFile(ctx context.Context, name string, r io.Reader) (*domain.RAGFile, error) {
	info, err := c.upload(ctx, "/api/rag/files", name, r)
	if err != nil {
		return nil, err
	}
	return &domain.RAGFile{
		ID:        info.ID,
		Name:      info.Name,
		Status:    domain.RAGPending,
		CreatedAt: info.CreatedAt,
	}, nil
}

// DeleteRAGFile removes a document from the retrieval index.
func (c *Client) DeleteRAGFile(ctx context.Context, fileID string) error {
	return c.delete(ctx, "/api/rag/files/" + url.PathEscape(fileID))
}
