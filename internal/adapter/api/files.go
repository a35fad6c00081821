package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker/v2"

	"agentdesk/internal/domain"
	"agentdesk/internal/infra/tracer"
)

// ListFiles returns the uploaded workspace files.
func (c *Client) ListFiles(ctx context.Context) ([]domain.FileInfo, error) {
	var out struct {
		Files []domain.FileInfo `json:"files"`
	}
	if err := c.get(ctx, "/api/files", &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// UploadFile streams one file to the workspace as multipart form data.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader) (*domain.FileInfo, error) {
	return c.upload(ctx, "/api/files", name, r)
}

// DeleteFile removes one workspace file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.delete(ctx, "/api/files/"+url.PathEscape(fileID))
}

// upload performs a multipart POST with a single "file" part. Shared with
// the RAG endpoints.
func (c *Client) upload(ctx context.Context, path, name string, r io.Reader) (*domain.FileInfo, error) {
	op := "api.upload " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapOp(op, err)
	}

	ctx, span := tracer.StartSpan(ctx, "api.upload")
	span.SetAttributes(tracer.StringAttr("file.name", name))
	defer span.End()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if err := mw.Close(); err != nil {
		return nil, domain.WrapOp(op, err)
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, http.MethodPost, path, mw.FormDataContentType(), bytes.NewReader(buf.Bytes()))
	})
	if err != nil {
		tracer.RecordError(span, err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewDomainError(op, domain.ErrServerError, "circuit breaker open")
		}
		return nil, domain.WrapOp(op, err)
	}

	var out domain.FileInfo
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, domain.WrapOp(op, err)
		}
	}
	return &out, nil
}
