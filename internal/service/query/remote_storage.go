package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"dataforge/internal/domain"
)

// Remote storage operations: the upload-then-load sequence against the
// backend executor. The client never holds file bytes; uploads go directly
// to object storage via presigned URLs and only the key is committed here.

type remoteLoadRequest struct {
	Table  string `json:"table"`
	Key    string `json:"key"`
	Format string `json:"format"`
}

// LoadTable asks the remote executor to load a previously uploaded object
// into a table.
func (c *RemoteClient) LoadTable(ctx context.Context, table, key, format string) (*domain.TableHandle, error) {
	body, err := json.Marshal(remoteLoadRequest{Table: table, Key: key, Format: format})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/storage/load", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote executor: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp)
	}

	var handle domain.TableHandle
	if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
		return nil, fmt.Errorf("decode remote table handle: %w", err)
	}
	return &handle, nil
}

// ListTables returns the remote executor's table handles.
func (c *RemoteClient) ListTables(ctx context.Context) ([]domain.TableHandle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/storage/tables", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote executor: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp)
	}

	var out struct {
		Tables []domain.TableHandle `json:"tables"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode remote tables: %w", err)
	}
	return out.Tables, nil
}
