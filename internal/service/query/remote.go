package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"dataforge/internal/domain"
)

// RemoteClient executes SQL against the remote backend executor over HTTP.
type RemoteClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemoteClient creates a client for the remote executor endpoint.
// httpClient may be nil, in which case http.DefaultClient is used; callers
// that want deadlines set them on the request context.
func NewRemoteClient(baseURL, token string, httpClient *http.Client) *RemoteClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteClient{baseURL: baseURL, token: token, client: httpClient}
}

type remoteQueryRequest struct {
	SQL string `json:"sql"`
}

type remoteQueryResponse struct {
	Columns  []string        `json:"columns"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int             `json:"row_count"`
}

type remoteErrorResponse struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// Execute POSTs the statement to the executor and decodes the result matrix.
func (c *RemoteClient) Execute(ctx context.Context, sqlQuery string) (*domain.QueryResult, error) {
	body, err := json.Marshal(remoteQueryRequest{SQL: sqlQuery})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/execute/query", bytes.NewReader(body))
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

	var out remoteQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode remote result: %w", err)
	}
	if out.Rows == nil {
		out.Rows = [][]interface{}{}
	}
	if out.RowCount == 0 {
		out.RowCount = len(out.Rows)
	}
	return &domain.QueryResult{Columns: out.Columns, Rows: out.Rows, RowCount: out.RowCount}, nil
}

// remoteError surfaces the backend's detail string when present, falling back
// to a generic message.
func remoteError(resp *http.Response) error {
	var e remoteErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&e)
	msg := e.Detail
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = fmt.Sprintf("remote executor returned status %d", resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound("%s", msg)
	case http.StatusForbidden, http.StatusUnauthorized:
		return domain.ErrAccessDenied("%s", msg)
	case http.StatusBadRequest:
		return domain.ErrValidation("%s", msg)
	}
	return fmt.Errorf("%s", msg)
}

var _ RemoteExecutor = (*RemoteClient)(nil)
