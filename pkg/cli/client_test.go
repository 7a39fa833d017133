package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	var gotAuth, gotKey, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		gotMethod = r.Method

		switch r.URL.Path {
		case "/echo":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"got": body["msg"]})
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 404, "message": "workflow \"x\" not found"})
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream exploded"))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	t.Run("bearer token preferred over api key", func(t *testing.T) {
		c := NewClient(srv.URL+"/", "dfk_secret", "jwt-token")
		var out map[string]string
		err := c.Do(context.Background(), http.MethodPost, "/echo", map[string]string{"msg": "hi"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "hi", out["got"])
		assert.Equal(t, "Bearer jwt-token", gotAuth)
		assert.Empty(t, gotKey)
		assert.Equal(t, "/echo", gotPath, "trailing base slash is trimmed")
		assert.Equal(t, http.MethodPost, gotMethod)
	})

	t.Run("api key when no token", func(t *testing.T) {
		c := NewClient(srv.URL, "dfk_secret", "")
		require.NoError(t, c.Do(context.Background(), http.MethodGet, "/empty", nil, nil))
		assert.Empty(t, gotAuth)
		assert.Equal(t, "dfk_secret", gotKey)
	})

	t.Run("error envelope decoded", func(t *testing.T) {
		c := NewClient(srv.URL, "", "")
		err := c.Do(context.Background(), http.MethodGet, "/missing", nil, nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)
		assert.Equal(t, 404, apiErr.Code)
		assert.Equal(t, `workflow "x" not found`, apiErr.Error())
	})

	t.Run("non-json error body kept as message", func(t *testing.T) {
		c := NewClient(srv.URL, "", "")
		err := c.Do(context.Background(), http.MethodGet, "/broken", nil, nil)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.HTTPStatus)
		assert.Equal(t, "upstream exploded", apiErr.Message)
	})
}

func TestClient_UploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"filename": header.Filename,
			"table":    r.FormValue("table"),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "tok")
	var out map[string]string
	err := c.UploadFile(context.Background(), "/storage/upload", "file", "sales.csv",
		strings.NewReader("a,b\n1,2\n"), map[string]string{"table": "sales", "skip": ""}, &out)
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", out["filename"])
	assert.Equal(t, "sales", out["table"])
}

func TestClient_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 404, "message": "not here"})
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")

	var buf strings.Builder
	require.NoError(t, c.Download(context.Background(), "/export", &buf))
	assert.Equal(t, "a,b\n1,2\n", buf.String())

	err := c.Download(context.Background(), "/gone", &buf)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not here", apiErr.Message)
}

func TestAPIError_FallbackMessage(t *testing.T) {
	err := &APIError{HTTPStatus: 500}
	assert.Equal(t, "server returned status 500", err.Error())
	assert.False(t, errors.Is(err, context.Canceled))
}
