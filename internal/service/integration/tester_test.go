package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTester(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	tester := NewHTTPTester()
	ctx := context.Background()

	t.Run("reachable url passes", func(t *testing.T) {
		assert.NoError(t, tester.Test(ctx, "webhook", `{"url":"`+healthy.URL+`"}`))
	})

	t.Run("endpoint key also recognized", func(t *testing.T) {
		assert.NoError(t, tester.Test(ctx, "s3", `{"endpoint":"`+healthy.URL+`"}`))
	})

	t.Run("5xx fails", func(t *testing.T) {
		err := tester.Test(ctx, "webhook", `{"url":"`+broken.URL+`"}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("4xx still passes", func(t *testing.T) {
		denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer denied.Close()
		// The endpoint exists and answered; auth happens at use time.
		assert.NoError(t, tester.Test(ctx, "webhook", `{"url":"`+denied.URL+`"}`))
	})

	t.Run("no url passes trivially", func(t *testing.T) {
		assert.NoError(t, tester.Test(ctx, "postgres", `{"host":"db","password":"x"}`))
	})

	t.Run("unreachable host fails", func(t *testing.T) {
		err := tester.Test(ctx, "webhook", `{"url":"http://127.0.0.1:1"}`)
		assert.Error(t, err)
	})

	t.Run("invalid json fails", func(t *testing.T) {
		assert.Error(t, tester.Test(ctx, "webhook", `not json`))
	})
}
