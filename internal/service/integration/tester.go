package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dataforge/internal/domain"
)

// HTTPTester probes providers whose credential bag carries a reachable URL
// (key "url" or "endpoint"). Providers without one pass trivially: their
// credentials were already validated as JSON.
type HTTPTester struct {
	Client *http.Client
}

// NewHTTPTester creates a tester with a short-timeout client.
func NewHTTPTester() *HTTPTester {
	return &HTTPTester{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *HTTPTester) Test(ctx context.Context, provider, credentials string) error {
	var bag map[string]interface{}
	if err := json.Unmarshal([]byte(credentials), &bag); err != nil {
		return domain.ErrValidation("credentials must be a JSON object")
	}

	target := stringField(bag, "url")
	if target == "" {
		target = stringField(bag, "endpoint")
	}
	if target == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return domain.ErrValidation("invalid %s endpoint: %v", provider, err)
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", provider, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s returned status %d", provider, resp.StatusCode)
	}
	return nil
}

func stringField(bag map[string]interface{}, key string) string {
	if v, ok := bag[key].(string); ok {
		return v
	}
	return ""
}

var _ Tester = (*HTTPTester)(nil)
