package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	internaldb "dataforge/internal/db"
	"dataforge/internal/db/crypto"
	"dataforge/internal/db/repository"
	"dataforge/internal/domain"
	"dataforge/internal/middleware"
	"dataforge/internal/service/admin"
	"dataforge/internal/service/ingestion"
	"dataforge/internal/service/integration"
	"dataforge/internal/service/query"
	"dataforge/internal/service/storage"
	"dataforge/internal/service/template"
	"dataforge/internal/service/workflow"
)

const (
	testJWTSecret = "api-test-secret"
	testEncKey    = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	adminEmail    = "root@example.com"
	adminPassword = "root-password-1"
	freeEmail     = "analyst@example.com"
	freePassword  = "analyst-password-1"
)

// memEngine is an in-memory stand-in for the embedded engine session.
type memEngine struct {
	mu     sync.Mutex
	tables map[string]*domain.TableHandle
}

func newMemEngine() *memEngine {
	return &memEngine{tables: make(map[string]*domain.TableHandle)}
}

func (e *memEngine) ExecuteQuery(_ context.Context, sqlBody string) (*domain.QueryResult, error) {
	if strings.Contains(sqlBody, "missing_table") {
		return nil, domain.ErrNotFound("table %q not found", "missing_table")
	}
	return &domain.QueryResult{
		Columns:  []string{"value"},
		Rows:     [][]interface{}{{int64(1)}},
		RowCount: 1,
	}, nil
}

func (e *memEngine) LoadFile(_ context.Context, _, tableName, _ string) (*domain.TableHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := &domain.TableHandle{
		Name:     tableName,
		Columns:  []domain.ColumnInfo{{Name: "region", Type: "VARCHAR"}, {Name: "total", Type: "BIGINT"}},
		RowCount: 2,
	}
	e.tables[tableName] = h
	return h, nil
}

func (e *memEngine) ListTables(_ context.Context) ([]domain.TableHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.TableHandle, 0, len(e.tables))
	for _, h := range e.tables {
		out = append(out, *h)
	}
	return out, nil
}

func (e *memEngine) DescribeTable(_ context.Context, tableName string) (*domain.TableHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.tables[tableName]
	if !ok {
		return nil, domain.ErrNotFound("table %q not found", tableName)
	}
	return h, nil
}

func (e *memEngine) DropTable(_ context.Context, tableName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tables[tableName]; !ok {
		return domain.ErrNotFound("table %q not found", tableName)
	}
	delete(e.tables, tableName)
	return nil
}

func (e *memEngine) ExportCSV(_ context.Context, tableName string, w io.Writer) error {
	if _, err := e.DescribeTable(context.Background(), tableName); err != nil {
		return err
	}
	_, err := io.WriteString(w, "region,total\nnorth,12\nsouth,30\n")
	return err
}

func (e *memEngine) ExportCSVToFile(_ context.Context, _, _ string) error { return nil }

type testServer struct {
	srv    *httptest.Server
	engine *memEngine
}

// setupTestServer wires a full API over real SQLite with an admin and a
// free-plan account seeded.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	writeDB, _ := internaldb.OpenTestSQLite(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	users := repository.NewUserRepo(writeDB)
	keys := repository.NewAPIKeyRepo(writeDB)
	audit := repository.NewAuditRepo(writeDB)
	history := repository.NewQueryHistoryRepo(writeDB)
	workflows := repository.NewWorkflowRepo(writeDB)
	runs := repository.NewWorkflowRunRepo(writeDB)
	templates := repository.NewTemplateRepo(writeDB)

	enc, err := crypto.NewEncryptor(testEncKey)
	require.NoError(t, err)
	integrations := repository.NewIntegrationRepo(writeDB, enc)

	userSvc := admin.NewUserService(users, audit, logger)
	authSvc := admin.NewAuthService(users, audit, testJWTSecret, time.Hour, logger)
	keySvc := admin.NewAPIKeyService(keys, users, audit, logger)
	auditSvc := admin.NewAuditService(audit)

	bootstrap := &domain.User{Email: "system@localhost"}
	adminUser, err := userSvc.Create(ctx, bootstrap, domain.CreateUserRequest{
		Email: adminEmail, Password: adminPassword,
	})
	require.NoError(t, err)
	require.NoError(t, users.SetPlan(ctx, adminUser.ID, domain.PlanAdmin))
	_, err = userSvc.Create(ctx, bootstrap, domain.CreateUserRequest{
		Email: freeEmail, Password: freePassword,
	})
	require.NoError(t, err)

	eng := newMemEngine()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	querySvc := query.NewService(eng, nil, users, history, audit, logger)
	ingestSvc := ingestion.NewService(eng, store, nil, nil, audit, logger)
	workflowSvc := workflow.NewService(workflows, runs, templates, audit, eng, logger)
	integrationSvc := integration.NewService(integrations, audit,
		integration.TesterFunc(func(context.Context, string, string) error { return nil }), logger)
	templateSvc := template.NewService(templates, audit, logger)

	a := New(authSvc, userSvc, keySvc, auditSvc, querySvc, ingestSvc, workflowSvc, integrationSvc, templateSvc, logger)

	validator, err := middleware.NewHS256Validator(testJWTSecret)
	require.NoError(t, err)

	router := a.Router(RouterConfig{
		Validator:          validator,
		Users:              users,
		Keys:               keySvc,
		RateLimit:          middleware.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, ProMultiplier: 2},
		CORSAllowedOrigins: []string{"*"},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, engine: eng}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestAPI_Healthz(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_AuthFlow(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("login and me", func(t *testing.T) {
		token := ts.login(t, adminEmail, adminPassword)

		resp := ts.do(t, http.MethodGet, "/auth/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var me userResponse
		decodeBody(t, resp, &me)
		assert.Equal(t, adminEmail, me.Email)
		assert.Equal(t, domain.PlanAdmin, me.Plan)
	})

	t.Run("bad password", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": adminEmail, "password": "wrong",
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		var envelope errorResponse
		decodeBody(t, resp, &envelope)
		assert.Equal(t, http.StatusForbidden, envelope.Code)
		assert.Equal(t, "invalid email or password", envelope.Message)
	})

	t.Run("missing token", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/auth/me", "", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/auth/me", "not-a-jwt", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPI_ExecuteQuery(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, freeEmail, freePassword)

	t.Run("success", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/execute/query", token, map[string]string{"sql": "SELECT 1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var result domain.QueryResult
		decodeBody(t, resp, &result)
		assert.Equal(t, []string{"value"}, result.Columns)
		assert.Equal(t, 1, result.RowCount)
	})

	t.Run("empty sql", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/execute/query", token, map[string]string{"sql": "  "})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var envelope errorResponse
		decodeBody(t, resp, &envelope)
		assert.Contains(t, envelope.Message, "sql query is required")
	})

	t.Run("engine error maps to 404", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/execute/query", token, map[string]string{"sql": "SELECT * FROM missing_table"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("remote mode unavailable", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/execute/query",
			strings.NewReader(`{"sql": "SELECT 1"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Execution-Mode", "remote")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		var envelope errorResponse
		decodeBody(t, resp, &envelope)
		assert.Contains(t, envelope.Message, "remote execution is not configured")
	})

	t.Run("history records statements", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/execute/history", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var envelope struct {
			Items []historyEntryResponse `json:"items"`
			Total int64                  `json:"total"`
		}
		decodeBody(t, resp, &envelope)
		assert.GreaterOrEqual(t, envelope.Total, int64(2), "success and failure are both recorded")
	})

	t.Run("mode round trip", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/execute/mode", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var mode modeResponse
		decodeBody(t, resp, &mode)
		assert.Equal(t, "embedded", mode.Mode)

		resp = ts.do(t, http.MethodPut, "/execute/mode", token, map[string]string{"mode": "remote"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = ts.do(t, http.MethodGet, "/execute/mode", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &mode)
		assert.Equal(t, "remote", mode.Mode)

		resp = ts.do(t, http.MethodPut, "/execute/mode", token, map[string]string{"mode": "quantum"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_StorageLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, freeEmail, freePassword)

	t.Run("upload", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "Q3 sales.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte("region,total\nnorth,12\nsouth,30\n"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/storage/upload", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var handle domain.TableHandle
		decodeBody(t, resp, &handle)
		assert.Equal(t, "Q3_sales", handle.Name, "filename is sanitized into the table name")
		assert.Equal(t, int64(2), handle.RowCount)
	})

	t.Run("upload in remote mode is rejected", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "remote.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte("a,b\n1,2\n"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/storage/upload", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(modeHeader, "remote")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var envelope errorResponse
		decodeBody(t, resp, &envelope)
		assert.Contains(t, envelope.Message, "upload-url", "error should point at the presigned flow")
	})

	t.Run("list and describe", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/storage/tables", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var tables tablesResponse
		decodeBody(t, resp, &tables)
		require.Len(t, tables.Tables, 1)

		resp = ts.do(t, http.MethodGet, "/storage/tables/Q3_sales", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var handle domain.TableHandle
		decodeBody(t, resp, &handle)
		assert.Equal(t, "Q3_sales", handle.Name)
	})

	t.Run("export csv", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/storage/tables/Q3_sales/export", token, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "Q3_sales.csv")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(body), "region,total\n"))
	})

	t.Run("upload-url without s3", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/storage/upload-url", token, map[string]string{"filename": "big.parquet"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("drop", func(t *testing.T) {
		resp := ts.do(t, http.MethodDelete, "/storage/tables/Q3_sales", token, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = ts.do(t, http.MethodGet, "/storage/tables/Q3_sales", token, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAPI_WorkflowLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, freeEmail, freePassword)

	create := map[string]interface{}{
		"name":        "sales-rollup",
		"source":      map[string]string{"type": "table"},
		"destination": map[string]string{"type": "table"},
	}

	resp := ts.do(t, http.MethodPost, "/workflows", token, create)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created workflowResponse
	decodeBody(t, resp, &created)
	assert.Equal(t, "sales-rollup", created.Name)
	assert.Equal(t, 1, created.ConcurrencyLimit)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/workflows", token, create)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		var envelope errorResponse
		decodeBody(t, resp, &envelope)
		assert.Equal(t, http.StatusConflict, envelope.Code)
	})

	t.Run("trigger without steps rejected", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/workflows/sales-rollup/trigger", token, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var envelope errorResponse
		decodeBody(t, resp, &envelope)
		assert.Contains(t, envelope.Message, "no steps")
	})

	resp = ts.do(t, http.MethodPost, "/workflows/sales-rollup/steps", token, map[string]interface{}{
		"name": "aggregate",
		"sql":  "CREATE TABLE rollup AS SELECT 1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var step stepResponse
	decodeBody(t, resp, &step)
	assert.Equal(t, "aggregate", step.Name)

	t.Run("trigger runs to completion", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/workflows/sales-rollup/trigger", token, nil)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		var run runResponse
		decodeBody(t, resp, &run)
		require.NotEmpty(t, run.ID)

		require.Eventually(t, func() bool {
			resp := ts.do(t, http.MethodGet, "/workflows/runs/"+run.ID, token, nil)
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				return false
			}
			var got runResponse
			decodeBody(t, resp, &got)
			return got.Status == domain.WorkflowRunStatusSuccess
		}, 10*time.Second, 50*time.Millisecond)

		resp = ts.do(t, http.MethodGet, "/workflows/runs/"+run.ID+"/steps", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var steps struct {
			Items []stepRunResponse `json:"items"`
		}
		decodeBody(t, resp, &steps)
		require.Len(t, steps.Items, 1)
		assert.Equal(t, domain.StepRunStatusSuccess, steps.Items[0].Status)

		resp = ts.do(t, http.MethodGet, "/workflows/sales-rollup/runs", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var runsEnvelope struct {
			Items []runResponse `json:"items"`
			Total int64         `json:"total"`
		}
		decodeBody(t, resp, &runsEnvelope)
		assert.Equal(t, int64(1), runsEnvelope.Total)
	})

	t.Run("pause and resume", func(t *testing.T) {
		resp := ts.do(t, http.MethodPut, "/workflows/sales-rollup/paused", token, map[string]bool{"is_paused": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var wf workflowResponse
		decodeBody(t, resp, &wf)
		assert.True(t, wf.IsPaused)
	})

	t.Run("delete", func(t *testing.T) {
		resp := ts.do(t, http.MethodDelete, "/workflows/sales-rollup", token, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = ts.do(t, http.MethodGet, "/workflows/sales-rollup", token, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		var envelope errorResponse
		decodeBody(t, resp, &envelope)
		assert.Equal(t, http.StatusNotFound, envelope.Code)
	})
}

func TestAPI_Templates(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, freeEmail, freePassword)

	resp := ts.do(t, http.MethodPost, "/templates", token, map[string]string{
		"name": "daily-rollup",
		"sql":  "SELECT day, SUM(total) FROM orders GROUP BY day",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created templateResponse
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)

	resp = ts.do(t, http.MethodPut, "/templates/"+created.ID, token, map[string]string{
		"sql": "SELECT day, COUNT(*) FROM orders GROUP BY day",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated templateResponse
	decodeBody(t, resp, &updated)
	assert.Contains(t, updated.SQL, "COUNT(*)")

	resp = ts.do(t, http.MethodDelete, "/templates/"+created.ID, token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/templates/"+created.ID, token, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_APIKeys(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, freeEmail, freePassword)

	resp := ts.do(t, http.MethodPost, "/keys", token, map[string]string{"name": "ci"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Key string `json:"key"`
		ID  int64  `json:"id"`
	}
	decodeBody(t, resp, &created)
	require.True(t, strings.HasPrefix(created.Key, "dfk_"))

	t.Run("key authenticates via header", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set("X-API-Key", created.Key)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var me userResponse
		decodeBody(t, resp, &me)
		assert.Equal(t, freeEmail, me.Email)
	})

	t.Run("revoked key stops working", func(t *testing.T) {
		resp := ts.do(t, http.MethodDelete, fmt.Sprintf("/keys/%d", created.ID), token, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set("X-API-Key", created.Key)
		got, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer got.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, got.StatusCode)
	})
}

func TestAPI_Integrations(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, freeEmail, freePassword)

	resp := ts.do(t, http.MethodPost, "/integrations", token, map[string]interface{}{
		"provider":    "s3",
		"name":        "landing-bucket",
		"credentials": map[string]string{"access_key": "AKIA123", "secret_key": "s3cret"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created integrationResponse
	decodeBody(t, resp, &created)
	assert.Equal(t, "********", created.Credentials, "credentials never leave the server")

	resp = ts.do(t, http.MethodPost, "/integrations/"+created.ID+"/test", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tested integrationResponse
	decodeBody(t, resp, &tested)
	require.NotNil(t, tested.LastTestOK)
	assert.True(t, *tested.LastTestOK)
}

func TestAPI_AdminScope(t *testing.T) {
	ts := setupTestServer(t)
	adminToken := ts.login(t, adminEmail, adminPassword)
	freeToken := ts.login(t, freeEmail, freePassword)

	t.Run("free plan forbidden", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/admin/users", freeToken, nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin manages accounts", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/admin/users", adminToken, map[string]string{
			"email":    "new-analyst@example.com",
			"password": "a-long-password",
			"plan":     "pro",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created userResponse
		decodeBody(t, resp, &created)
		assert.Equal(t, domain.PlanPro, created.Plan)

		resp = ts.do(t, http.MethodPut, fmt.Sprintf("/admin/users/%d/plan", created.ID), adminToken,
			map[string]string{"plan": "free"})
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = ts.do(t, http.MethodGet, "/admin/users", adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var envelope struct {
			Items []userResponse `json:"items"`
			Total int64          `json:"total"`
		}
		decodeBody(t, resp, &envelope)
		assert.Equal(t, int64(3), envelope.Total)
	})

	t.Run("audit log captures activity", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/admin/audit?action=user.create", adminToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var envelope struct {
			Items []auditEntryResponse `json:"items"`
			Total int64                `json:"total"`
		}
		decodeBody(t, resp, &envelope)
		assert.GreaterOrEqual(t, envelope.Total, int64(1))
	})
}
