// Package app provides application-level wiring and dependency injection.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dataforge/internal/config"
	"dataforge/internal/db/crypto"
	"dataforge/internal/db/repository"
	"dataforge/internal/engine"
	"dataforge/internal/middleware"
	"dataforge/internal/service/admin"
	"dataforge/internal/service/ingestion"
	"dataforge/internal/service/integration"
	"dataforge/internal/service/query"
	"dataforge/internal/service/storage"
	"dataforge/internal/service/template"
	"dataforge/internal/service/workflow"
)

// Deps holds the external dependencies that main() must provide: database
// handles, the engine session, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	Engine  *engine.Session
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// Services groups the service pointers the API layer needs.
type Services struct {
	Auth        *admin.AuthService
	User        *admin.UserService
	APIKey      *admin.APIKeyService
	Audit       *admin.AuditService
	Query       *query.Service
	Ingestion   *ingestion.Service
	Workflow    *workflow.Service
	Integration *integration.Service
	Template    *template.Service
}

// App holds the fully wired application.
type App struct {
	Services  Services
	Scheduler *workflow.Scheduler
	Validator middleware.TokenValidator
	UserRepo  *repository.UserRepo
	KeyAuth   middleware.KeyAuthenticator
}

// New wires repositories and services from the provided deps and seeds the
// bootstrap admin account.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	// Repositories on the write pool: everything that mutates, plus the
	// mixed read/write repos (query history records every execution).
	userRepo := repository.NewUserRepo(deps.WriteDB)
	apiKeyRepo := repository.NewAPIKeyRepo(deps.WriteDB)
	workflowRepo := repository.NewWorkflowRepo(deps.WriteDB)
	runRepo := repository.NewWorkflowRunRepo(deps.WriteDB)
	integrationRepo := repository.NewIntegrationRepo(deps.WriteDB, encryptor)
	templateRepo := repository.NewTemplateRepo(deps.WriteDB)
	auditRepo := repository.NewAuditRepo(deps.WriteDB)
	historyRepo := repository.NewQueryHistoryRepo(deps.WriteDB)

	// Repositories on the read pool: the per-request auth lookups in the
	// middleware and the audit log listing. These never write, so they can
	// ride the multi-connection pool.
	userLookupRepo := repository.NewUserRepo(deps.ReadDB)
	keyLookupRepo := repository.NewAPIKeyRepo(deps.ReadDB)
	auditLogRepo := repository.NewAuditRepo(deps.ReadDB)

	if err := seedAdmin(ctx, userRepo, deps.Logger); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	// Optional remote execution backend.
	var remoteClient *query.RemoteClient
	if cfg.Remote.BaseURL != "" {
		remoteClient = query.NewRemoteClient(cfg.Remote.BaseURL, cfg.Remote.Token, &http.Client{Timeout: 60 * time.Second})
		deps.Logger.Info("remote execution enabled", "url", cfg.Remote.BaseURL)
	}

	var queryRemote query.RemoteExecutor
	if remoteClient != nil {
		queryRemote = remoteClient
	}
	querySvc := query.NewService(
		deps.Engine, queryRemote, userRepo, historyRepo, auditRepo,
		deps.Logger.With("component", "query"),
	)

	stager, err := storage.NewLocalStore(cfg.WarehouseDir)
	if err != nil {
		return nil, fmt.Errorf("warehouse dir: %w", err)
	}

	// Optional S3 staging for remote-mode uploads.
	var presigner ingestion.UploadPresigner
	if cfg.HasS3Config() {
		s3cfg := storage.S3Config{
			KeyID:    *cfg.S3KeyID,
			Secret:   *cfg.S3Secret,
			Endpoint: *cfg.S3Endpoint,
			Region:   *cfg.S3Region,
		}
		if cfg.S3Bucket != nil {
			s3cfg.Bucket = *cfg.S3Bucket
		}
		p, err := storage.NewS3Presigner(s3cfg)
		if err != nil {
			deps.Logger.Warn("could not create S3 presigner", "error", err)
		} else {
			presigner = p
			deps.Logger.Info("S3 upload staging enabled", "bucket", p.Bucket())
		}
	}

	var ingestRemote ingestion.RemoteLoader
	if remoteClient != nil {
		ingestRemote = remoteClient
	}
	ingestSvc := ingestion.NewService(
		deps.Engine, stager, presigner, ingestRemote, auditRepo,
		deps.Logger.With("component", "ingestion"),
	)

	workflowSvc := workflow.NewService(
		workflowRepo, runRepo, templateRepo, auditRepo, deps.Engine,
		deps.Logger.With("component", "workflow"),
	)
	scheduler := workflow.NewScheduler(
		workflowSvc, workflowRepo, userRepo,
		deps.Logger.With("component", "scheduler"),
	)
	workflowSvc.SetScheduleReloader(scheduler)

	integrationSvc := integration.NewService(
		integrationRepo, auditRepo, integration.NewHTTPTester(),
		deps.Logger.With("component", "integration"),
	)
	templateSvc := template.NewService(templateRepo, auditRepo, deps.Logger.With("component", "template"))

	authSvc := admin.NewAuthService(
		userRepo, auditRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL,
		deps.Logger.With("component", "auth"),
	)
	userSvc := admin.NewUserService(userRepo, auditRepo, deps.Logger.With("component", "users"))
	apiKeySvc := admin.NewAPIKeyService(apiKeyRepo, userRepo, auditRepo, deps.Logger.With("component", "apikeys"))
	auditSvc := admin.NewAuditService(auditLogRepo)

	// Separate authenticator instance for the API-key middleware so its
	// per-request hash lookups stay off the single-connection write pool.
	keyAuth := admin.NewAPIKeyService(keyLookupRepo, userLookupRepo, auditRepo, deps.Logger.With("component", "apikeys"))

	validator, err := buildValidator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		Services: Services{
			Auth:        authSvc,
			User:        userSvc,
			APIKey:      apiKeySvc,
			Audit:       auditSvc,
			Query:       querySvc,
			Ingestion:   ingestSvc,
			Workflow:    workflowSvc,
			Integration: integrationSvc,
			Template:    templateSvc,
		},
		Scheduler: scheduler,
		Validator: validator,
		UserRepo:  userLookupRepo,
		KeyAuth:   keyAuth,
	}, nil
}

// buildValidator returns the HS256 validator, chained with OIDC when an
// external issuer is configured.
func buildValidator(ctx context.Context, cfg *config.Config) (middleware.TokenValidator, error) {
	local, err := middleware.NewHS256Validator(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	if !cfg.Auth.OIDCEnabled() {
		return local, nil
	}
	oidcValidator, err := middleware.NewOIDCValidator(ctx, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCClientID)
	if err != nil {
		return nil, fmt.Errorf("oidc validator: %w", err)
	}
	return middleware.ChainValidator{local, oidcValidator}, nil
}
