// Package ingestion implements the file ingestion facade: name sanitization
// plus dispatch to the embedded engine or the remote upload-then-load flow.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dataforge/internal/domain"
	"dataforge/internal/engine"
)

// EngineLoader is the embedded-engine surface ingestion needs.
type EngineLoader interface {
	LoadFile(ctx context.Context, path, tableName, format string) (*domain.TableHandle, error)
	ListTables(ctx context.Context) ([]domain.TableHandle, error)
	DescribeTable(ctx context.Context, tableName string) (*domain.TableHandle, error)
	DropTable(ctx context.Context, tableName string) error
	ExportCSV(ctx context.Context, tableName string, w io.Writer) error
}

// Stager stages uploaded bytes to a local path readable by the engine.
type Stager interface {
	Save(filename string, r io.Reader) (string, error)
	Remove(path string) error
}

// UploadPresigner issues presigned PUT URLs for remote-mode staging.
type UploadPresigner interface {
	PresignPutObject(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// RemoteLoader commits a staged object into a remote table.
type RemoteLoader interface {
	LoadTable(ctx context.Context, table, key, format string) (*domain.TableHandle, error)
	ListTables(ctx context.Context) ([]domain.TableHandle, error)
}

// UploadURLResult is the response of the remote-mode presign step.
type UploadURLResult struct {
	UploadURL string    `json:"upload_url"`
	Key       string    `json:"key"`
	Table     string    `json:"table"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expires_at"`
}

const uploadURLExpiry = time.Hour

// Service dispatches file ingestion by execution mode.
type Service struct {
	engine    EngineLoader
	stager    Stager
	presigner UploadPresigner // nil when S3 staging is not configured
	remote    RemoteLoader    // nil when no remote executor is configured
	audit     domain.AuditRepository
	logger    *slog.Logger
}

// NewService creates the ingestion facade. presigner and remote may be nil.
func NewService(
	eng EngineLoader,
	stager Stager,
	presigner UploadPresigner,
	remote RemoteLoader,
	audit domain.AuditRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		engine:    eng,
		stager:    stager,
		presigner: presigner,
		remote:    remote,
		audit:     audit,
		logger:    logger,
	}
}

// ResolveTableName applies the override when given, else derives the name
// from the filename. Either way the result is sanitized.
func ResolveTableName(filename string, override string) string {
	if override != "" {
		return engine.SanitizeTableName(override)
	}
	return engine.SanitizeTableName(filename)
}

// Upload ingests a file into the embedded engine: stage, load, unstage.
// Replaces a same-named table silently (last write wins). Remote mode is
// rejected here; remote uploads go through RequestUploadURL and
// CommitRemoteLoad instead.
func (s *Service) Upload(ctx context.Context, user *domain.User, mode domain.ExecutionMode, filename, nameOverride string, r io.Reader) (*domain.TableHandle, error) {
	if mode == domain.ModeRemote {
		return nil, domain.ErrValidation("direct upload is embedded-only; in remote mode request a presigned URL via /storage/upload-url and commit it with /storage/load")
	}
	format, err := engine.FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}
	table := ResolveTableName(filename, nameOverride)

	path, err := s.stager.Save(filename, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := s.stager.Remove(path); rmErr != nil {
			s.logger.Warn("remove staged file failed", "path", path, "error", rmErr)
		}
	}()

	handle, err := s.engine.LoadFile(ctx, path, table, format)
	if err != nil {
		s.logAudit(ctx, user, "storage.upload", domain.AuditStatusError,
			fmt.Sprintf("load %s into %s: %v", filename, table, err))
		return nil, err
	}

	s.logAudit(ctx, user, "storage.upload", domain.AuditStatusAllowed,
		fmt.Sprintf("loaded %s into %s (%d rows)", filename, table, handle.RowCount))
	return handle, nil
}

// RequestUploadURL starts the remote-mode two-step flow: the caller PUTs the
// file to the returned URL, then commits with the key.
func (s *Service) RequestUploadURL(ctx context.Context, user *domain.User, filename, nameOverride string) (*UploadURLResult, error) {
	if s.presigner == nil {
		return nil, domain.ErrUnavailable("remote upload staging is not configured")
	}
	format, err := engine.FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}
	table := ResolveTableName(filename, nameOverride)

	key := fmt.Sprintf("uploads/%s/%s_%s", table, uuid.NewString(), filename)
	url, err := s.presigner.PresignPutObject(ctx, key, uploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("generate upload URL: %w", err)
	}

	s.logAudit(ctx, user, "storage.upload_url", domain.AuditStatusAllowed,
		fmt.Sprintf("presigned %s for table %s", key, table))

	return &UploadURLResult{
		UploadURL: url,
		Key:       key,
		Table:     table,
		Format:    format,
		ExpiresAt: time.Now().Add(uploadURLExpiry),
	}, nil
}

// CommitRemoteLoad finishes the remote-mode flow by loading the uploaded
// object into a table on the remote executor.
func (s *Service) CommitRemoteLoad(ctx context.Context, user *domain.User, table, key, format string) (*domain.TableHandle, error) {
	if s.remote == nil {
		return nil, domain.ErrUnavailable("remote execution is not configured")
	}
	if key == "" {
		return nil, domain.ErrValidation("key is required")
	}
	table = engine.SanitizeTableName(table)

	handle, err := s.remote.LoadTable(ctx, table, key, format)
	if err != nil {
		s.logAudit(ctx, user, "storage.remote_load", domain.AuditStatusError,
			fmt.Sprintf("load %s into %s: %v", key, table, err))
		return nil, err
	}

	s.logAudit(ctx, user, "storage.remote_load", domain.AuditStatusAllowed,
		fmt.Sprintf("loaded %s into %s", key, table))
	return handle, nil
}

// ListTables lists table handles in the given mode's engine.
func (s *Service) ListTables(ctx context.Context, mode domain.ExecutionMode) ([]domain.TableHandle, error) {
	if mode == domain.ModeRemote {
		if s.remote == nil {
			return nil, domain.ErrUnavailable("remote execution is not configured")
		}
		return s.remote.ListTables(ctx)
	}
	return s.engine.ListTables(ctx)
}

// DescribeTable returns one embedded-engine table handle.
func (s *Service) DescribeTable(ctx context.Context, tableName string) (*domain.TableHandle, error) {
	return s.engine.DescribeTable(ctx, tableName)
}

// DropTable removes an embedded-engine table.
func (s *Service) DropTable(ctx context.Context, user *domain.User, tableName string) error {
	if err := s.engine.DropTable(ctx, tableName); err != nil {
		return err
	}
	s.logAudit(ctx, user, "storage.drop", domain.AuditStatusAllowed, tableName)
	return nil
}

// ExportCSV streams an embedded-engine table as CSV.
func (s *Service) ExportCSV(ctx context.Context, tableName string, w io.Writer) error {
	return s.engine.ExportCSV(ctx, tableName, w)
}

func (s *Service) logAudit(ctx context.Context, user *domain.User, action, status, detail string) {
	_ = s.audit.Insert(ctx, &domain.AuditEntry{
		UserEmail: user.Email,
		Action:    action,
		Status:    status,
		Detail:    detail,
	})
}
