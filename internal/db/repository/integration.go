package repository

import (
	"context"
	"database/sql"
	"time"

	"dataforge/internal/db/crypto"
	"dataforge/internal/domain"
)

// IntegrationRepo stores provider integrations with the credential bag
// encrypted at rest.
type IntegrationRepo struct {
	db        *sql.DB
	encryptor *crypto.Encryptor
}

func NewIntegrationRepo(db *sql.DB, encryptor *crypto.Encryptor) *IntegrationRepo {
	return &IntegrationRepo{db: db, encryptor: encryptor}
}

const integrationColumns = `id, provider, name, credentials_enc, last_test_ok,
	last_tested_at, created_by, created_at, updated_at`

func (r *IntegrationRepo) scanIntegration(scan func(dest ...interface{}) error) (*domain.Integration, error) {
	var i domain.Integration
	var enc string
	var testOK sql.NullInt64
	var testedAt sql.NullTime
	err := scan(&i.ID, &i.Provider, &i.Name, &enc, &testOK, &testedAt,
		&i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	if testOK.Valid {
		ok := testOK.Int64 != 0
		i.LastTestOK = &ok
	}
	i.LastTestedAt = fromNullTime(testedAt)

	plain, err := r.encryptor.Decrypt(enc)
	if err != nil {
		return nil, err
	}
	i.Credentials = plain
	return &i, nil
}

func (r *IntegrationRepo) Create(ctx context.Context, i *domain.Integration) (*domain.Integration, error) {
	enc, err := r.encryptor.Encrypt(i.Credentials)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO integrations (id, provider, name, credentials_enc, created_by)
		 VALUES (?, ?, ?, ?, ?)`,
		i.ID, i.Provider, i.Name, enc, i.CreatedBy)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetByID(ctx, i.ID)
}

func (r *IntegrationRepo) GetByID(ctx context.Context, id string) (*domain.Integration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE id = ?`, id)
	return r.scanIntegration(row.Scan)
}

func (r *IntegrationRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Integration, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM integrations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var integrations []domain.Integration
	for rows.Next() {
		i, err := r.scanIntegration(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		integrations = append(integrations, *i)
	}
	return integrations, total, rows.Err()
}

func (r *IntegrationRepo) UpdateCredentials(ctx context.Context, id string, credentials string) error {
	enc, err := r.encryptor.Encrypt(credentials)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE integrations SET credentials_enc = ?, updated_at = ? WHERE id = ?`,
		enc, time.Now().UTC(), id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "integration %s", id)
}

func (r *IntegrationRepo) RecordTest(ctx context.Context, id string, ok bool, testedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE integrations SET last_test_ok = ?, last_tested_at = ? WHERE id = ?`,
		boolToInt(ok), testedAt, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "integration %s", id)
}

func (r *IntegrationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM integrations WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "integration %s", id)
}

var _ domain.IntegrationRepository = (*IntegrationRepo)(nil)
