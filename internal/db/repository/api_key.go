package repository

import (
	"context"
	"database/sql"
	"time"

	"dataforge/internal/domain"
)

type APIKeyRepo struct {
	db *sql.DB
}

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo {
	return &APIKeyRepo{db: db}
}

func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (user_id, name, key_prefix, key_hash, expires_at) VALUES (?, ?, ?, ?, ?)`,
		k.UserID, k.Name, k.KeyPrefix, k.KeyHash, nullTime(k.ExpiresAt))
	if err != nil {
		return mapDBError(err)
	}
	k.ID, err = res.LastInsertId()
	return err
}

func (r *APIKeyRepo) GetByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	var k domain.APIKey
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, key_prefix, key_hash, expires_at, created_at
		 FROM api_keys WHERE key_hash = ?`, hash).
		Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.KeyHash, &expires, &k.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	k.ExpiresAt = fromNullTime(expires)
	return &k, nil
}

func (r *APIKeyRepo) ListByUser(ctx context.Context, userID int64, page domain.PageRequest) ([]domain.APIKey, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM api_keys WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, key_prefix, key_hash, expires_at, created_at
		 FROM api_keys WHERE user_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		var expires sql.NullTime
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.KeyHash, &expires, &k.CreatedAt); err != nil {
			return nil, 0, err
		}
		k.ExpiresAt = fromNullTime(expires)
		keys = append(keys, k)
	}
	return keys, total, rows.Err()
}

func (r *APIKeyRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	return requireRowAffected(res, "api key %d", id)
}

func (r *APIKeyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return 0, mapDBError(err)
	}
	return res.RowsAffected()
}

var _ domain.APIKeyRepository = (*APIKeyRepo)(nil)
