package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// Repository resolves account-mapping configuration.
type Repository interface {
	Get(ctx context.Context, key string) (AccountMapping, error)
	Set(ctx context.Context, key string, accountID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed mapping repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves the account configured for a key. A missing row is a
// configuration error, not an internal failure.
func (r *repository) Get(ctx context.Context, key string) (AccountMapping, error) {
	if key == "" {
		return AccountMapping{}, errors.New("ledger: mapping key required")
	}
	normalized := strings.ToUpper(key)
	var m AccountMapping
	err := r.db.QueryRow(ctx, `SELECT key, account_id, created_at, updated_at FROM account_mappings WHERE key=$1`, normalized).
		Scan(&m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, fmt.Errorf("%s: %w", normalized, shared.ErrMappingNotFound)
		}
		return AccountMapping{}, err
	}
	return m, nil
}

func (r *repository) Set(ctx context.Context, key string, accountID int64) error {
	if key == "" || accountID == 0 {
		return errors.New("ledger: mapping key and account required")
	}
	_, err := r.db.Exec(ctx, `INSERT INTO account_mappings (key, account_id)
VALUES ($1,$2) ON CONFLICT (key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()`,
		strings.ToUpper(key), accountID)
	return err
}
