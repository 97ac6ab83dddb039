// Package counters allocates document numbers for producer documents
// the same way entry numbers are allocated: from a Postgres sequence,
// never MAX()+1.
package counters

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository hands out document numbers.
type Repository interface {
	NextDocumentNumber(ctx context.Context) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed counters repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// NextDocumentNumber pulls the next value from the shared document
// sequence. Numbers are unique across document kinds; the kind lives
// in the formatted prefix, not the counter.
func (r *repository) NextDocumentNumber(ctx context.Context) (int64, error) {
	var number int64
	err := r.db.QueryRow(ctx, `SELECT nextval('ledger_document_number_seq')`).Scan(&number)
	return number, err
}
