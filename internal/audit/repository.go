package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists and queries audit rows. The table is insert-only;
// no update or delete statement exists anywhere in this package.
type Repository interface {
	Insert(ctx context.Context, e Entry) error
	InsertTx(ctx context.Context, tx pgx.Tx, e Entry) error
	Timeline(ctx context.Context, f TimelineFilters) ([]Entry, error)
}

// TimelineFilters narrows a timeline query.
type TimelineFilters struct {
	From   time.Time
	To     time.Time
	Actor  string
	Entity string
	Action string
	Limit  int
	Offset int
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed audit repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const insertSQL = `INSERT INTO audit_log (actor, action, entity, entity_id, payload, occurred_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6, NOW()))`

func (r *repository) Insert(ctx context.Context, e Entry) error {
	payload, err := EncodePayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, insertSQL, e.Actor, e.Action, e.Entity, e.EntityID, payload, nullTime(e.OccurredAt))
	return err
}

// InsertTx writes the row inside the caller's transaction so the audit
// record commits or aborts together with the action it describes.
func (r *repository) InsertTx(ctx context.Context, tx pgx.Tx, e Entry) error {
	payload, err := EncodePayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertSQL, e.Actor, e.Action, e.Entity, e.EntityID, payload, nullTime(e.OccurredAt))
	return err
}

func (r *repository) Timeline(ctx context.Context, f TimelineFilters) ([]Entry, error) {
	var query strings.Builder
	query.WriteString(`SELECT id, actor, action, entity, entity_id, payload, occurred_at FROM audit_log WHERE 1=1`)
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		query.WriteString(" AND " + clause + "$" + strconv.Itoa(len(args)))
	}
	if !f.From.IsZero() {
		add("occurred_at >= ", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at <= ", f.To)
	}
	if f.Actor != "" {
		add("actor = ", f.Actor)
	}
	if f.Entity != "" {
		add("entity = ", f.Entity)
	}
	if f.Action != "" {
		add("action = ", f.Action)
	}
	query.WriteString(" ORDER BY occurred_at DESC, id DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	rows, err := r.db.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Entity, &e.EntityID, &raw, &e.OccurredAt); err != nil {
			return nil, err
		}
		payload, err := DecodePayload(raw)
		if err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
