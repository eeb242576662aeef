package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"

	"github.com/mkravets/team-pulse/internal/db"
)

type Attachment struct {
	ID          string    `db:"id"`
	CheckInID   string    `db:"check_in_id"`
	URL         string    `db:"url"`
	Filename    string    `db:"filename"`
	StoragePath string    `db:"storage_path"`
	CreatedAt   time.Time `db:"created_at"`
}

type AttachmentRepository interface {
	Create(ctx context.Context, a *Attachment) error
	ListByCheckIn(ctx context.Context, checkInID string) ([]*Attachment, error)
	ListByCheckIns(ctx context.Context, checkInIDs []string) ([]*Attachment, error)
}

type pgxAttachmentRepository struct {
	pool *pgxpool.Pool
}

func NewPgxAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &pgxAttachmentRepository{pool: pool}
}

func (p *pgxAttachmentRepository) Create(ctx context.Context, a *Attachment) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("check_in_attachments", "id", "check_in_id", "url", "filename", "storage_path"),
		im.Values(psql.Arg(a.ID), psql.Arg(a.CheckInID), psql.Arg(a.URL), psql.Arg(a.Filename), psql.Arg(a.StoragePath)),
		im.Returning("id", "check_in_id", "url", "filename", "storage_path", "created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&a.ID, &a.CheckInID, &a.URL, &a.Filename, &a.StoragePath, &a.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}

func (p *pgxAttachmentRepository) ListByCheckIn(ctx context.Context, checkInID string) ([]*Attachment, error) {
	return p.ListByCheckIns(ctx, []string{checkInID})
}

func (p *pgxAttachmentRepository) ListByCheckIns(ctx context.Context, checkInIDs []string) ([]*Attachment, error) {
	if len(checkInIDs) == 0 {
		return nil, nil
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	ids := make([]any, 0, len(checkInIDs))
	for _, id := range checkInIDs {
		ids = append(ids, id)
	}

	q := psql.Select(
		sm.Columns("id", "check_in_id", "url", "filename", "storage_path", "created_at"),
		sm.From("check_in_attachments"),
		sm.Where(psql.Quote("check_in_id").In(psql.Arg(ids...))),
		sm.OrderBy("created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Attachment, error) {
		a := &Attachment{}
		if err = row.Scan(&a.ID, &a.CheckInID, &a.URL, &a.Filename, &a.StoragePath, &a.CreatedAt); err != nil {
			return nil, err
		}
		return a, nil
	})
}
