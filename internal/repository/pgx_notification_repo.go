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
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/mkravets/team-pulse/internal/db"
	"github.com/mkravets/team-pulse/internal/model"
)

type Notification struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	Type      string     `db:"type"`
	Title     string     `db:"title"`
	Body      string     `db:"body"`
	ReadAt    *time.Time `db:"read_at"`
	CreatedAt time.Time  `db:"created_at"`
}

type NotificationPreference struct {
	ID              string                `db:"id"`
	UserID          string                `db:"user_id"`
	TeamID          string                `db:"team_id"`
	ReminderEnabled bool                  `db:"reminder_enabled"`
	ReminderTime    string                `db:"reminder_time"`
	DigestFrequency model.DigestFrequency `db:"digest_frequency"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string, at time.Time) (*Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) error
	GetPreference(ctx context.Context, userID, teamID string) (*NotificationPreference, error)
	UpsertPreference(ctx context.Context, p *NotificationPreference) error
}

type pgxNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPgxNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgxNotificationRepository{pool: pool}
}

var notificationColumns = []any{"id", "user_id", "type", "title", "body", "read_at", "created_at"}

func scanNotification(row pgx.Row) (*Notification, error) {
	n := &Notification{}
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (p *pgxNotificationRepository) Create(ctx context.Context, n *Notification) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("notifications", "id", "user_id", "type", "title", "body"),
		im.Values(psql.Arg(n.ID), psql.Arg(n.UserID), psql.Arg(n.Type), psql.Arg(n.Title), psql.Arg(n.Body)),
		im.Returning(notificationColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	created, err := scanNotification(e.QueryRow(ctx, sql, args...))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	*n = *created
	return nil
}

func (p *pgxNotificationRepository) List(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(notificationColumns...),
		sm.From("notifications"),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.OrderBy("created_at").Desc(),
	)

	if unreadOnly {
		q.Apply(sm.Where(psql.Quote("read_at").IsNull()))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Notification, error) {
		return scanNotification(row)
	})
}

func (p *pgxNotificationRepository) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) (*Notification, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	// Only unread rows are touched; re-reading is a no-op on read_at.
	q := psql.Update(
		um.Table("notifications"),
		um.SetCol("read_at").To(psql.F("coalesce", psql.Quote("read_at"), psql.Arg(at))),
		um.Where(
			psql.Quote("id").EQ(psql.Arg(notificationID)).
				And(psql.Quote("user_id").EQ(psql.Arg(userID))),
		),
		um.Returning(notificationColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	n, err := scanNotification(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (p *pgxNotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("notifications"),
		um.SetCol("read_at").ToArg(at),
		um.Where(
			psql.Quote("user_id").EQ(psql.Arg(userID)).
				And(psql.Quote("read_at").IsNull()),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxNotificationRepository) GetPreference(ctx context.Context, userID, teamID string) (*NotificationPreference, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "user_id", "team_id", "reminder_enabled", "reminder_time", "digest_frequency"),
		sm.From("notification_preferences"),
		sm.Where(
			psql.Quote("user_id").EQ(psql.Arg(userID)).
				And(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	pref := &NotificationPreference{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&pref.ID, &pref.UserID, &pref.TeamID,
		&pref.ReminderEnabled, &pref.ReminderTime, &pref.DigestFrequency,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return pref, nil
}

func (p *pgxNotificationRepository) UpsertPreference(ctx context.Context, pref *NotificationPreference) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("notification_preferences", "id", "user_id", "team_id", "reminder_enabled", "reminder_time", "digest_frequency"),
		im.Values(
			psql.Arg(pref.ID), psql.Arg(pref.UserID), psql.Arg(pref.TeamID),
			psql.Arg(pref.ReminderEnabled), psql.Arg(pref.ReminderTime), psql.Arg(pref.DigestFrequency),
		),
		im.OnConflict(psql.Quote("user_id"), psql.Quote("team_id")).DoUpdate(
			im.SetCol("reminder_enabled").ToArg(pref.ReminderEnabled),
			im.SetCol("reminder_time").ToArg(pref.ReminderTime),
			im.SetCol("digest_frequency").ToArg(pref.DigestFrequency),
		),
		im.Returning("id", "user_id", "team_id", "reminder_enabled", "reminder_time", "digest_frequency"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	var pgErr *pgconn.PgError
	err = e.QueryRow(ctx, sql, args...).Scan(
		&pref.ID, &pref.UserID, &pref.TeamID,
		&pref.ReminderEnabled, &pref.ReminderTime, &pref.DigestFrequency,
	)
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}
