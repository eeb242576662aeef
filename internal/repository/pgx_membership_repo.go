package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/mkravets/team-pulse/internal/db"
	"github.com/mkravets/team-pulse/internal/model"
)

type Membership struct {
	ID       string         `db:"id"`
	UserID   string         `db:"user_id"`
	TeamID   string         `db:"team_id"`
	Role     model.TeamRole `db:"role"`
	JoinedAt time.Time      `db:"joined_at"`
}

// MemberRow is a membership joined with the member's profile.
type MemberRow struct {
	Membership
	DisplayName string  `db:"display_name"`
	AvatarURL   *string `db:"avatar_url"`
	Email       string  `db:"email"`
}

type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	Get(ctx context.Context, userID, teamID string) (*Membership, error)
	ListByTeam(ctx context.Context, teamID string) ([]*MemberRow, error)
	CountByTeam(ctx context.Context, teamID string) (int, error)
	SetRole(ctx context.Context, userID, teamID string, role model.TeamRole) error
	Delete(ctx context.Context, userID, teamID string) error
}

type pgxMembershipRepository struct {
	pool *pgxpool.Pool
}

func NewPgxMembershipRepository(pool *pgxpool.Pool) MembershipRepository {
	return &pgxMembershipRepository{pool: pool}
}

func (p *pgxMembershipRepository) Create(ctx context.Context, m *Membership) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_memberships", "id", "user_id", "team_id", "role"),
		im.Values(psql.Arg(m.ID), psql.Arg(m.UserID), psql.Arg(m.TeamID), psql.Arg(m.Role)),
		im.Returning("id", "user_id", "team_id", "role", "joined_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	err = e.QueryRow(ctx, sql, args...).Scan(&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.JoinedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrAlreadyExists
		case "23503": // user or team row is gone
			return ErrNotFound
		}
	}
	return err
}

func (p *pgxMembershipRepository) Get(ctx context.Context, userID, teamID string) (*Membership, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "user_id", "team_id", "role", "joined_at"),
		sm.From("team_memberships"),
		sm.Where(
			psql.Quote("user_id").EQ(psql.Arg(userID)).
				And(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	m := &Membership{}
	if err = e.QueryRow(ctx, sql, args...).Scan(&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (p *pgxMembershipRepository) ListByTeam(ctx context.Context, teamID string) ([]*MemberRow, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(
			"m.id", "m.user_id", "m.team_id", "m.role", "m.joined_at",
			"u.display_name", "u.avatar_url", "u.email",
		),
		sm.From("team_memberships").As("m"),
		sm.InnerJoin("users").As("u").On(psql.Quote("u", "id").EQ(psql.Quote("m", "user_id"))),
		sm.Where(psql.Quote("m", "team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("m.joined_at"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*MemberRow, error) {
		m := &MemberRow{}
		if err = row.Scan(
			&m.ID, &m.UserID, &m.TeamID, &m.Role, &m.JoinedAt,
			&m.DisplayName, &m.AvatarURL, &m.Email,
		); err != nil {
			return nil, err
		}
		return m, nil
	})
}

func (p *pgxMembershipRepository) CountByTeam(ctx context.Context, teamID string) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("count(*)"),
		sm.From("team_memberships"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if err = e.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *pgxMembershipRepository) SetRole(ctx context.Context, userID, teamID string, role model.TeamRole) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("team_memberships"),
		um.SetCol("role").ToArg(role),
		um.Where(
			psql.Quote("user_id").EQ(psql.Arg(userID)).
				And(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *pgxMembershipRepository) Delete(ctx context.Context, userID, teamID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team_memberships"),
		dm.Where(
			psql.Quote("user_id").EQ(psql.Arg(userID)).
				And(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
