package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/mkravets/team-pulse/internal/db"
)

type Team struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	LogoURL    *string   `db:"logo_url"`
	InviteCode string    `db:"invite_code"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type TeamPatch struct {
	ID      string  `db:"id"`
	Name    *string `db:"name"`
	LogoURL *string `db:"logo_url"`
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	Get(ctx context.Context, teamID string) (*Team, error)
	GetByInviteCode(ctx context.Context, code string) (*Team, error)
	ListForUser(ctx context.Context, userID string) ([]*Team, error)
	Patch(ctx context.Context, patch *TeamPatch) (*Team, error)
	SetInviteCode(ctx context.Context, teamID, code string) (*Team, error)
	Delete(ctx context.Context, teamID string) error
}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

var teamColumns = []any{"id", "name", "logo_url", "invite_code", "created_at", "updated_at"}

func scanTeam(row pgx.Row) (*Team, error) {
	t := &Team{}
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.LogoURL,
		&t.InviteCode,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *pgxTeamRepository) Create(ctx context.Context, team *Team) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("teams", "id", "name", "logo_url", "invite_code"),
		im.Values(psql.Arg(team.ID), psql.Arg(team.Name), psql.Arg(team.LogoURL), psql.Arg(team.InviteCode)),
		im.Returning(teamColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	created, err := scanTeam(e.QueryRow(ctx, sql, args...))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	*team = *created
	return nil
}

func (p *pgxTeamRepository) Get(ctx context.Context, teamID string) (*Team, error) {
	return p.getWhere(ctx, "id", teamID)
}

func (p *pgxTeamRepository) GetByInviteCode(ctx context.Context, code string) (*Team, error) {
	return p.getWhere(ctx, "invite_code", code)
}

func (p *pgxTeamRepository) getWhere(ctx context.Context, column, value string) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(teamColumns...),
		sm.From("teams"),
		sm.Where(psql.Quote(column).EQ(psql.Arg(value))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *pgxTeamRepository) ListForUser(ctx context.Context, userID string) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("t.id", "t.name", "t.logo_url", "t.invite_code", "t.created_at", "t.updated_at"),
		sm.From("teams").As("t"),
		sm.InnerJoin("team_memberships").As("m").On(psql.Quote("m", "team_id").EQ(psql.Quote("t", "id"))),
		sm.Where(psql.Quote("m", "user_id").EQ(psql.Arg(userID))),
		sm.OrderBy("t.created_at"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Team, error) {
		return scanTeam(row)
	})
}

func (p *pgxTeamRepository) Patch(ctx context.Context, patch *TeamPatch) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 3)

	if patch.Name != nil {
		sets = append(sets, um.SetCol("name").ToArg(*patch.Name))
	}
	if patch.LogoURL != nil {
		sets = append(sets, um.SetCol("logo_url").ToArg(*patch.LogoURL))
	}
	sets = append(sets, um.SetCol("updated_at").To(psql.Raw("now()")))

	q := psql.Update(
		um.Table("teams"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(teamColumns...),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *pgxTeamRepository) SetInviteCode(ctx context.Context, teamID, code string) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("teams"),
		um.SetCol("invite_code").ToArg(code),
		um.SetCol("updated_at").To(psql.Raw("now()")),
		um.Where(psql.Quote("id").EQ(psql.Arg(teamID))),
		um.Returning(teamColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	t, err := scanTeam(e.QueryRow(ctx, sql, args...))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, ErrAlreadyExists
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (p *pgxTeamRepository) Delete(ctx context.Context, teamID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("teams"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(teamID))),
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
