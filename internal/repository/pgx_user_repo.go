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
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/mkravets/team-pulse/internal/db"
)

type User struct {
	ID          string    `db:"id"`
	ExternalID  string    `db:"external_id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	AvatarURL   *string   `db:"avatar_url"`
	Timezone    string    `db:"timezone"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type UserPatch struct {
	ID          string  `db:"id"`
	DisplayName *string `db:"display_name"`
	AvatarURL   *string `db:"avatar_url"`
	Timezone    *string `db:"timezone"`
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, userID string) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	Patch(ctx context.Context, patch *UserPatch) (*User, error)
}

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgxUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

var userColumns = []any{"id", "external_id", "email", "display_name", "avatar_url", "timezone", "created_at", "updated_at"}

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.Timezone,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *pgxUserRepository) Create(ctx context.Context, user *User) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("users", "id", "external_id", "email", "display_name", "avatar_url", "timezone"),
		im.Values(
			psql.Arg(user.ID), psql.Arg(user.ExternalID), psql.Arg(user.Email),
			psql.Arg(user.DisplayName), psql.Arg(user.AvatarURL), psql.Arg(user.Timezone),
		),
		im.Returning(userColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	created, err := scanUser(e.QueryRow(ctx, sql, args...))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	*user = *created
	return nil
}

func (p *pgxUserRepository) Get(ctx context.Context, userID string) (*User, error) {
	return p.getWhere(ctx, "id", userID)
}

func (p *pgxUserRepository) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	return p.getWhere(ctx, "external_id", externalID)
}

func (p *pgxUserRepository) getWhere(ctx context.Context, column, value string) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(userColumns...),
		sm.From("users"),
		sm.Where(psql.Quote(column).EQ(psql.Arg(value))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	u, err := scanUser(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *pgxUserRepository) Patch(ctx context.Context, patch *UserPatch) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 4)

	if patch.DisplayName != nil {
		sets = append(sets, um.SetCol("display_name").ToArg(*patch.DisplayName))
	}
	if patch.AvatarURL != nil {
		sets = append(sets, um.SetCol("avatar_url").ToArg(*patch.AvatarURL))
	}
	if patch.Timezone != nil {
		sets = append(sets, um.SetCol("timezone").ToArg(*patch.Timezone))
	}
	sets = append(sets, um.SetCol("updated_at").To(psql.Raw("now()")))

	q := psql.Update(
		um.Table("users"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(userColumns...),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	u, err := scanUser(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
