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
	"github.com/mkravets/team-pulse/internal/model"
)

type CheckIn struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	TeamID      string     `db:"team_id"`
	Yesterday   string     `db:"yesterday"`
	Today       string     `db:"today"`
	Blockers    *string    `db:"blockers"`
	Mood        model.Mood `db:"mood"`
	Energy      int        `db:"energy"`
	CheckInDate time.Time  `db:"check_in_date"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// CheckInRow is a check-in joined with its author's profile.
type CheckInRow struct {
	CheckIn
	DisplayName string  `db:"display_name"`
	AvatarURL   *string `db:"avatar_url"`
	Email       string  `db:"email"`
}

type CheckInPatch struct {
	ID        string      `db:"id"`
	Yesterday *string     `db:"yesterday"`
	Today     *string     `db:"today"`
	Blockers  *string     `db:"blockers"`
	Mood      *model.Mood `db:"mood"`
	Energy    *int        `db:"energy"`
}

type CheckInFilter struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	UserIDs     []string
	HasBlockers *bool
	Limit       int
	Offset      int
}

type CheckInRepository interface {
	Create(ctx context.Context, c *CheckIn) error
	Get(ctx context.Context, checkInID string) (*CheckIn, error)
	GetForDay(ctx context.Context, userID, teamID string, day time.Time) (*CheckInRow, error)
	List(ctx context.Context, teamID string, filter *CheckInFilter) ([]*CheckInRow, error)
	Count(ctx context.Context, teamID string, filter *CheckInFilter) (int, error)
	Patch(ctx context.Context, patch *CheckInPatch) (*CheckIn, error)
	Delete(ctx context.Context, checkInID string) error
	ListSince(ctx context.Context, teamID string, from time.Time) ([]*CheckIn, error)
	ListDates(ctx context.Context, userID, teamID string) ([]time.Time, error)
	ListBlockers(ctx context.Context, teamID string) ([]string, error)
	ListForExport(ctx context.Context, teamID string) ([]*CheckInRow, error)
}

type pgxCheckInRepository struct {
	pool *pgxpool.Pool
}

func NewPgxCheckInRepository(pool *pgxpool.Pool) CheckInRepository {
	return &pgxCheckInRepository{pool: pool}
}

var checkInColumns = []any{
	"id", "user_id", "team_id", "yesterday", "today", "blockers",
	"mood", "energy", "check_in_date", "created_at", "updated_at",
}

func scanCheckIn(row pgx.Row) (*CheckIn, error) {
	c := &CheckIn{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.TeamID, &c.Yesterday, &c.Today, &c.Blockers,
		&c.Mood, &c.Energy, &c.CheckInDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanCheckInRow(row pgx.Row) (*CheckInRow, error) {
	c := &CheckInRow{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.TeamID, &c.Yesterday, &c.Today, &c.Blockers,
		&c.Mood, &c.Energy, &c.CheckInDate, &c.CreatedAt, &c.UpdatedAt,
		&c.DisplayName, &c.AvatarURL, &c.Email,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *pgxCheckInRepository) Create(ctx context.Context, c *CheckIn) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("check_ins", "id", "user_id", "team_id", "yesterday", "today", "blockers", "mood", "energy", "check_in_date"),
		im.Values(
			psql.Arg(c.ID), psql.Arg(c.UserID), psql.Arg(c.TeamID),
			psql.Arg(c.Yesterday), psql.Arg(c.Today), psql.Arg(c.Blockers),
			psql.Arg(c.Mood), psql.Arg(c.Energy), psql.Arg(c.CheckInDate),
		),
		im.Returning(checkInColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	created, err := scanCheckIn(e.QueryRow(ctx, sql, args...))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // one check-in per (user, team, day)
			return ErrAlreadyExists
		case "23503":
			return ErrNotFound
		}
	}
	if err != nil {
		return err
	}

	*c = *created
	return nil
}

func (p *pgxCheckInRepository) Get(ctx context.Context, checkInID string) (*CheckIn, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(checkInColumns...),
		sm.From("check_ins"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(checkInID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	c, err := scanCheckIn(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *pgxCheckInRepository) GetForDay(ctx context.Context, userID, teamID string, day time.Time) (*CheckInRow, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(joinedCheckInColumns()...),
		sm.From("check_ins").As("c"),
		sm.InnerJoin("users").As("u").On(psql.Quote("u", "id").EQ(psql.Quote("c", "user_id"))),
		sm.Where(
			psql.Quote("c", "user_id").EQ(psql.Arg(userID)).
				And(psql.Quote("c", "team_id").EQ(psql.Arg(teamID))).
				And(psql.Quote("c", "check_in_date").EQ(psql.Arg(day))),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	c, err := scanCheckInRow(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func joinedCheckInColumns() []any {
	return []any{
		"c.id", "c.user_id", "c.team_id", "c.yesterday", "c.today", "c.blockers",
		"c.mood", "c.energy", "c.check_in_date", "c.created_at", "c.updated_at",
		"u.display_name", "u.avatar_url", "u.email",
	}
}

func filterMods(teamID string, filter *CheckInFilter) []bob.Mod[*dialect.SelectQuery] {
	mods := []bob.Mod[*dialect.SelectQuery]{
		sm.Where(psql.Quote("c", "team_id").EQ(psql.Arg(teamID))),
	}

	if filter == nil {
		return mods
	}

	if filter.DateFrom != nil {
		mods = append(mods, sm.Where(psql.Quote("c", "check_in_date").GTE(psql.Arg(*filter.DateFrom))))
	}
	if filter.DateTo != nil {
		mods = append(mods, sm.Where(psql.Quote("c", "check_in_date").LTE(psql.Arg(*filter.DateTo))))
	}
	if len(filter.UserIDs) > 0 {
		ids := make([]any, 0, len(filter.UserIDs))
		for _, id := range filter.UserIDs {
			ids = append(ids, id)
		}
		mods = append(mods, sm.Where(psql.Quote("c", "user_id").In(psql.Arg(ids...))))
	}
	if filter.HasBlockers != nil {
		if *filter.HasBlockers {
			mods = append(mods, sm.Where(psql.Quote("c", "blockers").IsNotNull()))
		} else {
			mods = append(mods, sm.Where(psql.Quote("c", "blockers").IsNull()))
		}
	}

	return mods
}

func (p *pgxCheckInRepository) List(ctx context.Context, teamID string, filter *CheckInFilter) ([]*CheckInRow, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(joinedCheckInColumns()...),
		sm.From("check_ins").As("c"),
		sm.InnerJoin("users").As("u").On(psql.Quote("u", "id").EQ(psql.Quote("c", "user_id"))),
		sm.OrderBy("c.check_in_date").Desc(),
	)
	q.Apply(filterMods(teamID, filter)...)

	if filter != nil && filter.Limit > 0 {
		q.Apply(sm.Limit(filter.Limit), sm.Offset(filter.Offset))
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*CheckInRow, error) {
		return scanCheckInRow(row)
	})
}

func (p *pgxCheckInRepository) Count(ctx context.Context, teamID string, filter *CheckInFilter) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("count(*)"),
		sm.From("check_ins").As("c"),
	)
	q.Apply(filterMods(teamID, filter)...)

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

func (p *pgxCheckInRepository) Patch(ctx context.Context, patch *CheckInPatch) (*CheckIn, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 6)

	if patch.Yesterday != nil {
		sets = append(sets, um.SetCol("yesterday").ToArg(*patch.Yesterday))
	}
	if patch.Today != nil {
		sets = append(sets, um.SetCol("today").ToArg(*patch.Today))
	}
	if patch.Blockers != nil {
		sets = append(sets, um.SetCol("blockers").ToArg(*patch.Blockers))
	}
	if patch.Mood != nil {
		sets = append(sets, um.SetCol("mood").ToArg(*patch.Mood))
	}
	if patch.Energy != nil {
		sets = append(sets, um.SetCol("energy").ToArg(*patch.Energy))
	}
	sets = append(sets, um.SetCol("updated_at").To(psql.Raw("now()")))

	q := psql.Update(
		um.Table("check_ins"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(checkInColumns...),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	c, err := scanCheckIn(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *pgxCheckInRepository) Delete(ctx context.Context, checkInID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("check_ins"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(checkInID))),
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

// ListSince returns all of a team's check-ins on or after the given day,
// without author joins. Used by the analytics aggregations.
func (p *pgxCheckInRepository) ListSince(ctx context.Context, teamID string, from time.Time) ([]*CheckIn, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(checkInColumns...),
		sm.From("check_ins"),
		sm.Where(
			psql.Quote("team_id").EQ(psql.Arg(teamID)).
				And(psql.Quote("check_in_date").GTE(psql.Arg(from))),
		),
		sm.OrderBy("check_in_date"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*CheckIn, error) {
		return scanCheckIn(row)
	})
}

// ListDates returns a member's check-in dates for one team, newest first.
func (p *pgxCheckInRepository) ListDates(ctx context.Context, userID, teamID string) ([]time.Time, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("check_in_date"),
		sm.From("check_ins"),
		sm.Where(
			psql.Quote("user_id").EQ(psql.Arg(userID)).
				And(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		),
		sm.OrderBy("check_in_date").Desc(),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (time.Time, error) {
		var d time.Time
		err = row.Scan(&d)
		return d, err
	})
}

// ListBlockers returns every non-null blockers text for a team.
func (p *pgxCheckInRepository) ListBlockers(ctx context.Context, teamID string) ([]string, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("blockers"),
		sm.From("check_ins"),
		sm.Where(
			psql.Quote("team_id").EQ(psql.Arg(teamID)).
				And(psql.Quote("blockers").IsNotNull()),
		),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var b string
		err = row.Scan(&b)
		return b, err
	})
}

// ListForExport returns every check-in of a team with author info, newest
// date first, for the CSV export.
func (p *pgxCheckInRepository) ListForExport(ctx context.Context, teamID string) ([]*CheckInRow, error) {
	return p.List(ctx, teamID, nil)
}
