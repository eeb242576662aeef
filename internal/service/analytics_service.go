package service

import (
	"context"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/dates"
	"github.com/mkravets/team-pulse/internal/db"
	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
	"github.com/mkravets/team-pulse/pkg/logger"
)

const defaultWindowDays = 7

type AnalyticsService struct {
	tx db.Transactor

	users       repository.UserRepository
	memberships repository.MembershipRepository
	checkIns    repository.CheckInRepository
}

func NewAnalyticsService(tx db.Transactor) *AnalyticsService {
	return &AnalyticsService{tx: tx}
}

// Participation reports check-in coverage over a trailing window of days.
func (a *AnalyticsService) Participation(ctx context.Context, callerID, teamID string, days int) (*model.Participation, *Error) {
	today, serr := a.requireMemberToday(ctx, callerID, teamID)
	if serr != nil {
		return nil, serr
	}
	if days <= 0 {
		days = defaultWindowDays
	}

	total, err := a.memberships.CountByTeam(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to count members")
	}

	from := today.AddDate(0, 0, -days)
	checkIns, err := a.checkIns.ListSince(ctx, teamID, from)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load check-ins")
	}

	authors := map[string]struct{}{}
	points := make([]*checkInPoint, 0, len(checkIns))
	for _, c := range checkIns {
		authors[c.UserID] = struct{}{}
		points = append(points, &checkInPoint{UserID: c.UserID, Date: c.CheckInDate})
	}

	midpoint := from.AddDate(0, 0, days/2)

	return &model.Participation{
		ParticipationRate: participationRate(len(authors), total),
		TotalMembers:      total,
		ActiveMembers:     len(authors),
		Trend:             participationTrend(points, midpoint),
	}, nil
}

// MoodSeries returns the per-date average mood ordinal over the window.
func (a *AnalyticsService) MoodSeries(ctx context.Context, callerID, teamID string, days int) ([]model.TrendPoint, *Error) {
	return a.series(ctx, callerID, teamID, days, func(c *repository.CheckIn) int {
		return model.MoodOrdinal[c.Mood]
	})
}

// EnergySeries returns the per-date average energy score over the window.
func (a *AnalyticsService) EnergySeries(ctx context.Context, callerID, teamID string, days int) ([]model.TrendPoint, *Error) {
	return a.series(ctx, callerID, teamID, days, func(c *repository.CheckIn) int {
		return c.Energy
	})
}

func (a *AnalyticsService) series(ctx context.Context, callerID, teamID string, days int, value func(*repository.CheckIn) int) ([]model.TrendPoint, *Error) {
	today, serr := a.requireMemberToday(ctx, callerID, teamID)
	if serr != nil {
		return nil, serr
	}
	if days <= 0 {
		days = defaultWindowDays
	}

	checkIns, err := a.checkIns.ListSince(ctx, teamID, today.AddDate(0, 0, -days))
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load check-ins")
	}

	points := make([]*checkInPoint, 0, len(checkIns))
	for _, c := range checkIns {
		points = append(points, &checkInPoint{Date: c.CheckInDate, Value: value(c)})
	}
	return averageByDate(points), nil
}

// Blockers returns the most frequent keywords across all blocker texts.
func (a *AnalyticsService) Blockers(ctx context.Context, callerID, teamID string) ([]model.KeywordCount, *Error) {
	if serr := a.requireMembership(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}

	blockers, err := a.checkIns.ListBlockers(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load blockers")
	}
	return extractKeywords(blockers), nil
}

// Streaks computes every member's run of consecutive check-in days ending at
// the caller's today, sorted longest first.
func (a *AnalyticsService) Streaks(ctx context.Context, callerID, teamID string) ([]model.MemberStreak, *Error) {
	l := logger.FromContext(ctx)

	today, serr := a.requireMemberToday(ctx, callerID, teamID)
	if serr != nil {
		return nil, serr
	}

	members, err := a.memberships.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list members")
	}

	streaks := make([]model.MemberStreak, 0, len(members))
	for _, m := range members {
		memberDates, err := a.checkIns.ListDates(ctx, m.UserID, teamID)
		if err != nil {
			l.Error("failed to load check-in dates", zap.String("user_id", m.UserID), zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to load check-in dates")
		}

		streaks = append(streaks, model.MemberStreak{
			User: model.UserRef{
				ID:          m.UserID,
				DisplayName: m.DisplayName,
				AvatarURL:   m.AvatarURL,
			},
			Streak: computeStreak(memberDates, today),
		})
	}

	sort.SliceStable(streaks, func(i, j int) bool {
		return streaks[i].Streak > streaks[j].Streak
	})
	return streaks, nil
}

// ExportCSV renders every check-in of the team as CSV, newest date first.
func (a *AnalyticsService) ExportCSV(ctx context.Context, callerID, teamID string) (string, *Error) {
	if serr := a.requireMembership(ctx, callerID, teamID); serr != nil {
		return "", serr
	}

	rows, err := a.checkIns.ListForExport(ctx, teamID)
	if err != nil {
		return "", NewError(ErrorCodeUnspecified, "failed to load check-ins")
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write([]string{"Date", "User", "Email", "Yesterday", "Today", "Blockers", "Mood", "Energy"})
	for _, c := range rows {
		blockers := ""
		if c.Blockers != nil {
			blockers = *c.Blockers
		}
		_ = w.Write([]string{
			dates.FormatDay(c.CheckInDate),
			c.DisplayName,
			c.Email,
			c.Yesterday,
			c.Today,
			blockers,
			string(c.Mood),
			strconv.Itoa(c.Energy),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", NewError(ErrorCodeUnspecified, "failed to render csv")
	}
	return sb.String(), nil
}

// requireMemberToday checks membership and returns the caller's current local
// date, computed once per request.
func (a *AnalyticsService) requireMemberToday(ctx context.Context, callerID, teamID string) (time.Time, *Error) {
	if serr := a.requireMembership(ctx, callerID, teamID); serr != nil {
		return time.Time{}, serr
	}

	user, err := a.users.Get(ctx, callerID)
	if err != nil {
		return time.Time{}, NewError(ErrorCodeUnspecified, "failed to load caller")
	}

	today, err := dates.LocalDate(time.Now(), user.Timezone)
	if err != nil {
		return time.Time{}, NewError(ErrorCodeUnspecified, "failed to compute local date")
	}
	return today, nil
}

func (a *AnalyticsService) requireMembership(ctx context.Context, callerID, teamID string) *Error {
	_, err := a.memberships.Get(ctx, callerID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeForbidden, "you are not a member of this team")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to check membership")
	}
	return nil
}

func (a *AnalyticsService) WithUserRepo(r repository.UserRepository) *AnalyticsService {
	a.users = r
	return a
}

func (a *AnalyticsService) WithMembershipRepo(r repository.MembershipRepository) *AnalyticsService {
	a.memberships = r
	return a
}

func (a *AnalyticsService) WithCheckInRepo(r repository.CheckInRepository) *AnalyticsService {
	a.checkIns = r
	return a
}
