package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/db"
	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
	"github.com/mkravets/team-pulse/pkg/logger"
)

const inviteCodeRetries = 3

type TeamService struct {
	tx db.Transactor

	teams       repository.TeamRepository
	memberships repository.MembershipRepository
}

func NewTeamService(tx db.Transactor) *TeamService {
	return &TeamService{tx: tx}
}

// CreateTeam creates a team with the caller as its founding admin. The two
// writes happen in one transaction so a team is never observable without an
// admin.
func (t *TeamService) CreateTeam(ctx context.Context, callerID, name string, logoURL *string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Info("creating team", zap.String("team_name", name), zap.String("caller_id", callerID))

	team := &repository.Team{
		ID:         uuid.NewString(),
		Name:       name,
		LogoURL:    logoURL,
		InviteCode: newInviteCode(),
	}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := t.teams.Create(txCtx, team); err != nil {
			l.Error("failed to create team", zap.String("team_name", name), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}

		if err := t.memberships.Create(txCtx, &repository.Membership{
			ID:     uuid.NewString(),
			UserID: callerID,
			TeamID: team.ID,
			Role:   model.TeamRoleAdmin,
		}); err != nil {
			l.Error("failed to create founding membership", zap.String("team_id", team.ID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create founding membership")
		}

		return nil
	})

	if err != nil {
		var res *Error
		if errors.As(err, &res) {
			return nil, res
		}
		return nil, NewError(ErrorCodeUnspecified, "failed to create team")
	}

	return toModelTeam(team), nil
}

func (t *TeamService) ListTeams(ctx context.Context, callerID string) ([]*model.Team, *Error) {
	teams, err := t.teams.ListForUser(ctx, callerID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
	}

	res := make([]*model.Team, 0, len(teams))
	for _, team := range teams {
		res = append(res, toModelTeam(team))
	}
	return res, nil
}

func (t *TeamService) GetTeam(ctx context.Context, callerID, teamID string) (*model.Team, *Error) {
	if serr := t.requireMembership(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}

	team, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}
	return toModelTeam(team), nil
}

// GetTeamByInviteCode is public: it backs the join-preview page.
func (t *TeamService) GetTeamByInviteCode(ctx context.Context, code string) (*model.Team, *Error) {
	team, err := t.teams.GetByInviteCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "invalid invite code")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}
	return toModelTeam(team), nil
}

func (t *TeamService) UpdateTeam(ctx context.Context, callerID, teamID string, name, logoURL *string) (*model.Team, *Error) {
	if serr := t.requireAdmin(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}

	team, err := t.teams.Patch(ctx, &repository.TeamPatch{
		ID:      teamID,
		Name:    name,
		LogoURL: logoURL,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update team")
	}
	return toModelTeam(team), nil
}

// DeleteTeam removes the team; memberships and check-ins go with it via
// cascading foreign keys.
func (t *TeamService) DeleteTeam(ctx context.Context, callerID, teamID string) *Error {
	l := logger.FromContext(ctx)

	if serr := t.requireAdmin(ctx, callerID, teamID); serr != nil {
		return serr
	}

	err := t.teams.Delete(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to delete team", zap.String("team_id", teamID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to delete team")
	}

	l.Info("team deleted", zap.String("team_id", teamID), zap.String("caller_id", callerID))
	return nil
}

// RegenerateInviteCode replaces the team's invite code. The unique constraint
// rejects a colliding code; a fresh one is tried a few times before giving up.
func (t *TeamService) RegenerateInviteCode(ctx context.Context, callerID, teamID string) (*model.Team, *Error) {
	if serr := t.requireAdmin(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}

	for i := 0; i < inviteCodeRetries; i++ {
		team, err := t.teams.SetInviteCode(ctx, teamID, newInviteCode())
		if errors.Is(err, repository.ErrAlreadyExists) {
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewError(ErrorCodeNotFound, "team not found")
		}
		if err != nil {
			return nil, NewError(ErrorCodeUnspecified, "failed to regenerate invite code")
		}
		return toModelTeam(team), nil
	}

	return nil, NewError(ErrorCodeUnspecified, "failed to regenerate invite code")
}

func (t *TeamService) JoinTeam(ctx context.Context, callerID, code string) (*model.Membership, *Error) {
	l := logger.FromContext(ctx)

	team, err := t.teams.GetByInviteCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "invalid invite code")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}

	m := &repository.Membership{
		ID:     uuid.NewString(),
		UserID: callerID,
		TeamID: team.ID,
		Role:   model.TeamRoleMember,
	}

	err = t.memberships.Create(ctx, m)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, NewError(ErrorCodeInvalidBody, "you are already a member of this team")
	}
	if err != nil {
		l.Error("failed to join team", zap.String("team_id", team.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to join team")
	}

	l.Info("user joined team", zap.String("team_id", team.ID), zap.String("user_id", callerID))
	return toModelMembership(m), nil
}

func (t *TeamService) ListMembers(ctx context.Context, callerID, teamID string) ([]*model.Membership, *Error) {
	if serr := t.requireMembership(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}

	members, err := t.memberships.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list members")
	}

	res := make([]*model.Membership, 0, len(members))
	for _, m := range members {
		mm := toModelMembership(&m.Membership)
		mm.User = &model.UserRef{
			ID:          m.UserID,
			DisplayName: m.DisplayName,
			AvatarURL:   m.AvatarURL,
			Email:       m.Email,
		}
		res = append(res, mm)
	}
	return res, nil
}

func (t *TeamService) RemoveMember(ctx context.Context, callerID, teamID, memberID string) *Error {
	l := logger.FromContext(ctx)

	if serr := t.requireAdmin(ctx, callerID, teamID); serr != nil {
		return serr
	}

	if memberID == callerID {
		return NewError(ErrorCodeInvalidBody, "cannot remove yourself")
	}

	err := t.memberships.Delete(ctx, memberID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "member not found")
	}
	if err != nil {
		l.Error("failed to remove member", zap.String("team_id", teamID), zap.String("member_id", memberID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to remove member")
	}

	l.Info("member removed", zap.String("team_id", teamID), zap.String("member_id", memberID))
	return nil
}

// TransferAdmin demotes the caller and promotes the target in a single
// transaction so the team never observably has zero or two admins.
func (t *TeamService) TransferAdmin(ctx context.Context, callerID, teamID, newAdminID string) *Error {
	l := logger.FromContext(ctx)

	if serr := t.requireAdmin(ctx, callerID, teamID); serr != nil {
		return serr
	}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := t.memberships.Get(txCtx, newAdminID, teamID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NewError(ErrorCodeNotFound, "target is not a member of this team")
			}
			return NewError(ErrorCodeUnspecified, "failed to transfer admin role")
		}

		if err := t.memberships.SetRole(txCtx, callerID, teamID, model.TeamRoleMember); err != nil {
			return NewError(ErrorCodeUnspecified, "failed to transfer admin role")
		}
		if err := t.memberships.SetRole(txCtx, newAdminID, teamID, model.TeamRoleAdmin); err != nil {
			return NewError(ErrorCodeUnspecified, "failed to transfer admin role")
		}
		return nil
	})

	if err != nil {
		var res *Error
		if errors.As(err, &res) {
			return res
		}
		l.Error("admin transfer failed", zap.String("team_id", teamID), zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to transfer admin role")
	}

	l.Info("admin role transferred",
		zap.String("team_id", teamID),
		zap.String("from", callerID),
		zap.String("to", newAdminID))
	return nil
}

func (t *TeamService) requireMembership(ctx context.Context, callerID, teamID string) *Error {
	_, err := t.memberships.Get(ctx, callerID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeForbidden, "you are not a member of this team")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to check membership")
	}
	return nil
}

func (t *TeamService) requireAdmin(ctx context.Context, callerID, teamID string) *Error {
	m, err := t.memberships.Get(ctx, callerID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeForbidden, "you are not a member of this team")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to check membership")
	}
	if m.Role != model.TeamRoleAdmin {
		return NewError(ErrorCodeForbidden, "admin role required")
	}
	return nil
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithMembershipRepo(r repository.MembershipRepository) *TeamService {
	t.memberships = r
	return t
}

func newInviteCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func toModelTeam(t *repository.Team) *model.Team {
	return &model.Team{
		ID:         t.ID,
		Name:       t.Name,
		LogoURL:    t.LogoURL,
		InviteCode: t.InviteCode,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func toModelMembership(m *repository.Membership) *model.Membership {
	return &model.Membership{
		ID:       m.ID,
		UserID:   m.UserID,
		TeamID:   m.TeamID,
		Role:     m.Role,
		JoinedAt: m.JoinedAt,
	}
}
