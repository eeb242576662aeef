package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *repository.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Get(ctx context.Context, userID string) (*repository.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*repository.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) Patch(ctx context.Context, patch *repository.UserPatch) (*repository.User, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

type MockTeamRepository struct {
	mock.Mock
}

func (m *MockTeamRepository) Create(ctx context.Context, team *repository.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

func (m *MockTeamRepository) Get(ctx context.Context, teamID string) (*repository.Team, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetByInviteCode(ctx context.Context, code string) (*repository.Team, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) ListForUser(ctx context.Context, userID string) ([]*repository.Team, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Patch(ctx context.Context, patch *repository.TeamPatch) (*repository.Team, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) SetInviteCode(ctx context.Context, teamID, code string) (*repository.Team, error) {
	args := m.Called(ctx, teamID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Delete(ctx context.Context, teamID string) error {
	args := m.Called(ctx, teamID)
	return args.Error(0)
}

type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) Create(ctx context.Context, membership *repository.Membership) error {
	args := m.Called(ctx, membership)
	return args.Error(0)
}

func (m *MockMembershipRepository) Get(ctx context.Context, userID, teamID string) (*repository.Membership, error) {
	args := m.Called(ctx, userID, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Membership), args.Error(1)
}

func (m *MockMembershipRepository) ListByTeam(ctx context.Context, teamID string) ([]*repository.MemberRow, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.MemberRow), args.Error(1)
}

func (m *MockMembershipRepository) CountByTeam(ctx context.Context, teamID string) (int, error) {
	args := m.Called(ctx, teamID)
	return args.Int(0), args.Error(1)
}

func (m *MockMembershipRepository) SetRole(ctx context.Context, userID, teamID string, role model.TeamRole) error {
	args := m.Called(ctx, userID, teamID, role)
	return args.Error(0)
}

func (m *MockMembershipRepository) Delete(ctx context.Context, userID, teamID string) error {
	args := m.Called(ctx, userID, teamID)
	return args.Error(0)
}

type MockCheckInRepository struct {
	mock.Mock
}

func (m *MockCheckInRepository) Create(ctx context.Context, c *repository.CheckIn) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCheckInRepository) Get(ctx context.Context, checkInID string) (*repository.CheckIn, error) {
	args := m.Called(ctx, checkInID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.CheckIn), args.Error(1)
}

func (m *MockCheckInRepository) GetForDay(ctx context.Context, userID, teamID string, day time.Time) (*repository.CheckInRow, error) {
	args := m.Called(ctx, userID, teamID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.CheckInRow), args.Error(1)
}

func (m *MockCheckInRepository) List(ctx context.Context, teamID string, filter *repository.CheckInFilter) ([]*repository.CheckInRow, error) {
	args := m.Called(ctx, teamID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.CheckInRow), args.Error(1)
}

func (m *MockCheckInRepository) Count(ctx context.Context, teamID string, filter *repository.CheckInFilter) (int, error) {
	args := m.Called(ctx, teamID, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockCheckInRepository) Patch(ctx context.Context, patch *repository.CheckInPatch) (*repository.CheckIn, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.CheckIn), args.Error(1)
}

func (m *MockCheckInRepository) Delete(ctx context.Context, checkInID string) error {
	args := m.Called(ctx, checkInID)
	return args.Error(0)
}

func (m *MockCheckInRepository) ListSince(ctx context.Context, teamID string, from time.Time) ([]*repository.CheckIn, error) {
	args := m.Called(ctx, teamID, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.CheckIn), args.Error(1)
}

func (m *MockCheckInRepository) ListDates(ctx context.Context, userID, teamID string) ([]time.Time, error) {
	args := m.Called(ctx, userID, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *MockCheckInRepository) ListBlockers(ctx context.Context, teamID string) ([]string, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCheckInRepository) ListForExport(ctx context.Context, teamID string) ([]*repository.CheckInRow, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.CheckInRow), args.Error(1)
}

type MockAttachmentRepository struct {
	mock.Mock
}

func (m *MockAttachmentRepository) Create(ctx context.Context, a *repository.Attachment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAttachmentRepository) ListByCheckIn(ctx context.Context, checkInID string) ([]*repository.Attachment, error) {
	args := m.Called(ctx, checkInID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Attachment), args.Error(1)
}

func (m *MockAttachmentRepository) ListByCheckIns(ctx context.Context, checkInIDs []string) ([]*repository.Attachment, error) {
	args := m.Called(ctx, checkInIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Attachment), args.Error(1)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *repository.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) List(ctx context.Context, userID string, unreadOnly bool) ([]*repository.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) (*repository.Notification, error) {
	args := m.Called(ctx, userID, notificationID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockNotificationRepository) GetPreference(ctx context.Context, userID, teamID string) (*repository.NotificationPreference, error) {
	args := m.Called(ctx, userID, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.NotificationPreference), args.Error(1)
}

func (m *MockNotificationRepository) UpsertPreference(ctx context.Context, p *repository.NotificationPreference) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
