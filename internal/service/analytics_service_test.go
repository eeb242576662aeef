package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
)

func analyticsFixture(t *testing.T) (*AnalyticsService, *MockUserRepository, *MockMembershipRepository, *MockCheckInRepository) {
	t.Helper()

	mockTx := new(MockTransactor)
	mockUserRepo := new(MockUserRepository)
	mockMembershipRepo := new(MockMembershipRepository)
	mockCheckInRepo := new(MockCheckInRepository)

	service := NewAnalyticsService(mockTx).
		WithUserRepo(mockUserRepo).
		WithMembershipRepo(mockMembershipRepo).
		WithCheckInRepo(mockCheckInRepo)

	return service, mockUserRepo, mockMembershipRepo, mockCheckInRepo
}

func TestAnalyticsService_Participation(t *testing.T) {
	service, userRepo, membershipRepo, checkInRepo := analyticsFixture(t)

	membershipRepo.On("Get", mock.Anything, "user1", "team1").
		Return(&repository.Membership{UserID: "user1", TeamID: "team1"}, nil)
	userRepo.On("Get", mock.Anything, "user1").
		Return(&repository.User{ID: "user1", Timezone: "UTC"}, nil)
	membershipRepo.On("CountByTeam", mock.Anything, "team1").Return(4, nil)
	checkInRepo.On("ListSince", mock.Anything, "team1", mock.Anything).Return([]*repository.CheckIn{
		{UserID: "user1", CheckInDate: utcToday()},
		{UserID: "user2", CheckInDate: utcToday()},
		{UserID: "user3", CheckInDate: utcToday().AddDate(0, 0, -1)},
		{UserID: "user1", CheckInDate: utcToday().AddDate(0, 0, -1)},
	}, nil)

	got, err := service.Participation(context.Background(), "user1", "team1", 7)

	require.Nil(t, err)
	assert.Equal(t, 75.0, got.ParticipationRate)
	assert.Equal(t, 4, got.TotalMembers)
	assert.Equal(t, 3, got.ActiveMembers)
	assert.Equal(t, "up", got.Trend)
}

func TestAnalyticsService_MoodSeries(t *testing.T) {
	service, userRepo, membershipRepo, checkInRepo := analyticsFixture(t)

	today := utcToday()

	membershipRepo.On("Get", mock.Anything, "user1", "team1").
		Return(&repository.Membership{UserID: "user1", TeamID: "team1"}, nil)
	userRepo.On("Get", mock.Anything, "user1").
		Return(&repository.User{ID: "user1", Timezone: "UTC"}, nil)
	checkInRepo.On("ListSince", mock.Anything, "team1", mock.Anything).Return([]*repository.CheckIn{
		{UserID: "user1", CheckInDate: today, Mood: model.MoodGreat, Energy: 5},
		{UserID: "user2", CheckInDate: today, Mood: model.MoodGood, Energy: 3},
	}, nil)

	series, err := service.MoodSeries(context.Background(), "user1", "team1", 7)

	require.Nil(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 4.5, series[0].Average)
}

func TestAnalyticsService_Streaks(t *testing.T) {
	service, userRepo, membershipRepo, checkInRepo := analyticsFixture(t)

	today := utcToday()

	membershipRepo.On("Get", mock.Anything, "user1", "team1").
		Return(&repository.Membership{UserID: "user1", TeamID: "team1"}, nil)
	userRepo.On("Get", mock.Anything, "user1").
		Return(&repository.User{ID: "user1", Timezone: "UTC"}, nil)
	membershipRepo.On("ListByTeam", mock.Anything, "team1").Return([]*repository.MemberRow{
		{Membership: repository.Membership{UserID: "user1", TeamID: "team1"}, DisplayName: "Mila"},
		{Membership: repository.Membership{UserID: "user2", TeamID: "team1"}, DisplayName: "Omar"},
	}, nil)
	checkInRepo.On("ListDates", mock.Anything, "user1", "team1").
		Return([]time.Time{today.AddDate(0, 0, -1)}, nil)
	checkInRepo.On("ListDates", mock.Anything, "user2", "team1").
		Return([]time.Time{today, today.AddDate(0, 0, -1), today.AddDate(0, 0, -2)}, nil)

	streaks, err := service.Streaks(context.Background(), "user1", "team1")

	require.Nil(t, err)
	require.Len(t, streaks, 2)
	assert.Equal(t, "Omar", streaks[0].User.DisplayName)
	assert.Equal(t, 3, streaks[0].Streak)
	assert.Equal(t, "Mila", streaks[1].User.DisplayName)
	assert.Equal(t, 0, streaks[1].Streak)
}

func TestAnalyticsService_Blockers(t *testing.T) {
	service, _, membershipRepo, checkInRepo := analyticsFixture(t)

	membershipRepo.On("Get", mock.Anything, "user1", "team1").
		Return(&repository.Membership{UserID: "user1", TeamID: "team1"}, nil)
	checkInRepo.On("ListBlockers", mock.Anything, "team1").Return([]string{
		"Blocked on API integration",
		"integration environment is down",
	}, nil)

	keywords, err := service.Blockers(context.Background(), "user1", "team1")

	require.Nil(t, err)
	require.NotEmpty(t, keywords)
	assert.Equal(t, model.KeywordCount{Word: "integration", Count: 2}, keywords[0])
}

func TestAnalyticsService_ExportCSV(t *testing.T) {
	service, _, membershipRepo, checkInRepo := analyticsFixture(t)

	blockers := `He said "blocked"`

	membershipRepo.On("Get", mock.Anything, "user1", "team1").
		Return(&repository.Membership{UserID: "user1", TeamID: "team1"}, nil)
	checkInRepo.On("ListForExport", mock.Anything, "team1").Return([]*repository.CheckInRow{
		{
			CheckIn: repository.CheckIn{
				UserID: "user1", TeamID: "team1",
				Yesterday: "wrote the scheduler", Today: "testing it",
				Blockers: &blockers, Mood: model.MoodOkay, Energy: 3,
				CheckInDate: day("2025-06-10"),
			},
			DisplayName: "Mila",
			Email:       "mila@example.com",
		},
	}, nil)

	csv, err := service.ExportCSV(context.Background(), "user1", "team1")

	require.Nil(t, err)
	assert.Contains(t, csv, "Date,User,Email,Yesterday,Today,Blockers,Mood,Energy")
	assert.Contains(t, csv, `"He said ""blocked"""`)
	assert.Contains(t, csv, "2025-06-10,Mila,mila@example.com,wrote the scheduler,testing it")
	assert.Contains(t, csv, "OKAY,3")
}

func TestAnalyticsService_RequiresMembership(t *testing.T) {
	service, _, membershipRepo, _ := analyticsFixture(t)

	membershipRepo.On("Get", mock.Anything, "stranger", "team1").Return(nil, repository.ErrNotFound)

	_, err := service.Participation(context.Background(), "stranger", "team1", 7)

	require.NotNil(t, err)
	assert.Equal(t, ErrorCodeForbidden, err.Code)
}
