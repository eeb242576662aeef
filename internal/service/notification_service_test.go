package service

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
)

func TestNotificationService_GetPreferences(t *testing.T) {
	membership := &repository.Membership{UserID: "user1", TeamID: "team1"}

	t.Run("falls back to defaults when nothing stored", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)
		mockMembershipRepo := new(MockMembershipRepository)

		mockMembershipRepo.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
		mockNotificationRepo.On("GetPreference", mock.Anything, "user1", "team1").
			Return(nil, repository.ErrNotFound)

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo).
			WithMembershipRepo(mockMembershipRepo)

		got, err := service.GetPreferences(context.Background(), "user1", "team1")

		assert.Nil(t, err)
		assert.True(t, got.ReminderEnabled)
		assert.Equal(t, "09:00", got.ReminderTime)
		assert.Equal(t, model.DigestDaily, got.DigestFrequency)
	})

	t.Run("returns stored preferences", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)
		mockMembershipRepo := new(MockMembershipRepository)

		mockMembershipRepo.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
		mockNotificationRepo.On("GetPreference", mock.Anything, "user1", "team1").
			Return(&repository.NotificationPreference{
				ID: "pref1", UserID: "user1", TeamID: "team1",
				ReminderEnabled: false, ReminderTime: "17:30", DigestFrequency: model.DigestWeekly,
			}, nil)

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo).
			WithMembershipRepo(mockMembershipRepo)

		got, err := service.GetPreferences(context.Background(), "user1", "team1")

		assert.Nil(t, err)
		assert.False(t, got.ReminderEnabled)
		assert.Equal(t, "17:30", got.ReminderTime)
		assert.Equal(t, model.DigestWeekly, got.DigestFrequency)
	})

	t.Run("not a member", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockMembershipRepo := new(MockMembershipRepository)

		mockMembershipRepo.On("Get", mock.Anything, "user1", "team1").Return(nil, repository.ErrNotFound)

		service := NewNotificationService(mockTx).
			WithMembershipRepo(mockMembershipRepo)

		got, err := service.GetPreferences(context.Background(), "user1", "team1")

		assert.NotNil(t, err)
		assert.Equal(t, ErrorCodeForbidden, err.Code)
		assert.Nil(t, got)
	})
}

func TestNotificationService_UpdatePreferences(t *testing.T) {
	membership := &repository.Membership{UserID: "user1", TeamID: "team1"}
	disabled := false
	badTime := "9 o'clock"
	goodTime := "17:30"
	badFreq := model.DigestFrequency("HOURLY")

	tests := []struct {
		name          string
		update        *PreferenceUpdate
		setupMocks    func(*MockNotificationRepository, *MockMembershipRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:   "partial update keeps remaining defaults",
			update: &PreferenceUpdate{ReminderEnabled: &disabled},
			setupMocks: func(nr *MockNotificationRepository, mr *MockMembershipRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
				nr.On("GetPreference", mock.Anything, "user1", "team1").Return(nil, repository.ErrNotFound)
				nr.On("UpsertPreference", mock.Anything, mock.MatchedBy(func(p *repository.NotificationPreference) bool {
					return !p.ReminderEnabled && p.ReminderTime == "09:00" && p.DigestFrequency == model.DigestDaily
				})).Return(nil)
			},
		},
		{
			name:   "merges over stored values",
			update: &PreferenceUpdate{ReminderTime: &goodTime},
			setupMocks: func(nr *MockNotificationRepository, mr *MockMembershipRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
				nr.On("GetPreference", mock.Anything, "user1", "team1").
					Return(&repository.NotificationPreference{
						ID: "pref1", UserID: "user1", TeamID: "team1",
						ReminderEnabled: false, ReminderTime: "08:00", DigestFrequency: model.DigestWeekly,
					}, nil)
				nr.On("UpsertPreference", mock.Anything, mock.MatchedBy(func(p *repository.NotificationPreference) bool {
					return p.ID == "pref1" && p.ReminderTime == "17:30" &&
						!p.ReminderEnabled && p.DigestFrequency == model.DigestWeekly
				})).Return(nil)
			},
		},
		{
			name:   "invalid reminder time",
			update: &PreferenceUpdate{ReminderTime: &badTime},
			setupMocks: func(nr *MockNotificationRepository, mr *MockMembershipRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
		{
			name:   "invalid digest frequency",
			update: &PreferenceUpdate{DigestFrequency: &badFreq},
			setupMocks: func(nr *MockNotificationRepository, mr *MockMembershipRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockNotificationRepo := new(MockNotificationRepository)
			mockMembershipRepo := new(MockMembershipRepository)

			tt.setupMocks(mockNotificationRepo, mockMembershipRepo)

			service := NewNotificationService(mockTx).
				WithNotificationRepo(mockNotificationRepo).
				WithMembershipRepo(mockMembershipRepo)

			got, err := service.UpdatePreferences(context.Background(), "user1", "team1", tt.update)

			if tt.expectedError {
				assert.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.NotNil(t, got)
			}

			mockNotificationRepo.AssertExpectations(t)
		})
	}
}

func TestNotificationService_MarkRead(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)

		mockNotificationRepo.On("MarkRead", mock.Anything, "user1", "n1", mock.Anything).
			Return(nil, repository.ErrNotFound)

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo)

		got, err := service.MarkRead(context.Background(), "user1", "n1")

		assert.NotNil(t, err)
		assert.Equal(t, ErrorCodeNotFound, err.Code)
		assert.Nil(t, got)
	})

	t.Run("success", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)

		mockNotificationRepo.On("MarkRead", mock.Anything, "user1", "n1", mock.Anything).
			Return(&repository.Notification{ID: "n1", UserID: "user1", Type: "reminder"}, nil)

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo)

		got, err := service.MarkRead(context.Background(), "user1", "n1")

		assert.Nil(t, err)
		assert.Equal(t, "n1", got.ID)
	})
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	t.Run("marks every unread notification", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)

		mockNotificationRepo.On("MarkAllRead", mock.Anything, "user1", mock.Anything).Return(nil)

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo)

		err := service.MarkAllRead(context.Background(), "user1")

		assert.Nil(t, err)
		mockNotificationRepo.AssertExpectations(t)
	})

	t.Run("repeat call with nothing unread is a no-op", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)

		mockNotificationRepo.On("MarkAllRead", mock.Anything, "user1", mock.Anything).Return(nil).Twice()

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo)

		assert.Nil(t, service.MarkAllRead(context.Background(), "user1"))
		assert.Nil(t, service.MarkAllRead(context.Background(), "user1"))
		mockNotificationRepo.AssertExpectations(t)
	})

	t.Run("repository failure", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)

		mockNotificationRepo.On("MarkAllRead", mock.Anything, "user1", mock.Anything).
			Return(errors.New("connection reset"))

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo)

		err := service.MarkAllRead(context.Background(), "user1")

		assert.NotNil(t, err)
		assert.Equal(t, ErrorCodeUnspecified, err.Code)
	})
}

func TestNotificationService_Notify(t *testing.T) {
	t.Run("records the notification", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)

		mockNotificationRepo.On("Create", mock.Anything, mock.MatchedBy(func(n *repository.Notification) bool {
			return n.ID != "" && n.UserID == "user1" && n.Type == "reminder" &&
				n.Title == "Time to check in" && n.Body == "Your team Design is waiting"
		})).Return(nil)

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo)

		got, err := service.Notify(context.Background(), "user1", "reminder", "Time to check in", "Your team Design is waiting")

		assert.Nil(t, err)
		assert.Equal(t, "user1", got.UserID)
		assert.Equal(t, "reminder", got.Type)
		assert.NotEmpty(t, got.ID)
		mockNotificationRepo.AssertExpectations(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		mockTx := new(MockTransactor)
		mockNotificationRepo := new(MockNotificationRepository)

		mockNotificationRepo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrNotFound)

		service := NewNotificationService(mockTx).
			WithNotificationRepo(mockNotificationRepo)

		got, err := service.Notify(context.Background(), "ghost", "reminder", "Time to check in", "body")

		assert.NotNil(t, err)
		assert.Equal(t, ErrorCodeNotFound, err.Code)
		assert.Nil(t, got)
	})
}
