package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
)

func utcToday() time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validInput() *CheckInInput {
	return &CheckInInput{
		Yesterday: "shipped the export endpoint",
		Today:     "reviewing the reminder scheduler",
		Mood:      model.MoodGood,
		Energy:    4,
	}
}

func TestCheckInService_Create(t *testing.T) {
	membership := &repository.Membership{UserID: "user1", TeamID: "team1", Role: model.TeamRoleMember}
	caller := &repository.User{ID: "user1", DisplayName: "Mila", Timezone: "UTC"}

	tests := []struct {
		name          string
		input         *CheckInInput
		setupMocks    func(*MockUserRepository, *MockMembershipRepository, *MockCheckInRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:  "success",
			input: validInput(),
			setupMocks: func(ur *MockUserRepository, mr *MockMembershipRepository, cr *MockCheckInRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
				ur.On("Get", mock.Anything, "user1").Return(caller, nil)
				cr.On("Create", mock.Anything, mock.MatchedBy(func(c *repository.CheckIn) bool {
					return c.UserID == "user1" && c.TeamID == "team1" && c.CheckInDate.Equal(utcToday())
				})).Return(nil)
			},
			expectedError: false,
		},
		{
			name:  "duplicate check-in for the day",
			input: validInput(),
			setupMocks: func(ur *MockUserRepository, mr *MockMembershipRepository, cr *MockCheckInRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
				ur.On("Get", mock.Anything, "user1").Return(caller, nil)
				cr.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			expectedError: true,
			errorCode:     ErrorCodeCheckInExists,
		},
		{
			name:  "not a member",
			input: validInput(),
			setupMocks: func(ur *MockUserRepository, mr *MockMembershipRepository, cr *MockCheckInRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name: "missing today text",
			input: &CheckInInput{
				Today:  "",
				Mood:   model.MoodGood,
				Energy: 3,
			},
			setupMocks: func(ur *MockUserRepository, mr *MockMembershipRepository, cr *MockCheckInRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
		{
			name: "energy out of range",
			input: &CheckInInput{
				Today:  "pairing on the parser",
				Mood:   model.MoodOkay,
				Energy: 6,
			},
			setupMocks: func(ur *MockUserRepository, mr *MockMembershipRepository, cr *MockCheckInRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
		{
			name: "unknown mood",
			input: &CheckInInput{
				Today:  "pairing on the parser",
				Mood:   model.Mood("ECSTATIC"),
				Energy: 3,
			},
			setupMocks: func(ur *MockUserRepository, mr *MockMembershipRepository, cr *MockCheckInRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
		{
			name: "today text too long",
			input: &CheckInInput{
				Today:  strings.Repeat("a", model.MaxTodayLen+1),
				Mood:   model.MoodGood,
				Energy: 3,
			},
			setupMocks: func(ur *MockUserRepository, mr *MockMembershipRepository, cr *MockCheckInRepository) {
				mr.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockUserRepo := new(MockUserRepository)
			mockMembershipRepo := new(MockMembershipRepository)
			mockCheckInRepo := new(MockCheckInRepository)

			tt.setupMocks(mockUserRepo, mockMembershipRepo, mockCheckInRepo)

			service := NewCheckInService(mockTx).
				WithUserRepo(mockUserRepo).
				WithMembershipRepo(mockMembershipRepo).
				WithCheckInRepo(mockCheckInRepo)

			got, err := service.Create(context.Background(), "user1", "team1", tt.input)

			if tt.expectedError {
				assert.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, "user1", got.UserID)
				assert.Equal(t, model.MoodGood, got.Mood)
			}

			mockCheckInRepo.AssertExpectations(t)
		})
	}
}

func TestCheckInService_Update(t *testing.T) {
	caller := &repository.User{ID: "user1", DisplayName: "Mila", Timezone: "UTC"}
	newToday := "switched to the digest job"

	tests := []struct {
		name          string
		setupMocks    func(*MockUserRepository, *MockCheckInRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name: "success on same day",
			setupMocks: func(ur *MockUserRepository, cr *MockCheckInRepository) {
				cr.On("Get", mock.Anything, "checkin1").Return(&repository.CheckIn{
					ID: "checkin1", UserID: "user1", TeamID: "team1",
					Today: "old text", Mood: model.MoodGood, Energy: 3,
					CheckInDate: utcToday(),
				}, nil)
				ur.On("Get", mock.Anything, "user1").Return(caller, nil)
				cr.On("Patch", mock.Anything, mock.MatchedBy(func(p *repository.CheckInPatch) bool {
					return p.ID == "checkin1" && p.Today != nil && *p.Today == newToday
				})).Return(&repository.CheckIn{
					ID: "checkin1", UserID: "user1", TeamID: "team1",
					Today: newToday, Mood: model.MoodGood, Energy: 3,
					CheckInDate: utcToday(),
				}, nil)
			},
			expectedError: false,
		},
		{
			name: "rejects edits to older check-ins",
			setupMocks: func(ur *MockUserRepository, cr *MockCheckInRepository) {
				cr.On("Get", mock.Anything, "checkin1").Return(&repository.CheckIn{
					ID: "checkin1", UserID: "user1", TeamID: "team1",
					Today: "old text", Mood: model.MoodGood, Energy: 3,
					CheckInDate: utcToday().AddDate(0, 0, -1),
				}, nil)
				ur.On("Get", mock.Anything, "user1").Return(caller, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
		{
			name: "not the author",
			setupMocks: func(ur *MockUserRepository, cr *MockCheckInRepository) {
				cr.On("Get", mock.Anything, "checkin1").Return(&repository.CheckIn{
					ID: "checkin1", UserID: "someone-else", TeamID: "team1",
					CheckInDate: utcToday(),
				}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name: "wrong team",
			setupMocks: func(ur *MockUserRepository, cr *MockCheckInRepository) {
				cr.On("Get", mock.Anything, "checkin1").Return(&repository.CheckIn{
					ID: "checkin1", UserID: "user1", TeamID: "other-team",
					CheckInDate: utcToday(),
				}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name: "check-in not found",
			setupMocks: func(ur *MockUserRepository, cr *MockCheckInRepository) {
				cr.On("Get", mock.Anything, "checkin1").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockUserRepo := new(MockUserRepository)
			mockCheckInRepo := new(MockCheckInRepository)

			tt.setupMocks(mockUserRepo, mockCheckInRepo)

			service := NewCheckInService(mockTx).
				WithUserRepo(mockUserRepo).
				WithCheckInRepo(mockCheckInRepo)

			got, err := service.Update(context.Background(), "user1", "team1", "checkin1", &CheckInUpdate{
				Today: &newToday,
			})

			if tt.expectedError {
				assert.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, newToday, got.Today)
			}

			mockCheckInRepo.AssertExpectations(t)
		})
	}
}

func TestCheckInService_AddAttachment(t *testing.T) {
	ownCheckIn := &repository.CheckIn{ID: "checkin1", UserID: "user1", TeamID: "team1"}

	tests := []struct {
		name          string
		setupMocks    func(*MockCheckInRepository, *MockAttachmentRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name: "success",
			setupMocks: func(cr *MockCheckInRepository, ar *MockAttachmentRepository) {
				cr.On("Get", mock.Anything, "checkin1").Return(ownCheckIn, nil)
				ar.On("ListByCheckIn", mock.Anything, "checkin1").Return([]*repository.Attachment{}, nil)
				ar.On("Create", mock.Anything, mock.MatchedBy(func(a *repository.Attachment) bool {
					return a.CheckInID == "checkin1" && a.Filename == "notes.png"
				})).Return(nil)
			},
			expectedError: false,
		},
		{
			name: "attachment limit reached",
			setupMocks: func(cr *MockCheckInRepository, ar *MockAttachmentRepository) {
				cr.On("Get", mock.Anything, "checkin1").Return(ownCheckIn, nil)
				ar.On("ListByCheckIn", mock.Anything, "checkin1").Return([]*repository.Attachment{
					{ID: "a1"}, {ID: "a2"}, {ID: "a3"},
				}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeInvalidBody,
		},
		{
			name: "not the author",
			setupMocks: func(cr *MockCheckInRepository, ar *MockAttachmentRepository) {
				cr.On("Get", mock.Anything, "checkin1").
					Return(&repository.CheckIn{ID: "checkin1", UserID: "someone-else", TeamID: "team1"}, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockCheckInRepo := new(MockCheckInRepository)
			mockAttachmentRepo := new(MockAttachmentRepository)

			tt.setupMocks(mockCheckInRepo, mockAttachmentRepo)

			service := NewCheckInService(mockTx).
				WithCheckInRepo(mockCheckInRepo).
				WithAttachmentRepo(mockAttachmentRepo)

			got, err := service.AddAttachment(
				context.Background(),
				"user1", "team1", "checkin1",
				"http://localhost:8080/attachments/notes.png", "notes.png", "/data/notes.png",
			)

			if tt.expectedError {
				assert.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, "notes.png", got.Filename)
			}

			mockAttachmentRepo.AssertExpectations(t)
		})
	}
}

func TestCheckInService_List(t *testing.T) {
	membership := &repository.Membership{UserID: "user1", TeamID: "team1"}

	rows := []*repository.CheckInRow{
		{
			CheckIn:     repository.CheckIn{ID: "c1", UserID: "user1", TeamID: "team1", Mood: model.MoodGood, Energy: 4},
			DisplayName: "Mila",
		},
		{
			CheckIn:     repository.CheckIn{ID: "c2", UserID: "user2", TeamID: "team1", Mood: model.MoodLow, Energy: 2},
			DisplayName: "Omar",
		},
	}

	mockTx := new(MockTransactor)
	mockMembershipRepo := new(MockMembershipRepository)
	mockCheckInRepo := new(MockCheckInRepository)
	mockAttachmentRepo := new(MockAttachmentRepository)

	mockMembershipRepo.On("Get", mock.Anything, "user1", "team1").Return(membership, nil)
	mockCheckInRepo.On("List", mock.Anything, "team1", mock.MatchedBy(func(f *repository.CheckInFilter) bool {
		return f.Limit == 20 && f.Offset == 0
	})).Return(rows, nil)
	mockCheckInRepo.On("Count", mock.Anything, "team1", mock.Anything).Return(45, nil)
	mockAttachmentRepo.On("ListByCheckIns", mock.Anything, []string{"c1", "c2"}).Return([]*repository.Attachment{
		{ID: "a1", CheckInID: "c2", Filename: "screenshot.png"},
	}, nil)

	service := NewCheckInService(mockTx).
		WithMembershipRepo(mockMembershipRepo).
		WithCheckInRepo(mockCheckInRepo).
		WithAttachmentRepo(mockAttachmentRepo)

	page, err := service.List(context.Background(), "user1", "team1", &CheckInListFilter{})

	assert.Nil(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 45, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Data, 2)
	assert.Empty(t, page.Data[0].Attachments)
	assert.Len(t, page.Data[1].Attachments, 1)
	assert.Equal(t, "Mila", page.Data[0].User.DisplayName)

	mockCheckInRepo.AssertExpectations(t)
	mockAttachmentRepo.AssertExpectations(t)
}
