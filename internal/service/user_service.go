package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/db"
	"github.com/mkravets/team-pulse/internal/email"
	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
	"github.com/mkravets/team-pulse/pkg/logger"
)

type UserService struct {
	tx db.Transactor

	users  repository.UserRepository
	mailer email.Mailer

	dashboardURL string
}

func NewUserService(tx db.Transactor) *UserService {
	return &UserService{
		tx:     tx,
		mailer: email.NoopMailer{},
	}
}

// ResolveIdentity maps a verified external identity to the local user,
// creating the record lazily on first sight. Idempotent.
func (u *UserService) ResolveIdentity(ctx context.Context, identity *model.Identity) (*model.User, *Error) {
	l := logger.FromContext(ctx)

	user, err := u.users.GetByExternalID(ctx, identity.ExternalID)
	if err == nil {
		if identity.DisplayName != user.DisplayName || (identity.AvatarURL != nil && *identity.AvatarURL != deref(user.AvatarURL)) {
			patch := &repository.UserPatch{ID: user.ID, DisplayName: &identity.DisplayName}
			if identity.AvatarURL != nil {
				patch.AvatarURL = identity.AvatarURL
			}
			if user, err = u.users.Patch(ctx, patch); err != nil {
				l.Error("failed to refresh user profile", zap.String("external_id", identity.ExternalID), zap.Error(err))
				return nil, NewError(ErrorCodeUnspecified, "failed to refresh user profile")
			}
		}
		return toModelUser(user), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		l.Error("failed to look up user", zap.String("external_id", identity.ExternalID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to look up user")
	}

	created := &repository.User{
		ID:          uuid.NewString(),
		ExternalID:  identity.ExternalID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		Timezone:    "UTC",
	}

	err = u.users.Create(ctx, created)
	if errors.Is(err, repository.ErrAlreadyExists) {
		// Lost a race with a concurrent first request for the same identity.
		if user, err = u.users.GetByExternalID(ctx, identity.ExternalID); err != nil {
			l.Error("failed to re-read user after create conflict", zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to resolve identity")
		}
		return toModelUser(user), nil
	}
	if err != nil {
		l.Error("failed to create user", zap.String("external_id", identity.ExternalID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create user")
	}

	l.Info("created user on first sign-in", zap.String("user_id", created.ID))

	if err = u.mailer.SendWelcome(ctx, created.Email, email.WelcomeData{
		DisplayName:  created.DisplayName,
		DashboardURL: u.dashboardURL,
	}); err != nil {
		l.Warn("failed to send welcome email", zap.String("user_id", created.ID), zap.Error(err))
	}

	return toModelUser(created), nil
}

func (u *UserService) GetProfile(ctx context.Context, userID string) (*model.User, *Error) {
	user, err := u.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get user")
	}
	return toModelUser(user), nil
}

func (u *UserService) UpdateProfile(ctx context.Context, userID string, displayName, timezone *string) (*model.User, *Error) {
	if timezone != nil {
		if _, err := time.LoadLocation(*timezone); err != nil {
			return nil, NewError(ErrorCodeInvalidBody, "timezone: unknown IANA zone")
		}
	}

	user, err := u.users.Patch(ctx, &repository.UserPatch{
		ID:          userID,
		DisplayName: displayName,
		Timezone:    timezone,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update user")
	}
	return toModelUser(user), nil
}

func (u *UserService) UpdateAvatar(ctx context.Context, userID, avatarURL string) (*model.User, *Error) {
	user, err := u.users.Patch(ctx, &repository.UserPatch{
		ID:        userID,
		AvatarURL: &avatarURL,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update avatar")
	}
	return toModelUser(user), nil
}

func (u *UserService) WithUserRepo(r repository.UserRepository) *UserService {
	u.users = r
	return u
}

func (u *UserService) WithMailer(m email.Mailer) *UserService {
	u.mailer = m
	return u
}

func (u *UserService) WithDashboardURL(url string) *UserService {
	u.dashboardURL = url
	return u
}

func toModelUser(u *repository.User) *model.User {
	return &model.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Timezone:    u.Timezone,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
