package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/db"
	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
	"github.com/mkravets/team-pulse/pkg/logger"
)

type PreferenceUpdate struct {
	ReminderEnabled *bool
	ReminderTime    *string
	DigestFrequency *model.DigestFrequency
}

type NotificationService struct {
	tx db.Transactor

	notifications repository.NotificationRepository
	memberships   repository.MembershipRepository
}

func NewNotificationService(tx db.Transactor) *NotificationService {
	return &NotificationService{tx: tx}
}

func (n *NotificationService) List(ctx context.Context, callerID string, unreadOnly bool) ([]*model.Notification, *Error) {
	rows, err := n.notifications.List(ctx, callerID, unreadOnly)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list notifications")
	}

	res := make([]*model.Notification, 0, len(rows))
	for _, row := range rows {
		res = append(res, toModelNotification(row))
	}
	return res, nil
}

// MarkRead sets read_at on one of the caller's notifications. Re-marking an
// already-read notification is a no-op.
func (n *NotificationService) MarkRead(ctx context.Context, callerID, notificationID string) (*model.Notification, *Error) {
	row, err := n.notifications.MarkRead(ctx, callerID, notificationID, time.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "notification not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to mark notification as read")
	}
	return toModelNotification(row), nil
}

func (n *NotificationService) MarkAllRead(ctx context.Context, callerID string) *Error {
	if err := n.notifications.MarkAllRead(ctx, callerID, time.Now()); err != nil {
		return NewError(ErrorCodeUnspecified, "failed to mark notifications as read")
	}
	return nil
}

// GetPreferences returns the caller's settings for one team, falling back to
// the defaults when nothing has been stored yet.
func (n *NotificationService) GetPreferences(ctx context.Context, callerID, teamID string) (*model.NotificationPreference, *Error) {
	if serr := n.requireMembership(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}

	pref, err := n.notifications.GetPreference(ctx, callerID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return defaultPreference(callerID, teamID), nil
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get preferences")
	}
	return toModelPreference(pref), nil
}

// UpdatePreferences upserts the caller's settings for a team, applying only
// the supplied fields over the stored (or default) values.
func (n *NotificationService) UpdatePreferences(ctx context.Context, callerID, teamID string, update *PreferenceUpdate) (*model.NotificationPreference, *Error) {
	l := logger.FromContext(ctx)

	if serr := n.requireMembership(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}
	if update.ReminderTime != nil {
		if _, err := time.Parse("15:04", *update.ReminderTime); err != nil {
			return nil, NewError(ErrorCodeInvalidBody, "reminder_time: must be HH:MM")
		}
	}
	if update.DigestFrequency != nil {
		switch *update.DigestFrequency {
		case model.DigestOff, model.DigestDaily, model.DigestWeekly:
		default:
			return nil, NewError(ErrorCodeInvalidBody, "digest_frequency: must be one of OFF, DAILY, WEEKLY")
		}
	}

	current := defaultPreference(callerID, teamID)
	stored, err := n.notifications.GetPreference(ctx, callerID, teamID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeUnspecified, "failed to get preferences")
	}
	if stored != nil {
		current = toModelPreference(stored)
	}

	if update.ReminderEnabled != nil {
		current.ReminderEnabled = *update.ReminderEnabled
	}
	if update.ReminderTime != nil {
		current.ReminderTime = *update.ReminderTime
	}
	if update.DigestFrequency != nil {
		current.DigestFrequency = *update.DigestFrequency
	}

	pref := &repository.NotificationPreference{
		ID:              uuid.NewString(),
		UserID:          callerID,
		TeamID:          teamID,
		ReminderEnabled: current.ReminderEnabled,
		ReminderTime:    current.ReminderTime,
		DigestFrequency: current.DigestFrequency,
	}
	if stored != nil {
		pref.ID = stored.ID
	}

	if err = n.notifications.UpsertPreference(ctx, pref); err != nil {
		l.Error("failed to upsert preferences",
			zap.String("user_id", callerID),
			zap.String("team_id", teamID),
			zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to update preferences")
	}
	return toModelPreference(pref), nil
}

// Notify records a notification in a user's inbox. Used by the reminder and
// digest dispatch paths.
func (n *NotificationService) Notify(ctx context.Context, userID, notifType, title, body string) (*model.Notification, *Error) {
	row := &repository.Notification{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
	}

	err := n.notifications.Create(ctx, row)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to create notification")
	}
	return toModelNotification(row), nil
}

func (n *NotificationService) requireMembership(ctx context.Context, callerID, teamID string) *Error {
	_, err := n.memberships.Get(ctx, callerID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeForbidden, "you are not a member of this team")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to check membership")
	}
	return nil
}

func (n *NotificationService) WithNotificationRepo(r repository.NotificationRepository) *NotificationService {
	n.notifications = r
	return n
}

func (n *NotificationService) WithMembershipRepo(r repository.MembershipRepository) *NotificationService {
	n.memberships = r
	return n
}

func defaultPreference(userID, teamID string) *model.NotificationPreference {
	return &model.NotificationPreference{
		UserID:          userID,
		TeamID:          teamID,
		ReminderEnabled: true,
		ReminderTime:    model.DefaultReminderTime,
		DigestFrequency: model.DefaultDigestFrequency,
	}
}

func toModelNotification(n *repository.Notification) *model.Notification {
	return &model.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func toModelPreference(p *repository.NotificationPreference) *model.NotificationPreference {
	return &model.NotificationPreference{
		ID:              p.ID,
		UserID:          p.UserID,
		TeamID:          p.TeamID,
		ReminderEnabled: p.ReminderEnabled,
		ReminderTime:    p.ReminderTime,
		DigestFrequency: p.DigestFrequency,
	}
}
