package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/service"
	"github.com/mkravets/team-pulse/pkg/logger"
)

func (h *Handler) ListNotifications(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)

	unreadOnly := false
	if raw := e.QueryParam("unread_only"); raw != "" {
		var err error
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody, "unread_only: must be a boolean"))
		}
	}

	notifications, err := h.notifications.List(e.Request().Context(), caller.ID, unreadOnly)
	if err != nil {
		l.Error("failed to list notifications", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, notifications)
}

func (h *Handler) MarkNotificationRead(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	notificationID := e.Param("id")

	notification, err := h.notifications.MarkRead(e.Request().Context(), caller.ID, notificationID)
	if err != nil {
		l.Error("failed to mark notification as read",
			zap.String("notification_id", notificationID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, notification)
}

func (h *Handler) MarkAllNotificationsRead(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)

	if err := h.notifications.MarkAllRead(e.Request().Context(), caller.ID); err != nil {
		l.Error("failed to mark notifications as read", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) GetNotificationPreferences(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	preferences, err := h.notifications.GetPreferences(e.Request().Context(), caller.ID, teamID)
	if err != nil {
		l.Error("failed to get preferences", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, preferences)
}

func (h *Handler) UpdateNotificationPreferences(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	var req struct {
		ReminderEnabled *bool   `json:"reminder_enabled"`
		ReminderTime    *string `json:"reminder_time"`
		DigestFrequency *string `json:"digest_frequency"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	update := &service.PreferenceUpdate{
		ReminderEnabled: req.ReminderEnabled,
		ReminderTime:    req.ReminderTime,
	}
	if req.DigestFrequency != nil {
		freq := model.DigestFrequency(*req.DigestFrequency)
		update.DigestFrequency = &freq
	}

	preferences, err := h.notifications.UpdatePreferences(e.Request().Context(), caller.ID, teamID, update)
	if err != nil {
		l.Error("failed to update preferences", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, preferences)
}
