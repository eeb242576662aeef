package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/auth"
	"github.com/mkravets/team-pulse/internal/service"
	"github.com/mkravets/team-pulse/internal/storage"
)

type Handler struct {
	users         *service.UserService
	teams         *service.TeamService
	checkIns      *service.CheckInService
	analytics     *service.AnalyticsService
	notifications *service.NotificationService

	blobs    storage.BlobStore
	verifier auth.Verifier

	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithUserService(users *service.UserService) *Handler {
	h.users = users
	return h
}

func (h *Handler) WithTeamService(teams *service.TeamService) *Handler {
	h.teams = teams
	return h
}

func (h *Handler) WithCheckInService(checkIns *service.CheckInService) *Handler {
	h.checkIns = checkIns
	return h
}

func (h *Handler) WithAnalyticsService(analytics *service.AnalyticsService) *Handler {
	h.analytics = analytics
	return h
}

func (h *Handler) WithNotificationService(notifications *service.NotificationService) *Handler {
	h.notifications = notifications
	return h
}

func (h *Handler) WithBlobStore(blobs storage.BlobStore) *Handler {
	h.blobs = blobs
	return h
}

func (h *Handler) WithVerifier(verifier auth.Verifier) *Handler {
	h.verifier = verifier
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", h.healthChecker.HealthCheck())

	// Invite preview stays public so the join page can render before sign-in.
	e.GET("/teams/join/:code", h.PreviewInvite)

	authed := e.Group("", AuthMiddleware(h.verifier, h.users))

	authed.POST("/teams", h.CreateTeam)
	authed.GET("/teams", h.ListTeams)
	authed.POST("/teams/join/:code", h.JoinTeam)
	authed.GET("/teams/:teamId", h.GetTeam)
	authed.PATCH("/teams/:teamId", h.UpdateTeam)
	authed.DELETE("/teams/:teamId", h.DeleteTeam)
	authed.POST("/teams/:teamId/invite-code", h.RegenerateInviteCode)
	authed.GET("/teams/:teamId/members", h.ListMembers)
	authed.DELETE("/teams/:teamId/members/:userId", h.RemoveMember)
	authed.POST("/teams/:teamId/transfer-admin", h.TransferAdmin)

	authed.POST("/teams/:teamId/check-ins", h.CreateCheckIn)
	authed.GET("/teams/:teamId/check-ins", h.ListCheckIns)
	authed.GET("/teams/:teamId/check-ins/today", h.GetTodayCheckIn)
	authed.PATCH("/teams/:teamId/check-ins/:id", h.UpdateCheckIn)
	authed.DELETE("/teams/:teamId/check-ins/:id", h.DeleteCheckIn)
	authed.POST("/teams/:teamId/check-ins/:id/attachments", h.UploadAttachment)

	authed.GET("/teams/:teamId/analytics/participation", h.GetParticipation)
	authed.GET("/teams/:teamId/analytics/mood", h.GetMoodSeries)
	authed.GET("/teams/:teamId/analytics/energy", h.GetEnergySeries)
	authed.GET("/teams/:teamId/analytics/blockers", h.GetBlockerKeywords)
	authed.GET("/teams/:teamId/analytics/streaks", h.GetStreaks)
	authed.GET("/teams/:teamId/analytics/export", h.ExportCheckIns)

	authed.GET("/teams/:teamId/notification-preferences", h.GetNotificationPreferences)
	authed.PATCH("/teams/:teamId/notification-preferences", h.UpdateNotificationPreferences)

	authed.GET("/users/me", h.GetProfile)
	authed.PATCH("/users/me", h.UpdateProfile)
	authed.POST("/users/me/avatar", h.UploadAvatar)

	authed.GET("/users/me/notifications", h.ListNotifications)
	authed.PATCH("/users/me/notifications/:id/read", h.MarkNotificationRead)
	authed.PATCH("/users/me/notifications/read-all", h.MarkAllNotificationsRead)
}

func (h *Handler) decodeRequest(e echo.Context, req any) *service.Error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, "invalid request body")
	}

	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Error *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeInvalidBody:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeCheckInExists:
		return e.JSON(http.StatusConflict, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
