package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/service"
	"github.com/mkravets/team-pulse/pkg/logger"
)

func (h *Handler) GetParticipation(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	days, err := queryInt(e, "days")
	if err != nil {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody, "days: must be an integer"))
	}

	participation, serr := h.analytics.Participation(e.Request().Context(), caller.ID, teamID, days)
	if serr != nil {
		l.Error("failed to compute participation", zap.String("team_id", teamID), zap.Any("error", serr))
		return h.transportError(e, serr)
	}

	return e.JSON(http.StatusOK, participation)
}

func (h *Handler) GetMoodSeries(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	days, err := queryInt(e, "days")
	if err != nil {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody, "days: must be an integer"))
	}

	series, serr := h.analytics.MoodSeries(e.Request().Context(), caller.ID, teamID, days)
	if serr != nil {
		l.Error("failed to compute mood series", zap.String("team_id", teamID), zap.Any("error", serr))
		return h.transportError(e, serr)
	}

	return e.JSON(http.StatusOK, series)
}

func (h *Handler) GetEnergySeries(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	days, err := queryInt(e, "days")
	if err != nil {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody, "days: must be an integer"))
	}

	series, serr := h.analytics.EnergySeries(e.Request().Context(), caller.ID, teamID, days)
	if serr != nil {
		l.Error("failed to compute energy series", zap.String("team_id", teamID), zap.Any("error", serr))
		return h.transportError(e, serr)
	}

	return e.JSON(http.StatusOK, series)
}

func (h *Handler) GetBlockerKeywords(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	keywords, err := h.analytics.Blockers(e.Request().Context(), caller.ID, teamID)
	if err != nil {
		l.Error("failed to compute blocker keywords", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, keywords)
}

func (h *Handler) GetStreaks(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	streaks, err := h.analytics.Streaks(e.Request().Context(), caller.ID, teamID)
	if err != nil {
		l.Error("failed to compute streaks", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, streaks)
}

func (h *Handler) ExportCheckIns(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	data, err := h.analytics.ExportCSV(e.Request().Context(), caller.ID, teamID)
	if err != nil {
		l.Error("failed to export check-ins", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	e.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="check-ins.csv"`)
	return e.Blob(http.StatusOK, "text/csv", []byte(data))
}
