package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/pkg/logger"
)

func (h *Handler) CreateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)

	var req struct {
		Name    string  `json:"name" validate:"required,max=100"`
		LogoURL *string `json:"logo_url" validate:"omitempty,url"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	team, err := h.teams.CreateTeam(e.Request().Context(), caller.ID, req.Name, req.LogoURL)
	if err != nil {
		l.Error("failed to create team", zap.String("team_name", req.Name), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, team)
}

func (h *Handler) ListTeams(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)

	teams, err := h.teams.ListTeams(e.Request().Context(), caller.ID)
	if err != nil {
		l.Error("failed to list teams", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) GetTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	team, err := h.teams.GetTeam(e.Request().Context(), caller.ID, teamID)
	if err != nil {
		l.Error("failed to get team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

// PreviewInvite resolves an invite code to the team it belongs to. No auth.
func (h *Handler) PreviewInvite(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	code := e.Param("code")

	team, err := h.teams.GetTeamByInviteCode(e.Request().Context(), code)
	if err != nil {
		l.Warn("invite preview failed", zap.Any("error", err))
		return h.transportError(e, err)
	}

	// The code itself stays hidden from non-members.
	return e.JSON(http.StatusOK, struct {
		ID      string  `json:"id"`
		Name    string  `json:"name"`
		LogoURL *string `json:"logo_url,omitempty"`
	}{ID: team.ID, Name: team.Name, LogoURL: team.LogoURL})
}

func (h *Handler) JoinTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	code := e.Param("code")

	membership, err := h.teams.JoinTeam(e.Request().Context(), caller.ID, code)
	if err != nil {
		l.Error("failed to join team", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, membership)
}

func (h *Handler) UpdateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	var req struct {
		Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
		LogoURL *string `json:"logo_url" validate:"omitempty,url"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	team, err := h.teams.UpdateTeam(e.Request().Context(), caller.ID, teamID, req.Name, req.LogoURL)
	if err != nil {
		l.Error("failed to update team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) DeleteTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	if err := h.teams.DeleteTeam(e.Request().Context(), caller.ID, teamID); err != nil {
		l.Error("failed to delete team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) RegenerateInviteCode(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	team, err := h.teams.RegenerateInviteCode(e.Request().Context(), caller.ID, teamID)
	if err != nil {
		l.Error("failed to regenerate invite code", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) ListMembers(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	members, err := h.teams.ListMembers(e.Request().Context(), caller.ID, teamID)
	if err != nil {
		l.Error("failed to list members", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, members)
}

func (h *Handler) RemoveMember(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")
	memberID := e.Param("userId")

	if err := h.teams.RemoveMember(e.Request().Context(), caller.ID, teamID, memberID); err != nil {
		l.Error("failed to remove member",
			zap.String("team_id", teamID),
			zap.String("member_id", memberID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) TransferAdmin(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	var req struct {
		NewAdminID string `json:"new_admin_id" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	if err := h.teams.TransferAdmin(e.Request().Context(), caller.ID, teamID, req.NewAdminID); err != nil {
		l.Error("failed to transfer admin role",
			zap.String("team_id", teamID),
			zap.String("new_admin_id", req.NewAdminID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}
