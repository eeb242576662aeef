package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/dates"
	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/service"
	"github.com/mkravets/team-pulse/pkg/logger"
)

const maxAttachmentBytes = 10 << 20

func (h *Handler) CreateCheckIn(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	var req struct {
		Yesterday string  `json:"yesterday"`
		Today     string  `json:"today" validate:"required"`
		Blockers  *string `json:"blockers"`
		Mood      string  `json:"mood" validate:"required"`
		Energy    int     `json:"energy" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	checkIn, err := h.checkIns.Create(e.Request().Context(), caller.ID, teamID, &service.CheckInInput{
		Yesterday: req.Yesterday,
		Today:     req.Today,
		Blockers:  req.Blockers,
		Mood:      model.Mood(req.Mood),
		Energy:    req.Energy,
	})
	if err != nil {
		l.Error("failed to create check-in", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, checkIn)
}

func (h *Handler) ListCheckIns(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	filter, serr := parseCheckInFilter(e)
	if serr != nil {
		l.Error("invalid filter", zap.Any("error", serr))
		return h.transportError(e, serr)
	}

	page, err := h.checkIns.List(e.Request().Context(), caller.ID, teamID, filter)
	if err != nil {
		l.Error("failed to list check-ins", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, page)
}

// GetTodayCheckIn returns the caller's check-in for their current local day,
// or 204 when they have not checked in yet.
func (h *Handler) GetTodayCheckIn(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")

	checkIn, err := h.checkIns.FindToday(e.Request().Context(), caller.ID, teamID)
	if err != nil {
		l.Error("failed to get today's check-in", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}
	if checkIn == nil {
		return e.NoContent(http.StatusNoContent)
	}

	return e.JSON(http.StatusOK, checkIn)
}

func (h *Handler) UpdateCheckIn(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")
	checkInID := e.Param("id")

	var req struct {
		Yesterday *string `json:"yesterday"`
		Today     *string `json:"today"`
		Blockers  *string `json:"blockers"`
		Mood      *string `json:"mood"`
		Energy    *int    `json:"energy"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	update := &service.CheckInUpdate{
		Yesterday: req.Yesterday,
		Today:     req.Today,
		Blockers:  req.Blockers,
		Energy:    req.Energy,
	}
	if req.Mood != nil {
		mood := model.Mood(*req.Mood)
		update.Mood = &mood
	}

	checkIn, err := h.checkIns.Update(e.Request().Context(), caller.ID, teamID, checkInID, update)
	if err != nil {
		l.Error("failed to update check-in", zap.String("check_in_id", checkInID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, checkIn)
}

func (h *Handler) DeleteCheckIn(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")
	checkInID := e.Param("id")

	if err := h.checkIns.Delete(e.Request().Context(), caller.ID, teamID, checkInID); err != nil {
		l.Error("failed to delete check-in", zap.String("check_in_id", checkInID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

// UploadAttachment stores the multipart file and records it against the
// check-in. Ownership and the attachment cap are checked before the blob is
// written, so a rejected upload leaves nothing on disk.
func (h *Handler) UploadAttachment(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)
	teamID := e.Param("teamId")
	checkInID := e.Param("id")

	if serr := h.checkIns.AuthorizeAttachment(e.Request().Context(), caller.ID, teamID, checkInID); serr != nil {
		l.Error("attachment rejected", zap.String("check_in_id", checkInID), zap.Any("error", serr))
		return h.transportError(e, serr)
	}

	file, err := e.FormFile("file")
	if err != nil {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody, "file: required"))
	}
	if file.Size > maxAttachmentBytes {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody,
			fmt.Sprintf("file: at most %d bytes", maxAttachmentBytes)))
	}

	src, err := file.Open()
	if err != nil {
		l.Error("failed to open uploaded file", zap.Error(err))
		return h.transportError(e, service.NewError(service.ErrorCodeUnspecified, "failed to read uploaded file"))
	}
	defer src.Close()

	key := fmt.Sprintf("checkins/%s/%s-%s", checkInID, uuid.NewString()[:8], file.Filename)
	ref, err := h.blobs.Put(e.Request().Context(), key, file.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		l.Error("failed to store attachment", zap.String("check_in_id", checkInID), zap.Error(err))
		return h.transportError(e, service.NewError(service.ErrorCodeUnspecified, "failed to store attachment"))
	}

	attachment, serr := h.checkIns.AddAttachment(e.Request().Context(), caller.ID, teamID, checkInID, ref.URL, file.Filename, ref.Path)
	if serr != nil {
		l.Error("failed to add attachment", zap.String("check_in_id", checkInID), zap.Any("error", serr))
		return h.transportError(e, serr)
	}

	return e.JSON(http.StatusCreated, attachment)
}

func parseCheckInFilter(e echo.Context) (*service.CheckInListFilter, *service.Error) {
	filter := &service.CheckInListFilter{
		UserIDs: e.QueryParams()["user_id"],
	}

	var err error
	if filter.Page, err = queryInt(e, "page"); err != nil {
		return nil, service.NewError(service.ErrorCodeInvalidBody, "page: must be an integer")
	}
	if filter.Limit, err = queryInt(e, "limit"); err != nil {
		return nil, service.NewError(service.ErrorCodeInvalidBody, "limit: must be an integer")
	}

	if filter.DateFrom, err = queryDay(e, "date_from"); err != nil {
		return nil, service.NewError(service.ErrorCodeInvalidBody, "date_from: must be YYYY-MM-DD")
	}
	if filter.DateTo, err = queryDay(e, "date_to"); err != nil {
		return nil, service.NewError(service.ErrorCodeInvalidBody, "date_to: must be YYYY-MM-DD")
	}

	if raw := e.QueryParam("has_blockers"); raw != "" {
		hasBlockers, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, service.NewError(service.ErrorCodeInvalidBody, "has_blockers: must be a boolean")
		}
		filter.HasBlockers = &hasBlockers
	}

	return filter, nil
}

func queryInt(e echo.Context, name string) (int, error) {
	raw := e.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func queryDay(e echo.Context, name string) (*time.Time, error) {
	raw := e.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	day, err := dates.ParseDay(raw)
	if err != nil {
		return nil, err
	}
	return &day, nil
}
