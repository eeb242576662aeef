package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/service"
	"github.com/mkravets/team-pulse/pkg/logger"
)

const maxAvatarBytes = 2 << 20

func (h *Handler) GetProfile(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)

	user, err := h.users.GetProfile(e.Request().Context(), caller.ID)
	if err != nil {
		l.Error("failed to get profile", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateProfile(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)

	var req struct {
		DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=100"`
		Timezone    *string `json:"timezone"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	user, err := h.users.UpdateProfile(e.Request().Context(), caller.ID, req.DisplayName, req.Timezone)
	if err != nil {
		l.Error("failed to update profile", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, user)
}

func (h *Handler) UploadAvatar(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())
	caller := CurrentUser(e)

	file, err := e.FormFile("avatar")
	if err != nil {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody, "avatar: required"))
	}
	if file.Size > maxAvatarBytes {
		return h.transportError(e, service.NewError(service.ErrorCodeInvalidBody,
			fmt.Sprintf("avatar: at most %d bytes", maxAvatarBytes)))
	}

	src, err := file.Open()
	if err != nil {
		l.Error("failed to open uploaded avatar", zap.Error(err))
		return h.transportError(e, service.NewError(service.ErrorCodeUnspecified, "failed to read uploaded file"))
	}
	defer src.Close()

	key := fmt.Sprintf("avatars/%s/%s-%s", caller.ID, uuid.NewString()[:8], file.Filename)
	ref, err := h.blobs.Put(e.Request().Context(), key, file.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		l.Error("failed to store avatar", zap.Error(err))
		return h.transportError(e, service.NewError(service.ErrorCodeUnspecified, "failed to store avatar"))
	}

	user, serr := h.users.UpdateAvatar(e.Request().Context(), caller.ID, ref.URL)
	if serr != nil {
		l.Error("failed to update avatar", zap.Any("error", serr))
		return h.transportError(e, serr)
	}

	return e.JSON(http.StatusOK, user)
}
