package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
	"github.com/mkravets/team-pulse/internal/service"
	"github.com/mkravets/team-pulse/internal/storage"
)

type recordingBlobStore struct {
	puts []string
}

func (r *recordingBlobStore) Put(_ context.Context, key, _ string, src io.Reader) (*storage.Ref, error) {
	_, _ = io.Copy(io.Discard, src)
	r.puts = append(r.puts, key)
	return &storage.Ref{URL: "http://localhost:8080/attachments/" + key, Path: "/data/" + key}, nil
}

func doAttachmentUpload(t *testing.T, h *Handler, caller *model.User) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "sketch.png")
	assert.NoError(t, err)
	_, err = part.Write([]byte("png bytes"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/teams/team1/check-ins/ci1/attachments", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()

	c := echo.New().NewContext(req, rec)
	c.SetParamNames("teamId", "id")
	c.SetParamValues("team1", "ci1")
	c.Set(currentUserKey, caller)

	assert.NoError(t, h.UploadAttachment(c))
	return rec
}

func TestUploadAttachment_RejectedUploadSkipsBlobStore(t *testing.T) {
	mockCheckInRepo := new(service.MockCheckInRepository)
	mockCheckInRepo.On("Get", mock.Anything, "ci1").
		Return(&repository.CheckIn{ID: "ci1", UserID: "owner", TeamID: "team1"}, nil)

	checkIns := service.NewCheckInService(new(service.MockTransactor)).
		WithCheckInRepo(mockCheckInRepo).
		WithAttachmentRepo(new(service.MockAttachmentRepository))

	blobs := &recordingBlobStore{}
	h := NewHandler(zap.NewNop()).WithCheckInService(checkIns).WithBlobStore(blobs)

	rec := doAttachmentUpload(t, h, &model.User{ID: "intruder", DisplayName: "Mila"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, blobs.puts)
}

func TestUploadAttachment_StoresBlobForAuthor(t *testing.T) {
	mockCheckInRepo := new(service.MockCheckInRepository)
	mockAttachmentRepo := new(service.MockAttachmentRepository)
	mockCheckInRepo.On("Get", mock.Anything, "ci1").
		Return(&repository.CheckIn{ID: "ci1", UserID: "owner", TeamID: "team1"}, nil)
	mockAttachmentRepo.On("ListByCheckIn", mock.Anything, "ci1").
		Return([]*repository.Attachment{}, nil)
	mockAttachmentRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	checkIns := service.NewCheckInService(new(service.MockTransactor)).
		WithCheckInRepo(mockCheckInRepo).
		WithAttachmentRepo(mockAttachmentRepo)

	blobs := &recordingBlobStore{}
	h := NewHandler(zap.NewNop()).WithCheckInService(checkIns).WithBlobStore(blobs)

	rec := doAttachmentUpload(t, h, &model.User{ID: "owner", DisplayName: "Omar"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, blobs.puts, 1)
	mockAttachmentRepo.AssertExpectations(t)
}
