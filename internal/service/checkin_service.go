package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkravets/team-pulse/internal/dates"
	"github.com/mkravets/team-pulse/internal/db"
	"github.com/mkravets/team-pulse/internal/model"
	"github.com/mkravets/team-pulse/internal/repository"
	"github.com/mkravets/team-pulse/pkg/logger"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type CheckInInput struct {
	Yesterday string
	Today     string
	Blockers  *string
	Mood      model.Mood
	Energy    int
}

type CheckInUpdate struct {
	Yesterday *string
	Today     *string
	Blockers  *string
	Mood      *model.Mood
	Energy    *int
}

type CheckInListFilter struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	UserIDs     []string
	HasBlockers *bool
	Page        int
	Limit       int
}

type CheckInService struct {
	tx db.Transactor

	users       repository.UserRepository
	memberships repository.MembershipRepository
	checkIns    repository.CheckInRepository
	attachments repository.AttachmentRepository
}

func NewCheckInService(tx db.Transactor) *CheckInService {
	return &CheckInService{tx: tx}
}

// Create persists the caller's check-in for their current local day. A second
// check-in for the same (user, team, day) is rejected with a conflict; the
// storage-level unique constraint closes the concurrent-create race.
func (c *CheckInService) Create(ctx context.Context, callerID, teamID string, in *CheckInInput) (*model.CheckIn, *Error) {
	l := logger.FromContext(ctx)

	if serr := c.requireMembership(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}
	if serr := validateCheckInFields(in.Yesterday, in.Today, in.Blockers, &in.Mood, &in.Energy); serr != nil {
		return nil, serr
	}

	user, err := c.users.Get(ctx, callerID)
	if err != nil {
		l.Error("failed to load caller", zap.String("user_id", callerID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to load caller")
	}

	day, err := dates.LocalDate(time.Now(), user.Timezone)
	if err != nil {
		l.Error("failed to compute local date", zap.String("timezone", user.Timezone), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to compute local date")
	}

	checkIn := &repository.CheckIn{
		ID:          uuid.NewString(),
		UserID:      callerID,
		TeamID:      teamID,
		Yesterday:   in.Yesterday,
		Today:       in.Today,
		Blockers:    in.Blockers,
		Mood:        in.Mood,
		Energy:      in.Energy,
		CheckInDate: day,
	}

	err = c.checkIns.Create(ctx, checkIn)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, NewError(ErrorCodeCheckInExists, "check-in already exists for today")
	}
	if err != nil {
		l.Error("failed to create check-in", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create check-in")
	}

	l.Info("check-in created",
		zap.String("check_in_id", checkIn.ID),
		zap.String("team_id", teamID),
		zap.String("day", dates.FormatDay(day)))

	res := toModelCheckIn(checkIn)
	res.User = &model.UserRef{ID: user.ID, DisplayName: user.DisplayName, AvatarURL: user.AvatarURL}
	return res, nil
}

// List returns a page of a team's check-ins, newest date first.
func (c *CheckInService) List(ctx context.Context, callerID, teamID string, filter *CheckInListFilter) (*model.CheckInPage, *Error) {
	if serr := c.requireMembership(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	repoFilter := &repository.CheckInFilter{
		DateFrom:    filter.DateFrom,
		DateTo:      filter.DateTo,
		UserIDs:     filter.UserIDs,
		HasBlockers: filter.HasBlockers,
		Limit:       limit,
		Offset:      (page - 1) * limit,
	}

	rows, err := c.checkIns.List(ctx, teamID, repoFilter)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to list check-ins")
	}

	total, err := c.checkIns.Count(ctx, teamID, repoFilter)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to count check-ins")
	}

	data := make([]*model.CheckIn, 0, len(rows))
	ids := make([]string, 0, len(rows))
	byID := make(map[string]*model.CheckIn, len(rows))
	for _, row := range rows {
		m := toModelCheckIn(&row.CheckIn)
		m.User = &model.UserRef{ID: row.UserID, DisplayName: row.DisplayName, AvatarURL: row.AvatarURL}
		data = append(data, m)
		ids = append(ids, m.ID)
		byID[m.ID] = m
	}

	atts, err := c.attachments.ListByCheckIns(ctx, ids)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load attachments")
	}
	for _, a := range atts {
		if m, ok := byID[a.CheckInID]; ok {
			m.Attachments = append(m.Attachments, toModelAttachment(a))
		}
	}

	return &model.CheckInPage{
		Data:       data,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// FindToday returns the caller's check-in for their current local day, or nil
// when they have not checked in yet.
func (c *CheckInService) FindToday(ctx context.Context, callerID, teamID string) (*model.CheckIn, *Error) {
	if serr := c.requireMembership(ctx, callerID, teamID); serr != nil {
		return nil, serr
	}

	user, err := c.users.Get(ctx, callerID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load caller")
	}

	day, err := dates.LocalDate(time.Now(), user.Timezone)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to compute local date")
	}

	row, err := c.checkIns.GetForDay(ctx, callerID, teamID, day)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get check-in")
	}

	m := toModelCheckIn(&row.CheckIn)
	m.User = &model.UserRef{ID: row.UserID, DisplayName: row.DisplayName, AvatarURL: row.AvatarURL}

	atts, err := c.attachments.ListByCheckIn(ctx, m.ID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load attachments")
	}
	for _, a := range atts {
		m.Attachments = append(m.Attachments, toModelAttachment(a))
	}
	return m, nil
}

// Update edits the caller's own check-in. Edits are restricted to the day the
// check-in was written, measured in the caller's timezone.
func (c *CheckInService) Update(ctx context.Context, callerID, teamID, checkInID string, in *CheckInUpdate) (*model.CheckIn, *Error) {
	checkIn, err := c.checkIns.Get(ctx, checkInID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "check-in not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to get check-in")
	}

	if checkIn.UserID != callerID {
		return nil, NewError(ErrorCodeForbidden, "you can only update your own check-ins")
	}
	if checkIn.TeamID != teamID {
		return nil, NewError(ErrorCodeForbidden, "check-in does not belong to this team")
	}
	if serr := validateCheckInFields(
		valueOr(in.Yesterday, checkIn.Yesterday),
		valueOr(in.Today, checkIn.Today),
		in.Blockers,
		in.Mood,
		in.Energy,
	); serr != nil {
		return nil, serr
	}

	user, err := c.users.Get(ctx, callerID)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to load caller")
	}
	today, err := dates.LocalDate(time.Now(), user.Timezone)
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to compute local date")
	}
	if !checkIn.CheckInDate.Equal(today) {
		return nil, NewError(ErrorCodeInvalidBody, "can only edit check-ins from today")
	}

	updated, err := c.checkIns.Patch(ctx, &repository.CheckInPatch{
		ID:        checkInID,
		Yesterday: in.Yesterday,
		Today:     in.Today,
		Blockers:  in.Blockers,
		Mood:      in.Mood,
		Energy:    in.Energy,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "check-in not found")
	}
	if err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to update check-in")
	}

	m := toModelCheckIn(updated)
	m.User = &model.UserRef{ID: user.ID, DisplayName: user.DisplayName, AvatarURL: user.AvatarURL}
	return m, nil
}

// AuthorizeAttachment checks that the caller may attach a file to the
// check-in. Callers run it before accepting the binary, so a rejected upload
// never reaches the blob store.
func (c *CheckInService) AuthorizeAttachment(ctx context.Context, callerID, teamID, checkInID string) *Error {
	return c.attachmentSlot(ctx, callerID, teamID, checkInID)
}

// AddAttachment records a stored blob reference against the caller's own
// check-in. The binary itself has already been handed to the blob store.
func (c *CheckInService) AddAttachment(ctx context.Context, callerID, teamID, checkInID, url, filename, storagePath string) (*model.Attachment, *Error) {
	if serr := c.attachmentSlot(ctx, callerID, teamID, checkInID); serr != nil {
		return nil, serr
	}

	a := &repository.Attachment{
		ID:          uuid.NewString(),
		CheckInID:   checkInID,
		URL:         url,
		Filename:    filename,
		StoragePath: storagePath,
	}
	if err := c.attachments.Create(ctx, a); err != nil {
		return nil, NewError(ErrorCodeUnspecified, "failed to add attachment")
	}

	res := toModelAttachment(a)
	return &res, nil
}

// Delete removes the caller's own check-in.
func (c *CheckInService) Delete(ctx context.Context, callerID, teamID, checkInID string) *Error {
	checkIn, err := c.checkIns.Get(ctx, checkInID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "check-in not found")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to get check-in")
	}

	if checkIn.UserID != callerID {
		return NewError(ErrorCodeForbidden, "you can only delete your own check-ins")
	}
	if checkIn.TeamID != teamID {
		return NewError(ErrorCodeForbidden, "check-in does not belong to this team")
	}

	if err = c.checkIns.Delete(ctx, checkInID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "check-in not found")
		}
		return NewError(ErrorCodeUnspecified, "failed to delete check-in")
	}
	return nil
}

func (c *CheckInService) attachmentSlot(ctx context.Context, callerID, teamID, checkInID string) *Error {
	checkIn, err := c.checkIns.Get(ctx, checkInID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeNotFound, "check-in not found")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to get check-in")
	}

	if checkIn.UserID != callerID {
		return NewError(ErrorCodeForbidden, "you can only add attachments to your own check-ins")
	}
	if checkIn.TeamID != teamID {
		return NewError(ErrorCodeForbidden, "check-in does not belong to this team")
	}

	existing, err := c.attachments.ListByCheckIn(ctx, checkInID)
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to load attachments")
	}
	if len(existing) >= model.MaxAttachments {
		return NewError(ErrorCodeInvalidBody, fmt.Sprintf("maximum %d attachments allowed", model.MaxAttachments))
	}
	return nil
}

func (c *CheckInService) requireMembership(ctx context.Context, callerID, teamID string) *Error {
	_, err := c.memberships.Get(ctx, callerID, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		return NewError(ErrorCodeForbidden, "you are not a member of this team")
	}
	if err != nil {
		return NewError(ErrorCodeUnspecified, "failed to check membership")
	}
	return nil
}

func validateCheckInFields(yesterday, today string, blockers *string, mood *model.Mood, energy *int) *Error {
	if today == "" {
		return NewError(ErrorCodeInvalidBody, "today: required")
	}
	if len(yesterday) > model.MaxYesterdayLen {
		return NewError(ErrorCodeInvalidBody, fmt.Sprintf("yesterday: at most %d characters", model.MaxYesterdayLen))
	}
	if len(today) > model.MaxTodayLen {
		return NewError(ErrorCodeInvalidBody, fmt.Sprintf("today: at most %d characters", model.MaxTodayLen))
	}
	if blockers != nil && len(*blockers) > model.MaxBlockersLen {
		return NewError(ErrorCodeInvalidBody, fmt.Sprintf("blockers: at most %d characters", model.MaxBlockersLen))
	}
	if mood != nil {
		if _, ok := model.MoodOrdinal[*mood]; !ok {
			return NewError(ErrorCodeInvalidBody, "mood: must be one of GREAT, GOOD, OKAY, LOW, STRUGGLING")
		}
	}
	if energy != nil && (*energy < model.EnergyMin || *energy > model.EnergyMax) {
		return NewError(ErrorCodeInvalidBody, fmt.Sprintf("energy: must be between %d and %d", model.EnergyMin, model.EnergyMax))
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func valueOr(override *string, current string) string {
	if override != nil {
		return *override
	}
	return current
}

func (c *CheckInService) WithUserRepo(r repository.UserRepository) *CheckInService {
	c.users = r
	return c
}

func (c *CheckInService) WithMembershipRepo(r repository.MembershipRepository) *CheckInService {
	c.memberships = r
	return c
}

func (c *CheckInService) WithCheckInRepo(r repository.CheckInRepository) *CheckInService {
	c.checkIns = r
	return c
}

func (c *CheckInService) WithAttachmentRepo(r repository.AttachmentRepository) *CheckInService {
	c.attachments = r
	return c
}

func toModelCheckIn(c *repository.CheckIn) *model.CheckIn {
	return &model.CheckIn{
		ID:          c.ID,
		UserID:      c.UserID,
		TeamID:      c.TeamID,
		Yesterday:   c.Yesterday,
		Today:       c.Today,
		Blockers:    c.Blockers,
		Mood:        c.Mood,
		Energy:      c.Energy,
		CheckInDate: c.CheckInDate,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toModelAttachment(a *repository.Attachment) model.Attachment {
	return model.Attachment{
		ID:          a.ID,
		CheckInID:   a.CheckInID,
		URL:         a.URL,
		Filename:    a.Filename,
		StoragePath: a.StoragePath,
		CreatedAt:   a.CreatedAt,
	}
}
