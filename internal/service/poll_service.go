package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollengine/internal/domain"
	"pollengine/internal/engine"
	"pollengine/internal/notify"
	apperrors "pollengine/pkg/errors"
)

// Title and option text bounds.
const (
	titleMinLen       = 3
	titleMaxLen       = 100
	descriptionMaxLen = 500
	optionTextMaxLen  = 100
	minOptions        = 2
)

// OptionRequest is one choice in a create or update payload. ID is empty
// for new options; update payloads carry the existing ID to keep it stable.
type OptionRequest struct {
	ID          string `json:"id,omitempty"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
	Party       string `json:"party,omitempty"`
}

// CreatePollRequest is the create payload.
type CreatePollRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	StartAt     time.Time       `json:"start_at"`
	EndAt       time.Time       `json:"end_at"`
	ResultAt    *time.Time      `json:"result_at,omitempty"`
	Options     []OptionRequest `json:"options"`
	Settings    domain.Settings `json:"settings"`
}

// UpdatePollRequest is the edit payload. Version must carry the version
// the client read; a stale version is rejected with a conflict.
type UpdatePollRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	StartAt     time.Time       `json:"start_at"`
	EndAt       time.Time       `json:"end_at"`
	ResultAt    *time.Time      `json:"result_at,omitempty"`
	Options     []OptionRequest `json:"options"`
	Settings    domain.Settings `json:"settings"`
	Version     int             `json:"version"`
}

// PollView is a poll plus its derived status. Status is computed at
// serve time and never stored.
type PollView struct {
	*domain.Poll
	Status domain.PollStatus `json:"status"`
}

// PollService owns poll creation and lifecycle mutations.
type PollService struct {
	repo     PollRepository
	audit    *AuditService
	cache    *CacheService
	notifier notify.Notifier
	clock    engine.Clock
	log      *zap.Logger
}

func NewPollService(repo PollRepository, audit *AuditService, cache *CacheService, notifier notify.Notifier, clock engine.Clock, log *zap.Logger) *PollService {
	return &PollService{repo: repo, audit: audit, cache: cache, notifier: notifier, clock: clock, log: log}
}

// View attaches the derived status to a poll.
func (s *PollService) View(poll *domain.Poll) PollView {
	return PollView{Poll: poll, Status: engine.ComputeStatus(poll, s.clock.Now())}
}

// Create validates and persists a new poll. Admin only.
func (s *PollService) Create(ctx context.Context, actor domain.ViewerContext, req CreatePollRequest) (*domain.Poll, error) {
	if !actor.Authenticated || !actor.Admin {
		return nil, domain.ErrForbidden
	}

	now := s.clock.Now()
	if req.StartAt.Before(now.Add(-time.Minute)) {
		return nil, apperrors.NewValidationError("start time must not be in the past", nil)
	}
	if err := validatePollFields(req.Title, req.Description, req.StartAt, req.EndAt, req.ResultAt); err != nil {
		return nil, err
	}
	if err := validateOptionRequests(req.Options); err != nil {
		return nil, err
	}
	if err := validateSettings(req.Settings, len(req.Options)); err != nil {
		return nil, err
	}

	poll := &domain.Poll{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		StartAt:     req.StartAt.UTC(),
		EndAt:       req.EndAt.UTC(),
		ResultAt:    req.ResultAt,
		Settings:    req.Settings,
		Version:     1,
		CreatedBy:   actor.ViewerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, opt := range req.Options {
		poll.Options = append(poll.Options, domain.Option{
			ID:          uuid.New().String(),
			Text:        strings.TrimSpace(opt.Text),
			Description: opt.Description,
			Party:       opt.Party,
			Position:    i,
		})
	}

	if err := s.repo.Create(ctx, poll); err != nil {
		return nil, err
	}

	s.audit.RecordOrLog(ctx, poll.ID, actor.ViewerID, domain.ActionPollCreated, "", map[string]interface{}{
		"title":   poll.Title,
		"options": len(poll.Options),
	})
	s.publish(notify.EventPollCreated, poll.ID, actor.ViewerID)
	s.cache.InvalidatePoll(ctx, poll.ID)

	return poll, nil
}

// Get loads a poll, cache first.
func (s *PollService) Get(ctx context.Context, pollID string) (*domain.Poll, error) {
	if cached := s.cache.GetPoll(ctx, pollID); cached != nil {
		return cached, nil
	}

	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll == nil {
		return nil, domain.ErrPollNotFound
	}

	s.cache.SetPoll(ctx, poll)
	return poll, nil
}

// List returns all polls, newest first.
func (s *PollService) List(ctx context.Context) ([]*domain.Poll, error) {
	return s.repo.List(ctx)
}

// Update applies a version-checked edit. Owner or admin only. Settings-only
// edits are audited as SettingsChanged; anything else as PollUpdated.
func (s *PollService) Update(ctx context.Context, actor domain.ViewerContext, pollID string, req UpdatePollRequest) (*domain.Poll, error) {
	current, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrPollNotFound
	}
	if !actor.Admin && actor.ViewerID != current.CreatedBy {
		return nil, domain.ErrForbidden
	}
	if req.Version != current.Version {
		return nil, domain.ErrVersionConflict
	}

	if err := validatePollFields(req.Title, req.Description, req.StartAt, req.EndAt, req.ResultAt); err != nil {
		return nil, err
	}
	if err := validateOptionRequests(req.Options); err != nil {
		return nil, err
	}
	if err := validateSettings(req.Settings, len(req.Options)); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	updated := &domain.Poll{
		ID:          current.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		StartAt:     req.StartAt.UTC(),
		EndAt:       req.EndAt.UTC(),
		ResultAt:    req.ResultAt,
		Settings:    req.Settings,
		Version:     current.Version,
		ForceClosed: current.ForceClosed,
		ClosedAt:    current.ClosedAt,
		CreatedBy:   current.CreatedBy,
		CreatedAt:   current.CreatedAt,
		UpdatedAt:   now,
	}
	updated.Options, err = mergeOptions(current, req.Options)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	updated.Version = current.Version + 1

	action := domain.ActionPollUpdated
	if settingsOnlyChange(current, updated) {
		action = domain.ActionSettingsChanged
	}
	s.audit.RecordOrLog(ctx, updated.ID, actor.ViewerID, action, "", map[string]interface{}{
		"version": updated.Version,
	})
	s.publish(notify.EventPollUpdated, updated.ID, actor.ViewerID)
	s.cache.InvalidatePoll(ctx, updated.ID)

	return updated, nil
}

// Close force-closes a poll. Owner or admin only. Closing a closed poll
// is a no-op, not an error.
func (s *PollService) Close(ctx context.Context, actor domain.ViewerContext, pollID string) (*domain.Poll, error) {
	current, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrPollNotFound
	}
	if !actor.Admin && actor.ViewerID != current.CreatedBy {
		return nil, domain.ErrForbidden
	}

	closedAt := s.clock.Now()
	transitioned, err := s.repo.ForceClose(ctx, pollID, closedAt)
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.audit.RecordOrLog(ctx, pollID, actor.ViewerID, domain.ActionPollClosed, "", nil)
		s.publish(notify.EventPollClosed, pollID, actor.ViewerID)
		s.cache.InvalidatePoll(ctx, pollID)
	}

	poll, err := s.repo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll == nil {
		return nil, domain.ErrPollNotFound
	}
	return poll, nil
}

func (s *PollService) publish(eventType, pollID, actor string) {
	event := notify.Event{Type: eventType, PollID: pollID, Actor: actor, Timestamp: s.clock.Now()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Publish(ctx, event); err != nil {
			s.log.Warn("event publish failed",
				zap.String("type", eventType),
				zap.String("poll_id", pollID),
				zap.Error(err))
		}
	}()
}

func validatePollFields(title, description string, startAt, endAt time.Time, resultAt *time.Time) error {
	title = strings.TrimSpace(title)
	if len(title) < titleMinLen || len(title) > titleMaxLen {
		return apperrors.NewValidationError("title must be between 3 and 100 characters", nil)
	}
	if len(description) > descriptionMaxLen {
		return apperrors.NewValidationError("description must be at most 500 characters", nil)
	}
	if startAt.IsZero() || endAt.IsZero() {
		return apperrors.NewValidationError("start and end times are required", nil)
	}
	if !endAt.After(startAt) {
		return apperrors.NewValidationError("end time must be after start time", nil)
	}
	if resultAt != nil && resultAt.Before(endAt) {
		return apperrors.NewValidationError("result publication time must not precede the end time", nil)
	}
	return nil
}

func validateOptionRequests(options []OptionRequest) error {
	if len(options) < minOptions {
		return apperrors.NewValidationError("a poll needs at least 2 options", nil)
	}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		text := strings.TrimSpace(opt.Text)
		if text == "" {
			return apperrors.NewValidationError("option text must not be empty", nil)
		}
		if len(text) > optionTextMaxLen {
			return apperrors.NewValidationError("option text must be at most 100 characters", nil)
		}
		lower := strings.ToLower(text)
		if seen[lower] {
			return apperrors.NewValidationError("option texts must be unique", map[string]interface{}{
				"duplicate": text,
			})
		}
		seen[lower] = true
	}
	return nil
}

func validateSettings(settings domain.Settings, optionCount int) error {
	if settings.MaxVotesPerVoter < 0 || settings.MaxVotesPerVoter > optionCount {
		return apperrors.NewValidationError("max votes per voter must be between 1 and the option count", nil)
	}
	switch settings.VoterNameDisplay {
	case "", domain.NameDisplayFull, domain.NameDisplayInitials, domain.NameDisplayAnonymized:
	default:
		return apperrors.NewValidationError("unknown voter name display mode", nil)
	}
	return nil
}

// mergeOptions keeps existing option IDs and positions, appends new
// options after them, and rejects references to unknown IDs. Removed
// option IDs are never reused.
func mergeOptions(current *domain.Poll, reqs []OptionRequest) ([]domain.Option, error) {
	nextPos := 0
	for _, opt := range current.Options {
		if opt.Position >= nextPos {
			nextPos = opt.Position + 1
		}
	}

	options := make([]domain.Option, 0, len(reqs))
	for _, req := range reqs {
		text := strings.TrimSpace(req.Text)
		if req.ID == "" {
			options = append(options, domain.Option{
				ID:          uuid.New().String(),
				Text:        text,
				Description: req.Description,
				Party:       req.Party,
				Position:    nextPos,
			})
			nextPos++
			continue
		}
		existing, ok := current.OptionByID(req.ID)
		if !ok {
			return nil, apperrors.NewValidationError("unknown option id", map[string]interface{}{
				"option_id": req.ID,
			})
		}
		existing.Text = text
		existing.Description = req.Description
		existing.Party = req.Party
		options = append(options, existing)
	}
	return options, nil
}

func settingsOnlyChange(before, after *domain.Poll) bool {
	if before.Settings == after.Settings {
		return false
	}
	if before.Title != after.Title ||
		before.Description != after.Description ||
		before.Category != after.Category ||
		!before.StartAt.Equal(after.StartAt) ||
		!before.EndAt.Equal(after.EndAt) {
		return false
	}
	if (before.ResultAt == nil) != (after.ResultAt == nil) {
		return false
	}
	if before.ResultAt != nil && !before.ResultAt.Equal(*after.ResultAt) {
		return false
	}
	if len(before.Options) != len(after.Options) {
		return false
	}
	for i := range before.Options {
		if before.Options[i] != after.Options[i] {
			return false
		}
	}
	return true
}
