package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollengine/internal/domain"
	"pollengine/internal/engine"
	apperrors "pollengine/pkg/errors"
)

// AuditService records and serves the append-only poll audit trail.
type AuditService struct {
	repo  AuditRepository
	clock engine.Clock
	log   *zap.Logger
}

func NewAuditService(repo AuditRepository, clock engine.Clock, log *zap.Logger) *AuditService {
	return &AuditService{repo: repo, clock: clock, log: log}
}

// Record appends one entry. The entry's ID and timestamp are assigned here.
func (s *AuditService) Record(ctx context.Context, pollID, actor string, action domain.AuditAction, optionID string, detail map[string]interface{}) error {
	entry := &domain.AuditLogEntry{
		ID:        uuid.New().String(),
		PollID:    pollID,
		Actor:     actor,
		Action:    action,
		OptionID:  optionID,
		Timestamp: s.clock.Now(),
		Detail:    detail,
	}
	return s.repo.Append(ctx, entry)
}

// RecordOrLog appends an entry and, when the write fails, logs it for
// offline reconciliation instead of failing the caller. Used after a vote
// has already persisted: the vote stands even if its audit entry is lost.
func (s *AuditService) RecordOrLog(ctx context.Context, pollID, actor string, action domain.AuditAction, optionID string, detail map[string]interface{}) {
	if err := s.Record(ctx, pollID, actor, action, optionID, detail); err != nil {
		s.log.Error("audit write failed, entry needs reconciliation",
			zap.String("poll_id", pollID),
			zap.String("actor", actor),
			zap.String("action", string(action)),
			zap.Any("detail", detail),
			zap.Error(err))
	}
}

// Trail returns a poll's audit log. Access requires the poll owner or an
// admin unless the poll publishes its trail.
func (s *AuditService) Trail(ctx context.Context, poll *domain.Poll, viewer domain.ViewerContext) ([]domain.AuditLogEntry, error) {
	allowed := poll.Settings.PublicAuditTrail ||
		viewer.Admin ||
		(viewer.Authenticated && viewer.ViewerID == poll.CreatedBy)
	if !allowed {
		return nil, apperrors.NewAuthorizationError("audit trail is not public for this poll")
	}
	return s.repo.ListByPoll(ctx, poll.ID)
}
