package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/voiceinterview/internal/models"
	pgrepo "github.com/yoockh/voiceinterview/internal/repositories/postgres"
	"github.com/yoockh/voiceinterview/internal/utils"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// InterviewService stores finished interviews in a user's history.
type InterviewService interface {
	Save(ctx context.Context, rec *models.InterviewRecord) (*models.InterviewRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.InterviewRecord, error)
}

type interviewService struct {
	interviews pgrepo.InterviewRepository
	now        func() time.Time
}

func NewInterviewService(interviews pgrepo.InterviewRepository) InterviewService {
	return &interviewService{interviews: interviews, now: time.Now}
}

func (s *interviewService) Save(ctx context.Context, rec *models.InterviewRecord) (*models.InterviewRecord, error) {
	const op = "InterviewService.Save"

	if rec == nil || rec.UserID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if _, err := uuid.Parse(rec.UserID); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id must be a uuid", err)
	}
	if strings.TrimSpace(rec.Role) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "role is required", nil)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.Status == "" {
		rec.Status = models.RecordCompleted
	}
	if rec.VapiCallID != nil && strings.TrimSpace(*rec.VapiCallID) == "" {
		rec.VapiCallID = nil
	}

	if err := s.interviews.Save(ctx, rec); err != nil {
		if errors.Is(err, utils.ErrNotOwner) {
			return nil, utils.E(utils.CodeForbidden, op, "interview belongs to another user", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to save interview", err)
	}
	return rec, nil
}

func (s *interviewService) ListByUser(ctx context.Context, userID string, limit int) ([]models.InterviewRecord, error) {
	const op = "InterviewService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	rows, err := s.interviews.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list interviews", err)
	}
	if rows == nil {
		rows = []models.InterviewRecord{}
	}
	return rows, nil
}
