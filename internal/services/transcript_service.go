package services

import (
	"context"
	"time"

	"github.com/yoockh/voiceinterview/internal/models"
	mongorepo "github.com/yoockh/voiceinterview/internal/repositories/mongo"
	"github.com/yoockh/voiceinterview/internal/utils"
)

type TranscriptService interface {
	Record(ctx context.Context, entry models.TranscriptEntry) error
	ListByCall(ctx context.Context, callID string, limit int) ([]models.TranscriptEntry, error)
}

type transcriptService struct {
	transcripts mongorepo.TranscriptRepository
	ttl         time.Duration
}

// NewTranscriptService keeps entries for ttl; the collection's TTL index
// does the deleting.
func NewTranscriptService(transcripts mongorepo.TranscriptRepository, ttl time.Duration) TranscriptService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &transcriptService{transcripts: transcripts, ttl: ttl}
}

func (s *transcriptService) Record(ctx context.Context, entry models.TranscriptEntry) error {
	const op = "TranscriptService.Record"

	if entry.CallID == "" || entry.Text == "" {
		return utils.E(utils.CodeInvalidArgument, op, "call_id and text are required", nil)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.ExpiresAt = entry.Timestamp.Add(s.ttl)

	if err := s.transcripts.Insert(ctx, &entry); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store transcript", err)
	}
	return nil
}

func (s *transcriptService) ListByCall(ctx context.Context, callID string, limit int) ([]models.TranscriptEntry, error) {
	const op = "TranscriptService.ListByCall"

	if callID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "call_id is required", nil)
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := s.transcripts.ListByCall(ctx, callID, int64(limit))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcript", err)
	}
	return rows, nil
}
