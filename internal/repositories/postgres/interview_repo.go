package postgres

import (
	"context"

	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InterviewRepository interface {
	// Save inserts rec, or overwrites the caller's own row with the same
	// vapi_call_id. A row owned by another user is left alone and
	// utils.ErrNotOwner is returned. rec.ID and rec.CreatedAt are set from
	// the stored row.
	Save(ctx context.Context, rec *models.InterviewRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.InterviewRecord, error)
}

type interviewRepo struct {
	db *gorm.DB
}

func NewInterviewRepo(db *gorm.DB) InterviewRepository {
	return &interviewRepo{db: db}
}

func (r *interviewRepo) Save(ctx context.Context, rec *models.InterviewRecord) error {
	if rec.VapiCallID == nil {
		return r.db.WithContext(ctx).Create(rec).Error
	}

	res := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "vapi_call_id"}},
			// user_id is never rewritten; the update only applies to the owner's row
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: `"interviews"."user_id" = excluded.user_id`},
			}},
			DoUpdates: clause.AssignmentColumns([]string{
				"role", "interview_type", "difficulty", "current_role", "num_questions",
				"questions", "answers", "overall_score", "feedback", "strengths", "improvements",
				"duration_seconds", "status",
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "created_at"}}},
	).Create(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotOwner
	}
	return nil
}

func (r *interviewRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.InterviewRecord, error) {
	var out []models.InterviewRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
