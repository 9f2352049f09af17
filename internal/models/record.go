package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

const (
	RecordInProgress = "in_progress"
	RecordCompleted  = "completed"
	RecordAbandoned  = "abandoned"
)

// InterviewRecord is one stored interview in a user's history.
type InterviewRecord struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;type:uuid;index:idx_interviews_user_created,priority:1" json:"user_id"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index:idx_interviews_user_created,priority:2,sort:desc" json:"created_at"`

	Role          string `gorm:"column:role;type:text" json:"role"`
	InterviewType string `gorm:"column:interview_type;type:text" json:"interview_type"` // technical|behavioral|mixed
	Difficulty    string `gorm:"column:difficulty;type:text" json:"difficulty"`         // easy|medium|hard
	CurrentRole   string `gorm:"column:current_role;type:text" json:"current_role,omitempty"`
	NumQuestions  int    `gorm:"column:num_questions;type:integer" json:"num_questions"`

	Questions datatypes.JSONType[[]Question] `gorm:"column:questions;type:jsonb" json:"questions"`
	Answers   datatypes.JSONType[[]Answer]   `gorm:"column:answers;type:jsonb" json:"answers"`

	OverallScore *int           `gorm:"column:overall_score;type:integer" json:"overall_score,omitempty"`
	Feedback     string         `gorm:"column:feedback;type:text" json:"feedback,omitempty"`
	Strengths    pq.StringArray `gorm:"column:strengths;type:text[]" json:"strengths,omitempty"`
	Improvements pq.StringArray `gorm:"column:improvements;type:text[]" json:"improvements,omitempty"`

	DurationSeconds int     `gorm:"column:duration_seconds;type:integer" json:"duration_seconds,omitempty"`
	Status          string  `gorm:"column:status;type:text" json:"status"` // in_progress|completed|abandoned
	VapiCallID      *string `gorm:"column:vapi_call_id;type:text;uniqueIndex" json:"vapi_call_id,omitempty"`
}

func (InterviewRecord) TableName() string { return "interviews" }

// RecordFromSession snapshots a completed session into a history row.
func RecordFromSession(s *Session, now time.Time) *InterviewRecord {
	callID := s.CallID
	rec := &InterviewRecord{
		UserID:        s.UserID,
		Role:          s.Role,
		InterviewType: s.InterviewType,
		Difficulty:    s.Difficulty,
		CurrentRole:   s.CurrentRole,
		NumQuestions:  len(s.Questions),
		Questions:     datatypes.NewJSONType(append([]Question(nil), s.Questions...)),
		Answers:       datatypes.NewJSONType(append([]Answer(nil), s.Answers...)),
		Status:        RecordInProgress,
		VapiCallID:    &callID,
	}
	if d := now.Sub(s.StartTime); d > 0 {
		rec.DurationSeconds = int(d.Seconds())
	}
	if ev := s.Evaluation; ev != nil {
		score := ev.OverallScore
		rec.OverallScore = &score
		rec.Feedback = ev.Feedback
		rec.Strengths = pq.StringArray(ev.Strengths)
		rec.Improvements = pq.StringArray(ev.Improvements)
		rec.Status = RecordCompleted
	}
	return rec
}
