package models

import (
	"fmt"
	"time"
)

// Stage is the lifecycle phase of one interview call.
type Stage string

const (
	StageCollectingParams Stage = "collecting_params"
	StageInterviewing     Stage = "interviewing"
	StageCompleted        Stage = "completed"
)

var stageRank = map[Stage]int{
	StageCollectingParams: 0,
	StageInterviewing:     1,
	StageCompleted:        2,
}

func (s Stage) Valid() bool {
	_, ok := stageRank[s]
	return ok
}

// Session is the server-side state of one live voice call, keyed by the
// call id the voice platform assigns.
type Session struct {
	CallID string `json:"call_id"`
	UserID string `json:"user_id,omitempty"`
	Stage  Stage  `json:"stage"`

	// collected once by generate_questions
	Role          string `json:"role,omitempty"`
	InterviewType string `json:"interview_type,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	CurrentRole   string `json:"current_role,omitempty"`
	NumQuestions  int    `json:"num_questions,omitempty"`

	Questions            []Question  `json:"questions,omitempty"`
	Answers              []Answer    `json:"answers"`
	CurrentQuestionIndex int         `json:"current_question_index"`
	Evaluation           *Evaluation `json:"evaluation,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// RetainFor is how long the session survives without access once the
	// call has ended. Zero until the end-of-call report arrives.
	RetainFor time.Duration `json:"retain_for,omitempty"`
}

func NewSession(callID string, now time.Time) *Session {
	return &Session{
		CallID:    callID,
		Stage:     StageCollectingParams,
		Answers:   []Answer{},
		StartTime: now.UTC(),
	}
}

// Advance moves the session forward. Stages never go back and never repeat.
func (s *Session) Advance(to Stage) error {
	if !to.Valid() {
		return fmt.Errorf("unknown stage %q", to)
	}
	if stageRank[to] <= stageRank[s.Stage] {
		return fmt.Errorf("illegal stage transition %s -> %s", s.Stage, to)
	}
	s.Stage = to
	return nil
}

// ApplyParams stores the interview parameters. They are immutable once the
// session leaves collecting_params.
func (s *Session) ApplyParams(p InterviewParams) error {
	if s.Stage != StageCollectingParams {
		return fmt.Errorf("parameters already collected (stage %s)", s.Stage)
	}
	s.Role = p.Role
	s.InterviewType = p.InterviewType
	s.Difficulty = p.Difficulty
	s.CurrentRole = p.CurrentRole
	s.NumQuestions = p.NumQuestions
	return nil
}

// StartInterview fixes the question list, resets the cursor and moves to
// interviewing.
func (s *Session) StartInterview(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("no questions to start interview with")
	}
	if err := s.Advance(StageInterviewing); err != nil {
		return err
	}
	s.Questions = append([]Question(nil), questions...)
	s.Answers = []Answer{}
	s.CurrentQuestionIndex = 0
	return nil
}

// AcceptsAnswer reports whether questionIndex is the question the cursor
// points at.
func (s *Session) AcceptsAnswer(questionIndex int) bool {
	return s.Stage == StageInterviewing &&
		questionIndex >= 0 &&
		questionIndex < len(s.Questions) &&
		questionIndex == s.CurrentQuestionIndex
}

// RecordAnswer appends the answer to the current question and advances the
// cursor. Callers check AcceptsAnswer first.
func (s *Session) RecordAnswer(text string, now time.Time) error {
	if !s.AcceptsAnswer(s.CurrentQuestionIndex) {
		return fmt.Errorf("no open question at index %d (stage %s)", s.CurrentQuestionIndex, s.Stage)
	}
	s.Answers = append(s.Answers, Answer{
		Question:  s.Questions[s.CurrentQuestionIndex].Text,
		Answer:    text,
		Duration:  0,
		Timestamp: now.UnixMilli(),
	})
	s.CurrentQuestionIndex++
	return nil
}

// AllAnswered reports whether every question has an answer.
func (s *Session) AllAnswered() bool {
	return len(s.Questions) > 0 && s.CurrentQuestionIndex == len(s.Questions)
}

func (s *Session) MarkEnded(now time.Time) {
	t := now.UTC()
	s.EndedAt = &t
}

// Clone returns a deep copy safe to mutate without touching s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Questions = append([]Question(nil), s.Questions...)
	out.Answers = append([]Answer{}, s.Answers...)
	if s.Evaluation != nil {
		ev := s.Evaluation.clone()
		out.Evaluation = &ev
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return &out
}
