package models

import (
	"strings"
)

type QuestionType string

const (
	QuestionTechnical    QuestionType = "technical"
	QuestionBehavioral   QuestionType = "behavioral"
	QuestionCoding       QuestionType = "coding"
	QuestionSystemDesign QuestionType = "system_design"
)

// NormalizeQuestionType maps loose spellings ("System Design",
// "system-design") onto the canonical values. ok is false for anything else.
func NormalizeQuestionType(s string) (QuestionType, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	switch QuestionType(k) {
	case QuestionTechnical, QuestionBehavioral, QuestionCoding, QuestionSystemDesign:
		return QuestionType(k), true
	}
	return "", false
}

type Question struct {
	Text           string       `json:"question"`
	Type           QuestionType `json:"type"`
	ExpectedAnswer string       `json:"expectedAnswer"`
	FollowUp       string       `json:"followUp,omitempty"`
}

type Answer struct {
	Question  string `json:"question"` // copy of the question text
	Answer    string `json:"answer"`
	Duration  int    `json:"duration"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

type QuestionScore struct {
	Question string `json:"question"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

type Evaluation struct {
	OverallScore   int             `json:"overallScore"`
	Feedback       string          `json:"feedback"`
	Strengths      []string        `json:"strengths"`
	Improvements   []string        `json:"improvements"`
	QuestionScores []QuestionScore `json:"questionScores"`
}

func (e Evaluation) clone() Evaluation {
	e.Strengths = append([]string(nil), e.Strengths...)
	e.Improvements = append([]string(nil), e.Improvements...)
	e.QuestionScores = append([]QuestionScore(nil), e.QuestionScores...)
	return e
}

// InterviewParams are the values the voice agent collects before any
// question is generated.
type InterviewParams struct {
	Role          string `json:"role"`
	InterviewType string `json:"interviewType"`
	Difficulty    string `json:"difficulty"`
	CurrentRole   string `json:"currentRole,omitempty"`
	NumQuestions  int    `json:"numQuestions"`
}

// Missing lists the required fields that are empty or out of range.
func (p InterviewParams) Missing() []string {
	var out []string
	if strings.TrimSpace(p.Role) == "" {
		out = append(out, "role")
	}
	if strings.TrimSpace(p.InterviewType) == "" {
		out = append(out, "interviewType")
	}
	if strings.TrimSpace(p.Difficulty) == "" {
		out = append(out, "difficulty")
	}
	if p.NumQuestions <= 0 {
		out = append(out, "numQuestions")
	}
	return out
}

// EvaluationInput is the full transcript of one finished interview.
type EvaluationInput struct {
	Role      string
	Questions []Question
	Answers   []Answer
}
