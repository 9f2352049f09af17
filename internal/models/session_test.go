package models

import (
	"testing"
	"time"
)

func sampleQuestions(n int) []Question {
	out := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Question{
			Text:           "question " + string(rune('A'+i)),
			Type:           QuestionTechnical,
			ExpectedAnswer: "key points",
		})
	}
	return out
}

func TestNewSessionDefaults(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	s := NewSession("c1", now)

	if s.Stage != StageCollectingParams {
		t.Fatalf("expected stage %s, got %s", StageCollectingParams, s.Stage)
	}
	if s.Answers == nil || len(s.Answers) != 0 {
		t.Fatalf("expected empty non-nil answers, got %#v", s.Answers)
	}
	if !s.StartTime.Equal(now) {
		t.Fatalf("expected start time %v, got %v", now, s.StartTime)
	}
}

func TestAdvanceIsForwardOnly(t *testing.T) {
	s := NewSession("c1", time.Now())

	if err := s.Advance(StageInterviewing); err != nil {
		t.Fatalf("collecting -> interviewing: %v", err)
	}
	if err := s.Advance(StageInterviewing); err == nil {
		t.Fatal("expected error when repeating a stage")
	}
	if err := s.Advance(StageCollectingParams); err == nil {
		t.Fatal("expected error when moving backwards")
	}
	if err := s.Advance(StageCompleted); err != nil {
		t.Fatalf("interviewing -> completed: %v", err)
	}
	if err := s.Advance(Stage("paused")); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestRecordAnswerKeepsCursorAndAnswersInStep(t *testing.T) {
	now := time.Now()
	s := NewSession("c1", now)
	if err := s.StartInterview(sampleQuestions(3)); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if !s.AcceptsAnswer(i) {
			t.Fatalf("expected index %d to be accepted", i)
		}
		if s.AcceptsAnswer(i + 1) {
			t.Fatalf("index %d must not be accepted while cursor is %d", i+1, i)
		}
		if err := s.RecordAnswer("answer", now); err != nil {
			t.Fatal(err)
		}
		if len(s.Answers) != s.CurrentQuestionIndex {
			t.Fatalf("answers %d != cursor %d", len(s.Answers), s.CurrentQuestionIndex)
		}
		if s.Answers[i].Question != s.Questions[i].Text {
			t.Errorf("answer %d copied question %q, want %q", i, s.Answers[i].Question, s.Questions[i].Text)
		}
	}

	if !s.AllAnswered() {
		t.Fatal("expected all questions answered")
	}
	if err := s.RecordAnswer("extra", now); err == nil {
		t.Fatal("expected error recording past the last question")
	}
	if s.CurrentQuestionIndex != len(s.Questions) {
		t.Fatalf("cursor overran: %d", s.CurrentQuestionIndex)
	}
}

func TestStartInterviewRequiresQuestions(t *testing.T) {
	s := NewSession("c1", time.Now())
	if err := s.StartInterview(nil); err == nil {
		t.Fatal("expected error for empty question list")
	}
	if s.Stage != StageCollectingParams {
		t.Fatalf("stage changed on failure: %s", s.Stage)
	}
}

func TestApplyParamsOnlyOnce(t *testing.T) {
	s := NewSession("c1", time.Now())
	p := InterviewParams{Role: "Backend Engineer", InterviewType: "technical", Difficulty: "medium", NumQuestions: 3}
	if err := s.ApplyParams(p); err != nil {
		t.Fatal(err)
	}
	if err := s.StartInterview(sampleQuestions(3)); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyParams(InterviewParams{Role: "Other"}); err == nil {
		t.Fatal("expected params to be immutable after collecting_params")
	}
	if s.Role != "Backend Engineer" {
		t.Fatalf("role overwritten: %q", s.Role)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession("c1", time.Now())
	_ = s.StartInterview(sampleQuestions(2))
	_ = s.RecordAnswer("first", time.Now())
	s.Evaluation = &Evaluation{OverallScore: 70, Strengths: []string{"clear"}}

	c := s.Clone()
	c.Answers[0].Answer = "changed"
	c.Questions[0].Text = "changed"
	c.Evaluation.Strengths[0] = "changed"
	_ = c.RecordAnswer("second", time.Now())

	if s.Answers[0].Answer != "first" || s.Questions[0].Text == "changed" || s.Evaluation.Strengths[0] != "clear" {
		t.Fatal("mutating the clone leaked into the original")
	}
	if s.CurrentQuestionIndex != 1 || len(s.Answers) != 1 {
		t.Fatalf("original cursor moved: %d/%d", s.CurrentQuestionIndex, len(s.Answers))
	}
}

func TestInterviewParamsMissing(t *testing.T) {
	p := InterviewParams{Role: " ", InterviewType: "technical", NumQuestions: 0}
	got := p.Missing()
	want := []string{"role", "difficulty", "numQuestions"}
	if len(got) != len(want) {
		t.Fatalf("Missing() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Missing() = %v, want %v", got, want)
		}
	}
}

func TestNormalizeQuestionType(t *testing.T) {
	cases := map[string]QuestionType{
		"technical":     QuestionTechnical,
		"Behavioral":    QuestionBehavioral,
		"System Design": QuestionSystemDesign,
		"system-design": QuestionSystemDesign,
		" coding ":      QuestionCoding,
	}
	for in, want := range cases {
		got, ok := NormalizeQuestionType(in)
		if !ok || got != want {
			t.Errorf("NormalizeQuestionType(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := NormalizeQuestionType("trivia"); ok {
		t.Error("expected unknown type to be rejected")
	}
}

func TestRecordFromSession(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	s := NewSession("call-9", start)
	s.UserID = "user-1"
	_ = s.ApplyParams(InterviewParams{Role: "SRE", InterviewType: "mixed", Difficulty: "hard", NumQuestions: 1})
	_ = s.StartInterview(sampleQuestions(1))
	_ = s.RecordAnswer("done", start)
	s.Evaluation = &Evaluation{OverallScore: 81, Feedback: "solid", Strengths: []string{"a"}, Improvements: []string{"b"}}

	rec := RecordFromSession(s, start.Add(90*time.Second))
	if rec.Status != RecordCompleted {
		t.Errorf("status = %s", rec.Status)
	}
	if rec.OverallScore == nil || *rec.OverallScore != 81 {
		t.Errorf("overall score = %v", rec.OverallScore)
	}
	if rec.DurationSeconds != 90 {
		t.Errorf("duration = %d", rec.DurationSeconds)
	}
	if rec.VapiCallID == nil || *rec.VapiCallID != "call-9" {
		t.Errorf("call id = %v", rec.VapiCallID)
	}
	if got := rec.Questions.Data(); len(got) != 1 {
		t.Errorf("questions = %v", got)
	}
}
