package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yoockh/voiceinterview/internal/metrics"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/providers/llm"
	"github.com/yoockh/voiceinterview/internal/utils"
)

type QuestionGenerator interface {
	Generate(ctx context.Context, p models.InterviewParams) ([]models.Question, error)
}

type questionGenerator struct {
	llm          llm.Provider
	timeout      time.Duration
	maxQuestions int
}

// NewQuestionGenerator returns a generator that asks p for exactly
// numQuestions questions. A zero maxQuestions means no upper bound.
func NewQuestionGenerator(p llm.Provider, timeout time.Duration, maxQuestions int) QuestionGenerator {
	return &questionGenerator{llm: p, timeout: timeout, maxQuestions: maxQuestions}
}

func (g *questionGenerator) Generate(ctx context.Context, p models.InterviewParams) ([]models.Question, error) {
	const op = "QuestionGenerator.Generate"

	if missing := p.Missing(); len(missing) > 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "missing required parameters: "+strings.Join(missing, ", "), utils.ErrMissingParameters)
	}
	if g.maxQuestions > 0 && p.NumQuestions > g.maxQuestions {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("numQuestions must be at most %d", g.maxQuestions), nil)
	}

	text, err := callModel(ctx, g.llm, g.timeout, "generate_questions", questionPrompt(p))
	if err != nil {
		return nil, generationFailure(op, "question generation call failed", err)
	}

	var raw []struct {
		Question       string `json:"question"`
		Type           string `json:"type"`
		ExpectedAnswer string `json:"expectedAnswer"`
		FollowUp       string `json:"followUp"`
	}
	if err := decodeModelJSON(text, &raw); err != nil {
		metrics.LLMFailures.WithLabelValues("generate_questions", "parse").Inc()
		return nil, generationFailure(op, "model output is not a JSON array of questions", err)
	}

	out := make([]models.Question, 0, len(raw))
	for i, q := range raw {
		qt, ok := models.NormalizeQuestionType(q.Type)
		if strings.TrimSpace(q.Question) == "" || !ok {
			metrics.LLMFailures.WithLabelValues("generate_questions", "shape").Inc()
			return nil, generationFailure(op, "model returned a malformed question",
				fmt.Errorf("entry %d: question=%q type=%q", i, q.Question, q.Type))
		}
		out = append(out, models.Question{
			Text:           strings.TrimSpace(q.Question),
			Type:           qt,
			ExpectedAnswer: strings.TrimSpace(q.ExpectedAnswer),
			FollowUp:       strings.TrimSpace(q.FollowUp),
		})
	}

	if len(out) < p.NumQuestions {
		metrics.LLMFailures.WithLabelValues("generate_questions", "shape").Inc()
		return nil, generationFailure(op, "model returned too few questions",
			fmt.Errorf("got %d, want %d", len(out), p.NumQuestions))
	}
	return out[:p.NumQuestions], nil
}

func generationFailure(op, msg string, err error) error {
	return utils.E(utils.CodeUpstream, op, msg, fmt.Errorf("%w: %v", utils.ErrGenerationFailure, err))
}

// callModel runs one bounded model call and records its latency.
func callModel(ctx context.Context, p llm.Provider, timeout time.Duration, opName, prompt string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := p.Generate(ctx, prompt)
	metrics.LLMDuration.WithLabelValues(opName).Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.LLMFailures.WithLabelValues(opName, reason).Inc()
		return "", err
	}
	return text, nil
}

func questionMix(interviewType string) string {
	switch strings.ToLower(strings.TrimSpace(interviewType)) {
	case "technical":
		return "technical, coding and system_design"
	case "behavioral":
		return "behavioral"
	default:
		return "technical, behavioral, coding and system_design"
	}
}

func questionPrompt(p models.InterviewParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert technical interviewer. Generate exactly %d %s difficulty %s interview questions for a %s position.\n\n",
		p.NumQuestions, p.Difficulty, p.InterviewType, p.Role)
	if p.CurrentRole != "" {
		fmt.Fprintf(&b, "The candidate's current role is: %s\n\n", p.CurrentRole)
	}
	fmt.Fprintf(&b, `Requirements:
1. Questions should be realistic and practical
2. Mix %s questions as fits a %s interview
3. Each question should be clear and specific
4. Difficulty should be appropriate for %s level

Return ONLY a valid JSON array with this exact structure:
[
  {
    "question": "question text here",
    "type": "technical|behavioral|coding|system_design",
    "expectedAnswer": "brief key points to look for in the answer",
    "followUp": "optional follow-up question"
  }
]

Do not include any markdown formatting, just the raw JSON array.`, questionMix(p.InterviewType), p.InterviewType, p.Difficulty)
	return b.String()
}
