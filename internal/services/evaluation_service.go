package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yoockh/voiceinterview/internal/metrics"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/providers/llm"
	"github.com/yoockh/voiceinterview/internal/utils"
)

type Evaluator interface {
	// Evaluate scores a finished interview. It never touches the session.
	Evaluate(ctx context.Context, in models.EvaluationInput) (*models.Evaluation, error)
}

type evaluator struct {
	llm     llm.Provider
	timeout time.Duration
}

func NewEvaluator(p llm.Provider, timeout time.Duration) Evaluator {
	return &evaluator{llm: p, timeout: timeout}
}

func (e *evaluator) Evaluate(ctx context.Context, in models.EvaluationInput) (*models.Evaluation, error) {
	const op = "Evaluator.Evaluate"

	if len(in.Questions) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "nothing to evaluate", nil)
	}

	text, err := callModel(ctx, e.llm, e.timeout, "evaluate", evaluationPrompt(in))
	if err != nil {
		return nil, evaluationFailure(op, "evaluation call failed", err)
	}

	var raw struct {
		OverallScore   *float64 `json:"overallScore"`
		Feedback       string   `json:"feedback"`
		Strengths      []string `json:"strengths"`
		Improvements   []string `json:"improvements"`
		QuestionScores []struct {
			Question string   `json:"question"`
			Score    *float64 `json:"score"`
			Feedback string   `json:"feedback"`
		} `json:"questionScores"`
	}
	if err := decodeModelJSON(text, &raw); err != nil {
		metrics.LLMFailures.WithLabelValues("evaluate", "parse").Inc()
		return nil, evaluationFailure(op, "model output is not an evaluation object", err)
	}

	overall, ok := score(raw.OverallScore)
	if !ok {
		metrics.LLMFailures.WithLabelValues("evaluate", "shape").Inc()
		return nil, evaluationFailure(op, "overallScore missing or out of range", fmt.Errorf("overallScore=%v", deref(raw.OverallScore)))
	}
	if len(raw.QuestionScores) != len(in.Questions) {
		metrics.LLMFailures.WithLabelValues("evaluate", "shape").Inc()
		return nil, evaluationFailure(op, "questionScores do not match the questions",
			fmt.Errorf("got %d scores for %d questions", len(raw.QuestionScores), len(in.Questions)))
	}

	out := &models.Evaluation{
		OverallScore:   overall,
		Feedback:       strings.TrimSpace(raw.Feedback),
		Strengths:      nonEmpty(raw.Strengths),
		Improvements:   nonEmpty(raw.Improvements),
		QuestionScores: make([]models.QuestionScore, len(in.Questions)),
	}
	for i, qs := range raw.QuestionScores {
		s, ok := score(qs.Score)
		if !ok {
			metrics.LLMFailures.WithLabelValues("evaluate", "shape").Inc()
			return nil, evaluationFailure(op, "question score missing or out of range",
				fmt.Errorf("questionScores[%d].score=%v", i, deref(qs.Score)))
		}
		out.QuestionScores[i] = models.QuestionScore{
			// scores are positional; keep our own text
			Question: in.Questions[i].Text,
			Score:    s,
			Feedback: strings.TrimSpace(qs.Feedback),
		}
	}
	return out, nil
}

func evaluationFailure(op, msg string, err error) error {
	return utils.E(utils.CodeUpstream, op, msg, fmt.Errorf("%w: %v", utils.ErrEvaluationFailure, err))
}

// score rounds v and checks it is within [0,100].
func score(v *float64) (int, bool) {
	if v == nil || math.IsNaN(*v) {
		return 0, false
	}
	r := math.Round(*v)
	if r < 0 || r > 100 {
		return 0, false
	}
	return int(r), true
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func evaluationPrompt(in models.EvaluationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert interviewer evaluating a %s interview.\n\nInterview Questions and Answers:\n", in.Role)
	for i, q := range in.Questions {
		answer := "(no answer given)"
		if i < len(in.Answers) && strings.TrimSpace(in.Answers[i].Answer) != "" {
			answer = in.Answers[i].Answer
		}
		fmt.Fprintf(&b, "\nQ%d: %s\nA%d: %s\n", i+1, q.Text, i+1, answer)
	}
	fmt.Fprintf(&b, `
Provide a comprehensive evaluation with 2-3 strengths, 2-3 areas to improve and
exactly %d questionScores, one per question above, in the same order.

Return ONLY a valid JSON object with this exact structure:
{
  "overallScore": 75,
  "feedback": "detailed overall feedback paragraph",
  "strengths": ["strength 1", "strength 2"],
  "improvements": ["area 1", "area 2"],
  "questionScores": [
    {
      "question": "question text",
      "score": 80,
      "feedback": "specific feedback for this question"
    }
  ]
}

Score each question and the overall interview out of 100. Be constructive and specific.
Do not include any markdown formatting, just the raw JSON.`, len(in.Questions))
	return b.String()
}
