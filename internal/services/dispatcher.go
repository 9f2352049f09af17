package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/voiceinterview/internal/metrics"
	"github.com/yoockh/voiceinterview/internal/models"
	"github.com/yoockh/voiceinterview/internal/sessionstore"
	"github.com/yoockh/voiceinterview/internal/utils"
)

const (
	msgAnswerRecorded    = "Answer recorded. Moving to next question."
	msgInterviewComplete = "Interview complete! Generating your feedback..."

	defaultCleanupDelay = 5 * time.Minute
)

// Dispatcher drives one call's interview through the voice platform's
// webhook events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *models.WebhookEvent) (*models.WebhookResponse, error)
}

type TranscriptRecorder interface {
	Record(ctx context.Context, entry models.TranscriptEntry) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, job models.Job) error
}

type StatusNotifier interface {
	Notify(ctx context.Context, u models.StatusUpdate) error
}

type DispatcherDeps struct {
	Store     sessionstore.Store
	Questions QuestionGenerator
	Evaluator Evaluator

	// optional
	Transcripts TranscriptRecorder
	Jobs        JobQueue
	Status      StatusNotifier

	Logger       *logrus.Logger
	CleanupDelay time.Duration
	Now          func() time.Time
}

type dispatcher struct {
	DispatcherDeps
}

func NewDispatcher(d DispatcherDeps) Dispatcher {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.CleanupDelay <= 0 {
		d.CleanupDelay = defaultCleanupDelay
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &dispatcher{DispatcherDeps: d}
}

func (d *dispatcher) Dispatch(ctx context.Context, ev *models.WebhookEvent) (*models.WebhookResponse, error) {
	const op = "Dispatcher.Dispatch"

	if ev == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty event", nil)
	}
	kind := eventLabel(ev.Type)

	callID := ev.CorrelationID()
	if callID == "" {
		metrics.WebhookEvents.WithLabelValues(kind, "rejected").Inc()
		return nil, utils.E(utils.CodeInvalidArgument, op, "call id is required", utils.ErrMissingCallID)
	}

	log := d.Logger.WithFields(logrus.Fields{
		"call_id":    callID,
		"event_type": ev.Type,
	})

	var (
		resp *models.WebhookResponse
		err  error
	)
	switch ev.Type {
	case models.EventFunctionCall:
		resp, err = d.functionCall(ctx, log, callID, ev)
	case models.EventTranscript:
		resp, err = d.transcript(ctx, log, callID, ev)
	case models.EventEndOfCallReport:
		resp, err = d.endOfCall(ctx, log, callID, ev)
	default:
		log.Debug("acknowledging unhandled event type")
		resp, err = d.touch(ctx, callID, ev)
	}

	if err != nil {
		metrics.WebhookEvents.WithLabelValues(kind, "error").Inc()
		return nil, err
	}
	metrics.WebhookEvents.WithLabelValues(kind, "ok").Inc()
	return resp, nil
}

// touch creates the session if needed and acknowledges the event.
func (d *dispatcher) touch(ctx context.Context, callID string, ev *models.WebhookEvent) (*models.WebhookResponse, error) {
	if _, err := d.Store.Update(ctx, callID, func(s *models.Session) error {
		attachUser(s, ev)
		return nil
	}); err != nil {
		return nil, err
	}
	return models.Ack(), nil
}

func (d *dispatcher) functionCall(ctx context.Context, log *logrus.Entry, callID string, ev *models.WebhookEvent) (*models.WebhookResponse, error) {
	if ev.FunctionCall == nil {
		log.Warn("function-call event without functionCall")
		return d.touch(ctx, callID, ev)
	}

	log = log.WithField("function", ev.FunctionCall.Name)
	switch ev.FunctionCall.Name {
	case models.FnGenerateQuestions:
		return d.generateQuestions(ctx, log, callID, ev)
	case models.FnRecordAnswer:
		return d.recordAnswer(ctx, log, callID, ev)
	default:
		log.Warn("unknown function requested")
		return d.touch(ctx, callID, ev)
	}
}

func (d *dispatcher) generateQuestions(ctx context.Context, log *logrus.Entry, callID string, ev *models.WebhookEvent) (*models.WebhookResponse, error) {
	const op = "Dispatcher.generateQuestions"

	var raw models.GenerateQuestionsParams
	decodeErr := ev.FunctionCall.DecodeParameters(&raw)
	params := raw.InterviewParams()

	var (
		resp *models.WebhookResponse
		from models.Stage
	)
	sess, err := d.Store.Update(ctx, callID, func(s *models.Session) error {
		attachUser(s, ev)
		from = s.Stage

		switch s.Stage {
		case models.StageInterviewing:
			// the agent asked twice; hand back what we already have
			resp = questionsReply(s)
			return nil
		case models.StageCompleted:
			resp = models.Ack()
			return nil
		}

		if decodeErr != nil {
			return utils.E(utils.CodeInvalidArgument, op, "invalid generate_questions parameters",
				fmt.Errorf("%w: %v", utils.ErrMissingParameters, decodeErr))
		}
		if missing := params.Missing(); len(missing) > 0 {
			return utils.E(utils.CodeInvalidArgument, op, "missing required parameters: "+strings.Join(missing, ", "), utils.ErrMissingParameters)
		}

		questions, err := d.Questions.Generate(ctx, params)
		if err != nil {
			return err
		}
		if err := s.ApplyParams(params); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to store parameters", err)
		}
		if err := s.StartInterview(questions); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to start interview", err)
		}
		resp = questionsReply(s)
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("generate_questions failed")
		return nil, err
	}

	if sess.Stage != from {
		log.WithFields(logrus.Fields{
			"role":          sess.Role,
			"num_questions": len(sess.Questions),
		}).Info("interview started")
		d.stageChanged(ctx, log, sess, "questions_generated")
	} else {
		log.WithField("stage", sess.Stage).Info("generate_questions replayed")
	}
	return resp, nil
}

func (d *dispatcher) recordAnswer(ctx context.Context, log *logrus.Entry, callID string, ev *models.WebhookEvent) (*models.WebhookResponse, error) {
	const op = "Dispatcher.recordAnswer"

	var params models.RecordAnswerParams
	if err := ev.FunctionCall.DecodeParameters(&params); err != nil || params.QuestionIndex == nil {
		log.WithError(err).Warn("record_answer without a usable questionIndex, ignoring")
		metrics.AnswersIgnored.Inc()
		return d.touch(ctx, callID, ev)
	}
	idx := int(*params.QuestionIndex)
	answer := strings.TrimSpace(params.Answer)

	var (
		resp    *models.WebhookResponse
		from    models.Stage
		cursor  int
		ignored bool
	)
	sess, err := d.Store.Update(ctx, callID, func(s *models.Session) error {
		attachUser(s, ev)
		from = s.Stage
		cursor = s.CurrentQuestionIndex

		if s.Stage != models.StageInterviewing {
			resp = models.Ack()
			return nil
		}
		if !s.AcceptsAnswer(idx) {
			ignored = true
			resp = models.Ack()
			return nil
		}

		if err := s.RecordAnswer(answer, d.Now()); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to record answer", err)
		}
		if !s.AllAnswered() {
			resp = &models.WebhookResponse{Result: models.AnswerResult{
				Message:           msgAnswerRecorded,
				NextQuestionIndex: s.CurrentQuestionIndex,
			}}
			return nil
		}

		if err := s.Advance(models.StageCompleted); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to complete interview", err)
		}
		evaluation, err := d.Evaluator.Evaluate(ctx, models.EvaluationInput{
			Role:      s.Role,
			Questions: s.Questions,
			Answers:   s.Answers,
		})
		if err != nil {
			return err
		}
		s.Evaluation = evaluation
		resp = &models.WebhookResponse{Result: models.CompletionResult{
			Message:    msgInterviewComplete,
			Evaluation: evaluation,
			Completed:  true,
		}}
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("question_index", idx).Warn("record_answer failed")
		return nil, err
	}

	switch {
	case ignored:
		metrics.AnswersIgnored.Inc()
		log.WithFields(logrus.Fields{
			"question_index": idx,
			"cursor":         cursor,
		}).Info("ignoring answer for a question that is not current")
	case from != models.StageInterviewing:
		log.WithField("stage", from).Info("ignoring record_answer outside the interview")
	case sess.Stage == models.StageCompleted:
		log.WithField("overall_score", sess.Evaluation.OverallScore).Info("interview completed")
		d.stageChanged(ctx, log, sess, "interview_completed")
		d.enqueueRecord(ctx, log, sess)
	default:
		d.publish(ctx, log, sess, "answer_recorded")
	}
	return resp, nil
}

func (d *dispatcher) transcript(ctx context.Context, log *logrus.Entry, callID string, ev *models.WebhookEvent) (*models.WebhookResponse, error) {
	sess, err := d.Store.Update(ctx, callID, func(s *models.Session) error {
		attachUser(s, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"speaker":         ev.Role,
		"transcript_type": ev.TranscriptType,
		"chars":           len(ev.Transcript),
	}).Debug("transcript")

	if d.Transcripts != nil && strings.TrimSpace(ev.Transcript) != "" {
		entry := models.TranscriptEntry{
			CallID:         callID,
			Role:           ev.Role,
			TranscriptType: ev.TranscriptType,
			Text:           ev.Transcript,
			Stage:          sess.Stage,
			Timestamp:      d.Now().UTC(),
		}
		if err := d.Transcripts.Record(ctx, entry); err != nil {
			log.WithError(err).Warn("failed to store transcript")
		}
	}
	return models.Ack(), nil
}

func (d *dispatcher) endOfCall(ctx context.Context, log *logrus.Entry, callID string, ev *models.WebhookEvent) (*models.WebhookResponse, error) {
	sess, err := d.Store.Update(ctx, callID, func(s *models.Session) error {
		attachUser(s, ev)
		s.MarkEnded(d.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := d.Store.ScheduleDelete(ctx, callID, d.CleanupDelay); err != nil {
		// idle ttl still reclaims it
		log.WithError(err).Warn("failed to schedule session cleanup")
	}

	log.WithFields(logrus.Fields{
		"stage":        sess.Stage,
		"ended_reason": ev.EndedReason,
		"duration_s":   ev.DurationSeconds,
	}).Info("call ended")
	d.publish(ctx, log, sess, "call_ended")

	if ev.RecordingURL != "" && d.Jobs != nil {
		payload, _ := json.Marshal(models.ArchiveRecordingPayload{RecordingURL: ev.RecordingURL})
		if err := d.Jobs.Enqueue(ctx, models.Job{Type: models.JobArchiveRecording, CallID: callID, Payload: payload}); err != nil {
			log.WithError(err).Warn("failed to enqueue recording archive")
		}
	}
	return models.Ack(), nil
}

func (d *dispatcher) stageChanged(ctx context.Context, log *logrus.Entry, s *models.Session, event string) {
	metrics.StageTransitions.WithLabelValues(string(s.Stage)).Inc()
	d.publish(ctx, log, s, event)
}

func (d *dispatcher) publish(ctx context.Context, log *logrus.Entry, s *models.Session, event string) {
	if d.Status == nil {
		return
	}
	u := models.StatusUpdate{
		Type:                 "status",
		CallID:               s.CallID,
		Stage:                s.Stage,
		Event:                event,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TotalQuestions:       len(s.Questions),
		Timestamp:            d.Now().UnixMilli(),
	}
	if err := d.Status.Notify(ctx, u); err != nil {
		log.WithError(err).Warn("failed to publish status")
	}
}

func (d *dispatcher) enqueueRecord(ctx context.Context, log *logrus.Entry, s *models.Session) {
	if d.Jobs == nil {
		return
	}
	payload, err := json.Marshal(models.RecordFromSession(s, d.Now()))
	if err != nil {
		log.WithError(err).Error("failed to encode interview record")
		return
	}
	if err := d.Jobs.Enqueue(ctx, models.Job{Type: models.JobInterviewCompleted, CallID: s.CallID, Payload: payload}); err != nil {
		log.WithError(err).Warn("failed to enqueue interview record")
	}
}

func questionsReply(s *models.Session) *models.WebhookResponse {
	return &models.WebhookResponse{Result: models.QuestionsResult{
		Questions: s.Questions,
		Message: fmt.Sprintf("Great! I've prepared %d questions for your %s interview. Let's begin with the first question.",
			len(s.Questions), s.Role),
	}}
}

func attachUser(s *models.Session, ev *models.WebhookEvent) {
	if s.UserID == "" {
		s.UserID = ev.UserID()
	}
}

// eventLabel bounds metric cardinality to the event types we know.
func eventLabel(t string) string {
	switch t {
	case models.EventFunctionCall, models.EventTranscript, models.EventEndOfCallReport:
		return t
	}
	return "other"
}
