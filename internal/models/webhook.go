package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Voice platform event types.
const (
	EventFunctionCall    = "function-call"
	EventTranscript      = "transcript"
	EventEndOfCallReport = "end-of-call-report"
)

// Server-side functions the voice agent can call.
const (
	FnGenerateQuestions = "generate_questions"
	FnRecordAnswer      = "record_answer"
)

type WebhookEvent struct {
	Type         string        `json:"type"`
	Call         *Call         `json:"call,omitempty"`
	CallID       string        `json:"callId,omitempty"`
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`

	// transcript events
	Transcript     string `json:"transcript,omitempty"`
	Role           string `json:"role,omitempty"`
	TranscriptType string `json:"transcriptType,omitempty"` // partial|final

	// end-of-call-report events
	EndedReason     string  `json:"endedReason,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	RecordingURL    string  `json:"recordingUrl,omitempty"`
}

type Call struct {
	ID       string         `json:"id"`
	Status   string         `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CorrelationID is the call id the event belongs to: call.id, or the
// top-level callId some event shapes carry instead.
func (e *WebhookEvent) CorrelationID() string {
	if e.Call != nil && strings.TrimSpace(e.Call.ID) != "" {
		return strings.TrimSpace(e.Call.ID)
	}
	return strings.TrimSpace(e.CallID)
}

// UserID is the signed-in user that started the call, when the browser
// passed one through call metadata.
func (e *WebhookEvent) UserID() string {
	if e.Call == nil || e.Call.Metadata == nil {
		return ""
	}
	if s, ok := e.Call.Metadata["userId"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

type FunctionCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// DecodeParameters unmarshals the parameters into dst. Parameters may be a
// JSON object or a string holding a JSON object.
func (f *FunctionCall) DecodeParameters(dst any) error {
	raw := bytes.TrimSpace(f.Parameters)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("function %q has no parameters", f.Name)
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		raw = []byte(inner)
	}
	return json.Unmarshal(raw, dst)
}

// FlexInt accepts 3, 3.0 and "3".
type FlexInt int

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	if len(b) == 0 {
		return fmt.Errorf("empty number")
	}
	if v, err := strconv.Atoi(string(b)); err == nil {
		*n = FlexInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	if f != float64(int(f)) {
		return fmt.Errorf("not an integer: %s", b)
	}
	*n = FlexInt(int(f))
	return nil
}

// GenerateQuestionsParams is the parameter shape of generate_questions.
type GenerateQuestionsParams struct {
	Role          string  `json:"role"`
	InterviewType string  `json:"interviewType"`
	Difficulty    string  `json:"difficulty"`
	CurrentRole   string  `json:"currentRole,omitempty"`
	NumQuestions  FlexInt `json:"numQuestions"`
}

func (p GenerateQuestionsParams) InterviewParams() InterviewParams {
	return InterviewParams{
		Role:          strings.TrimSpace(p.Role),
		InterviewType: strings.TrimSpace(p.InterviewType),
		Difficulty:    strings.TrimSpace(p.Difficulty),
		CurrentRole:   strings.TrimSpace(p.CurrentRole),
		NumQuestions:  int(p.NumQuestions),
	}
}

// RecordAnswerParams is the parameter shape of record_answer.
type RecordAnswerParams struct {
	QuestionIndex *FlexInt `json:"questionIndex"`
	Answer        string   `json:"answer"`
}

// WebhookResponse is what the voice platform receives back.
type WebhookResponse struct {
	Result   any  `json:"result,omitempty"`
	Received bool `json:"received,omitempty"`
}

func Ack() *WebhookResponse { return &WebhookResponse{Received: true} }

type QuestionsResult struct {
	Questions []Question `json:"questions"`
	Message   string     `json:"message"`
}

type AnswerResult struct {
	Message           string `json:"message"`
	NextQuestionIndex int    `json:"nextQuestionIndex"`
}

type CompletionResult struct {
	Message    string      `json:"message"`
	Evaluation *Evaluation `json:"evaluation"`
	Completed  bool        `json:"completed"`
}

// StatusUpdate is published whenever a call's session changes stage or the
// call ends.
type StatusUpdate struct {
	Type                 string `json:"type"` // always "status"
	CallID               string `json:"call_id"`
	Stage                Stage  `json:"stage"`
	Event                string `json:"event"`
	CurrentQuestionIndex int    `json:"current_question_index"`
	TotalQuestions       int    `json:"total_questions"`
	Timestamp            int64  `json:"timestamp"`
}
