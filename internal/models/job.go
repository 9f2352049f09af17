package models

import "encoding/json"

const (
	JobInterviewCompleted = "interview_completed"
	JobArchiveRecording   = "archive_recording"
)

// Job is a unit of background work queued by the dispatcher.
type Job struct {
	Type    string          `json:"type"`
	CallID  string          `json:"call_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ArchiveRecordingPayload struct {
	RecordingURL string `json:"recording_url"`
}
