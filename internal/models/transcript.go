package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranscriptEntry is one transcript event observed on a call. Kept for
// diagnostics only; it never drives the session state machine.
type TranscriptEntry struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CallID         string             `bson:"call_id" json:"call_id"`
	Role           string             `bson:"role,omitempty" json:"role,omitempty"` // user|assistant
	TranscriptType string             `bson:"transcript_type,omitempty" json:"transcript_type,omitempty"`
	Text           string             `bson:"text" json:"text"`
	Stage          Stage              `bson:"stage" json:"stage"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
