package mongo

import (
	"context"

	"github.com/yoockh/voiceinterview/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const TranscriptCollection = "call_transcripts"

type TranscriptRepository interface {
	Insert(ctx context.Context, e *models.TranscriptEntry) error
	ListByCall(ctx context.Context, callID string, limit int64) ([]models.TranscriptEntry, error)
}

type transcriptRepo struct {
	col *mongo.Collection
}

func NewTranscriptRepo(db *mongo.Database) TranscriptRepository {
	return &transcriptRepo{col: db.Collection(TranscriptCollection)}
}

func (r *transcriptRepo) Insert(ctx context.Context, e *models.TranscriptEntry) error {
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *transcriptRepo) ListByCall(ctx context.Context, callID string, limit int64) ([]models.TranscriptEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(limit)

	cur, err := r.col.Find(ctx, bson.M{"call_id": callID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.TranscriptEntry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
