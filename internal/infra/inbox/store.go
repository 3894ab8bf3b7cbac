package inbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store records consumed event ids per consumer in the booking_inbox collection.
type Store struct {
	col      *mongo.Collection
	consumer string
}

func NewStore(ctx context.Context, db *mongo.Database, consumer string) (*Store, error) {
	col := db.Collection("booking_inbox")
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &Store{col: col, consumer: consumer}, nil
}

// Claim inserts the id; the unique index turns a redelivery into seen=true.
func (s *Store) Claim(ctx context.Context, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

func (s *Store) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return err
}
