package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"formrunner/internal/model"
)

// JournalRepo records every upstream submission attempt and interview
// outcome in the device-local journal collection.
type JournalRepo interface {
	Record(ctx context.Context, entry *model.JournalEntry) error
	ListByQuiz(ctx context.Context, quizID int64, limit int64) ([]*model.JournalEntry, error)
}

type journalRepo struct {
	collection *mongo.Collection
}

func NewJournalRepo(client *mongo.Client) JournalRepo {
	db := client.Database("formrunner")
	return &journalRepo{
		collection: db.Collection("submission_journal"),
	}
}

func (r *journalRepo) Record(ctx context.Context, entry *model.JournalEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		entry.ID = oid.Hex()
	}

	return nil
}

func (r *journalRepo) ListByQuiz(ctx context.Context, quizID int64, limit int64) ([]*model.JournalEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"quizId": quizID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*model.JournalEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
