package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/repository/entity"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
)

// MongoSyncJobRepository implements SyncJobRepository using MongoDB.
type MongoSyncJobRepository struct {
	collection *mongo.Collection
}

// NewMongoSyncJobRepository creates a sync-job repository backed by the
// "sync_jobs" collection.
func NewMongoSyncJobRepository(db *mongo.Database) ports.SyncJobRepository {
	collection := db.Collection("sync_jobs")

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "connectionId", Value: 1}, {Key: "startedAt", Value: -1}},
	}
	_, _ = collection.Indexes().CreateOne(context.Background(), indexModel)

	return &MongoSyncJobRepository{collection: collection}
}

// Get retrieves a job by id. Returns (nil, nil) when absent.
func (r *MongoSyncJobRepository) Get(ctx context.Context, id string) (*domain.SyncJob, error) {
	var doc entity.SyncJobDoc

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}

	return doc.ToDomain(), nil
}

// Put upserts a job by id.
func (r *MongoSyncJobRepository) Put(ctx context.Context, job *domain.SyncJob) error {
	doc := entity.SyncJobDocFromDomain(job)

	opts := options.Update().SetUpsert(true)
	update := bson.M{"$set": doc}

	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": job.ID}, update, opts); err != nil {
		return fmt.Errorf("failed to save sync job: %w", err)
	}
	return nil
}

// ListByConnection retrieves all jobs recorded for a connection, newest
// first.
func (r *MongoSyncJobRepository) ListByConnection(ctx context.Context, connectionID string) ([]*domain.SyncJob, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"connectionId": connectionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var jobs []*domain.SyncJob
	for cursor.Next(ctx) {
		var doc entity.SyncJobDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode sync job: %w", err)
		}
		jobs = append(jobs, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return jobs, nil
}
