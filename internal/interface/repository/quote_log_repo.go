package repository

import (
	"context"
	"time"

	"quotecast-service/internal/domain/entity"
	"quotecast-service/internal/domain/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoQuoteLogRepository implements the QuoteLogRepository interface
type MongoQuoteLogRepository struct {
	collection *mongo.Collection
}

// NewMongoQuoteLogRepository creates a new MongoDB quote-cache log repository
func NewMongoQuoteLogRepository(db *mongo.Database) repository.QuoteLogRepository {
	collection := db.Collection("quote_cache_log")

	// Create indexes for better performance
	ctx := context.Background()

	cacheKeyIndex := mongo.IndexModel{
		Keys: bson.M{"cachekey": 1},
	}
	createdAtIndex := mongo.IndexModel{
		Keys: bson.M{"createdat": -1},
	}
	providerIndex := mongo.IndexModel{
		Keys: bson.M{"providerid": 1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		cacheKeyIndex,
		createdAtIndex,
		providerIndex,
	})

	return &MongoQuoteLogRepository{
		collection: collection,
	}
}

// Append writes one audit row for a cache write
func (r *MongoQuoteLogRepository) Append(ctx context.Context, record *entity.QuoteLogRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, record)
	return err
}

// DeleteByCacheKey removes all audit rows for one cache key
func (r *MongoQuoteLogRepository) DeleteByCacheKey(ctx context.Context, cacheKey string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"cachekey": cacheKey})
	return err
}
