package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/crmops/crm-migrator/internal/models"
)

const jobsCollection = "migration_jobs"

// MongoStore keeps job documents in a MongoDB collection, one document per
// job keyed by job ID.
type MongoStore struct {
	coll *mongo.Collection
}

// ConnectMongo dials MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return &MongoStore{coll: client.Database(database).Collection(jobsCollection)}, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.MigrationJob, error) {
	var job models.MigrationJob
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return &job, nil
}

func (s *MongoStore) Put(ctx context.Context, job *models.MigrationJob) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": job.ID}, job, opts); err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]*models.MigrationJob, error) {
	findOpts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := s.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var jobs []*models.MigrationJob
	for cursor.Next(ctx) {
		var job models.MigrationJob
		if err := cursor.Decode(&job); err != nil {
			return nil, fmt.Errorf("decoding job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, cursor.Err()
}
