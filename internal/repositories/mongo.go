package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/rohits-web03/lockbox/internal/models"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const filesCollection = "files"

// ConnectMongo connects and pings the server.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// MongoRecordStore keeps file records in the files collection.
type MongoRecordStore struct {
	collection *mongo.Collection
	log        zerolog.Logger
}

func NewMongoRecordStore(ctx context.Context, database *mongo.Database, log zerolog.Logger) *MongoRecordStore {
	store := &MongoRecordStore{
		collection: database.Collection(filesCollection),
		log:        log,
	}
	store.ensureIndexes(ctx)
	return store
}

func (s *MongoRecordStore) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "filename", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "company_id", Value: 1},
				{Key: "project_id", Value: 1},
				{Key: "filename", Value: 1},
			},
		},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		s.log.Warn().Err(err).Str("collection", filesCollection).Msg("failed to create indexes")
	}
}

func (s *MongoRecordStore) Insert(ctx context.Context, rec *models.FileRecord) error {
	now := time.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now

	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert file record: %w", err)
	}
	return nil
}

func (s *MongoRecordStore) Upsert(ctx context.Context, rec *models.FileRecord) error {
	now := time.Now()
	filter := bson.M{
		"company_id": rec.CompanyID,
		"project_id": rec.ProjectID,
		"filename":   rec.Filename,
	}
	update := bson.M{
		"$set": bson.M{
			"download_link": rec.DownloadLink,
			"isLocked":      rec.IsLocked,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"_id":        rec.ID,
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.FileRecord
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("failed to upsert file record: %w", err)
	}
	*rec = stored
	return nil
}

func (s *MongoRecordStore) Query(ctx context.Context, match Match, limit int) ([]models.FileRecord, error) {
	findOptions := options.Find()
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M(match.Fields()), findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find file records: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []models.FileRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode file records: %w", err)
	}
	return recs, nil
}

func (s *MongoRecordStore) Update(ctx context.Context, id string, patch Patch) error {
	set := bson.M{"updated_at": time.Now()}
	if patch.IsLocked != nil {
		set["isLocked"] = *patch.IsLocked
	}
	if patch.DownloadLink != nil {
		set["download_link"] = *patch.DownloadLink
	}

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update file record: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (s *MongoRecordStore) List(ctx context.Context) ([]models.FileRecord, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list file records: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []models.FileRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode file records: %w", err)
	}
	return recs, nil
}
