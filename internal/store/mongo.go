package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	client *mongo.Client
	videos *mongo.Collection
	users  *mongo.Collection
}

func openMongo(ctx context.Context, uri, dbName string) (Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGO_URL is required for the mongo backend")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	s := &mongoStore{
		client: client,
		videos: db.Collection("videos"),
		users:  db.Collection("users"),
	}

	uniq := options.Index().SetUnique(true)
	if _, err := s.videos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "source_id", Value: 1}}, Options: uniq,
	}); err != nil {
		return nil, err
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}}, Options: uniq,
	}); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *mongoStore) GetVideo(ctx context.Context, sourceID string) (*VideoRecord, error) {
	var rec VideoRecord
	err := s.videos.FindOne(ctx, bson.M{"source_id": sourceID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *mongoStore) PutVideo(ctx context.Context, sourceID, fileID, title string) error {
	_, err := s.videos.UpdateOne(ctx,
		bson.M{"source_id": sourceID},
		bson.M{"$set": bson.M{
			"source_id":  sourceID,
			"file_id":    fileID,
			"title":      title,
			"created_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *mongoStore) DeleteVideo(ctx context.Context, sourceID string) (bool, error) {
	res, err := s.videos.DeleteOne(ctx, bson.M{"source_id": sourceID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *mongoStore) AddUser(ctx context.Context, userID int64, displayName, username string) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"user_id":      userID,
			"display_name": displayName,
			"username":     username,
			"joined_at":    time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *mongoStore) AllUserIDs(ctx context.Context) ([]int64, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"user_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []int64
	for cur.Next(ctx) {
		var doc struct {
			UserID int64 `bson:"user_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.UserID)
	}
	return ids, cur.Err()
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
