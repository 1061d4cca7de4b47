package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection    = "users"
	tokensCollection   = "refresh_tokens"
	postsCollection    = "posts"
	commentsCollection = "comments"
	likesCollection    = "likes"
)

// Storage is the MongoDB implementation of every repository the services
// consume. Indexes are owned by the migrations in internal/storage/migrations.
type Storage struct {
	client   *mongo.Client
	database *mongo.Database
	users    *mongo.Collection
	tokens   *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
	likes    *mongo.Collection
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongodb.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	db := client.Database(database)
	return &Storage{
		client:   client,
		database: db,
		users:    db.Collection(usersCollection),
		tokens:   db.Collection(tokensCollection),
		posts:    db.Collection(postsCollection),
		comments: db.Collection(commentsCollection),
		likes:    db.Collection(likesCollection),
	}, nil
}

// Close disconnects from MongoDB.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports whether the primary is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.mongodb.Ping"

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Drop removes the whole database. Used by the integration suite.
func (s *Storage) Drop(ctx context.Context) error {
	return s.database.Drop(ctx)
}

// objectID parses a hex id. Malformed ids are reported as not found by the
// callers, since no document can carry them.
func objectID(hex string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return id, true
}

// isDuplicateKeyError checks if the error is a MongoDB duplicate key error (code 11000).
func isDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return mongo.IsDuplicateKeyError(err)
}
