package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type refreshTokenDoc struct {
	TokenHash string        `bson:"token_hash"`
	UserID    bson.ObjectID `bson:"user_id"`
	CreatedAt time.Time     `bson:"created_at"`
	ExpiresAt time.Time     `bson:"expires_at"`
}

// RecordRefreshToken stores a new refresh token hash.
func (s *Storage) RecordRefreshToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	const op = "storage.mongodb.RecordRefreshToken"

	uid, ok := objectID(userID)
	if !ok {
		return fmt.Errorf("%s: malformed user id %q", op, userID)
	}

	doc := refreshTokenDoc{
		TokenHash: tokenHash,
		UserID:    uid,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}

	if _, err := s.tokens.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenExists reports whether a record with tokenHash is present.
func (s *Storage) RefreshTokenExists(ctx context.Context, tokenHash string) (bool, error) {
	const op = "storage.mongodb.RefreshTokenExists"

	ok, err := s.exists(ctx, s.tokens, bson.D{{Key: "token_hash", Value: tokenHash}})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// RemoveRefreshToken deletes the record with tokenHash owned by userID.
// Removing a record that does not exist is not an error.
func (s *Storage) RemoveRefreshToken(ctx context.Context, tokenHash, userID string) error {
	const op = "storage.mongodb.RemoveRefreshToken"

	uid, ok := objectID(userID)
	if !ok {
		return nil
	}

	_, err := s.tokens.DeleteOne(ctx, bson.D{
		{Key: "token_hash", Value: tokenHash},
		{Key: "user_id", Value: uid},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RemoveUserRefreshTokens deletes every refresh token of userID.
func (s *Storage) RemoveUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	const op = "storage.mongodb.RemoveUserRefreshTokens"

	uid, ok := objectID(userID)
	if !ok {
		return 0, nil
	}

	res, err := s.tokens.DeleteMany(ctx, bson.D{{Key: "user_id", Value: uid}})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.DeletedCount, nil
}

// PruneRefreshTokens deletes records whose signed expiry is before the given
// time. The TTL index does the same lazily; this makes cleanup explicit.
func (s *Storage) PruneRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.mongodb.PruneRefreshTokens"

	res, err := s.tokens.DeleteMany(ctx, bson.D{
		{Key: "expires_at", Value: bson.D{{Key: "$lt", Value: before.UTC()}}},
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.DeletedCount, nil
}
