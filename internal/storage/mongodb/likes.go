package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type likeDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	PostID    bson.ObjectID `bson:"post_id"`
	UserID    bson.ObjectID `bson:"user_id"`
	CreatedAt time.Time     `bson:"created_at"`
}

// LikePost records that userID likes postID and returns the post's new like
// count. The unique (post_id, user_id) index rejects a second like.
func (s *Storage) LikePost(ctx context.Context, postID, userID string) (int64, error) {
	const op = "storage.mongodb.LikePost"

	post, ok := objectID(postID)
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
	}
	user, ok := objectID(userID)
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	doc := likeDoc{
		ID:        bson.NewObjectID(),
		PostID:    post,
		UserID:    user,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.likes.InsertOne(ctx, doc); err != nil {
		if isDuplicateKeyError(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrAlreadyLiked)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	likes, err := s.incLikes(ctx, post, 1)
	if err != nil {
		// The post vanished between the caller's check and the insert.
		_, _ = s.likes.DeleteOne(ctx, bson.D{{Key: "_id", Value: doc.ID}})
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return likes, nil
}

// UnlikePost removes the like of userID on postID and returns the new count.
// It returns ErrNotLiked when there was nothing to remove.
func (s *Storage) UnlikePost(ctx context.Context, postID, userID string) (int64, error) {
	const op = "storage.mongodb.UnlikePost"

	post, ok := objectID(postID)
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
	}
	user, ok := objectID(userID)
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrNotLiked)
	}

	res, err := s.likes.DeleteOne(ctx, bson.D{
		{Key: "post_id", Value: post},
		{Key: "user_id", Value: user},
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrNotLiked)
	}

	likes, err := s.incLikes(ctx, post, -1)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Post gone or counter already at zero.
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return likes, nil
}

// Liked reports whether userID has liked postID.
func (s *Storage) Liked(ctx context.Context, postID, userID string) (bool, error) {
	const op = "storage.mongodb.Liked"

	post, ok := objectID(postID)
	if !ok {
		return false, nil
	}
	user, ok := objectID(userID)
	if !ok {
		return false, nil
	}

	liked, err := s.exists(ctx, s.likes, bson.D{
		{Key: "post_id", Value: post},
		{Key: "user_id", Value: user},
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return liked, nil
}
