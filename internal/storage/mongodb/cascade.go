package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DeleteUserContent removes everything authored by userID: their posts with
// all comments and likes on them, their comments elsewhere, and their likes
// (decrementing the counters of the posts they liked). It is safe to run more
// than once.
func (s *Storage) DeleteUserContent(ctx context.Context, userID string) error {
	const op = "storage.mongodb.DeleteUserContent"

	uid, ok := objectID(userID)
	if !ok {
		return nil
	}

	postIDs, err := s.postIDsByAuthor(ctx, uid)
	if err != nil {
		return fmt.Errorf("%s: posts: %w", op, err)
	}
	if err := s.deletePostChildren(ctx, postIDs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.posts.DeleteMany(ctx, bson.D{{Key: "author_id", Value: uid}}); err != nil {
		return fmt.Errorf("%s: delete posts: %w", op, err)
	}

	if _, err := s.comments.DeleteMany(ctx, bson.D{{Key: "author_id", Value: uid}}); err != nil {
		return fmt.Errorf("%s: delete comments: %w", op, err)
	}

	cur, err := s.likes.Find(ctx,
		bson.D{{Key: "user_id", Value: uid}},
		options.Find().SetProjection(bson.D{{Key: "post_id", Value: 1}}),
	)
	if err != nil {
		return fmt.Errorf("%s: find likes: %w", op, err)
	}
	var likes []likeDoc
	if err := cur.All(ctx, &likes); err != nil {
		return fmt.Errorf("%s: decode likes: %w", op, err)
	}

	for _, l := range likes {
		res, err := s.likes.DeleteOne(ctx, bson.D{{Key: "_id", Value: l.ID}})
		if err != nil {
			return fmt.Errorf("%s: delete like: %w", op, err)
		}
		if res.DeletedCount == 1 {
			// Ignore ErrNoDocuments: the post may be gone already.
			_, _ = s.incLikes(ctx, l.PostID, -1)
		}
	}

	return nil
}

func (s *Storage) postIDsByAuthor(ctx context.Context, author bson.ObjectID) ([]bson.ObjectID, error) {
	cur, err := s.posts.Find(ctx,
		bson.D{{Key: "author_id", Value: author}},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}

	var docs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]bson.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
