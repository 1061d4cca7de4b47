package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog/internal/domain/models"
	"blog/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type commentDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	PostID    bson.ObjectID `bson:"post_id"`
	AuthorID  bson.ObjectID `bson:"author_id"`
	Content   string        `bson:"content"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d *commentDoc) model() *models.Comment {
	return &models.Comment{
		ID:        d.ID.Hex(),
		PostID:    d.PostID.Hex(),
		AuthorID:  d.AuthorID.Hex(),
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// SaveComment inserts a comment and returns its generated id.
func (s *Storage) SaveComment(ctx context.Context, comment *models.Comment) (string, error) {
	const op = "storage.mongodb.SaveComment"

	post, ok := objectID(comment.PostID)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
	}
	author, ok := objectID(comment.AuthorID)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	doc := commentDoc{
		ID:        bson.NewObjectID(),
		PostID:    post,
		AuthorID:  author,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	}

	if _, err := s.comments.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	comment.ID = doc.ID.Hex()
	return comment.ID, nil
}

// Comment retrieves a comment by ID.
func (s *Storage) Comment(ctx context.Context, commentID string) (*models.Comment, error) {
	const op = "storage.mongodb.Comment"

	id, ok := objectID(commentID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrCommentNotFound)
	}

	var doc commentDoc
	if err := s.comments.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrCommentNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.model(), nil
}

// Comments lists the comments of a post, oldest first.
func (s *Storage) Comments(ctx context.Context, postID string, page models.Page) (models.List[*models.Comment], error) {
	const op = "storage.mongodb.Comments"

	list := models.List[*models.Comment]{Page: page, Items: []*models.Comment{}}

	post, ok := objectID(postID)
	if !ok {
		return list, nil
	}
	q := bson.D{{Key: "post_id", Value: post}}

	total, err := s.comments.CountDocuments(ctx, q)
	if err != nil {
		return list, fmt.Errorf("%s: count: %w", op, err)
	}
	list.Total = total

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))

	cur, err := s.comments.Find(ctx, q, opts)
	if err != nil {
		return list, fmt.Errorf("%s: find: %w", op, err)
	}

	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return list, fmt.Errorf("%s: decode: %w", op, err)
	}

	for i := range docs {
		list.Items = append(list.Items, docs[i].model())
	}

	return list, nil
}

// UpdateComment overwrites the content of a comment.
func (s *Storage) UpdateComment(ctx context.Context, comment *models.Comment) error {
	const op = "storage.mongodb.UpdateComment"

	id, ok := objectID(comment.ID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrCommentNotFound)
	}

	res, err := s.comments.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "content", Value: comment.Content},
			{Key: "updated_at", Value: comment.UpdatedAt},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrCommentNotFound)
	}

	return nil
}

// DeleteComment removes a comment by ID.
func (s *Storage) DeleteComment(ctx context.Context, commentID string) error {
	const op = "storage.mongodb.DeleteComment"

	id, ok := objectID(commentID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrCommentNotFound)
	}

	res, err := s.comments.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrCommentNotFound)
	}

	return nil
}
