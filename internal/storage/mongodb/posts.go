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

type postDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	AuthorID  bson.ObjectID `bson:"author_id"`
	Title     string        `bson:"title"`
	Content   string        `bson:"content"`
	Tags      []string      `bson:"tags"`
	Likes     int64         `bson:"likes"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d *postDoc) model() *models.Post {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.Post{
		ID:        d.ID.Hex(),
		AuthorID:  d.AuthorID.Hex(),
		Title:     d.Title,
		Content:   d.Content,
		Tags:      tags,
		Likes:     d.Likes,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// SavePost inserts a new post and returns its generated id.
func (s *Storage) SavePost(ctx context.Context, post *models.Post) (string, error) {
	const op = "storage.mongodb.SavePost"

	author, ok := objectID(post.AuthorID)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	doc := postDoc{
		ID:        bson.NewObjectID(),
		AuthorID:  author,
		Title:     post.Title,
		Content:   post.Content,
		Tags:      tags,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}

	if _, err := s.posts.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	post.ID = doc.ID.Hex()
	return post.ID, nil
}

// Post retrieves a post by ID.
func (s *Storage) Post(ctx context.Context, postID string) (*models.Post, error) {
	const op = "storage.mongodb.Post"

	id, ok := objectID(postID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
	}

	var doc postDoc
	if err := s.posts.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.model(), nil
}

// Posts lists posts matching filter, newest first.
func (s *Storage) Posts(ctx context.Context, filter models.PostFilter, page models.Page) (models.List[*models.Post], error) {
	const op = "storage.mongodb.Posts"

	list := models.List[*models.Post]{Page: page, Items: []*models.Post{}}

	q := bson.D{}
	if filter.AuthorID != "" {
		author, ok := objectID(filter.AuthorID)
		if !ok {
			return list, nil
		}
		q = append(q, bson.E{Key: "author_id", Value: author})
	}
	if filter.Tag != "" {
		q = append(q, bson.E{Key: "tags", Value: filter.Tag})
	}

	total, err := s.posts.CountDocuments(ctx, q)
	if err != nil {
		return list, fmt.Errorf("%s: count: %w", op, err)
	}
	list.Total = total

	cur, err := s.posts.Find(ctx, q, pageOptions(page))
	if err != nil {
		return list, fmt.Errorf("%s: find: %w", op, err)
	}

	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return list, fmt.Errorf("%s: decode: %w", op, err)
	}

	for i := range docs {
		list.Items = append(list.Items, docs[i].model())
	}

	return list, nil
}

// UpdatePost overwrites the editable fields of post.
func (s *Storage) UpdatePost(ctx context.Context, post *models.Post) error {
	const op = "storage.mongodb.UpdatePost"

	id, ok := objectID(post.ID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
	}

	res, err := s.posts.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "title", Value: post.Title},
			{Key: "content", Value: post.Content},
			{Key: "tags", Value: post.Tags},
			{Key: "updated_at", Value: post.UpdatedAt},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
	}

	return nil
}

// DeletePost removes a post and then its comments and likes. Each step is a
// single-collection operation; a failure part way leaves orphans that
// DeleteUserContent or a retry will sweep.
func (s *Storage) DeletePost(ctx context.Context, postID string) error {
	const op = "storage.mongodb.DeletePost"

	id, ok := objectID(postID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
	}

	res, err := s.posts.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrPostNotFound)
	}

	if err := s.deletePostChildren(ctx, []bson.ObjectID{id}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) deletePostChildren(ctx context.Context, ids []bson.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}

	in := bson.D{{Key: "post_id", Value: bson.D{{Key: "$in", Value: ids}}}}

	if _, err := s.comments.DeleteMany(ctx, in); err != nil {
		return fmt.Errorf("comments: %w", err)
	}
	if _, err := s.likes.DeleteMany(ctx, in); err != nil {
		return fmt.Errorf("likes: %w", err)
	}

	return nil
}

// incLikes adjusts the like counter of a post and returns the new value.
// Decrements never take the counter below zero.
func (s *Storage) incLikes(ctx context.Context, postID bson.ObjectID, delta int64) (int64, error) {
	filter := bson.D{{Key: "_id", Value: postID}}
	if delta < 0 {
		filter = append(filter, bson.E{Key: "likes", Value: bson.D{{Key: "$gte", Value: -delta}}})
	}

	var doc postDoc
	err := s.posts.FindOneAndUpdate(ctx,
		filter,
		bson.D{{Key: "$inc", Value: bson.D{{Key: "likes", Value: delta}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}

	return doc.Likes, nil
}
