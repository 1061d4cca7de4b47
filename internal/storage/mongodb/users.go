package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog/internal/domain/models"
	"blog/internal/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Index names from the users migration.
const (
	usersEmailIndex    = "users_email_unique"
	usersUsernameIndex = "users_username_unique"
)

type userDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	Username  string        `bson:"username"`
	Email     string        `bson:"email"`
	PassHash  []byte        `bson:"pass_hash"`
	Role      string        `bson:"role"`
	Bio       string        `bson:"bio,omitempty"`
	AvatarURL string        `bson:"avatar_url,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d *userDoc) model() (*models.User, error) {
	role, err := models.ParseRole(d.Role)
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:        d.ID.Hex(),
		Username:  d.Username,
		Email:     d.Email,
		PassHash:  d.PassHash,
		Role:      role,
		Bio:       d.Bio,
		AvatarURL: d.AvatarURL,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

// SaveUser inserts a new user and returns its generated id. The id is also
// written back into user.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) (string, error) {
	const op = "storage.mongodb.SaveUser"

	doc := userDoc{
		ID:        bson.NewObjectID(),
		Username:  user.Username,
		Email:     user.Email,
		PassHash:  user.PassHash,
		Role:      user.Role.String(),
		Bio:       user.Bio,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if isDuplicateKeyError(err) {
			return "", fmt.Errorf("%s: %w", op, userConflict(err))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	user.ID = doc.ID.Hex()
	return user.ID, nil
}

// User retrieves a user by email.
func (s *Storage) User(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.mongodb.User"

	return s.findUser(ctx, op, bson.D{{Key: "email", Value: models.NormalizeEmail(email)}})
}

// UserByID retrieves a user by ID.
func (s *Storage) UserByID(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.mongodb.UserByID"

	id, ok := objectID(userID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return s.findUser(ctx, op, bson.D{{Key: "_id", Value: id}})
}

// EmailTaken and UsernameTaken back the uniqueness checks of request
// validation; the unique indexes remain the final arbiter.
func (s *Storage) EmailTaken(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, s.users, bson.D{{Key: "email", Value: models.NormalizeEmail(email)}})
}

func (s *Storage) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, s.users, bson.D{{Key: "username", Value: username}})
}

// UpdateUser overwrites the mutable profile fields of user.
func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongodb.UpdateUser"

	id, ok := objectID(user.ID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "username", Value: user.Username},
			{Key: "email", Value: user.Email},
			{Key: "pass_hash", Value: []byte(user.PassHash)},
			{Key: "role", Value: user.Role.String()},
			{Key: "bio", Value: user.Bio},
			{Key: "avatar_url", Value: user.AvatarURL},
			{Key: "updated_at", Value: user.UpdatedAt},
		}}},
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, userConflict(err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

// DeleteUser removes the user document only. Authored content is removed by
// DeleteUserContent.
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	const op = "storage.mongodb.DeleteUser"

	id, ok := objectID(userID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

// Users lists users, newest first.
func (s *Storage) Users(ctx context.Context, page models.Page) (models.List[*models.User], error) {
	const op = "storage.mongodb.Users"

	list := models.List[*models.User]{Page: page}

	total, err := s.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return list, fmt.Errorf("%s: count: %w", op, err)
	}
	list.Total = total

	cur, err := s.users.Find(ctx, bson.D{}, pageOptions(page))
	if err != nil {
		return list, fmt.Errorf("%s: find: %w", op, err)
	}

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return list, fmt.Errorf("%s: decode: %w", op, err)
	}

	list.Items = make([]*models.User, 0, len(docs))
	for i := range docs {
		u, err := docs[i].model()
		if err != nil {
			return list, fmt.Errorf("%s: %w", op, err)
		}
		list.Items = append(list.Items, u)
	}

	return list, nil
}

// userConflict names the unique index a duplicate key error came from.
func userConflict(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, usersEmailIndex):
		return storage.ErrEmailExists
	case strings.Contains(msg, usersUsernameIndex):
		return storage.ErrUsernameExists
	default:
		return storage.ErrUserAlreadyExists
	}
}

func (s *Storage) findUser(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := doc.model()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *Storage) exists(ctx context.Context, coll *mongo.Collection, filter bson.D) (bool, error) {
	n, err := coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// pageOptions sorts newest first and applies skip/limit.
func pageOptions(page models.Page) *options.FindOptionsBuilder {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))
}
