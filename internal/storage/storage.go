package storage

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrPostNotFound      = errors.New("post not found")
	ErrCommentNotFound   = errors.New("comment not found")
	ErrAlreadyLiked      = errors.New("post already liked")
	ErrNotLiked          = errors.New("post not liked")
)

// Unique-field conflicts. Both match ErrUserAlreadyExists with errors.Is.
var (
	ErrEmailExists    = fmt.Errorf("email: %w", ErrUserAlreadyExists)
	ErrUsernameExists = fmt.Errorf("username: %w", ErrUserAlreadyExists)
)
