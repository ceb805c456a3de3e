package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Options configures Open.
type Options struct {
	// DataDir/DBName is the database directory.
	DataDir string
	DBName  string
	// UploadDir receives avatars and offer images.
	UploadDir      string
	MaxUploadBytes int64
	// Salt is mixed into password hashes.
	Salt string
	// PasswordCost is the bcrypt cost; 0 means bcrypt.DefaultCost.
	PasswordCost int
}

// Store groups every service backed by one database directory.
type Store struct {
	Users      *UserService
	Categories *CategoryService
	Offers     *OfferService
	Comments   *CommentService
	Uploads    *UploadStore
}

// Open loads all tables.
func Open(opts Options) (*Store, error) {
	dir := filepath.Join(opts.DataDir, opts.DBName)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	users, err := NewUserService(dir, opts.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to open users: %w", err)
	}
	if opts.PasswordCost != 0 {
		users.cost = opts.PasswordCost
	}
	categories, err := NewCategoryService(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open categories: %w", err)
	}
	offers, err := NewOfferService(dir, categories)
	if err != nil {
		return nil, fmt.Errorf("failed to open offers: %w", err)
	}
	comments, err := NewCommentService(dir, offers)
	if err != nil {
		return nil, fmt.Errorf("failed to open comments: %w", err)
	}
	uploads, err := NewUploadStore(opts.UploadDir, opts.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	return &Store{
		Users:      users,
		Categories: categories,
		Offers:     offers,
		Comments:   comments,
		Uploads:    uploads,
	}, nil
}
