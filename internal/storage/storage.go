package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyderes/newsarticle-sync/internal/config"
	"github.com/cyderes/newsarticle-sync/internal/models"
)

var (
	// ErrDuplicate is returned when a create would violate a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned when an update targets a record that does not exist
	ErrNotFound = errors.New("record not found")
)

// IdentityStore resolves and creates author accounts
type IdentityStore interface {
	// FindAuthorByName returns nil, nil when no author has that exact name
	FindAuthorByName(ctx context.Context, name string) (*models.Author, error)
	CreateAuthor(ctx context.Context, name, credential string, active bool) (*models.Author, error)
}

// ContentStore persists articles
type ContentStore interface {
	// FindArticle returns the article with the lowest id matching title and
	// author, or nil, nil when there is none
	FindArticle(ctx context.Context, title string, authorID int64) (*models.Article, error)
	// CreateArticle stores a new article and sets its ID
	CreateArticle(ctx context.Context, article *models.Article) error
	UpdateArticle(ctx context.Context, article *models.Article) error
	ListArticleIDs(ctx context.Context) ([]int64, error)
	// DeleteArticles removes the given articles and returns how many were deleted
	DeleteArticles(ctx context.Context, ids []int64) (int64, error)
}

// Storage interface defines the contract for data storage
type Storage interface {
	IdentityStore
	ContentStore
	GetArticles(ctx context.Context, limit int, offset int) ([]models.Article, error)
	GetArticleByID(ctx context.Context, id int64) (*models.Article, error)
	UpdateImportStatus(ctx context.Context, status models.ImportStatus) error
	GetImportStatus(ctx context.Context) (*models.ImportStatus, error)
	Ping(ctx context.Context) error
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return NewMemoryStorage(), nil
	case config.StoragePostgreSQL:
		return NewPostgreSQLStorage(ctx, cfg)
	case config.StorageSQLite:
		return NewSQLiteStorage(ctx, cfg)
	case config.StorageMongoDB:
		return NewMongoDBStorage(ctx, cfg)
	case config.StorageDynamoDB:
		return NewDynamoDBStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedStorage, cfg.Type)
	}
}
