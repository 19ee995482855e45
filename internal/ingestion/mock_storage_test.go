package ingestion

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cyderes/newsarticle-sync/internal/models"
)

// MockStorage is a mock implementation of the Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) FindAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	args := m.Called(ctx, name)
	author, _ := args.Get(0).(*models.Author)
	return author, args.Error(1)
}

func (m *MockStorage) CreateAuthor(ctx context.Context, name, credential string, active bool) (*models.Author, error) {
	args := m.Called(ctx, name, credential, active)
	author, _ := args.Get(0).(*models.Author)
	return author, args.Error(1)
}

func (m *MockStorage) FindArticle(ctx context.Context, title string, authorID int64) (*models.Article, error) {
	args := m.Called(ctx, title, authorID)
	article, _ := args.Get(0).(*models.Article)
	return article, args.Error(1)
}

func (m *MockStorage) CreateArticle(ctx context.Context, article *models.Article) error {
	args := m.Called(ctx, article)
	return args.Error(0)
}

func (m *MockStorage) UpdateArticle(ctx context.Context, article *models.Article) error {
	args := m.Called(ctx, article)
	return args.Error(0)
}

func (m *MockStorage) ListArticleIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *MockStorage) DeleteArticles(ctx context.Context, ids []int64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) GetArticles(ctx context.Context, limit int, offset int) ([]models.Article, error) {
	args := m.Called(ctx, limit, offset)
	articles, _ := args.Get(0).([]models.Article)
	return articles, args.Error(1)
}

func (m *MockStorage) GetArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	args := m.Called(ctx, id)
	article, _ := args.Get(0).(*models.Article)
	return article, args.Error(1)
}

func (m *MockStorage) UpdateImportStatus(ctx context.Context, status models.ImportStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

func (m *MockStorage) GetImportStatus(ctx context.Context) (*models.ImportStatus, error) {
	args := m.Called(ctx)
	status, _ := args.Get(0).(*models.ImportStatus)
	return status, args.Error(1)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}
