package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cyderes/newsarticle-sync/internal/models"
)

// MemoryStorage implements Storage in process memory. Data is lost on exit.
type MemoryStorage struct {
	mu            sync.RWMutex
	authors       map[int64]models.Author
	credentials   map[int64]string
	articles      map[int64]models.Article
	status        *models.ImportStatus
	nextAuthorID  int64
	nextArticleID int64
}

// NewMemoryStorage creates an empty in-memory store seeded with the sentinel author
func NewMemoryStorage() *MemoryStorage {
	m := &MemoryStorage{
		authors:       make(map[int64]models.Author),
		credentials:   make(map[int64]string),
		articles:      make(map[int64]models.Article),
		nextAuthorID:  models.SentinelAuthorID + 1,
		nextArticleID: 1,
	}
	m.authors[models.SentinelAuthorID] = models.Author{
		ID:        models.SentinelAuthorID,
		Name:      models.SentinelAuthorName,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	return m
}

// FindAuthorByName looks up an author by exact name
func (m *MemoryStorage) FindAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range sortedKeys(m.authors) {
		if a := m.authors[id]; a.Name == name {
			return &a, nil
		}
	}
	return nil, nil
}

// CreateAuthor stores a new author with a hashed credential
func (m *MemoryStorage) CreateAuthor(ctx context.Context, name, credential string, active bool) (*models.Author, error) {
	hash, err := HashCredential(credential)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.authors {
		if a.Name == name {
			return nil, ErrDuplicate
		}
	}
	author := models.Author{
		ID:        m.nextAuthorID,
		Name:      name,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	}
	m.nextAuthorID++
	m.authors[author.ID] = author
	m.credentials[author.ID] = hash
	return &author, nil
}

// CredentialHash returns the stored credential hash of an author
func (m *MemoryStorage) CredentialHash(authorID int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hash, ok := m.credentials[authorID]
	return hash, ok
}

// Authors returns all authors ordered by id
func (m *MemoryStorage) Authors() []models.Author {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Author, 0, len(m.authors))
	for _, id := range sortedKeys(m.authors) {
		out = append(out, m.authors[id])
	}
	return out
}

// FindArticle returns the lowest-id article matching title and author
func (m *MemoryStorage) FindArticle(ctx context.Context, title string, authorID int64) (*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range sortedKeys(m.articles) {
		if a := m.articles[id]; a.Title == title && a.AuthorID == authorID {
			return &a, nil
		}
	}
	return nil, nil
}

// CreateArticle stores a new article and assigns its ID
func (m *MemoryStorage) CreateArticle(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	article.ID = m.nextArticleID
	article.UpdatedAt = now
	m.nextArticleID++
	m.articles[article.ID] = *article
	return nil
}

// UpdateArticle replaces a stored article
func (m *MemoryStorage) UpdateArticle(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.articles[article.ID]; !ok {
		return ErrNotFound
	}
	article.UpdatedAt = time.Now().UTC()
	m.articles[article.ID] = *article
	return nil
}

// ListArticleIDs returns all article ids in ascending order
func (m *MemoryStorage) ListArticleIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.articles), nil
}

// DeleteArticles removes the given articles, the id counter restarts when the store is emptied
func (m *MemoryStorage) DeleteArticles(ctx context.Context, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		if _, ok := m.articles[id]; ok {
			delete(m.articles, id)
			deleted++
		}
	}
	if len(m.articles) == 0 {
		m.nextArticleID = 1
	}
	return deleted, nil
}

// GetArticles returns articles ordered by id with pagination
func (m *MemoryStorage) GetArticles(ctx context.Context, limit int, offset int) ([]models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := sortedKeys(m.articles)
	if offset >= len(ids) {
		return []models.Article{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]models.Article, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.articles[id])
	}
	return out, nil
}

// GetArticleByID returns nil, nil when the article does not exist
func (m *MemoryStorage) GetArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.articles[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// UpdateImportStatus updates the import status
func (m *MemoryStorage) UpdateImportStatus(ctx context.Context, status models.ImportStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = &status
	return nil
}

// GetImportStatus retrieves the current import status
func (m *MemoryStorage) GetImportStatus(ctx context.Context) (*models.ImportStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.status == nil {
		return &models.ImportStatus{Status: models.StatusNeverRun}, nil
	}
	status := *m.status
	return &status, nil
}

// Ping always succeeds
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (m *MemoryStorage) Close() error {
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
