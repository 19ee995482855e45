package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cyderes/newsarticle-sync/internal/config"
	"github.com/cyderes/newsarticle-sync/internal/models"
)

const pgUniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS authors (
    id BIGSERIAL PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    pass TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    author_id BIGINT NOT NULL REFERENCES authors(id),
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    enabled BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_articles_title_author ON articles (title, author_id);
CREATE TABLE IF NOT EXISTS import_status (
    id SMALLINT PRIMARY KEY,
    last_successful_run TIMESTAMPTZ NOT NULL,
    last_attempt TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    run_id TEXT NOT NULL DEFAULT '',
    inserted INTEGER NOT NULL DEFAULT 0,
    updated INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0
);
`

const articleColumns = `id, title, body, author_id, created_at, updated_at, enabled`

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db *sql.DB
}

// NewPostgreSQLStorage connects to PostgreSQL and ensures the schema exists
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	storage := &PostgreSQLStorage{db: db}
	if err := storage.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return storage, nil
}

// ensureSchema creates the tables and seeds the sentinel author
func (p *PostgreSQLStorage) ensureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO authors (id, name, pass, active) VALUES ($1, $2, '', TRUE) ON CONFLICT DO NOTHING`,
		models.SentinelAuthorID, models.SentinelAuthorName)
	if err != nil {
		return fmt.Errorf("failed to seed sentinel author: %w", err)
	}
	// explicit ids do not advance the sequence
	_, err = p.db.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('authors', 'id'), GREATEST((SELECT MAX(id) FROM authors), 1))`)
	return err
}

// FindAuthorByName looks up an author by exact name
func (p *PostgreSQLStorage) FindAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	var a models.Author
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, active, created_at FROM authors WHERE name = $1`, name,
	).Scan(&a.ID, &a.Name, &a.Active, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find author %q: %w", name, err)
	}
	return &a, nil
}

// CreateAuthor inserts an author, storing only the credential hash
func (p *PostgreSQLStorage) CreateAuthor(ctx context.Context, name, credential string, active bool) (*models.Author, error) {
	hash, err := HashCredential(credential)
	if err != nil {
		return nil, err
	}

	a := models.Author{Name: name, Active: active}
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO authors (name, pass, active) VALUES ($1, $2, $3) RETURNING id, created_at`,
		name, hash, active,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("author %q: %w", name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create author %q: %w", name, err)
	}
	return &a, nil
}

// FindArticle returns the lowest-id article matching title and author
func (p *PostgreSQLStorage) FindArticle(ctx context.Context, title string, authorID int64) (*models.Article, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE title = $1 AND author_id = $2 ORDER BY id LIMIT 1`,
		title, authorID)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article %q: %w", title, err)
	}
	return a, nil
}

// CreateArticle inserts an article and sets its ID
func (p *PostgreSQLStorage) CreateArticle(ctx context.Context, article *models.Article) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO articles (title, body, author_id, created_at, enabled) VALUES ($1, $2, $3, $4, $5) RETURNING id, updated_at`,
		article.Title, article.Body, article.AuthorID, article.CreatedAt, article.Enabled,
	).Scan(&article.ID, &article.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create article %q: %w", article.Title, err)
	}
	return nil
}

// UpdateArticle writes body, created_at and enabled of an existing article
func (p *PostgreSQLStorage) UpdateArticle(ctx context.Context, article *models.Article) error {
	err := p.db.QueryRowContext(ctx,
		`UPDATE articles SET body = $1, created_at = $2, enabled = $3, updated_at = now() WHERE id = $4 RETURNING updated_at`,
		article.Body, article.CreatedAt, article.Enabled, article.ID,
	).Scan(&article.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("article %d: %w", article.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update article %d: %w", article.ID, err)
	}
	return nil
}

// ListArticleIDs returns all article ids in ascending order
func (p *PostgreSQLStorage) ListArticleIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM articles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list article ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteArticles removes the given articles and restarts the id sequence once the table is empty
func (p *PostgreSQLStorage) DeleteArticles(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete articles: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	_, err = p.db.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('articles', 'id'), 1, false) WHERE NOT EXISTS (SELECT 1 FROM articles)`)
	if err != nil {
		return deleted, fmt.Errorf("failed to reset article sequence: %w", err)
	}
	return deleted, nil
}

// GetArticles retrieves articles ordered by id with pagination
func (p *PostgreSQLStorage) GetArticles(ctx context.Context, limit int, offset int) ([]models.Article, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// GetArticleByID retrieves a specific article by ID
func (p *PostgreSQLStorage) GetArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	a, err := scanArticle(p.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article %d: %w", id, err)
	}
	return a, nil
}

// UpdateImportStatus updates the import status
func (p *PostgreSQLStorage) UpdateImportStatus(ctx context.Context, s models.ImportStatus) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO import_status (id, last_successful_run, last_attempt, status, error_message, run_id, inserted, updated, skipped, failed)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    last_successful_run = EXCLUDED.last_successful_run,
    last_attempt = EXCLUDED.last_attempt,
    status = EXCLUDED.status,
    error_message = EXCLUDED.error_message,
    run_id = EXCLUDED.run_id,
    inserted = EXCLUDED.inserted,
    updated = EXCLUDED.updated,
    skipped = EXCLUDED.skipped,
    failed = EXCLUDED.failed`,
		s.LastSuccessfulRun, s.LastAttempt, s.Status, s.ErrorMessage, s.RunID, s.Inserted, s.Updated, s.Skipped, s.Failed)
	if err != nil {
		return fmt.Errorf("failed to update import status: %w", err)
	}
	return nil
}

// GetImportStatus retrieves the current import status
func (p *PostgreSQLStorage) GetImportStatus(ctx context.Context) (*models.ImportStatus, error) {
	var s models.ImportStatus
	err := p.db.QueryRowContext(ctx, `
SELECT last_successful_run, last_attempt, status, error_message, run_id, inserted, updated, skipped, failed
FROM import_status WHERE id = 1`,
	).Scan(&s.LastSuccessfulRun, &s.LastAttempt, &s.Status, &s.ErrorMessage, &s.RunID, &s.Inserted, &s.Updated, &s.Skipped, &s.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.ImportStatus{Status: models.StatusNeverRun}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import status: %w", err)
	}
	return &s, nil
}

// Ping checks the database connection
func (p *PostgreSQLStorage) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	if err := row.Scan(&a.ID, &a.Title, &a.Body, &a.AuthorID, &a.CreatedAt, &a.UpdatedAt, &a.Enabled); err != nil {
		return nil, err
	}
	return &a, nil
}
