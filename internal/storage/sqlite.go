package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/cyderes/newsarticle-sync/internal/config"
	"github.com/cyderes/newsarticle-sync/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS authors (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	pass TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	author_id INTEGER NOT NULL REFERENCES authors(id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_articles_title_author ON articles(title, author_id);

CREATE TABLE IF NOT EXISTS import_status (
	id INTEGER PRIMARY KEY,
	last_successful_run DATETIME NOT NULL,
	last_attempt DATETIME NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	run_id TEXT NOT NULL DEFAULT '',
	inserted INTEGER NOT NULL DEFAULT 0,
	updated INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStorage implements Storage interface on a local SQLite file
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates the database file at cfg.SQLitePath
func NewSQLiteStorage(ctx context.Context, cfg config.StorageConfig) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables if they don't exist and seeds the sentinel author
func (s *SQLiteStorage) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO authors (id, name, pass, active, created_at) VALUES (?, ?, '', 1, ?)`,
		models.SentinelAuthorID, models.SentinelAuthorName, time.Now().UTC())
	return err
}

// FindAuthorByName looks up an author by exact name
func (s *SQLiteStorage) FindAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	var a models.Author
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, active, created_at FROM authors WHERE name = ?`, name,
	).Scan(&a.ID, &a.Name, &a.Active, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find author %q: %w", name, err)
	}
	return &a, nil
}

// CreateAuthor inserts an author, storing only the credential hash
func (s *SQLiteStorage) CreateAuthor(ctx context.Context, name, credential string, active bool) (*models.Author, error) {
	hash, err := HashCredential(credential)
	if err != nil {
		return nil, err
	}

	a := models.Author{Name: name, Active: active, CreatedAt: time.Now().UTC()}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO authors (name, pass, active, created_at) VALUES (?, ?, ?, ?)`,
		a.Name, hash, a.Active, a.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("author %q: %w", name, ErrDuplicate)
		}
		return nil, fmt.Errorf("create author %q: %w", name, err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &a, nil
}

// FindArticle returns the lowest-id article matching title and author
func (s *SQLiteStorage) FindArticle(ctx context.Context, title string, authorID int64) (*models.Article, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE title = ? AND author_id = ? ORDER BY id LIMIT 1`,
		title, authorID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find article %q: %w", title, err)
	}
	return a, nil
}

// CreateArticle inserts an article and sets its ID
func (s *SQLiteStorage) CreateArticle(ctx context.Context, article *models.Article) error {
	article.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (title, body, author_id, created_at, updated_at, enabled) VALUES (?, ?, ?, ?, ?, ?)`,
		article.Title, article.Body, article.AuthorID, article.CreatedAt.UTC(), article.UpdatedAt, article.Enabled)
	if err != nil {
		return fmt.Errorf("create article %q: %w", article.Title, err)
	}
	article.ID, err = res.LastInsertId()
	return err
}

// UpdateArticle writes body, created_at and enabled of an existing article
func (s *SQLiteStorage) UpdateArticle(ctx context.Context, article *models.Article) error {
	article.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET body = ?, created_at = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		article.Body, article.CreatedAt.UTC(), article.Enabled, article.UpdatedAt, article.ID)
	if err != nil {
		return fmt.Errorf("update article %d: %w", article.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("article %d: %w", article.ID, ErrNotFound)
	}
	return nil
}

// ListArticleIDs returns all article ids in ascending order
func (s *SQLiteStorage) ListArticleIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM articles ORDER BY id`)
	if err != nil {
		return nil, err
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

// DeleteArticles removes the given articles. Rowids restart from 1 once the table is empty.
func (s *SQLiteStorage) DeleteArticles(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}
	return res.RowsAffected()
}

// GetArticles retrieves articles ordered by id with pagination
func (s *SQLiteStorage) GetArticles(ctx context.Context, limit int, offset int) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// GetArticleByID retrieves a specific article by ID
func (s *SQLiteStorage) GetArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateImportStatus updates the import status
func (s *SQLiteStorage) UpdateImportStatus(ctx context.Context, st models.ImportStatus) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO import_status (id, last_successful_run, last_attempt, status, error_message, run_id, inserted, updated, skipped, failed)
	VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		last_successful_run = excluded.last_successful_run,
		last_attempt = excluded.last_attempt,
		status = excluded.status,
		error_message = excluded.error_message,
		run_id = excluded.run_id,
		inserted = excluded.inserted,
		updated = excluded.updated,
		skipped = excluded.skipped,
		failed = excluded.failed
	`, st.LastSuccessfulRun.UTC(), st.LastAttempt.UTC(), st.Status, st.ErrorMessage, st.RunID, st.Inserted, st.Updated, st.Skipped, st.Failed)
	return err
}

// GetImportStatus retrieves the current import status
func (s *SQLiteStorage) GetImportStatus(ctx context.Context) (*models.ImportStatus, error) {
	var st models.ImportStatus
	err := s.db.QueryRowContext(ctx, `
	SELECT last_successful_run, last_attempt, status, error_message, run_id, inserted, updated, skipped, failed
	FROM import_status WHERE id = 1
	`).Scan(&st.LastSuccessfulRun, &st.LastAttempt, &st.Status, &st.ErrorMessage, &st.RunID, &st.Inserted, &st.Updated, &st.Skipped, &st.Failed)
	if err == sql.ErrNoRows {
		return &models.ImportStatus{Status: models.StatusNeverRun}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Ping checks the database handle
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
