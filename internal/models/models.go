package models

import "time"

// SentinelAuthorID is the built-in account used when a feed item has no source
const SentinelAuthorID int64 = 1

// SentinelAuthorName is the name the sentinel account is seeded with
const SentinelAuthorName = "admin"

// Import run states stored in ImportStatus.Status
const (
	StatusNeverRun = "never_run"
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusFailure  = "failure"
)

// RawNewsItem represents one entry of the news feed as sent by the API
type RawNewsItem struct {
	Source      string `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
}

// Author is an account articles are attributed to
type Author struct {
	ID        int64     `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Article is a stored news article, unique by (Title, AuthorID)
type Article struct {
	ID        int64     `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Body      string    `json:"body" bson:"body"`
	AuthorID  int64     `json:"author_id" bson:"author_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	Enabled   bool      `json:"enabled" bson:"enabled"`
}

// ImportStatus tracks the status of import runs
type ImportStatus struct {
	LastSuccessfulRun time.Time `json:"last_successful_run" bson:"last_successful_run"`
	LastAttempt       time.Time `json:"last_attempt" bson:"last_attempt"`
	Status            string    `json:"status" bson:"status"`
	ErrorMessage      string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
	RunID             string    `json:"run_id,omitempty" bson:"run_id,omitempty"`
	Inserted          int       `json:"inserted" bson:"inserted"`
	Updated           int       `json:"updated" bson:"updated"`
	Skipped           int       `json:"skipped" bson:"skipped"`
	Failed            int       `json:"failed" bson:"failed"`
}
