package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/cyderes/newsarticle-sync/internal/models"
	"github.com/cyderes/newsarticle-sync/internal/storage"
)

// Outcome is what happened to a single feed item
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeInserted
	OutcomeUpdated
	OutcomeFailed
)

// ImportSummary aggregates the outcome of one import run
type ImportSummary struct {
	RunID    string
	Total    int
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Errors   []*ItemError
}

func (s *ImportSummary) record(o Outcome) {
	switch o {
	case OutcomeInserted:
		s.Inserted++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// Reconciler decides per feed item whether to insert, update or skip an article.
// Items are processed sequentially, a failing item never aborts the batch.
type Reconciler struct {
	identities storage.IdentityStore
	content    storage.ContentStore
	credential func() string
}

// NewReconciler creates a reconciler over the given stores
func NewReconciler(identities storage.IdentityStore, content storage.ContentStore) *Reconciler {
	return &Reconciler{
		identities: identities,
		content:    content,
		credential: func() string { return GenerateCredential(CredentialLength) },
	}
}

// Reconcile applies items in feed order. It returns an error only when ctx is
// already done before the first item; item-level problems end up in the summary.
func (r *Reconciler) Reconcile(ctx context.Context, items []models.RawNewsItem) (*ImportSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &ImportSummary{Total: len(items)}
	for i, item := range items {
		outcome, errs := r.reconcileItem(ctx, i, item)
		summary.record(outcome)
		summary.Errors = append(summary.Errors, errs...)
	}
	return summary, nil
}

// reconcileItem returns the outcome for one item and any problems met on the way
func (r *Reconciler) reconcileItem(ctx context.Context, index int, item models.RawNewsItem) (Outcome, []*ItemError) {
	if item.Title == "" || item.Source == "" {
		log.Printf("[DEBUG] skip item %d, title or source is empty", index)
		return OutcomeSkipped, []*ItemError{{
			Index: index,
			Title: item.Title,
			Kind:  ItemValidationFailed,
			Err:   errors.New("title and source are required"),
		}}
	}

	var errs []*ItemError
	createdAt, err := ParsePubDate(item.PubDate)
	if err != nil {
		log.Printf("[WARN] item %d %q, %v, using %s", index, item.Title, err, createdAt.Format("2006-01-02T15:04:05Z07:00"))
		errs = append(errs, &ItemError{Index: index, Title: item.Title, Kind: ItemTimestampUnparsable, Err: err})
	}

	outcome, err := r.upsert(ctx, item, createdAt)
	if err != nil {
		log.Printf("[ERROR] item %d %q, %v", index, item.Title, err)
		errs = append(errs, &ItemError{Index: index, Title: item.Title, Kind: ItemPersistenceFailed, Err: err})
		return OutcomeFailed, errs
	}
	return outcome, errs
}

func (r *Reconciler) upsert(ctx context.Context, item models.RawNewsItem, createdAt time.Time) (Outcome, error) {
	authorID, err := r.ResolveAuthor(ctx, item.Source)
	if err != nil {
		return OutcomeFailed, err
	}

	existing, err := r.content.FindArticle(ctx, item.Title, authorID)
	if err != nil {
		return OutcomeFailed, err
	}

	if existing == nil {
		article := &models.Article{
			Title:     item.Title,
			Body:      item.Description,
			AuthorID:  authorID,
			CreatedAt: createdAt,
			Enabled:   true,
		}
		if err := r.content.CreateArticle(ctx, article); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeInserted, nil
	}

	changed := false
	if existing.Body != item.Description {
		existing.Body = item.Description
		changed = true
	}
	if !existing.CreatedAt.Truncate(time.Second).Equal(createdAt) {
		existing.CreatedAt = createdAt
		changed = true
	}
	if changed {
		if err := r.content.UpdateArticle(ctx, existing); err != nil {
			return OutcomeFailed, err
		}
	}
	// a match counts as updated even when nothing was written
	return OutcomeUpdated, nil
}

// ResolveAuthor returns the id of the author named source, creating the author
// when missing. An empty source resolves to the sentinel account without a lookup.
func (r *Reconciler) ResolveAuthor(ctx context.Context, source string) (int64, error) {
	if source == "" {
		return models.SentinelAuthorID, nil
	}

	author, err := r.identities.FindAuthorByName(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("failed to look up author %q: %w", source, err)
	}
	if author != nil {
		return author.ID, nil
	}

	author, err = r.identities.CreateAuthor(ctx, source, r.credential(), true)
	if err != nil {
		return 0, fmt.Errorf("failed to create author %q: %w", source, err)
	}
	log.Printf("[INFO] created author %q with id %d", source, author.ID)
	return author.ID, nil
}
