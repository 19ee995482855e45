package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/cyderes/newsarticle-sync/internal/config"
	"github.com/cyderes/newsarticle-sync/internal/metrics"
	"github.com/cyderes/newsarticle-sync/internal/models"
	"github.com/cyderes/newsarticle-sync/internal/storage"
)

// Service imports the news feed into storage
type Service struct {
	config     config.ImportConfig
	storage    storage.Storage
	fetcher    *Fetcher
	reconciler *Reconciler
}

// NewService creates a new import service
func NewService(cfg config.ImportConfig, store storage.Storage) *Service {
	client := &http.Client{
		Timeout: cfg.Timeout,
	}
	return &Service{
		config:     cfg,
		storage:    store,
		fetcher:    NewFetcher(cfg.FeedURL, client),
		reconciler: NewReconciler(store, store),
	}
}

// Start runs an import right away and then every configured interval until ctx is done
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.Run(ctx); err != nil {
		log.Printf("[WARN] initial import failed, %v", err)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				log.Printf("[WARN] import failed, %v", err)
			}
		}
	}
}

// Run performs one import: health check, fetch, then reconcile every item.
// Fetch and storage failures abort the run and are returned, item problems are
// reported in the summary.
func (s *Service) Run(ctx context.Context) (*ImportSummary, error) {
	runID := uuid.New().String()
	started := time.Now().UTC()

	if err := s.storage.Ping(ctx); err != nil {
		metrics.Error("store_unavailable")
		metrics.ObserveRun(models.StatusFailure, 0, 0, 0, 0)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	status := s.currentStatus(ctx)
	status.RunID = runID
	status.LastAttempt = started
	status.Status = models.StatusRunning
	status.ErrorMessage = ""
	s.saveStatus(ctx, status)

	log.Printf("[INFO] import %s started, feed %s", runID, s.config.FeedURL)

	items, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.fail(ctx, status, err)
		return nil, err
	}

	summary, err := s.reconciler.Reconcile(ctx, items)
	if err != nil {
		s.fail(ctx, status, err)
		return nil, err
	}
	summary.RunID = runID

	for _, itemErr := range summary.Errors {
		metrics.Error(itemErr.Kind.String())
	}
	metrics.ObserveRun(models.StatusSuccess, summary.Inserted, summary.Updated, summary.Skipped, summary.Failed)

	status.Status = models.StatusSuccess
	status.LastSuccessfulRun = time.Now().UTC()
	status.Inserted = summary.Inserted
	status.Updated = summary.Updated
	status.Skipped = summary.Skipped
	status.Failed = summary.Failed
	s.saveStatus(ctx, status)

	log.Printf("[INFO] Total Newsarticle: %d - Inserted: %d - Updated: %d", summary.Total, summary.Inserted, summary.Updated)
	if summary.Skipped > 0 || summary.Failed > 0 {
		log.Printf("[WARN] import %s skipped %d and failed %d items", runID, summary.Skipped, summary.Failed)
	}
	return summary, nil
}

// Purge deletes every article and returns how many were removed. Authors are kept.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	ids, err := s.storage.ListArticleIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list articles: %w", err)
	}
	if len(ids) == 0 {
		log.Printf("[INFO] purge found no articles")
		return 0, nil
	}

	deleted, err := s.storage.DeleteArticles(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete articles: %w", err)
	}
	log.Printf("[INFO] purged %d articles", deleted)
	return deleted, nil
}

func (s *Service) fail(ctx context.Context, status models.ImportStatus, err error) {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		metrics.Error("fetch_" + fetchErr.Kind.String())
	} else {
		metrics.Error("run")
	}
	metrics.ObserveRun(models.StatusFailure, 0, 0, 0, 0)

	status.Status = models.StatusFailure
	status.ErrorMessage = err.Error()
	status.Inserted, status.Updated, status.Skipped, status.Failed = 0, 0, 0, 0
	s.saveStatus(ctx, status)
	log.Printf("[ERROR] import %s failed, %v", status.RunID, err)
}

// currentStatus returns the stored status, or a never-run status when it can't be read
func (s *Service) currentStatus(ctx context.Context) models.ImportStatus {
	status, err := s.storage.GetImportStatus(ctx)
	if err != nil || status == nil {
		if err != nil {
			log.Printf("[WARN] can't read import status, %v", err)
		}
		return models.ImportStatus{Status: models.StatusNeverRun}
	}
	return *status
}

func (s *Service) saveStatus(ctx context.Context, status models.ImportStatus) {
	if err := s.storage.UpdateImportStatus(ctx, status); err != nil {
		log.Printf("[WARN] can't save import status, %v", err)
	}
}
