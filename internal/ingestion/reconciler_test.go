package ingestion

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/newsarticle-sync/internal/models"
	"github.com/cyderes/newsarticle-sync/internal/storage"
)

var credentialPattern = regexp.MustCompile(`^[0-9a-zA-Z]{20}$`)

func TestReconciler_ResolveAuthor_EmptySourceUsesSentinel(t *testing.T) {
	mockStorage := new(MockStorage)
	r := NewReconciler(mockStorage, mockStorage)

	id, err := r.ResolveAuthor(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, models.SentinelAuthorID, id)
	mockStorage.AssertNotCalled(t, "FindAuthorByName", mock.Anything, mock.Anything)
	mockStorage.AssertNotCalled(t, "CreateAuthor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_ResolveAuthor_Existing(t *testing.T) {
	mockStorage := new(MockStorage)
	mockStorage.On("FindAuthorByName", mock.Anything, "BBC").Return(&models.Author{ID: 7, Name: "BBC"}, nil)
	r := NewReconciler(mockStorage, mockStorage)

	id, err := r.ResolveAuthor(context.Background(), "BBC")

	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	mockStorage.AssertExpectations(t)
	mockStorage.AssertNotCalled(t, "CreateAuthor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_ResolveAuthor_CreatesWithCredential(t *testing.T) {
	mockStorage := new(MockStorage)
	mockStorage.On("FindAuthorByName", mock.Anything, "BBC").Return(nil, nil)
	mockStorage.On("CreateAuthor", mock.Anything, "BBC",
		mock.MatchedBy(func(c string) bool { return credentialPattern.MatchString(c) }), true).
		Return(&models.Author{ID: 2, Name: "BBC", Active: true}, nil).Once()
	r := NewReconciler(mockStorage, mockStorage)

	id, err := r.ResolveAuthor(context.Background(), "BBC")

	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	mockStorage.AssertExpectations(t)
}

func TestReconciler_ResolveAuthor_StoreError(t *testing.T) {
	mockStorage := new(MockStorage)
	mockStorage.On("FindAuthorByName", mock.Anything, "BBC").Return(nil, assert.AnError)
	r := NewReconciler(mockStorage, mockStorage)

	_, err := r.ResolveAuthor(context.Background(), "BBC")

	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to look up author")
}

func TestReconciler_UnchangedMatchCountsAsUpdatedWithoutWrite(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mockStorage := new(MockStorage)
	mockStorage.On("FindAuthorByName", mock.Anything, "BBC").Return(&models.Author{ID: 2, Name: "BBC"}, nil)
	mockStorage.On("FindArticle", mock.Anything, "A", int64(2)).
		Return(&models.Article{ID: 1, Title: "A", Body: "d1", AuthorID: 2, CreatedAt: created, Enabled: true}, nil)
	r := NewReconciler(mockStorage, mockStorage)

	summary, err := r.Reconcile(context.Background(), []models.RawNewsItem{
		{Source: "BBC", Title: "A", Description: "d1", PubDate: "2024-01-01T00:00:00Z"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Inserted)
	assert.Empty(t, summary.Errors)
	mockStorage.AssertNotCalled(t, "UpdateArticle", mock.Anything, mock.Anything)
	mockStorage.AssertNotCalled(t, "CreateArticle", mock.Anything, mock.Anything)
}

func TestReconciler_ChangedMatchIsWritten(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mockStorage := new(MockStorage)
	mockStorage.On("FindAuthorByName", mock.Anything, "BBC").Return(&models.Author{ID: 2, Name: "BBC"}, nil)
	mockStorage.On("FindArticle", mock.Anything, "A", int64(2)).
		Return(&models.Article{ID: 1, Title: "A", Body: "d1", AuthorID: 2, CreatedAt: created, Enabled: true}, nil)
	mockStorage.On("UpdateArticle", mock.Anything, mock.MatchedBy(func(a *models.Article) bool {
		return a.ID == 1 && a.Body == "d2" && a.CreatedAt.Equal(created.Add(time.Hour))
	})).Return(nil).Once()
	r := NewReconciler(mockStorage, mockStorage)

	summary, err := r.Reconcile(context.Background(), []models.RawNewsItem{
		{Source: "BBC", Title: "A", Description: "d2", PubDate: "2024-01-01T01:00:00Z"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	mockStorage.AssertExpectations(t)
}

func TestReconciler_InvalidItemsAreSkipped(t *testing.T) {
	mockStorage := new(MockStorage)
	mockStorage.On("FindAuthorByName", mock.Anything, "CNN").Return(&models.Author{ID: 3, Name: "CNN"}, nil)
	mockStorage.On("FindArticle", mock.Anything, "B", int64(3)).Return(nil, nil)
	mockStorage.On("CreateArticle", mock.Anything, mock.AnythingOfType("*models.Article")).Return(nil).Once()
	r := NewReconciler(mockStorage, mockStorage)

	summary, err := r.Reconcile(context.Background(), []models.RawNewsItem{
		{Source: "", Title: "X", Description: "x", PubDate: "2024-01-01T00:00:00Z"},
		{Source: "CNN", Title: "", Description: "y", PubDate: "2024-01-01T00:00:00Z"},
		{Source: "CNN", Title: "B", Description: "b", PubDate: "2024-01-01T00:00:00Z"},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, summary.Errors, 2)
	assert.Equal(t, ItemValidationFailed, summary.Errors[0].Kind)
	assert.Equal(t, 0, summary.Errors[0].Index)
	assert.Equal(t, 1, summary.Errors[1].Index)
	mockStorage.AssertExpectations(t)
}

func TestReconciler_PersistenceFailureDoesNotStopBatch(t *testing.T) {
	mockStorage := new(MockStorage)
	mockStorage.On("FindAuthorByName", mock.Anything, "BBC").Return(&models.Author{ID: 2, Name: "BBC"}, nil)
	mockStorage.On("FindArticle", mock.Anything, mock.Anything, int64(2)).Return(nil, nil)
	mockStorage.On("CreateArticle", mock.Anything, mock.MatchedBy(func(a *models.Article) bool { return a.Title == "A" })).
		Return(errors.New("disk full")).Once()
	mockStorage.On("CreateArticle", mock.Anything, mock.MatchedBy(func(a *models.Article) bool { return a.Title == "B" })).
		Return(nil).Once()
	r := NewReconciler(mockStorage, mockStorage)

	summary, err := r.Reconcile(context.Background(), []models.RawNewsItem{
		{Source: "BBC", Title: "A", Description: "a", PubDate: "2024-01-01T00:00:00Z"},
		{Source: "BBC", Title: "B", Description: "b", PubDate: "2024-01-01T00:00:00Z"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Inserted)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, ItemPersistenceFailed, summary.Errors[0].Kind)
	assert.Equal(t, "A", summary.Errors[0].Title)
	mockStorage.AssertExpectations(t)
}

func TestReconciler_CanceledContext(t *testing.T) {
	mockStorage := new(MockStorage)
	r := NewReconciler(mockStorage, mockStorage)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Reconcile(ctx, []models.RawNewsItem{{Source: "BBC", Title: "A"}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, summary)
}

func TestReconciler_MemoryStorage(t *testing.T) {
	store := storage.NewMemoryStorage()
	r := NewReconciler(store, store)
	r.credential = func() string { return "0123456789abcdefghij" }
	ctx := context.Background()

	summary, err := r.Reconcile(ctx, []models.RawNewsItem{
		{Source: "BBC", Title: "A", Description: "d1", PubDate: "2024-01-01T00:00:00Z"},
		{Source: "BBC", Title: "C", Description: "c1", PubDate: "not a date"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)

	authors := store.Authors()
	require.Len(t, authors, 2)
	bbc := authors[1]
	assert.Equal(t, "BBC", bbc.Name)
	assert.True(t, bbc.Active)

	hash, ok := store.CredentialHash(bbc.ID)
	require.True(t, ok)
	assert.True(t, storage.CheckCredential(hash, "0123456789abcdefghij"))

	require.Len(t, summary.Errors, 1)
	assert.Equal(t, ItemTimestampUnparsable, summary.Errors[0].Kind)
	c, err := store.FindArticle(ctx, "C", bbc.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.CreatedAt.Equal(time.Unix(0, 0)))
	assert.True(t, c.Enabled)
}
