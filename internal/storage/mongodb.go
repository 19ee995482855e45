package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/cyderes/newsarticle-sync/internal/config"
	"github.com/cyderes/newsarticle-sync/internal/models"
)

const (
	authorsCollection  = "authors"
	articlesCollection = "articles"
	countersCollection = "counters"
	statusCollection   = "import_status"
	importStatusKey    = "import_status"
)

// authorDocument is the stored form of an author, including the credential hash
type authorDocument struct {
	ID        int64     `bson:"_id"`
	Name      string    `bson:"name"`
	Pass      string    `bson:"pass"`
	Active    bool      `bson:"active"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoDBStorage implements Storage interface using MongoDB.
// Integer ids are drawn from per-collection counters.
type MongoDBStorage struct {
	client   *mongo.Client
	authors  *mongo.Collection
	articles *mongo.Collection
	counters *mongo.Collection
	status   *mongo.Collection
}

// NewMongoDBStorage connects to MongoDB and prepares collections and indexes
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	storage := &MongoDBStorage{
		client:   client,
		authors:  db.Collection(authorsCollection),
		articles: db.Collection(articlesCollection),
		counters: db.Collection(countersCollection),
		status:   db.Collection(statusCollection),
	}

	if err := storage.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	if err := storage.seedSentinel(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to seed sentinel author: %w", err)
	}

	return storage, nil
}

func (m *MongoDBStorage) ensureIndexes(ctx context.Context) error {
	_, err := m.authors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = m.articles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "title", Value: 1}, {Key: "author_id", Value: 1}},
	})
	return err
}

func (m *MongoDBStorage) seedSentinel(ctx context.Context) error {
	_, err := m.authors.UpdateOne(ctx,
		bson.M{"_id": models.SentinelAuthorID},
		bson.M{"$setOnInsert": bson.M{
			"name":       models.SentinelAuthorName,
			"pass":       "",
			"active":     true,
			"created_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return err
	}
	_, err = m.counters.UpdateOne(ctx,
		bson.M{"_id": authorsCollection},
		bson.M{"$max": bson.M{"seq": models.SentinelAuthorID}},
		options.Update().SetUpsert(true))
	return err
}

// nextID atomically increments and returns the counter for a collection
func (m *MongoDBStorage) nextID(ctx context.Context, collection string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": collection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", collection, err)
	}
	return counter.Seq, nil
}

// FindAuthorByName looks up an author by exact name
func (m *MongoDBStorage) FindAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	var doc authorDocument
	err := m.authors.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find author %q: %w", name, err)
	}
	return &models.Author{ID: doc.ID, Name: doc.Name, Active: doc.Active, CreatedAt: doc.CreatedAt}, nil
}

// CreateAuthor inserts an author, storing only the credential hash
func (m *MongoDBStorage) CreateAuthor(ctx context.Context, name, credential string, active bool) (*models.Author, error) {
	hash, err := HashCredential(credential)
	if err != nil {
		return nil, err
	}
	id, err := m.nextID(ctx, authorsCollection)
	if err != nil {
		return nil, err
	}

	doc := authorDocument{ID: id, Name: name, Pass: hash, Active: active, CreatedAt: time.Now().UTC()}
	if _, err := m.authors.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("author %q: %w", name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create author %q: %w", name, err)
	}
	return &models.Author{ID: doc.ID, Name: doc.Name, Active: doc.Active, CreatedAt: doc.CreatedAt}, nil
}

// FindArticle returns the lowest-id article matching title and author
func (m *MongoDBStorage) FindArticle(ctx context.Context, title string, authorID int64) (*models.Article, error) {
	var a models.Article
	err := m.articles.FindOne(ctx,
		bson.M{"title": title, "author_id": authorID},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}}),
	).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article %q: %w", title, err)
	}
	return &a, nil
}

// CreateArticle inserts an article and sets its ID
func (m *MongoDBStorage) CreateArticle(ctx context.Context, article *models.Article) error {
	id, err := m.nextID(ctx, articlesCollection)
	if err != nil {
		return err
	}
	article.ID = id
	article.UpdatedAt = time.Now().UTC()
	if _, err := m.articles.InsertOne(ctx, article); err != nil {
		return fmt.Errorf("failed to create article %q: %w", article.Title, err)
	}
	return nil
}

// UpdateArticle replaces an existing article document
func (m *MongoDBStorage) UpdateArticle(ctx context.Context, article *models.Article) error {
	article.UpdatedAt = time.Now().UTC()
	res, err := m.articles.ReplaceOne(ctx, bson.M{"_id": article.ID}, article)
	if err != nil {
		return fmt.Errorf("failed to update article %d: %w", article.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("article %d: %w", article.ID, ErrNotFound)
	}
	return nil
}

// ListArticleIDs returns all article ids in ascending order
func (m *MongoDBStorage) ListArticleIDs(ctx context.Context) ([]int64, error) {
	cursor, err := m.articles.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list article ids: %w", err)
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode article ids: %w", err)
	}
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// DeleteArticles removes the given articles and resets the id counter once the collection is empty
func (m *MongoDBStorage) DeleteArticles(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := m.articles.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete articles: %w", err)
	}
	remaining, err := m.articles.CountDocuments(ctx, bson.M{})
	if err != nil {
		return res.DeletedCount, err
	}
	if remaining == 0 {
		if _, err := m.counters.UpdateOne(ctx, bson.M{"_id": articlesCollection}, bson.M{"$set": bson.M{"seq": int64(0)}}); err != nil {
			return res.DeletedCount, fmt.Errorf("failed to reset article counter: %w", err)
		}
	}
	return res.DeletedCount, nil
}

// GetArticles retrieves articles ordered by id with pagination
func (m *MongoDBStorage) GetArticles(ctx context.Context, limit int, offset int) ([]models.Article, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := m.articles.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	articles := []models.Article{}
	if err := cursor.All(ctx, &articles); err != nil {
		return nil, fmt.Errorf("failed to decode articles: %w", err)
	}
	return articles, nil
}

// GetArticleByID retrieves a specific article by ID
func (m *MongoDBStorage) GetArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	var a models.Article
	err := m.articles.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article %d: %w", id, err)
	}
	return &a, nil
}

// UpdateImportStatus updates the import status
func (m *MongoDBStorage) UpdateImportStatus(ctx context.Context, status models.ImportStatus) error {
	_, err := m.status.ReplaceOne(ctx, bson.M{"_id": importStatusKey}, status, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update import status: %w", err)
	}
	return nil
}

// GetImportStatus retrieves the current import status
func (m *MongoDBStorage) GetImportStatus(ctx context.Context) (*models.ImportStatus, error) {
	var status models.ImportStatus
	err := m.status.FindOne(ctx, bson.M{"_id": importStatusKey}).Decode(&status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.ImportStatus{Status: models.StatusNeverRun}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import status: %w", err)
	}
	return &status, nil
}

// Ping checks the primary is reachable
func (m *MongoDBStorage) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (m *MongoDBStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
