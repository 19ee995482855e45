package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"

	"github.com/cyderes/newsarticle-sync/internal/config"
	"github.com/cyderes/newsarticle-sync/internal/models"
)

// authorItem is the stored form of an author, keyed by name
type authorItem struct {
	Name      string    `json:"name"`
	ID        int64     `json:"id"`
	Pass      string    `json:"pass"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type tableKey struct {
	name     string
	attrType string
	keyType  string
}

// DynamoDBStorage implements Storage interface using AWS DynamoDB.
// Articles are keyed by (author_id, title); ids come from an atomic counter table.
type DynamoDBStorage struct {
	client        *dynamodb.DynamoDB
	authorsTable  string
	articlesTable string
	countersTable string
	statusTable   string
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(ctx context.Context, cfg config.StorageConfig) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := &DynamoDBStorage{
		client:        dynamodb.New(sess),
		authorsTable:  cfg.TablePrefix + "_authors",
		articlesTable: cfg.TablePrefix + "_articles",
		countersTable: cfg.TablePrefix + "_counters",
		statusTable:   cfg.TablePrefix + "_status",
	}

	tables := map[string][]tableKey{
		storage.authorsTable:  {{"name", dynamodb.ScalarAttributeTypeS, dynamodb.KeyTypeHash}},
		storage.articlesTable: {{"author_id", dynamodb.ScalarAttributeTypeN, dynamodb.KeyTypeHash}, {"title", dynamodb.ScalarAttributeTypeS, dynamodb.KeyTypeRange}},
		storage.countersTable: {{"name", dynamodb.ScalarAttributeTypeS, dynamodb.KeyTypeHash}},
		storage.statusTable:   {{"id", dynamodb.ScalarAttributeTypeS, dynamodb.KeyTypeHash}},
	}
	for table, keys := range tables {
		if err := storage.ensureTable(ctx, table, keys); err != nil {
			return nil, fmt.Errorf("failed to ensure table %s exists: %w", table, err)
		}
	}

	if err := storage.seedSentinel(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed sentinel author: %w", err)
	}

	return storage, nil
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStorage) ensureTable(ctx context.Context, table string, keys []tableKey) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err == nil {
		return nil
	}

	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	}
	for _, k := range keys {
		input.KeySchema = append(input.KeySchema, &dynamodb.KeySchemaElement{
			AttributeName: aws.String(k.name),
			KeyType:       aws.String(k.keyType),
		})
		input.AttributeDefinitions = append(input.AttributeDefinitions, &dynamodb.AttributeDefinition{
			AttributeName: aws.String(k.name),
			AttributeType: aws.String(k.attrType),
		})
	}

	if _, err := d.client.CreateTableWithContext(ctx, input); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return d.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
}

func (d *DynamoDBStorage) seedSentinel(ctx context.Context) error {
	err := d.putAuthor(ctx, authorItem{
		Name:      models.SentinelAuthorName,
		ID:        models.SentinelAuthorID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return err
	}
	_, err = d.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.countersTable),
		Key:              map[string]*dynamodb.AttributeValue{"name": {S: aws.String("authors")}},
		UpdateExpression: aws.String("SET seq = if_not_exists(seq, :one)"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":one": {N: aws.String(strconv.FormatInt(models.SentinelAuthorID, 10))},
		},
	})
	return err
}

// nextID atomically increments and returns the named counter
func (d *DynamoDBStorage) nextID(ctx context.Context, counter string) (int64, error) {
	out, err := d.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.countersTable),
		Key:              map[string]*dynamodb.AttributeValue{"name": {S: aws.String(counter)}},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":one": {N: aws.String("1")},
		},
		ReturnValues: aws.String(dynamodb.ReturnValueUpdatedNew),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", counter, err)
	}
	seq, ok := out.Attributes["seq"]
	if !ok || seq.N == nil {
		return 0, fmt.Errorf("counter %s returned no value", counter)
	}
	return strconv.ParseInt(*seq.N, 10, 64)
}

func (d *DynamoDBStorage) putAuthor(ctx context.Context, author authorItem) error {
	item, err := dynamodbattribute.MarshalMap(author)
	if err != nil {
		return fmt.Errorf("failed to marshal author %q: %w", author.Name, err)
	}
	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.authorsTable),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#n)"),
		ExpressionAttributeNames: map[string]*string{"#n": aws.String("name")},
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return fmt.Errorf("author %q: %w", author.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to store author %q: %w", author.Name, err)
	}
	return nil
}

// FindAuthorByName looks up an author by exact name
func (d *DynamoDBStorage) FindAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.authorsTable),
		Key: map[string]*dynamodb.AttributeValue{
			"name": {S: aws.String(name)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get author %q: %w", name, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item authorItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal author: %w", err)
	}
	return &models.Author{ID: item.ID, Name: item.Name, Active: item.Active, CreatedAt: item.CreatedAt}, nil
}

// CreateAuthor stores an author, storing only the credential hash
func (d *DynamoDBStorage) CreateAuthor(ctx context.Context, name, credential string, active bool) (*models.Author, error) {
	hash, err := HashCredential(credential)
	if err != nil {
		return nil, err
	}
	id, err := d.nextID(ctx, "authors")
	if err != nil {
		return nil, err
	}

	item := authorItem{Name: name, ID: id, Pass: hash, Active: active, CreatedAt: time.Now().UTC()}
	if err := d.putAuthor(ctx, item); err != nil {
		return nil, err
	}
	return &models.Author{ID: item.ID, Name: item.Name, Active: item.Active, CreatedAt: item.CreatedAt}, nil
}

// FindArticle reads the article stored under (authorID, title)
func (d *DynamoDBStorage) FindArticle(ctx context.Context, title string, authorID int64) (*models.Article, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.articlesTable),
		Key: map[string]*dynamodb.AttributeValue{
			"author_id": {N: aws.String(strconv.FormatInt(authorID, 10))},
			"title":     {S: aws.String(title)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get article %q: %w", title, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var article models.Article
	if err := dynamodbattribute.UnmarshalMap(result.Item, &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article: %w", err)
	}
	return &article, nil
}

// CreateArticle stores an article and sets its ID
func (d *DynamoDBStorage) CreateArticle(ctx context.Context, article *models.Article) error {
	id, err := d.nextID(ctx, "articles")
	if err != nil {
		return err
	}
	article.ID = id
	return d.putArticle(ctx, article)
}

// UpdateArticle overwrites the article stored under its natural key
func (d *DynamoDBStorage) UpdateArticle(ctx context.Context, article *models.Article) error {
	return d.putArticle(ctx, article)
}

func (d *DynamoDBStorage) putArticle(ctx context.Context, article *models.Article) error {
	article.UpdatedAt = time.Now().UTC()
	item, err := dynamodbattribute.MarshalMap(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article %d: %w", article.ID, err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.articlesTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store article %d: %w", article.ID, err)
	}
	return nil
}

// scanArticles reads the whole articles table ordered by id
func (d *DynamoDBStorage) scanArticles(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	var pageErr error
	err := d.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.articlesTable),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var batch []models.Article
		if pageErr = dynamodbattribute.UnmarshalListOfMaps(page.Items, &batch); pageErr != nil {
			return false
		}
		articles = append(articles, batch...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan articles: %w", err)
	}
	if pageErr != nil {
		return nil, fmt.Errorf("failed to unmarshal articles: %w", pageErr)
	}

	sort.Slice(articles, func(i, j int) bool { return articles[i].ID < articles[j].ID })
	return articles, nil
}

// ListArticleIDs returns all article ids in ascending order
func (d *DynamoDBStorage) ListArticleIDs(ctx context.Context) ([]int64, error) {
	articles, err := d.scanArticles(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// DeleteArticles removes the given articles and resets the id counter once the table is empty
func (d *DynamoDBStorage) DeleteArticles(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	articles, err := d.scanArticles(ctx)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, a := range articles {
		if _, ok := wanted[a.ID]; !ok {
			continue
		}
		_, err := d.client.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.articlesTable),
			Key: map[string]*dynamodb.AttributeValue{
				"author_id": {N: aws.String(strconv.FormatInt(a.AuthorID, 10))},
				"title":     {S: aws.String(a.Title)},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete article %d: %w", a.ID, err)
		}
		deleted++
	}

	if int(deleted) == len(articles) {
		_, err := d.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(d.countersTable),
			Key:              map[string]*dynamodb.AttributeValue{"name": {S: aws.String("articles")}},
			UpdateExpression: aws.String("SET seq = :zero"),
			ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
				":zero": {N: aws.String("0")},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to reset article counter: %w", err)
		}
	}
	return deleted, nil
}

// GetArticles retrieves articles from DynamoDB with pagination.
// DynamoDB has no offsets, so the table is scanned and sliced.
func (d *DynamoDBStorage) GetArticles(ctx context.Context, limit int, offset int) ([]models.Article, error) {
	articles, err := d.scanArticles(ctx)
	if err != nil {
		return nil, err
	}
	if offset >= len(articles) {
		return []models.Article{}, nil
	}
	articles = articles[offset:]
	if limit > 0 && limit < len(articles) {
		articles = articles[:limit]
	}
	return articles, nil
}

// GetArticleByID retrieves a specific article by ID
func (d *DynamoDBStorage) GetArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	result, err := d.client.ScanWithContext(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(d.articlesTable),
		FilterExpression:         aws.String("#id = :id"),
		ExpressionAttributeNames: map[string]*string{"#id": aws.String("id")},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":id": {N: aws.String(strconv.FormatInt(id, 10))},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get article %d: %w", id, err)
	}
	if len(result.Items) == 0 {
		return nil, nil // Article not found
	}

	var article models.Article
	if err := dynamodbattribute.UnmarshalMap(result.Items[0], &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article: %w", err)
	}
	return &article, nil
}

// UpdateImportStatus updates the import status
func (d *DynamoDBStorage) UpdateImportStatus(ctx context.Context, status models.ImportStatus) error {
	item, err := dynamodbattribute.MarshalMap(status)
	if err != nil {
		return fmt.Errorf("failed to marshal import status: %w", err)
	}

	// Add a fixed key for the status record
	item["id"] = &dynamodb.AttributeValue{S: aws.String(importStatusKey)}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.statusTable),
		Item:      item,
	})
	return err
}

// GetImportStatus retrieves the current import status
func (d *DynamoDBStorage) GetImportStatus(ctx context.Context) (*models.ImportStatus, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.statusTable),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(importStatusKey)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get import status: %w", err)
	}

	if result.Item == nil {
		return &models.ImportStatus{Status: models.StatusNeverRun}, nil
	}

	var status models.ImportStatus
	if err := dynamodbattribute.UnmarshalMap(result.Item, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal import status: %w", err)
	}
	return &status, nil
}

// Ping checks the authors table is reachable
func (d *DynamoDBStorage) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.authorsTable),
	})
	return err
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}
