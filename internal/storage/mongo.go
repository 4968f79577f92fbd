package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/ids"
)

const mongoTimeout = 10 * time.Second

// MongoStore implements domain.DocumentStore and domain.RevisionStore on
// MongoDB. Content is stored as JSON text so nested maps round-trip the
// same way they do in the SQL stores.
type MongoStore struct {
	client    *mongo.Client
	documents *mongo.Collection
	revisions *mongo.Collection
	limit     int
}

type mongoDocument struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Slug        string    `bson:"slug"`
	Status      string    `bson:"status"`
	ContentJSON string    `bson:"content_json"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type mongoRevision struct {
	ID          string    `bson:"_id"`
	DocumentID  string    `bson:"document_id"`
	Label       string    `bson:"label"`
	ContentJSON string    `bson:"content_json"`
	CreatedAt   time.Time `bson:"created_at"`
}

// OpenMongo connects to uri and uses database dbName. revisionLimit is the
// number of revisions kept per document (0 means DefaultRevisionLimit).
func OpenMongo(ctx context.Context, uri, dbName string, revisionLimit int) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if dbName == "" {
		dbName = "pagebuilder"
	}
	if revisionLimit <= 0 {
		revisionLimit = DefaultRevisionLimit
	}
	db := client.Database(dbName)
	s := &MongoStore{
		client:    client,
		documents: db.Collection("documents"),
		revisions: db.Collection("revisions"),
		limit:     revisionLimit,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := s.documents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create slug index: %w", err)
	}
	_, err = s.revisions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create revision index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), mongoTimeout)
}

func (s *MongoStore) CreateDocument(rec *domain.DocumentRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = domain.StatusDraft
	}
	md, err := toMongoDocument(rec)
	if err != nil {
		return err
	}
	ctx, cancel := opContext()
	defer cancel()
	if _, err := s.documents.InsertOne(ctx, md); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *MongoStore) GetDocument(id string) (*domain.DocumentRecord, error) {
	ctx, cancel := opContext()
	defer cancel()
	var md mongoDocument
	err := s.documents.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&md)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return fromMongoDocument(md)
}

func (s *MongoStore) ListDocuments() ([]domain.DocumentRecord, error) {
	ctx, cancel := opContext()
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.documents.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var mds []mongoDocument
	if err := cur.All(ctx, &mds); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]domain.DocumentRecord, 0, len(mds))
	for _, md := range mds {
		rec, err := fromMongoDocument(md)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *MongoStore) UpdateDocument(rec *domain.DocumentRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	md, err := toMongoDocument(rec)
	if err != nil {
		return err
	}
	ctx, cancel := opContext()
	defer cancel()
	res, err := s.documents.UpdateOne(ctx, bson.D{{Key: "_id", Value: rec.ID}}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: md.Name},
		{Key: "slug", Value: md.Slug},
		{Key: "status", Value: md.Status},
		{Key: "content_json", Value: md.ContentJSON},
		{Key: "updated_at", Value: md.UpdatedAt},
	}}})
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update document %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) DeleteDocument(id string) error {
	ctx, cancel := opContext()
	defer cancel()
	if _, err := s.revisions.DeleteMany(ctx, bson.D{{Key: "document_id", Value: id}}); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	res, err := s.documents.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete document %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) PushRevision(documentID, label string, content domain.Document) (*domain.Revision, error) {
	rev := &domain.Revision{
		ID:         ids.Plain(),
		DocumentID: documentID,
		Label:      label,
		Content:    content.Clone(),
		CreatedAt:  time.Now().UTC(),
	}
	mr, err := toMongoRevision(rev)
	if err != nil {
		return nil, err
	}
	ctx, cancel := opContext()
	defer cancel()
	if _, err := s.revisions.InsertOne(ctx, mr); err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}
	if err := s.pruneRevisions(ctx, documentID); err != nil {
		return nil, err
	}
	return rev, nil
}

func (s *MongoStore) pruneRevisions(ctx context.Context, documentID string) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(s.limit)).
		SetProjection(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.revisions.Find(ctx, bson.D{{Key: "document_id", Value: documentID}}, opts)
	if err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}
	var stale []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &stale); err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	staleIDs := make(bson.A, len(stale))
	for i, r := range stale {
		staleIDs[i] = r.ID
	}
	_, err = s.revisions.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: staleIDs}}}})
	if err != nil {
		return fmt.Errorf("prune revisions: %w", err)
	}
	return nil
}

func (s *MongoStore) ListRevisions(documentID string) ([]domain.Revision, error) {
	ctx, cancel := opContext()
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.revisions.Find(ctx, bson.D{{Key: "document_id", Value: documentID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	var mrs []mongoRevision
	if err := cur.All(ctx, &mrs); err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	out := make([]domain.Revision, 0, len(mrs))
	for _, mr := range mrs {
		rev, err := fromMongoRevision(mr)
		if err != nil {
			return nil, err
		}
		out = append(out, *rev)
	}
	return out, nil
}

func (s *MongoStore) GetRevision(id string) (*domain.Revision, error) {
	ctx, cancel := opContext()
	defer cancel()
	var mr mongoRevision
	err := s.revisions.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&mr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get revision %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	return fromMongoRevision(mr)
}

func (s *MongoStore) ClearRevisions(documentID string) error {
	ctx, cancel := opContext()
	defer cancel()
	_, err := s.revisions.DeleteMany(ctx, bson.D{{Key: "document_id", Value: documentID}})
	return err
}

func toMongoDocument(rec *domain.DocumentRecord) (mongoDocument, error) {
	content, err := encodeContent(rec.Content)
	if err != nil {
		return mongoDocument{}, err
	}
	return mongoDocument{
		ID:          rec.ID,
		Name:        rec.Name,
		Slug:        rec.Slug,
		Status:      string(rec.Status),
		ContentJSON: content,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

func fromMongoDocument(md mongoDocument) (*domain.DocumentRecord, error) {
	doc, err := decodeContent(md.ContentJSON)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", md.ID, err)
	}
	return &domain.DocumentRecord{
		ID:        md.ID,
		Name:      md.Name,
		Slug:      md.Slug,
		Status:    domain.DocumentStatus(md.Status),
		Content:   doc,
		CreatedAt: md.CreatedAt,
		UpdatedAt: md.UpdatedAt,
	}, nil
}

func toMongoRevision(rev *domain.Revision) (mongoRevision, error) {
	content, err := encodeContent(rev.Content)
	if err != nil {
		return mongoRevision{}, err
	}
	return mongoRevision{
		ID:          rev.ID,
		DocumentID:  rev.DocumentID,
		Label:       rev.Label,
		ContentJSON: content,
		CreatedAt:   rev.CreatedAt,
	}, nil
}

func fromMongoRevision(mr mongoRevision) (*domain.Revision, error) {
	doc, err := decodeContent(mr.ContentJSON)
	if err != nil {
		return nil, fmt.Errorf("revision %s: %w", mr.ID, err)
	}
	return &domain.Revision{
		ID:         mr.ID,
		DocumentID: mr.DocumentID,
		Label:      mr.Label,
		Content:    doc,
		CreatedAt:  mr.CreatedAt,
	}, nil
}
