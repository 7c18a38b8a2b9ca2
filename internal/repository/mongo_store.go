package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apgrhost/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "visitors"

type mongoVisitor struct {
	VisitID   string              `bson:"visit_id"`
	Record    *domain.VisitRecord `bson:"record"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

// mongoStore keeps one document per visitor, upserted by visit_id
type mongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to uri and ensures a unique index on visit_id
func NewMongoStore(ctx context.Context, uri, database string) (VisitorStore, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(database).Collection(mongoCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "visit_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create visit_id index: %w", err)
	}

	return &mongoStore{client: client, collection: collection}, nil
}

func (s *mongoStore) Lookup(ctx context.Context, key string) (*domain.VisitRecord, error) {
	var doc mongoVisitor
	err := s.collection.FindOne(ctx, bson.M{"visit_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, unavailable("lookup visitor", err)
	}
	return doc.Record, nil
}

func (s *mongoStore) Upsert(ctx context.Context, key string, record *domain.VisitRecord) error {
	if key == "" {
		return ErrEmptyKey
	}

	update := bson.M{"$set": mongoVisitor{
		VisitID:   key,
		Record:    record,
		UpdatedAt: time.Now().UTC(),
	}}

	_, err := s.collection.UpdateOne(ctx, bson.M{"visit_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return unavailable("upsert visitor", err)
	}
	return nil
}

func (s *mongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, unavailable("count visitors", err)
	}
	return n, nil
}

func (s *mongoStore) All(ctx context.Context) ([]*domain.VisitRecord, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, unavailable("list visitors", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoVisitor
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, unavailable("decode visitors", err)
	}

	records := make([]*domain.VisitRecord, 0, len(docs))
	for _, doc := range docs {
		if doc.Record != nil {
			records = append(records, doc.Record)
		}
	}
	return records, nil
}

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
