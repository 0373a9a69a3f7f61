package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore MongoDB 컬렉션 저장소
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongo MongoDB 연결 후 ping으로 확인
func NewMongo(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("Empty MongoDB URI")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("Fail to connect MongoDB: %w", err)
	}

	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("Fail to ping MongoDB: %w", err)
	}

	return &MongoStore{
		client:  client,
		coll:    client.Database(database).Collection(collection),
		timeout: timeout,
	}, nil
}

// FindByPhone 전화번호가 같은 첫 문서
func (s *MongoStore) FindByPhone(ctx context.Context, phone string) (*Farmer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var f Farmer
	err := s.coll.FindOne(ctx, bson.M{"phone": phone}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &f, nil
}

// Insert 문서 추가
func (s *MongoStore) Insert(ctx context.Context, f Farmer) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.InsertOne(ctx, f)
	return err
}

func (s *MongoStore) Destroy() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Name() string {
	return DriverMongo
}
