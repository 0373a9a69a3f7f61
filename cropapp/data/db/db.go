package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison-roh/crop-disease-classification/cropapp/constants"
)

const (
	DriverMongo  = "mongo"
	DriverBadger = "badger"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// ErrNotFound 해당 전화번호의 농민 정보 없음
var ErrNotFound = errors.New("Farmer not found")

// Farmer 농민 정보
type Farmer struct {
	ID       string    `json:"id" bson:"id,omitempty"`
	Name     string    `json:"name" bson:"name" validate:"required"`
	Phone    string    `json:"phone" bson:"phone" validate:"required"`
	Location string    `json:"location" bson:"location" validate:"required"`
	CreateAt time.Time `json:"createAt" bson:"createAt"`
}

// FarmerStore 농민 정보 저장소
//
// 전화번호 중복은 저장소가 아니라 호출자가 Insert 전에 확인한다.
type FarmerStore interface {
	FindByPhone(ctx context.Context, phone string) (*Farmer, error)
	Insert(ctx context.Context, f Farmer) error
	Destroy() error
	Name() string
}

// Config 저장소 설정
type Config struct {
	Driver string

	MongoURI      string
	MongoDatabase string
	Collection    string

	BadgerPath string

	MySQLDSN  string
	TableName string

	Timeout time.Duration
}

// New 드라이버에 맞는 저장소 생성
func New(ctx context.Context, cfg Config) (FarmerStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	var (
		store FarmerStore
		err   error
	)

	switch cfg.Driver {
	case DriverMongo, "":
		database := cfg.MongoDatabase
		if database == "" {
			database = constants.FarmersDatabase
		}
		collection := cfg.Collection
		if collection == "" {
			collection = constants.FarmersCollection
		}
		store, err = NewMongo(ctx, cfg.MongoURI, database, collection, cfg.Timeout)
	case DriverBadger:
		store, err = NewBadger(cfg.BadgerPath)
	case DriverMySQL:
		table := cfg.TableName
		if table == "" {
			table = constants.FarmersTable
		}
		store, err = NewMySQL(ctx, cfg.MySQLDSN, table)
	case DriverMemory:
		store = NewMemory()
	default:
		return nil, fmt.Errorf("Unsupported store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	return store, nil
}
