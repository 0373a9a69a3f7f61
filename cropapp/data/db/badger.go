package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const farmerKeyPrefix = "farmer:"

// BadgerStore 내장 BadgerDB 저장소
//
// 전화번호를 키로 JSON 문서를 저장한다.
type BadgerStore struct {
	db *badger.DB
}

// NewBadger path에 BadgerDB 열기, 빈 경로면 메모리 모드
func NewBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("Fail to open badger db %s: %w", path, err)
	}

	return &BadgerStore{db: db}, nil
}

func farmerKey(phone string) []byte {
	return []byte(farmerKeyPrefix + phone)
}

// FindByPhone 전화번호로 조회
func (s *BadgerStore) FindByPhone(ctx context.Context, phone string) (*Farmer, error) {
	var f Farmer

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(farmerKey(phone))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &f)
		})
	})
	if err != nil {
		return nil, err
	}

	return &f, nil
}

// Insert 저장, 같은 전화번호의 문서는 덮어씀
func (s *BadgerStore) Insert(ctx context.Context, f Farmer) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("Fail to marshal farmer: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(farmerKey(f.Phone), b)
	})
}

func (s *BadgerStore) Destroy() error {
	return s.db.Close()
}

func (s *BadgerStore) Name() string {
	return DriverBadger
}
