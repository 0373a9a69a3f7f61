package db

import (
	"context"
	"sync"
)

// MemoryStore 프로세스 메모리 저장소, 개발/테스트 용
type MemoryStore struct {
	mu      sync.RWMutex
	farmers []Farmer
}

// NewMemory 빈 메모리 저장소 생성
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// FindByPhone 먼저 저장된 항목 반환
func (s *MemoryStore) FindByPhone(ctx context.Context, phone string) (*Farmer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.farmers {
		if f.Phone == phone {
			found := f
			return &found, nil
		}
	}

	return nil, ErrNotFound
}

// Insert 항목 추가
func (s *MemoryStore) Insert(ctx context.Context, f Farmer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.farmers = append(s.farmers, f)
	return nil
}

// Len 저장된 항목 수
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.farmers)
}

func (s *MemoryStore) Destroy() error {
	return nil
}

func (s *MemoryStore) Name() string {
	return DriverMemory
}
