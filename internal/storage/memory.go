package storage

import (
	"sync"
	"time"
)

type memoryStorage struct {
	mu      sync.RWMutex
	records []Record
	nextID  int64
}

func NewMemoryStorage() Storage {
	return &memoryStorage{nextID: 1}
}

func (s *memoryStorage) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	rec.Files = append([]string(nil), rec.Files...)
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryStorage) Latest(limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	result := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.records[i])
	}
	return result, nil
}

func (s *memoryStorage) Cleanup(olderThan time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, rec := range s.records {
		if !rec.Timestamp.Before(olderThan) {
			kept = append(kept, rec)
		}
	}
	// обнуляем хвост чтобы не держать ссылки на удалённые записи
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = Record{}
	}
	s.records = kept
	return nil
}

func (s *memoryStorage) Close() error {
	return nil
}
