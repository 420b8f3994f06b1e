package storage

import "time"

// Record запись истории об одной сборке
type Record struct {
	ID          int64         `json:"id"`
	Kind        string        `json:"kind"` // js или css
	Environment string        `json:"environment"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Filename    string        `json:"filename,omitempty"`
	State       string        `json:"state"`
	Hit         bool          `json:"hit"`
	Files       []string      `json:"files"`
	Swept       int           `json:"swept"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Storage хранит историю сборок
type Storage interface {
	// Save добавляет запись, ID назначается хранилищем
	Save(rec Record) error
	// Latest возвращает последние limit записей, новые первыми
	Latest(limit int) ([]Record, error)
	// Cleanup удаляет записи старше olderThan
	Cleanup(olderThan time.Time) error
	Close() error
}
