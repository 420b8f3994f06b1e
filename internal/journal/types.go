package journal

import (
	"time"
)

// BuildEvent одна строка журнала сборок
type BuildEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"` // js, css
	Environment string    `json:"environment"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	State       string    `json:"state"` // hit, persisted, failed, bypassed
	Hit         bool      `json:"hit"`
	Files       []string  `json:"files"`
	Swept       int       `json:"swept"`
	DurationMs  float64   `json:"durationMs"`
	Error       string    `json:"error,omitempty"`
}

// QueryParams параметры выборки событий
type QueryParams struct {
	From   time.Time // начало периода
	To     time.Time // конец периода
	Kind   string    // js или css, пусто = все
	State  string    // фильтр по состоянию
	Limit  int       // лимит записей
	Offset int       // смещение для пагинации
}

// JournalInfo информация о журнале для API
type JournalInfo struct {
	ID       string `json:"id"`       // уникальный ID (hash от URL)
	Name     string `json:"name"`     // человекочитаемое имя
	Database string `json:"database"` // база данных
	Table    string `json:"table"`    // таблица
	Status   string `json:"status"`   // connected, error
}

// EventsResponse ответ API со списком событий
type EventsResponse struct {
	Events []BuildEvent `json:"events"`
	Total  int          `json:"total"`  // общее количество (для пагинации)
	Offset int          `json:"offset"` // текущее смещение
	Limit  int          `json:"limit"`  // лимит
}
