package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pv/assetcache/internal/assets"
	"github.com/pv/assetcache/internal/journal"
	"github.com/pv/assetcache/internal/logger"
	"github.com/pv/assetcache/internal/storage"
)

// JournalReader читает события из журнала сборок
type JournalReader interface {
	Query(ctx context.Context, params journal.QueryParams) (*journal.EventsResponse, error)
}

// JournalWriter принимает события для записи в журнал
type JournalWriter interface {
	Enqueue(ev journal.BuildEvent) bool
}

type Handlers struct {
	assets    *assets.Assets
	storage   storage.Storage
	hub       *EventHub
	static    *StaticHandler
	journalR  JournalReader
	journalW  JournalWriter
	startedAt time.Time
}

func NewHandlers(a *assets.Assets, store storage.Storage, publicPath string) *Handlers {
	return &Handlers{
		assets:    a,
		storage:   store,
		hub:       NewEventHub(),
		static:    NewStaticHandler(publicPath),
		startedAt: time.Now(),
	}
}

// SetJournal подключает журнал ClickHouse (любой из аргументов может быть nil)
func (h *Handlers) SetJournal(r JournalReader, w JournalWriter) {
	h.journalR = r
	h.journalW = w
}

// GetEventHub возвращает hub уведомлений
func (h *Handlers) GetEventHub() *EventHub {
	return h.hub
}

// OnBuild сохраняет событие сборки в историю, журнал и рассылает клиентам
func (h *Handlers) OnBuild(ev assets.Event) {
	rec := recordFromEvent(ev)
	if h.storage != nil {
		if err := h.storage.Save(rec); err != nil {
			logger.Error("Failed to save build record", "kind", ev.Kind, "error", err)
		}
	}
	if h.journalW != nil {
		if !h.journalW.Enqueue(journalEventFromEvent(ev)) {
			logger.Warn("Journal queue full, dropping build event", "kind", ev.Kind)
		}
	}
	h.hub.BroadcastBuild(rec)
}

func recordFromEvent(ev assets.Event) storage.Record {
	rec := storage.Record{
		Kind:        string(ev.Kind),
		Environment: ev.Environment,
		Fingerprint: ev.Fingerprint,
		Filename:    ev.Filename,
		State:       ev.State,
		Hit:         ev.Hit,
		Files:       ev.Files,
		Swept:       len(ev.Swept),
		Duration:    ev.Duration,
		Timestamp:   ev.Time,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	return rec
}

func journalEventFromEvent(ev assets.Event) journal.BuildEvent {
	out := journal.BuildEvent{
		Timestamp:   ev.Time,
		Kind:        string(ev.Kind),
		Environment: ev.Environment,
		Fingerprint: ev.Fingerprint,
		Filename:    ev.Filename,
		State:       ev.State,
		Hit:         ev.Hit,
		Files:       ev.Files,
		Swept:       len(ev.Swept),
		DurationMs:  float64(ev.Duration.Microseconds()) / 1000,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// decodeJSONBody разбирает тело запроса в target.
// Возвращает false, если ответ с ошибкой уже записан.
func (h *Handlers) decodeJSONBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// requestRoot возвращает scheme://host текущего запроса
func requestRoot(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

// GetStatus возвращает состояние сервиса
// GET /api/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{
		"environment": h.assets.Environment(),
		"minify":      h.assets.ShouldMinify(),
		"journal":     h.journalR != nil,
		"clients":     h.hub.ClientCount(),
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
	})
}
