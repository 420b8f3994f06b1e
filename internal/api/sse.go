package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pv/assetcache/internal/logger"
	"github.com/pv/assetcache/internal/storage"
)

// EventHub рассылает события сборок SSE и WebSocket клиентам
type EventHub struct {
	mu      sync.RWMutex
	clients map[*hubClient]bool
}

type hubClient struct {
	kind   string // если пусто - получает все события
	events chan StreamEvent
	done   chan struct{}
}

// StreamEvent представляет событие для отправки клиенту
type StreamEvent struct {
	Type      string      `json:"type"` // "connected", "build"
	Kind      string      `json:"kind,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEventHub создаёт новый hub
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*hubClient]bool),
	}
}

// AddClient добавляет нового клиента
func (h *EventHub) AddClient(kind string) *hubClient {
	client := &hubClient{
		kind:   kind,
		events: make(chan StreamEvent, 10),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	logger.Debug("Stream client connected", "kind", kind, "total_clients", total)
	return client
}

// RemoveClient удаляет клиента
func (h *EventHub) RemoveClient(client *hubClient) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	close(client.done)
	logger.Debug("Stream client disconnected", "kind", client.kind, "total_clients", total)
}

// Broadcast отправляет событие всем подходящим клиентам
func (h *EventHub) Broadcast(event StreamEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.kind == "" || event.Kind == "" || client.kind == event.Kind {
			select {
			case client.events <- event:
			default:
				// Канал переполнен, пропускаем событие
				logger.Warn("Stream client event buffer full, dropping event", "kind", client.kind)
			}
		}
	}
}

// BroadcastBuild отправляет запись о сборке
func (h *EventHub) BroadcastBuild(rec storage.Record) {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	h.Broadcast(StreamEvent{
		Type:      "build",
		Kind:      rec.Kind,
		Data:      rec,
		Timestamp: ts,
	})
}

// ClientCount возвращает количество подключённых клиентов
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Handlers) connectedEvent() StreamEvent {
	return StreamEvent{
		Type:      "connected",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"environment": h.assets.Environment(),
			"minify":      h.assets.ShouldMinify(),
		},
	}
}

// HandleSSE обрабатывает SSE подключение
// GET /api/events?kind=js (опционально)
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	kind := r.URL.Query().Get("kind")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Для nginx

	client := h.hub.AddClient(kind)
	defer h.hub.RemoveClient(client)

	h.sendSSEEvent(w, h.connectedEvent())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case event := <-client.events:
			h.sendSSEEvent(w, event)
			flusher.Flush()
		}
	}
}

// sendSSEEvent отправляет одно SSE событие
func (h *Handlers) sendSSEEvent(w http.ResponseWriter, event StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal SSE event", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
