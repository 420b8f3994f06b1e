package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultBatchSize     = 100
	queueSize            = 1024
)

// BatchInserter принимает пачки событий (реализуется *Client)
type BatchInserter interface {
	ID() string
	InsertBatch(ctx context.Context, events []BuildEvent) error
}

// Writer копит события в очереди и сбрасывает их в журнал пачками,
// чтобы сборка не ждала ClickHouse
type Writer struct {
	sink      BatchInserter
	interval  time.Duration
	batchSize int
	events    chan BuildEvent
	dropped   atomic.Uint64
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter создаёт writer для журнала
func NewWriter(sink BatchInserter, interval time.Duration, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &Writer{
		sink:      sink,
		interval:  interval,
		batchSize: defaultBatchSize,
		events:    make(chan BuildEvent, queueSize),
		logger:    logger,
	}
}

// Enqueue ставит событие в очередь; при переполнении событие отбрасывается
func (w *Writer) Enqueue(ev BuildEvent) bool {
	select {
	case w.events <- ev:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Dropped возвращает число отброшенных событий
func (w *Writer) Dropped() uint64 {
	return w.dropped.Load()
}

// Start запускает фоновую запись
func (w *Writer) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(1)
	go w.loop()
}

// Stop останавливает запись, дописывая то, что уже в очереди
func (w *Writer) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Writer) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Debug("journal writer started", "id", w.sink.ID(), "interval", w.interval)

	batch := make([]BuildEvent, 0, w.batchSize)
	for {
		select {
		case <-w.ctx.Done():
			for {
				select {
				case ev := <-w.events:
					batch = append(batch, ev)
				default:
					w.flush(batch)
					w.logger.Debug("journal writer stopped", "id", w.sink.ID())
					return
				}
			}
		case ev := <-w.events:
			batch = append(batch, ev)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			w.flush(batch)
			batch = batch[:0]
		}
	}
}

func (w *Writer) flush(batch []BuildEvent) {
	if len(batch) == 0 {
		return
	}

	// контекст writer'а уже может быть отменён при остановке
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.sink.InsertBatch(ctx, batch); err != nil {
		w.logger.Error("failed to write journal", "id", w.sink.ID(), "count", len(batch), "error", err)
		return
	}
	w.logger.Debug("journal batch written", "id", w.sink.ID(), "count", len(batch))
}
