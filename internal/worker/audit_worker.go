package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/authkit/auth-service/internal/events"
	"github.com/authkit/auth-service/internal/observability"
)

const (
	defaultAuditBufferSize    = 1024
	defaultAuditRecordTimeout = 2 * time.Second
)

// AuditRecorder persists a single auth event.
type AuditRecorder interface {
	Record(ctx context.Context, event events.Event) error
}

// AuditWorkerConfig tunes the audit queue.
type AuditWorkerConfig struct {
	BufferSize    int
	RecordTimeout time.Duration
}

// AuditWorker moves auth events off the request path. Publishers only enqueue;
// a single goroutine drains the queue into the recorder. When the queue is full
// the event is dropped and counted.
type AuditWorker struct {
	sink    AuditRecorder
	metrics *observability.Metrics
	logger  *zap.Logger
	timeout time.Duration

	queue chan events.Event
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// StartAuditWorker subscribes the worker to every auth event and starts draining.
// It returns nil when there is no dispatcher to subscribe to.
func StartAuditWorker(dispatcher events.Dispatcher, sink AuditRecorder, metrics *observability.Metrics, logger *zap.Logger, cfg AuditWorkerConfig) *AuditWorker {
	if dispatcher == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultAuditBufferSize
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = defaultAuditRecordTimeout
	}

	w := &AuditWorker{
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		timeout: cfg.RecordTimeout,
		queue:   make(chan events.Event, cfg.BufferSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	for _, eventType := range events.AllEventTypes() {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			w.Enqueue(event)
			return nil
		})
	}

	go w.run()
	return w
}

// Enqueue hands an event to the worker without blocking. It reports whether
// the event was accepted.
func (w *AuditWorker) Enqueue(event events.Event) bool {
	if w == nil {
		return false
	}
	w.metrics.RecordEvent(string(event.Type))

	select {
	case <-w.stop:
		w.metrics.RecordDroppedEvent(string(event.Type))
		return false
	default:
	}

	select {
	case w.queue <- event:
		return true
	default:
		w.metrics.RecordDroppedEvent(string(event.Type))
		w.logger.Warn("audit queue full; dropping event", zap.String("type", string(event.Type)))
		return false
	}
}

// Stop ends the drain loop after flushing what is already queued, or when ctx is done.
func (w *AuditWorker) Stop(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AuditWorker) run() {
	defer close(w.done)
	for {
		select {
		case event := <-w.queue:
			w.record(event)
		case <-w.stop:
			for {
				select {
				case event := <-w.queue:
					w.record(event)
				default:
					return
				}
			}
		}
	}
}

func (w *AuditWorker) record(event events.Event) {
	if w.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.sink.Record(ctx, event); err != nil {
		w.logger.Warn("recording audit event failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
