package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// Publisher — часть медиатора, которая нужна ретранслятору.
type Publisher interface {
	Publish(ctx context.Context, notification mediator.Notification) error
}

// Retransmitter — фоновый процесс, который публикует сохраненные уведомления
// через медиатор. Повторная публикация помечается в контексте, поэтому
// Behavior пропускает ее к обработчикам.
type Retransmitter struct {
	behavior  *Behavior
	publisher Publisher
	interval  time.Duration
	limit     int
	logger    *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewRetransmitter создает новый экземпляр Retransmitter.
func NewRetransmitter(behavior *Behavior, publisher Publisher, opts ...RetransmitterOption) *Retransmitter {
	r := &Retransmitter{
		behavior:  behavior,
		publisher: publisher,
		done:      make(chan struct{}),
		interval:  5 * time.Second,
		limit:     100,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start запускает фоновый процесс. Процесс завершается по Stop или отмене контекста.
func (r *Retransmitter) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.InfoContext(ctx, "ретранслятор outbox запущен", slog.Duration("interval", r.interval))
		for {
			select {
			case <-ticker.C:
				if _, err := r.ProcessBatch(ctx); err != nil {
					r.logger.ErrorContext(ctx, "ошибка при обработке пакета outbox", slog.Any("error", err))
				}
			case <-ctx.Done():
				r.logger.InfoContext(ctx, "ретранслятор outbox остановлен по контексту")
				return
			case <-r.done:
				r.logger.InfoContext(ctx, "ретранслятор outbox остановлен")
				return
			}
		}
	}()
}

// ProcessBatch выполняет один цикл выборки и публикации и возвращает число
// опубликованных сообщений. Сообщения, которые не удалось восстановить или
// опубликовать, остаются в статусе PENDING до следующего цикла.
func (r *Retransmitter) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := r.behavior.storage.Fetch(ctx, r.limit)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	r.logger.DebugContext(ctx, "извлечены сообщения outbox", slog.Int("count", len(messages)))

	processedIDs := make([]uuid.UUID, 0, len(messages))
	for _, msg := range messages {
		notification, err := r.behavior.decode(msg)
		if err != nil {
			r.logger.ErrorContext(ctx, "ошибка восстановления сообщения outbox",
				slog.String("message_id", msg.ID.String()), slog.Any("error", err))
			continue
		}

		if md, ok := notification.(mediator.Metadatable); ok && md.Metadata() != nil {
			for k, v := range msg.Metadata {
				md.Metadata()[k] = v
			}
		}

		pubCtx := r.behavior.propagator.Extract(withReplay(ctx), propagation.MapCarrier(msg.Metadata))
		if err := r.publisher.Publish(pubCtx, notification); err != nil {
			r.logger.ErrorContext(ctx, "ошибка публикации сообщения outbox",
				slog.String("message_id", msg.ID.String()), slog.Any("error", err))
			continue
		}

		processedIDs = append(processedIDs, msg.ID)
	}

	if len(processedIDs) > 0 {
		if err := r.behavior.storage.MarkProcessed(ctx, processedIDs...); err != nil {
			return 0, err
		}
		r.logger.InfoContext(ctx, "опубликованы сообщения outbox", slog.Int("count", len(processedIDs)))
	}

	return len(processedIDs), nil
}

// Stop останавливает фоновый процесс и дожидается его завершения.
func (r *Retransmitter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}
