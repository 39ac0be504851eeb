package mediator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PublishStrategy определяет, как уведомление раздается обработчикам:
// последовательно или параллельно, и что происходит с ошибками.
type PublishStrategy interface {
	Publish(ctx context.Context, notification Notification, handlers []*NotificationInvoker) error
}

// Имена стратегий для конфигурации.
const (
	StopOnError     = "stop-on-error"
	ContinueOnError = "continue-on-error"
	ParallelNoWait  = "parallel-no-wait"
	ParallelWaitAll = "parallel-wait-all"
)

// ErrStrategyStopped возвращается при публикации через остановленную стратегию.
var ErrStrategyStopped = errors.New("стратегия публикации остановлена")

// ErrorHandler получает ошибки обработчиков, которые не видит вызывающая сторона.
type ErrorHandler func(err error, notification Notification)

// StopOnErrorStrategy вызывает обработчики по очереди и возвращает первую ошибку.
// Оставшиеся обработчики не вызываются.
type StopOnErrorStrategy struct{}

// Publish реализует интерфейс PublishStrategy.
func (StopOnErrorStrategy) Publish(ctx context.Context, notification Notification, handlers []*NotificationInvoker) error {
	for _, h := range handlers {
		if err := h.Invoke(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

// ContinueOnErrorStrategy вызывает все обработчики по очереди и возвращает
// собранные ошибки одной AggregateError.
type ContinueOnErrorStrategy struct{}

// Publish реализует интерфейс PublishStrategy.
func (ContinueOnErrorStrategy) Publish(ctx context.Context, notification Notification, handlers []*NotificationInvoker) error {
	var errs []error
	for _, h := range handlers {
		if err := h.Invoke(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ParallelNoWaitStrategy запускает каждый обработчик в отдельной горутине и
// возвращает управление сразу. Ошибки обработчиков вызывающая сторона не видит,
// они передаются только в ErrorHandler, если он задан.
// После Shutdown новые публикации отклоняются с ErrStrategyStopped.
type ParallelNoWaitStrategy struct {
	onError ErrorHandler
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewParallelNoWaitStrategy создает стратегию. onError может быть nil.
func NewParallelNoWaitStrategy(onError ErrorHandler) *ParallelNoWaitStrategy {
	return &ParallelNoWaitStrategy{onError: onError}
}

// Publish реализует интерфейс PublishStrategy.
func (s *ParallelNoWaitStrategy) Publish(ctx context.Context, notification Notification, handlers []*NotificationInvoker) error {
	// Обработчики переживают вызов Publish, поэтому отмена контекста вызывающего их не касается.
	detached := context.WithoutCancel(ctx)

	// wg.Add не должен выполняться одновременно с wg.Wait в Shutdown.
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStrategyStopped
	}
	s.wg.Add(len(handlers))
	s.mu.Unlock()

	for _, h := range handlers {
		go func() {
			defer s.wg.Done()
			if err := invokeSafely(detached, h, notification); err != nil && s.onError != nil {
				s.onError(err, notification)
			}
		}()
	}
	return nil
}

// Shutdown запрещает новые публикации и дожидается завершения запущенных
// обработчиков или отмены контекста. Повторный вызов снова ждет те же обработчики.
func (s *ParallelNoWaitStrategy) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParallelWaitAllStrategy запускает все обработчики параллельно и ждет их завершения.
// Если хотя бы один завершился ошибкой, возвращается первая из них.
type ParallelWaitAllStrategy struct{}

// Publish реализует интерфейс PublishStrategy.
func (ParallelWaitAllStrategy) Publish(ctx context.Context, notification Notification, handlers []*NotificationInvoker) error {
	var g errgroup.Group
	for _, h := range handlers {
		g.Go(func() error {
			return invokeSafely(ctx, h, notification)
		})
	}
	return g.Wait()
}

// invokeSafely превращает панику обработчика в ошибку: в отдельной горутине
// паника иначе завершила бы процесс.
func invokeSafely(ctx context.Context, h *NotificationInvoker, notification Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("паника в обработчике '%s': %v", typeName(h.HandlerType()), r)
		}
	}()
	return h.Invoke(ctx, notification)
}

// ParseStrategy возвращает стратегию по имени из конфигурации.
func ParseStrategy(name string) (PublishStrategy, error) {
	switch name {
	case StopOnError, "":
		return StopOnErrorStrategy{}, nil
	case ContinueOnError:
		return ContinueOnErrorStrategy{}, nil
	case ParallelNoWait:
		return NewParallelNoWaitStrategy(nil), nil
	case ParallelWaitAll:
		return ParallelWaitAllStrategy{}, nil
	default:
		return nil, fmt.Errorf("неизвестная стратегия публикации '%s'", name)
	}
}

// StrategyNames возвращает имена всех встроенных стратегий.
func StrategyNames() []string {
	return []string{StopOnError, ContinueOnError, ParallelNoWait, ParallelWaitAll}
}
