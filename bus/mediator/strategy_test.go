package mediator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// scriptedHandler — обработчик уведомления с настраиваемым поведением.
type scriptedHandler struct {
	mediator.HandlerMarker

	name    string
	rec     *recorder
	err     error
	delay   time.Duration
	panics  bool
	release <-chan struct{}
	done    *atomic.Int32
}

func (h *scriptedHandler) Handle(ctx context.Context, _ event) error {
	if h.release != nil {
		<-h.release
	}
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	if h.rec != nil {
		h.rec.add(h.name)
	}
	if h.done != nil {
		h.done.Add(1)
	}
	if h.panics {
		panic("сбой " + h.name)
	}
	return h.err
}

func invokers(t *testing.T, handlers ...*scriptedHandler) []*mediator.NotificationInvoker {
	t.Helper()

	result := make([]*mediator.NotificationInvoker, 0, len(handlers))
	for _, h := range handlers {
		inv, err := mediator.NewNotificationInvoker(h)
		require.NoError(t, err)
		result = append(result, inv)
	}
	return result
}

func TestStopOnErrorStrategy(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	handlers := invokers(t,
		&scriptedHandler{name: "ok", rec: rec},
		&scriptedHandler{name: "throws", rec: rec, err: errBoom},
		&scriptedHandler{name: "ok2", rec: rec},
	)

	err := mediator.StopOnErrorStrategy{}.Publish(context.Background(), event{}, handlers)

	require.Error(t, err)
	assert.Same(t, errBoom, err, "Ошибка должна возвращаться без обертки")
	assert.Equal(t, []string{"ok", "throws"}, rec.list(), "Обработчики после ошибки не должны вызываться")
}

func TestContinueOnErrorStrategy(t *testing.T) {
	t.Parallel()

	t.Run("все обработчики выполняются", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		handlers := invokers(t,
			&scriptedHandler{name: "ok", rec: rec},
			&scriptedHandler{name: "throws", rec: rec, err: errBoom},
			&scriptedHandler{name: "ok2", rec: rec},
		)

		err := mediator.ContinueOnErrorStrategy{}.Publish(context.Background(), event{}, handlers)

		require.Error(t, err)
		assert.Equal(t, []string{"ok", "throws", "ok2"}, rec.list())

		var agg *mediator.AggregateError
		require.True(t, errors.As(err, &agg))
		require.Len(t, agg.Errors, 1)
		assert.Same(t, errBoom, agg.Errors[0])
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("без ошибок возвращается nil", func(t *testing.T) {
		t.Parallel()

		handlers := invokers(t, &scriptedHandler{name: "ok"}, &scriptedHandler{name: "ok2"})
		assert.NoError(t, mediator.ContinueOnErrorStrategy{}.Publish(context.Background(), event{}, handlers))
	})
}

func TestParallelWaitAllStrategy(t *testing.T) {
	t.Parallel()

	t.Run("ожидает самый медленный обработчик", func(t *testing.T) {
		t.Parallel()

		var done atomic.Int32
		handlers := invokers(t,
			&scriptedHandler{name: "fast", delay: 5 * time.Millisecond, done: &done},
			&scriptedHandler{name: "slow", delay: 60 * time.Millisecond, done: &done},
			&scriptedHandler{name: "medium", delay: 20 * time.Millisecond, done: &done},
		)

		start := time.Now()
		err := mediator.ParallelWaitAllStrategy{}.Publish(context.Background(), event{}, handlers)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, int32(3), done.Load(), "Publish не должен возвращаться до завершения всех обработчиков")
		assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	})

	t.Run("возвращает ошибку после завершения всех", func(t *testing.T) {
		t.Parallel()

		var done atomic.Int32
		handlers := invokers(t,
			&scriptedHandler{name: "throws", err: errBoom, done: &done},
			&scriptedHandler{name: "slow", delay: 30 * time.Millisecond, done: &done},
		)

		err := mediator.ParallelWaitAllStrategy{}.Publish(context.Background(), event{}, handlers)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, int32(2), done.Load())
	})

	t.Run("паника превращается в ошибку", func(t *testing.T) {
		t.Parallel()

		handlers := invokers(t, &scriptedHandler{name: "panics", panics: true})

		err := mediator.ParallelWaitAllStrategy{}.Publish(context.Background(), event{}, handlers)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "паника")
		assert.Contains(t, err.Error(), "сбой panics")
	})
}

func TestParallelNoWaitStrategy(t *testing.T) {
	t.Parallel()

	t.Run("возвращается сразу, ошибки уходят в ErrorHandler", func(t *testing.T) {
		t.Parallel()

		var (
			mu   sync.Mutex
			seen []error
		)
		strategy := mediator.NewParallelNoWaitStrategy(func(err error, n mediator.Notification) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, err)
			assert.Equal(t, event{ID: "1"}, n)
		})

		release := make(chan struct{})
		var done atomic.Int32
		handlers := invokers(t,
			&scriptedHandler{name: "ok", release: release, done: &done},
			&scriptedHandler{name: "throws", release: release, err: errBoom, done: &done},
			&scriptedHandler{name: "panics", release: release, panics: true, done: &done},
		)

		ctx, cancel := context.WithCancel(context.Background())
		err := strategy.Publish(ctx, event{ID: "1"}, handlers)
		cancel()

		require.NoError(t, err, "Ошибки обработчиков не должны возвращаться вызывающей стороне")
		assert.Equal(t, int32(0), done.Load(), "Publish не должен ждать обработчики")

		close(release)
		require.NoError(t, strategy.Shutdown(context.Background()))
		assert.Equal(t, int32(3), done.Load())

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, seen, 2)
		assert.True(t, errors.Is(seen[0], errBoom) || errors.Is(seen[1], errBoom))
	})

	t.Run("Shutdown прерывается по контексту", func(t *testing.T) {
		t.Parallel()

		strategy := mediator.NewParallelNoWaitStrategy(nil)
		release := make(chan struct{})
		defer close(release)

		require.NoError(t, strategy.Publish(context.Background(), event{}, invokers(t, &scriptedHandler{release: release})))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, strategy.Shutdown(ctx), context.DeadlineExceeded)
	})

	t.Run("после Shutdown публикации отклоняются", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		strategy := mediator.NewParallelNoWaitStrategy(nil)
		require.NoError(t, strategy.Shutdown(context.Background()))

		err := strategy.Publish(context.Background(), event{}, invokers(t, &scriptedHandler{name: "late", rec: rec}))

		assert.ErrorIs(t, err, mediator.ErrStrategyStopped)
		require.NoError(t, strategy.Shutdown(context.Background()))
		assert.Empty(t, rec.list())
	})

	t.Run("Shutdown дожидается всех принятых публикаций", func(t *testing.T) {
		t.Parallel()

		var done, accepted atomic.Int32
		strategy := mediator.NewParallelNoWaitStrategy(nil)
		handlers := invokers(t, &scriptedHandler{name: "h", delay: time.Millisecond, done: &done})

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					err := strategy.Publish(context.Background(), event{}, handlers)
					if err == nil {
						accepted.Add(1)
						continue
					}
					assert.ErrorIs(t, err, mediator.ErrStrategyStopped)
					return
				}
			}()
		}

		time.Sleep(5 * time.Millisecond)
		require.NoError(t, strategy.Shutdown(context.Background()))
		wg.Wait()

		assert.Equal(t, accepted.Load(), done.Load(), "Каждая принятая публикация должна завершиться до возврата из Shutdown")
	})
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		want any
	}{
		{"", mediator.StopOnErrorStrategy{}},
		{mediator.StopOnError, mediator.StopOnErrorStrategy{}},
		{mediator.ContinueOnError, mediator.ContinueOnErrorStrategy{}},
		{mediator.ParallelWaitAll, mediator.ParallelWaitAllStrategy{}},
	}
	for _, tc := range testCases {
		s, err := mediator.ParseStrategy(tc.name)
		require.NoError(t, err)
		assert.Equal(t, tc.want, s)
	}

	s, err := mediator.ParseStrategy(mediator.ParallelNoWait)
	require.NoError(t, err)
	assert.IsType(t, &mediator.ParallelNoWaitStrategy{}, s)

	_, err = mediator.ParseStrategy("round-robin")
	assert.Error(t, err)

	assert.Len(t, mediator.StrategyNames(), 4)
}
