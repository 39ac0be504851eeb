// Package bench выполняет нагрузочный прогон медиатора на синтетическом
// сценарии оформления заказа: один запрос и одно уведомление на итерацию.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/x-research-team/dtx-mediator/bus/behavior"
	"github.com/x-research-team/dtx-mediator/bus/dependency"
	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// ErrInjected — искусственная ошибка обработчика.
var ErrInjected = errors.New("искусственный сбой обработчика")

// Options описывает прогон.
type Options struct {
	Count       int
	Strategy    string
	Delay       time.Duration
	FailureRate float64
	RateLimit   float64
	Logger      *slog.Logger
}

// Report содержит итоги прогона.
type Report struct {
	Strategy      string
	Requests      int
	Notifications int
	HandlerCalls  int64
	Errors        int64
	Duration      time.Duration
}

// placeOrder — запрос на оформление заказа.
type placeOrder struct {
	Customer string `validate:"required"`
	Amount   int    `validate:"gt=0"`
}

// orderPlaced — уведомление об оформленном заказе.
type orderPlaced struct {
	ID       string
	Customer string
	Amount   int
}

type placeOrderHandler struct {
	mediator.HandlerMarker
}

func (placeOrderHandler) Handle(context.Context, placeOrder) (string, error) {
	return uuid.NewString(), nil
}

// worker — общая часть обработчиков уведомления.
type worker struct {
	mediator.HandlerMarker

	delay       time.Duration
	failureRate float64
	calls       *atomic.Int64
}

func (w *worker) Handle(ctx context.Context, _ orderPlaced) error {
	w.calls.Add(1)
	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if w.failureRate > 0 && rand.Float64() < w.failureRate {
		return ErrInjected
	}
	return nil
}

type (
	inventoryHandler struct{ *worker }
	emailHandler     struct{ *worker }
	analyticsHandler struct{ *worker }
)

// Run выполняет прогон.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("количество итераций должно быть положительным")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var calls, failures atomic.Int64
	strategy, err := newStrategy(opts.Strategy, &failures)
	if err != nil {
		return nil, err
	}

	w := &worker{delay: opts.Delay, failureRate: opts.FailureRate, calls: &calls}
	c := dependency.New()
	regs := []error{
		dependency.ProvideValue(c, placeOrderHandler{}),
		dependency.ProvideValue(c, inventoryHandler{w}),
		dependency.ProvideValue(c, emailHandler{w}),
		dependency.ProvideValue(c, analyticsHandler{w}),
		dependency.ProvideValue(c, behavior.NewRecovery(behavior.WithLogger(logger))),
		dependency.ProvideValue(c, behavior.NewValidation(behavior.WithKinds(mediator.KindRequest))),
	}
	if opts.RateLimit > 0 {
		regs = append(regs, dependency.ProvideValue(c, behavior.NewRateLimit(opts.RateLimit, 1)))
	}
	if err := errors.Join(regs...); err != nil {
		return nil, err
	}

	// Отправки журналируются только на уровне debug, иначе вывод забьет отчет.
	m, err := mediator.New(c,
		mediator.WithLogger(debugOnly(logger)),
		mediator.WithPublishStrategy(strategy),
	)
	if err != nil {
		return nil, err
	}

	report := &Report{Strategy: opts.Strategy}
	start := time.Now()
	for i := range opts.Count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := placeOrder{Customer: fmt.Sprintf("customer-%d", i%10), Amount: i + 1}
		id, err := mediator.Send[string](ctx, m, req)
		report.Requests++
		if err != nil {
			return nil, fmt.Errorf("запрос %d завершился ошибкой: %w", i, err)
		}

		if err := m.Publish(ctx, orderPlaced{ID: id, Customer: req.Customer, Amount: req.Amount}); err != nil {
			var agg *mediator.AggregateError
			if errors.As(err, &agg) {
				failures.Add(int64(len(agg.Errors)))
			} else {
				failures.Add(1)
			}
		}
		report.Notifications++
	}

	if err := m.Shutdown(ctx); err != nil {
		return nil, fmt.Errorf("не удалось дождаться обработчиков: %w", err)
	}

	report.Duration = time.Since(start)
	report.HandlerCalls = calls.Load()
	report.Errors = failures.Load()

	logger.DebugContext(ctx, "прогон завершен",
		slog.String("strategy", report.Strategy),
		slog.Int64("handler_calls", report.HandlerCalls),
		slog.Int64("errors", report.Errors),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

func newStrategy(name string, failures *atomic.Int64) (mediator.PublishStrategy, error) {
	if name == mediator.ParallelNoWait {
		return mediator.NewParallelNoWaitStrategy(func(error, mediator.Notification) {
			failures.Add(1)
		}), nil
	}
	return mediator.ParseStrategy(name)
}

func debugOnly(logger *slog.Logger) *slog.Logger {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return nil
	}
	return logger
}
