package mediator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-reflect"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/x-research-team/dtx-mediator/bus/mediator"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "messaging."
)

// Middleware оборачивает отправку целиком, снаружи pipeline-поведений.
// Встроенные middleware отвечают за журналирование, метрики и трассировку.
type Middleware interface {
	Wrap(next Next) Next
}

// MiddlewareFunc является адаптером, позволяющим использовать обычные функции как middleware.
type MiddlewareFunc func(next Next) Next

// Wrap реализует интерфейс Middleware.
func (f MiddlewareFunc) Wrap(next Next) Next {
	return f(next)
}

type dispatchIDKey struct{}

// DispatchIDFromContext возвращает идентификатор текущей отправки.
func DispatchIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(dispatchIDKey{}).(string)
	return id, ok
}

// dispatchIDMiddleware назначает каждой отправке уникальный идентификатор.
// Вложенные отправки из обработчиков получают собственный идентификатор.
func dispatchIDMiddleware() Middleware {
	return MiddlewareFunc(func(next Next) Next {
		return func(ctx context.Context, msg Message) (any, error) {
			return next(context.WithValue(ctx, dispatchIDKey{}, uuid.NewString()), msg)
		}
	})
}

// loggingMiddleware журналирует отправку и ее ошибки.
type loggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware создает новое middleware для логирования.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		return &noopMiddleware{}
	}
	return &loggingMiddleware{logger: logger}
}

// Wrap оборачивает отправку для добавления логирования.
func (m *loggingMiddleware) Wrap(next Next) Next {
	return func(ctx context.Context, msg Message) (result any, err error) {
		msgType, msgID := getMessageTypeAndID(msg)
		kind, _ := KindFromContext(ctx)
		dispatchID, _ := DispatchIDFromContext(ctx)
		m.logger.InfoContext(ctx, "отправка сообщения",
			slog.String("message_kind", kind.String()),
			slog.String("message_type", msgType),
			slog.String("message_id", msgID),
			slog.String("dispatch_id", dispatchID),
		)

		startTime := time.Now()
		defer func() {
			if err != nil {
				m.logger.ErrorContext(ctx, "ошибка обработки сообщения",
					slog.String("message_kind", kind.String()),
					slog.String("message_type", msgType),
					slog.String("message_id", msgID),
					slog.String("dispatch_id", dispatchID),
					slog.Any("error", err),
					slog.Duration("duration", time.Since(startTime)),
				)
			}
		}()

		return next(ctx, msg)
	}
}

// metricsMiddleware собирает метрики OpenTelemetry.
type metricsMiddleware struct {
	dispatchCounter     metric.Int64Counter
	processDurationHist metric.Float64Histogram
}

// NewMetricsMiddleware создает новое middleware для сбора метрик.
func NewMetricsMiddleware(provider metric.MeterProvider) (Middleware, error) {
	if provider == nil {
		return &noopMiddleware{}, nil
	}

	meter := provider.Meter(instrumentationName)

	dispatchCounter, err := meter.Int64Counter(
		metricKeyPrefix+"dispatch.count",
		metric.WithDescription("Количество отправленных сообщений"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать счетчик dispatch.count: %w", err)
	}

	processDurationHist, err := meter.Float64Histogram(
		metricKeyPrefix+"process.duration",
		metric.WithDescription("Длительность обработки сообщения"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать гистограмму process.duration: %w", err)
	}

	return &metricsMiddleware{
		dispatchCounter:     dispatchCounter,
		processDurationHist: processDurationHist,
	}, nil
}

// Wrap оборачивает отправку для сбора метрик.
func (m *metricsMiddleware) Wrap(next Next) Next {
	return func(ctx context.Context, msg Message) (any, error) {
		startTime := time.Now()
		result, err := next(ctx, msg)
		duration := float64(time.Since(startTime).Milliseconds())

		status := "success"
		if err != nil {
			status = "error"
		}
		msgType, _ := getMessageTypeAndID(msg)
		kind, _ := KindFromContext(ctx)
		attrs := metric.WithAttributes(
			attribute.String("message.type", msgType),
			attribute.String("message.kind", kind.String()),
			attribute.String("status", status),
		)

		m.dispatchCounter.Add(ctx, 1, attrs)
		m.processDurationHist.Record(ctx, duration, attrs)

		return result, err
	}
}

// tracingMiddleware создает спан на каждую отправку.
type tracingMiddleware struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracingMiddleware создает новое middleware для трассировки.
func NewTracingMiddleware(tp trace.TracerProvider, p propagation.TextMapPropagator) Middleware {
	if tp == nil {
		return &noopMiddleware{}
	}

	if p == nil {
		p = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}

	return &tracingMiddleware{
		tracer: tp.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		),
		propagator: p,
	}
}

// Wrap оборачивает отправку спаном. Если сообщение несет метаданные,
// из них извлекается родительский контекст трассировки.
func (m *tracingMiddleware) Wrap(next Next) Next {
	return func(ctx context.Context, msg Message) (result any, err error) {
		if md, ok := msg.(Metadatable); ok && md.Metadata() != nil {
			ctx = m.propagator.Extract(ctx, propagation.MapCarrier(md.Metadata()))
		}

		msgType, msgID := getMessageTypeAndID(msg)
		kind, _ := KindFromContext(ctx)
		operation := "send"
		if kind == KindNotification {
			operation = "publish"
		}
		dispatchID, _ := DispatchIDFromContext(ctx)

		ctx, span := m.tracer.Start(ctx, fmt.Sprintf("%s %s", msgType, operation),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("message.type", msgType),
				attribute.String("message.id", msgID),
				attribute.String("message.kind", kind.String()),
				attribute.String("dispatch.id", dispatchID),
			),
		)
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()

		return next(ctx, msg)
	}
}

// noopMiddleware представляет собой пустое middleware.
type noopMiddleware struct{}

// Wrap просто возвращает следующий вызов без изменений.
func (m *noopMiddleware) Wrap(next Next) Next {
	return next
}

// applyMiddlewares применяет цепочку middleware: первое в списке оказывается снаружи.
func applyMiddlewares(next Next, middlewares ...Middleware) Next {
	for i := len(middlewares) - 1; i >= 0; i-- {
		next = middlewares[i].Wrap(next)
	}
	return next
}

// getMessageTypeAndID извлекает тип и ID сообщения с помощью рефлексии.
func getMessageTypeAndID(msg any) (string, string) {
	if msg == nil {
		return "nil", "unknown"
	}

	val := reflect.ValueOf(msg)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return fmt.Sprintf("%T", msg), "unknown"
		}
		val = val.Elem()
	}

	msgType := val.Type().Name()
	if msgType == "" {
		msgType = fmt.Sprintf("%T", msg)
	}
	msgID := "unknown"

	if val.Kind() == reflect.Struct {
		if idField := val.FieldByName("ID"); idField.IsValid() {
			msgID = fmt.Sprintf("%v", idField.Interface())
		}
	}

	return msgType, msgID
}
