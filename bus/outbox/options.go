package outbox

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/propagation"
)

// Option определяет функцию для конфигурации Behavior.
type Option func(*Behavior)

// WithOrder переопределяет приоритет поведения. По умолчанию outbox
// выполняется ближе всех к обработчикам, после валидации и прочих проверок.
func WithOrder(order int) Option {
	return func(b *Behavior) {
		b.order = order
	}
}

// WithPropagator устанавливает механизм, которым контекст трассировки
// записывается в метаданные сообщения.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(b *Behavior) {
		b.propagator = p
	}
}

// RetransmitterOption определяет функцию для конфигурации Retransmitter.
type RetransmitterOption func(*Retransmitter)

// WithInterval устанавливает интервал опроса хранилища.
func WithInterval(interval time.Duration) RetransmitterOption {
	return func(r *Retransmitter) {
		r.interval = interval
	}
}

// WithLimit устанавливает максимальное количество сообщений, извлекаемых за один раз.
func WithLimit(limit int) RetransmitterOption {
	return func(r *Retransmitter) {
		r.limit = limit
	}
}

// WithLogger устанавливает логгер.
func WithLogger(logger *slog.Logger) RetransmitterOption {
	return func(r *Retransmitter) {
		r.logger = logger
	}
}
