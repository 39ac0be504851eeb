package mediator

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// config содержит неэкспортируемую конфигурацию медиатора.
type config struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	middlewares    []Middleware
	strategy       PublishStrategy
	disableCache   bool
}

// Option определяет тип для функциональных опций, которые изменяют конфигурацию медиатора.
type Option func(*config)

// WithLogger возвращает опцию, которая устанавливает логгер.
// nil отключает журналирование отправок.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTracerProvider возвращает опцию, которая устанавливает провайдер трассировки.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = provider
	}
}

// WithMeterProvider возвращает опцию, которая устанавливает провайдер метрик.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = provider
	}
}

// WithPropagator возвращает опцию, которая устанавливает механизм распространения контекста.
func WithPropagator(propagator propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagator = propagator
	}
}

// WithMiddleware добавляет middleware, которые оборачивают отправку целиком,
// снаружи pipeline-поведений. Выполняются в порядке добавления.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *config) {
		c.middlewares = append(c.middlewares, mw...)
	}
}

// WithPublishStrategy задает стратегию публикации по умолчанию.
func WithPublishStrategy(strategy PublishStrategy) Option {
	return func(c *config) {
		c.strategy = strategy
	}
}

// WithoutCache отключает кеширование результатов разрешения обработчиков.
func WithoutCache() Option {
	return func(c *config) {
		c.disableCache = true
	}
}
