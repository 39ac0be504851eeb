package mediator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goccy/go-reflect"
)

// Mediator — фасад для отправки запросов и публикации уведомлений.
type Mediator interface {
	// Send находит единственный обработчик запроса, пропускает вызов через
	// цепочку поведений и возвращает результат обработчика.
	Send(ctx context.Context, req Message) (any, error)

	// Publish раздает уведомление всем подходящим обработчикам стратегией по умолчанию.
	Publish(ctx context.Context, notification Notification) error

	// PublishWithStrategy раздает уведомление с указанной стратегией.
	// Медиатор не запоминает переданную стратегию: если она оставляет работу
	// после возврата (ParallelNoWaitStrategy), дождаться ее должна вызывающая сторона.
	PublishWithStrategy(ctx context.Context, notification Notification, strategy PublishStrategy) error

	// Shutdown дожидается обработчиков, запущенных без ожидания стратегией по умолчанию.
	Shutdown(ctx context.Context) error
}

// shutdowner реализуют стратегии, которые оставляют работу после возврата из Publish.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// mediatorImpl представляет собой реализацию Mediator.
type mediatorImpl struct {
	registry Registry
	cfg      *config
	strategy PublishStrategy
	observe  []Middleware

	mu        sync.Mutex
	behaviors []PipelineBehavior
	sorted    bool
}

// New создает медиатор: строит контейнер по провайдеру зависимостей и
// оборачивает его реестр кешем. Ошибки конфигурации, например два обработчика
// одного запроса, возвращаются сразу.
func New(deps DependencyProvider, opts ...Option) (Mediator, error) {
	cfg := &config{
		logger:   slog.Default(),
		strategy: StopOnErrorStrategy{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.strategy == nil {
		return nil, fmt.Errorf("стратегия публикации не может быть nil")
	}

	container, err := NewContainer(deps)
	if err != nil {
		return nil, fmt.Errorf("не удалось построить контейнер обработчиков: %w", err)
	}

	var registry Registry = NewRegistry(container)
	if !cfg.disableCache {
		registry = NewCachedRegistry(registry)
	}

	return newMediator(registry, cfg)
}

// NewWithRegistry создает медиатор поверх готового реестра.
func NewWithRegistry(registry Registry, opts ...Option) (Mediator, error) {
	if registry == nil {
		return nil, fmt.Errorf("реестр не может быть nil")
	}
	cfg := &config{
		logger:   slog.Default(),
		strategy: StopOnErrorStrategy{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.strategy == nil {
		return nil, fmt.Errorf("стратегия публикации не может быть nil")
	}
	return newMediator(registry, cfg)
}

func newMediator(registry Registry, cfg *config) (*mediatorImpl, error) {
	metrics, err := NewMetricsMiddleware(cfg.meterProvider)
	if err != nil {
		return nil, err
	}

	observe := []Middleware{
		dispatchIDMiddleware(),
		NewLoggingMiddleware(cfg.logger),
		metrics,
		NewTracingMiddleware(cfg.tracerProvider, cfg.propagator),
	}
	observe = append(observe, cfg.middlewares...)

	return &mediatorImpl{
		registry: registry,
		cfg:      cfg,
		strategy: cfg.strategy,
		observe:  observe,
	}, nil
}

// Send отправляет запрос его обработчику.
func (m *mediatorImpl) Send(ctx context.Context, req Message) (any, error) {
	if req == nil {
		return nil, fmt.Errorf("запрос не может быть nil")
	}
	return m.dispatch(withKind(ctx, KindRequest), req, m.handleRequest)
}

// Publish публикует уведомление стратегией по умолчанию.
func (m *mediatorImpl) Publish(ctx context.Context, notification Notification) error {
	return m.PublishWithStrategy(ctx, notification, m.strategy)
}

// PublishWithStrategy публикует уведомление указанной стратегией.
func (m *mediatorImpl) PublishWithStrategy(ctx context.Context, notification Notification, strategy PublishStrategy) error {
	if notification == nil {
		return fmt.Errorf("уведомление не может быть nil")
	}
	if strategy == nil {
		strategy = m.strategy
	}

	terminal := func(ctx context.Context, msg Message) (any, error) {
		handlers, err := m.registry.ResolveNotificationHandlers(reflect.TypeOf(msg))
		if err != nil {
			return nil, err
		}
		return nil, strategy.Publish(ctx, msg, handlers)
	}
	_, err := m.dispatch(withKind(ctx, KindNotification), notification, terminal)
	return err
}

// Shutdown дожидается стратегии по умолчанию, если она продолжает работу после Publish.
func (m *mediatorImpl) Shutdown(ctx context.Context) error {
	s, ok := m.strategy.(shutdowner)
	if !ok {
		return nil
	}
	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("не удалось дождаться обработчиков уведомлений: %w", err)
	}
	return nil
}

// handleRequest — терминальный вызов для Send: разрешение обработчика и его вызов.
// Поведения могут заменить сообщение, поэтому тип берется из переданного msg.
func (m *mediatorImpl) handleRequest(ctx context.Context, msg Message) (any, error) {
	handler, err := m.registry.ResolveHandler(reflect.TypeOf(msg))
	if err != nil {
		return nil, err
	}
	return handler.Invoke(ctx, msg)
}

func (m *mediatorImpl) dispatch(ctx context.Context, msg Message, terminal Next) (any, error) {
	pipeline := func(ctx context.Context, msg Message) (any, error) {
		behaviors, err := m.pipelineBehaviors()
		if err != nil {
			return nil, err
		}
		return buildChain(behaviors, terminal)(ctx, msg)
	}
	return applyMiddlewares(pipeline, m.observe...)(ctx, msg)
}

// pipelineBehaviors сортирует поведения один раз за время жизни медиатора.
// Неудачное разрешение не запоминается.
func (m *mediatorImpl) pipelineBehaviors() ([]PipelineBehavior, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sorted {
		return m.behaviors, nil
	}
	behaviors, err := m.registry.PipelineBehaviors()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить pipeline-поведения: %w", err)
	}
	m.behaviors = sortBehaviors(behaviors)
	m.sorted = true
	return m.behaviors, nil
}

// Send отправляет запрос и приводит результат к типу R.
func Send[R any](ctx context.Context, m Mediator, req Request[R]) (R, error) {
	var zero R
	result, err := m.Send(ctx, req)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(R)
	if !ok {
		return zero, fmt.Errorf("ответ типа '%T' не соответствует ожидаемому типу '%s'", result, typeName(typeFor[R]()))
	}
	return typed, nil
}

// Builder собирает медиатор из провайдера зависимостей и опций.
type Builder struct {
	deps DependencyProvider
	opts []Option
}

// NewBuilder создает построитель медиатора.
func NewBuilder(deps DependencyProvider) *Builder {
	return &Builder{deps: deps}
}

// WithPublishStrategy задает стратегию публикации по умолчанию.
func (b *Builder) WithPublishStrategy(strategy PublishStrategy) *Builder {
	b.opts = append(b.opts, WithPublishStrategy(strategy))
	return b
}

// With добавляет произвольные опции.
func (b *Builder) With(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build создает медиатор.
func (b *Builder) Build() (Mediator, error) {
	return New(b.deps, b.opts...)
}
