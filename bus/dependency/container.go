// Package dependency содержит простой потокобезопасный контейнер зависимостей,
// реализующий mediator.DependencyProvider.
package dependency

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-reflect"
)

var (
	// ErrNotProvided возвращается, если для типа нет ни одной регистрации.
	ErrNotProvided = errors.New("зависимость не зарегистрирована")
	// ErrAlreadyProvided возвращается при повторной регистрации типа.
	ErrAlreadyProvided = errors.New("зависимость уже зарегистрирована")
	// ErrAmbiguous возвращается, если интерфейс реализуют несколько зарегистрированных типов.
	ErrAmbiguous = errors.New("найдено несколько реализаций")
)

// Lifetime определяет время жизни экземпляра.
type Lifetime int

const (
	// Singleton — экземпляр создается при первом обращении и переиспользуется.
	Singleton Lifetime = iota
	// Transient — экземпляр создается при каждом обращении.
	Transient
)

// Factory создает экземпляр типа T. Контейнер передается для получения зависимостей.
type Factory[T any] func(c *Container) (T, error)

// Option настраивает регистрацию.
type Option func(*entry)

// WithLifetime задает время жизни экземпляра.
func WithLifetime(lifetime Lifetime) Option {
	return func(e *entry) {
		e.lifetime = lifetime
	}
}

type entry struct {
	typ      reflect.Type
	lifetime Lifetime
	factory  func(c *Container) (any, error)

	mu       sync.RWMutex
	instance any
	ready    bool
}

// Container — реестр фабрик, упорядоченный по времени регистрации.
type Container struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*entry
	order   []reflect.Type
}

// New создает пустой контейнер.
func New() *Container {
	return &Container{
		entries: make(map[reflect.Type]*entry),
	}
}

// Provide регистрирует фабрику конкретного типа T.
func Provide[T any](c *Container, factory Factory[T], opts ...Option) error {
	if factory == nil {
		return fmt.Errorf("фабрика для типа '%s' не может быть nil", typeFor[T]())
	}
	e := &entry{
		typ: typeFor[T](),
		factory: func(c *Container) (any, error) {
			return factory(c)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return c.add(e)
}

// ProvideValue регистрирует готовый экземпляр типа T.
func ProvideValue[T any](c *Container, value T) error {
	return c.add(&entry{
		typ:      typeFor[T](),
		lifetime: Singleton,
		instance: value,
		ready:    true,
	})
}

func (c *Container) add(e *entry) error {
	if e.typ.Kind() == reflect.Interface {
		return fmt.Errorf("тип '%s' является интерфейсом, регистрировать можно только конкретные типы", e.typ)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[e.typ]; exists {
		return fmt.Errorf("%w: '%s'", ErrAlreadyProvided, e.typ)
	}
	c.entries[e.typ] = e
	c.order = append(c.order, e.typ)
	return nil
}

// GetSingleInstanceOf возвращает экземпляр типа t. Для интерфейса ищется
// единственный зарегистрированный тип, который его реализует.
func (c *Container) GetSingleInstanceOf(t reflect.Type) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("тип не может быть nil")
	}
	e, err := c.find(t)
	if err != nil {
		return nil, err
	}
	return c.instance(e)
}

// GetSubTypesOf перечисляет зарегистрированные типы, присваиваемые типу t,
// в порядке регистрации.
func (c *Container) GetSubTypesOf(t reflect.Type) []reflect.Type {
	if t == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var types []reflect.Type
	for _, typ := range c.order {
		if typ.AssignableTo(t) {
			types = append(types, typ)
		}
	}
	return types
}

func (c *Container) find(t reflect.Type) (*entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[t]; ok {
		return e, nil
	}
	if t.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: '%s'", ErrNotProvided, t)
	}

	var found []*entry
	for _, typ := range c.order {
		if typ.Implements(t) {
			found = append(found, c.entries[typ])
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: '%s'", ErrNotProvided, t)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w для '%s': %d", ErrAmbiguous, t, len(found))
	}
}

// instance создает или возвращает экземпляр. Фабрика вызывается без блокировки
// контейнера, поэтому может сама запрашивать зависимости.
func (c *Container) instance(e *entry) (any, error) {
	if e.lifetime == Transient {
		return c.build(e)
	}

	e.mu.RLock()
	if e.ready {
		instance := e.instance
		e.mu.RUnlock()
		return instance, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return e.instance, nil
	}
	instance, err := c.build(e)
	if err != nil {
		return nil, err
	}
	e.instance = instance
	e.ready = true
	return instance, nil
}

func (c *Container) build(e *entry) (any, error) {
	instance, err := e.factory(c)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать экземпляр '%s': %w", e.typ, err)
	}
	return instance, nil
}

// Resolve возвращает экземпляр типа T.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	instance, err := c.GetSingleInstanceOf(typeFor[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("экземпляр типа '%T' не приводится к '%s'", instance, typeFor[T]())
	}
	return typed, nil
}

// MustResolve возвращает экземпляр типа T и паникует при ошибке.
// Предназначен для фабрик и кода инициализации.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

func typeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
