package mediator

import (
	"fmt"

	"github.com/goccy/go-reflect"
)

// handlerProvider лениво получает экземпляр обработчика у DependencyProvider.
// Экземпляры не создаются при построении контейнера, только при отправке.
type handlerProvider struct {
	handlerType reflect.Type
	deps        DependencyProvider
}

func (p *handlerProvider) get() (any, error) {
	instance, err := p.deps.GetSingleInstanceOf(p.handlerType)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить экземпляр '%s': %w", typeName(p.handlerType), err)
	}
	return instance, nil
}

// Container обходит все известные провайдеру типы и раскладывает их по картам
// обработчиков запросов, обработчиков уведомлений и pipeline-поведений.
// После построения контейнер не изменяется.
type Container struct {
	deps DependencyProvider

	requestHandlers map[reflect.Type]*handlerProvider
	// requestInterfaces — интерфейсные ключи запросов в порядке регистрации,
	// по ним ищется обработчик для типов без собственного обработчика.
	requestInterfaces []reflect.Type
	requestOrder      []reflect.Type

	notificationHandlers map[reflect.Type][]*handlerProvider
	notificationOrder    []reflect.Type

	behaviors []*handlerProvider
}

// NewContainer строит контейнер. Два обработчика для одного типа запроса
// приводят к ошибке DuplicateHandlerError.
func NewContainer(deps DependencyProvider) (*Container, error) {
	if deps == nil {
		return nil, fmt.Errorf("провайдер зависимостей не может быть nil")
	}

	c := &Container{
		deps:                 deps,
		requestHandlers:      make(map[reflect.Type]*handlerProvider),
		notificationHandlers: make(map[reflect.Type][]*handlerProvider),
	}

	seen := make(map[reflect.Type]struct{})
	for _, t := range deps.GetSubTypesOf(behaviorType) {
		if !IsPipelineBehavior(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		c.behaviors = append(c.behaviors, &handlerProvider{handlerType: t, deps: deps})
	}

	for _, t := range deps.GetSubTypesOf(anyType) {
		if IsAbstract(t) {
			continue
		}
		if _, isBehavior := seen[t]; isBehavior {
			continue
		}
		if requestType, ok := RequestTypeOf(t); ok {
			if err := c.addRequestHandler(requestType, t); err != nil {
				return nil, err
			}
			continue
		}
		if notificationType, ok := NotificationTypeOf(t); ok {
			c.addNotificationHandler(notificationType, t)
		}
	}

	return c, nil
}

func (c *Container) addRequestHandler(requestType, handlerType reflect.Type) error {
	if existing, ok := c.requestHandlers[requestType]; ok {
		if existing.handlerType == handlerType {
			return nil
		}
		return &DuplicateHandlerError{
			RequestType: requestType,
			Existing:    existing.handlerType,
			Conflicting: handlerType,
		}
	}
	c.requestHandlers[requestType] = &handlerProvider{handlerType: handlerType, deps: c.deps}
	c.requestOrder = append(c.requestOrder, requestType)
	if requestType.Kind() == reflect.Interface {
		c.requestInterfaces = append(c.requestInterfaces, requestType)
	}
	return nil
}

func (c *Container) addNotificationHandler(notificationType, handlerType reflect.Type) {
	providers, ok := c.notificationHandlers[notificationType]
	if !ok {
		c.notificationOrder = append(c.notificationOrder, notificationType)
	}
	for _, p := range providers {
		if p.handlerType == handlerType {
			return
		}
	}
	c.notificationHandlers[notificationType] = append(providers, &handlerProvider{handlerType: handlerType, deps: c.deps})
}

// RequestTypes возвращает типы запросов, для которых найдены обработчики, в порядке обнаружения.
func (c *Container) RequestTypes() []reflect.Type {
	return append([]reflect.Type(nil), c.requestOrder...)
}

// NotificationTypes возвращает типы уведомлений, для которых найдены обработчики.
func (c *Container) NotificationTypes() []reflect.Type {
	return append([]reflect.Type(nil), c.notificationOrder...)
}

// BehaviorTypes возвращает типы найденных pipeline-поведений.
func (c *Container) BehaviorTypes() []reflect.Type {
	types := make([]reflect.Type, 0, len(c.behaviors))
	for _, b := range c.behaviors {
		types = append(types, b.handlerType)
	}
	return types
}
