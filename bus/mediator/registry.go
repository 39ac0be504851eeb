package mediator

import (
	"sort"

	"github.com/goccy/go-reflect"
)

// Registry — интерфейс чтения поверх карт контейнера.
type Registry interface {
	// ResolveHandler возвращает единственный обработчик для типа запроса.
	ResolveHandler(requestType reflect.Type) (*RequestInvoker, error)

	// ResolveNotificationHandlers возвращает все обработчики, подходящие для типа
	// уведомления, включая обработчики интерфейсов, которые он реализует.
	// Отсутствие обработчиков не является ошибкой.
	ResolveNotificationHandlers(notificationType reflect.Type) ([]*NotificationInvoker, error)

	// PipelineBehaviors возвращает все поведения без сортировки.
	PipelineBehaviors() ([]PipelineBehavior, error)
}

// registryImpl читает данные из неизменяемого контейнера и не требует блокировок.
type registryImpl struct {
	c *Container
}

// NewRegistry создает реестр поверх контейнера.
func NewRegistry(c *Container) Registry {
	return &registryImpl{c: c}
}

func (r *registryImpl) ResolveHandler(requestType reflect.Type) (*RequestInvoker, error) {
	p, err := r.lookup(requestType)
	if err != nil {
		return nil, err
	}
	instance, err := p.get()
	if err != nil {
		return nil, err
	}
	return NewRequestInvoker(instance)
}

// lookup ищет точное совпадение, затем зарегистрированные интерфейсы, которые
// реализует тип запроса. Несколько подходящих интерфейсов считаются ошибкой.
func (r *registryImpl) lookup(requestType reflect.Type) (*handlerProvider, error) {
	if p, ok := r.c.requestHandlers[requestType]; ok {
		return p, nil
	}

	if requestType != nil {
		var candidates []reflect.Type
		for _, iface := range r.c.requestInterfaces {
			if requestType.Implements(iface) {
				candidates = append(candidates, iface)
			}
		}
		switch len(candidates) {
		case 0:
		case 1:
			return r.c.requestHandlers[candidates[0]], nil
		default:
			return nil, &AmbiguousHandlerError{RequestType: requestType, Candidates: candidates}
		}
	}

	available := r.c.RequestTypes()
	sort.Slice(available, func(i, j int) bool {
		return typeName(available[i]) < typeName(available[j])
	})
	return nil, &HandlerNotFoundError{RequestType: requestType, Available: available}
}

func (r *registryImpl) ResolveNotificationHandlers(notificationType reflect.Type) ([]*NotificationInvoker, error) {
	if notificationType == nil {
		return nil, nil
	}

	var handlers []*NotificationInvoker
	for _, key := range r.c.notificationOrder {
		if !matches(key, notificationType) {
			continue
		}
		for _, p := range r.c.notificationHandlers[key] {
			instance, err := p.get()
			if err != nil {
				return nil, err
			}
			invoker, err := NewNotificationInvoker(instance)
			if err != nil {
				return nil, err
			}
			handlers = append(handlers, invoker)
		}
	}
	return handlers, nil
}

func (r *registryImpl) PipelineBehaviors() ([]PipelineBehavior, error) {
	behaviors := make([]PipelineBehavior, 0, len(r.c.behaviors))
	for _, p := range r.c.behaviors {
		instance, err := p.get()
		if err != nil {
			return nil, err
		}
		behavior, ok := instance.(PipelineBehavior)
		if !ok {
			continue
		}
		behaviors = append(behaviors, behavior)
	}
	return behaviors, nil
}
