package mediator

import (
	"sync"

	"github.com/goccy/go-reflect"
)

// CachedRegistry запоминает результаты разрешения для каждого запрошенного типа.
// Связи обработчиков фиксируются при построении контейнера, поэтому кеш не
// устаревает. Ошибки не кешируются: повторный вызов снова обращается к реестру.
type CachedRegistry struct {
	next Registry

	handlers      sync.Map // reflect.Type -> *RequestInvoker
	notifications sync.Map // reflect.Type -> []*NotificationInvoker

	mu        sync.Mutex
	behaviors []PipelineBehavior
	loaded    bool
}

// NewCachedRegistry оборачивает реестр кешем.
func NewCachedRegistry(next Registry) *CachedRegistry {
	return &CachedRegistry{next: next}
}

// ResolveHandler возвращает обработчик из кеша или разрешает его через обернутый реестр.
// Результат, найденный через интерфейс, кешируется под исходным типом запроса.
func (r *CachedRegistry) ResolveHandler(requestType reflect.Type) (*RequestInvoker, error) {
	if cached, ok := r.handlers.Load(requestType); ok {
		return cached.(*RequestInvoker), nil
	}
	handler, err := r.next.ResolveHandler(requestType)
	if err != nil {
		return nil, err
	}
	actual, _ := r.handlers.LoadOrStore(requestType, handler)
	return actual.(*RequestInvoker), nil
}

// ResolveNotificationHandlers возвращает один и тот же срез при повторных вызовах.
func (r *CachedRegistry) ResolveNotificationHandlers(notificationType reflect.Type) ([]*NotificationInvoker, error) {
	if cached, ok := r.notifications.Load(notificationType); ok {
		return cached.([]*NotificationInvoker), nil
	}
	handlers, err := r.next.ResolveNotificationHandlers(notificationType)
	if err != nil {
		return nil, err
	}
	actual, _ := r.notifications.LoadOrStore(notificationType, handlers)
	return actual.([]*NotificationInvoker), nil
}

// PipelineBehaviors разрешает поведения один раз, при первом успешном вызове.
func (r *CachedRegistry) PipelineBehaviors() ([]PipelineBehavior, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return r.behaviors, nil
	}
	behaviors, err := r.next.PipelineBehaviors()
	if err != nil {
		return nil, err
	}
	r.behaviors = behaviors
	r.loaded = true
	return r.behaviors, nil
}
