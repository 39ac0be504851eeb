package mediator

import (
	"context"
	"fmt"

	"github.com/goccy/go-reflect"
)

// RequestInvoker — экземпляр обработчика запроса, приведенный к единому вызову.
type RequestInvoker struct {
	handlerType reflect.Type
	requestType reflect.Type
	method      reflect.Value
}

// NewRequestInvoker проверяет сигнатуру обработчика и создает для него адаптер вызова.
func NewRequestInvoker(handler any) (*RequestInvoker, error) {
	if handler == nil {
		return nil, fmt.Errorf("обработчик запроса не может быть nil")
	}
	t := reflect.TypeOf(handler)
	requestType, ok := RequestTypeOf(t)
	if !ok {
		return nil, fmt.Errorf("тип '%s' не является обработчиком запроса", typeName(t))
	}
	return &RequestInvoker{
		handlerType: t,
		requestType: requestType,
		method:      reflect.ValueOf(handler).MethodByName(handleMethodName),
	}, nil
}

// HandlerType возвращает тип обработчика.
func (i *RequestInvoker) HandlerType() reflect.Type {
	return i.handlerType
}

// RequestType возвращает тип запроса, на который зарегистрирован обработчик.
func (i *RequestInvoker) RequestType() reflect.Type {
	return i.requestType
}

// Invoke вызывает обработчик для запроса.
func (i *RequestInvoker) Invoke(ctx context.Context, req Message) (any, error) {
	arg, err := argument(req, i.requestType)
	if err != nil {
		return nil, err
	}
	out := i.method.Call([]reflect.Value{reflect.ValueOf(ctx), arg})
	return out[0].Interface(), asError(out[1])
}

// NotificationInvoker — экземпляр обработчика уведомления, приведенный к единому вызову.
type NotificationInvoker struct {
	handlerType      reflect.Type
	notificationType reflect.Type
	method           reflect.Value
}

// NewNotificationInvoker проверяет сигнатуру обработчика и создает для него адаптер вызова.
func NewNotificationInvoker(handler any) (*NotificationInvoker, error) {
	if handler == nil {
		return nil, fmt.Errorf("обработчик уведомления не может быть nil")
	}
	t := reflect.TypeOf(handler)
	notificationType, ok := NotificationTypeOf(t)
	if !ok {
		return nil, fmt.Errorf("тип '%s' не является обработчиком уведомления", typeName(t))
	}
	return &NotificationInvoker{
		handlerType:      t,
		notificationType: notificationType,
		method:           reflect.ValueOf(handler).MethodByName(handleMethodName),
	}, nil
}

// HandlerType возвращает тип обработчика.
func (i *NotificationInvoker) HandlerType() reflect.Type {
	return i.handlerType
}

// NotificationType возвращает тип уведомления, на который подписан обработчик.
func (i *NotificationInvoker) NotificationType() reflect.Type {
	return i.notificationType
}

// Invoke вызывает обработчик для уведомления.
func (i *NotificationInvoker) Invoke(ctx context.Context, notification Notification) error {
	arg, err := argument(notification, i.notificationType)
	if err != nil {
		return err
	}
	out := i.method.Call([]reflect.Value{reflect.ValueOf(ctx), arg})
	return asError(out[0])
}

func argument(msg Message, want reflect.Type) (reflect.Value, error) {
	if msg == nil {
		return reflect.Value{}, fmt.Errorf("сообщение не может быть nil")
	}
	v := reflect.ValueOf(msg)
	if !v.Type().AssignableTo(want) {
		return reflect.Value{}, fmt.Errorf("сообщение типа '%s' не может быть передано обработчику '%s'",
			typeName(v.Type()), typeName(want))
	}
	return v, nil
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
