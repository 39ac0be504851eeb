package mediator

import (
	"context"

	"github.com/goccy/go-reflect"
)

const handleMethodName = "Handle"

var (
	contextType  = typeFor[context.Context]()
	errorType    = typeFor[error]()
	anyType      = typeFor[any]()
	behaviorType = typeFor[PipelineBehavior]()
	witnessType  = typeFor[handlerWitness]()
)

// typeFor возвращает тип T, в том числе интерфейсный.
func typeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// IsAbstract сообщает, что тип нельзя инстанцировать: интерфейсы только
// описывают контракт и не могут быть обработчиками сами по себе.
func IsAbstract(t reflect.Type) bool {
	return t == nil || t.Kind() == reflect.Interface
}

// RequestTypeOf извлекает тип запроса, который обрабатывает тип t.
// Метод Handle может быть объявлен на самом типе или продвинут из встроенной
// структуры любой глубины вложенности, в том числе обобщенной.
// Второе значение равно false, если тип не отмечен HandlerMarker, не является
// обработчиком запроса или его параметр остался несвязанным.
func RequestTypeOf(t reflect.Type) (reflect.Type, bool) {
	m, ok := handleMethod(t)
	if !ok {
		return nil, false
	}
	mt := m.Type
	if mt.NumIn() != 3 || mt.NumOut() != 2 {
		return nil, false
	}
	if mt.In(1) != contextType || mt.Out(1) != errorType {
		return nil, false
	}
	return boundMessageType(mt.In(2))
}

// NotificationTypeOf извлекает тип уведомления, который обрабатывает тип t.
func NotificationTypeOf(t reflect.Type) (reflect.Type, bool) {
	m, ok := handleMethod(t)
	if !ok {
		return nil, false
	}
	mt := m.Type
	if mt.NumIn() != 3 || mt.NumOut() != 1 {
		return nil, false
	}
	if mt.In(1) != contextType || mt.Out(0) != errorType {
		return nil, false
	}
	return boundMessageType(mt.In(2))
}

// IsPipelineBehavior сообщает, реализует ли тип интерфейс PipelineBehavior.
func IsPipelineBehavior(t reflect.Type) bool {
	return !IsAbstract(t) && t.Implements(behaviorType)
}

func handleMethod(t reflect.Type) (reflect.Method, bool) {
	if IsAbstract(t) || !t.Implements(witnessType) {
		return reflect.Method{}, false
	}
	return t.MethodByName(handleMethodName)
}

// boundMessageType отбрасывает безымянный пустой интерфейс: такой параметр
// соответствует несвязанному параметру типа, и по нему нельзя маршрутизировать.
// Именованные пустые интерфейсы (Notification, Message) допустимы и
// принимают все сообщения.
func boundMessageType(t reflect.Type) (reflect.Type, bool) {
	if t == anyType {
		return nil, false
	}
	return t, true
}

// matches сообщает, подходит ли ключ реестра для конкретного типа сообщения:
// ключ совпадает с типом или является интерфейсом, который тип реализует.
func matches(key, t reflect.Type) bool {
	if key == t {
		return true
	}
	return key.Kind() == reflect.Interface && t.Implements(key)
}
