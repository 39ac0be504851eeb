package mediator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-reflect"
)

var (
	// ErrHandlerNotFound возвращается, когда для запроса нет обработчика.
	ErrHandlerNotFound = errors.New("обработчик не найден")
	// ErrDuplicateHandler возвращается при построении контейнера, если два обработчика претендуют на один запрос.
	ErrDuplicateHandler = errors.New("обработчик уже зарегистрирован")
	// ErrAmbiguousHandler возвращается, если запрос реализует несколько зарегистрированных интерфейсов.
	ErrAmbiguousHandler = errors.New("неоднозначный выбор обработчика")
)

// HandlerNotFoundError содержит тип запроса и список типов, для которых обработчики были найдены.
type HandlerNotFoundError struct {
	RequestType reflect.Type
	Available   []reflect.Type
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("обработчик для запроса '%s' не найден, зарегистрированные запросы: [%s]",
		typeName(e.RequestType), joinTypes(e.Available))
}

// Is позволяет сравнивать ошибку с ErrHandlerNotFound.
func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// DuplicateHandlerError описывает конфликт двух обработчиков одного запроса.
type DuplicateHandlerError struct {
	RequestType reflect.Type
	Existing    reflect.Type
	Conflicting reflect.Type
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("обработчик для запроса '%s' уже зарегистрирован: '%s', конфликтующий обработчик: '%s'",
		typeName(e.RequestType), typeName(e.Existing), typeName(e.Conflicting))
}

// Is позволяет сравнивать ошибку с ErrDuplicateHandler.
func (e *DuplicateHandlerError) Is(target error) bool {
	return target == ErrDuplicateHandler
}

// AmbiguousHandlerError возвращается, когда запрос без собственного обработчика
// реализует несколько интерфейсов, у каждого из которых есть обработчик.
type AmbiguousHandlerError struct {
	RequestType reflect.Type
	Candidates  []reflect.Type
}

func (e *AmbiguousHandlerError) Error() string {
	return fmt.Sprintf("запрос '%s' соответствует нескольким обработчикам: [%s]",
		typeName(e.RequestType), joinTypes(e.Candidates))
}

// Is позволяет сравнивать ошибку с ErrAmbiguousHandler.
func (e *AmbiguousHandlerError) Is(target error) bool {
	return target == ErrAmbiguousHandler
}

// AggregateError собирает все ошибки обработчиков одной публикации.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("ошибки обработчиков уведомления (%d): %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap возвращает вложенные ошибки для errors.Is и errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// typeName возвращает полное имя типа вместе с путем пакета.
func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	prefix := ""
	for t.Kind() == reflect.Ptr {
		prefix += "*"
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return prefix + t.String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}

func joinTypes(types []reflect.Type) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, typeName(t))
	}
	return strings.Join(names, ", ")
}
