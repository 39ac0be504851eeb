package mediator

import "github.com/goccy/go-reflect"

// DependencyProvider — единственный контракт, который медиатор требует от окружения.
// Реализуется DI-контейнером приложения.
type DependencyProvider interface {
	// GetSingleInstanceOf возвращает ровно один экземпляр указанного типа.
	// Неоднозначность или отсутствие кандидатов разрешает сама реализация.
	GetSingleInstanceOf(t reflect.Type) (any, error)

	// GetSubTypesOf перечисляет все известные типы, присваиваемые типу t.
	// Для пустого интерфейса это все известные типы.
	// Вызывается только при построении контейнера.
	GetSubTypesOf(t reflect.Type) []reflect.Type
}
