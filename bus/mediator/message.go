// Package mediator реализует внутрипроцессный медиатор: маршрутизацию запросов
// к единственному обработчику, рассылку уведомлений произвольному числу
// обработчиков и упорядоченную цепочку pipeline-поведений вокруг каждой отправки.
//
// Пакет не выполняет ввода-вывода. Все, что ему нужно от окружения, описано
// интерфейсом DependencyProvider: получить экземпляр типа и перечислить известные типы.
package mediator

import (
	"context"
	"math"
)

// Message является маркером для любого сообщения, проходящего через медиатор.
type Message interface{}

// Request представляет собой интерфейс-маркер для запроса, параметризованный
// типом возвращаемого значения R. Для каждого конкретного типа запроса должен
// существовать ровно один обработчик.
type Request[R any] interface{}

// Notification представляет собой интерфейс-маркер для уведомления.
// Уведомление может быть обработано нулем, одним или несколькими обработчиками.
type Notification interface{}

// Unit — пустой результат запросов, которые ничего не возвращают.
type Unit struct{}

// HandlerMarker встраивается в обработчик и отмечает тип как обработчик.
// Тип с подходящим методом Handle, но без отметки, медиатор не регистрирует:
// в контейнере зависимостей хватает посторонних типов с методом Handle
// (например, *slog.TextHandler).
type HandlerMarker struct{}

func (HandlerMarker) mediatorHandler() {}

type handlerWitness interface {
	mediatorHandler()
}

// RequestHandler описывает обработчик запроса Req, возвращающий Res.
// Медиатор распознает обработчики по сигнатуре метода Handle и отметке
// HandlerMarker, поэтому реализовывать этот интерфейс явно не обязательно.
type RequestHandler[Req Request[Res], Res any] interface {
	Handle(ctx context.Context, req Req) (Res, error)
}

// RequestHandlerFunc является адаптером, позволяющим использовать обычные функции как обработчики запросов.
type RequestHandlerFunc[Req Request[Res], Res any] func(ctx context.Context, req Req) (Res, error)

// Handle реализует интерфейс RequestHandler.
func (f RequestHandlerFunc[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	return f(ctx, req)
}

func (RequestHandlerFunc[Req, Res]) mediatorHandler() {}

// NotificationHandler описывает обработчик уведомления N.
type NotificationHandler[N Notification] interface {
	Handle(ctx context.Context, notification N) error
}

// NotificationHandlerFunc является адаптером для функций-обработчиков уведомлений.
type NotificationHandlerFunc[N Notification] func(ctx context.Context, notification N) error

// Handle реализует интерфейс NotificationHandler.
func (f NotificationHandlerFunc[N]) Handle(ctx context.Context, notification N) error {
	return f(ctx, notification)
}

func (NotificationHandlerFunc[N]) mediatorHandler() {}

const (
	// HighestPrecedence — порядок поведения, которое выполняется первым (оборачивает все остальные).
	HighestPrecedence = math.MinInt32
	// LowestPrecedence — порядок поведения, ближайшего к обработчику.
	LowestPrecedence = math.MaxInt32
)

// Next представляет оставшуюся часть цепочки: следующее поведение или сам обработчик.
type Next func(ctx context.Context, msg Message) (any, error)

// PipelineBehavior — перехватчик, оборачивающий каждую отправку запроса и уведомления.
// Поведение решает, вызывать ли next. Отсутствие вызова прерывает цепочку.
type PipelineBehavior interface {
	Handle(ctx context.Context, msg Message, next Next) (any, error)
}

// Ordered позволяет поведению задать свой приоритет. Меньшее значение
// выполняется раньше. Поведения без Order получают HighestPrecedence.
type Ordered interface {
	Order() int
}

// BehaviorFunc является адаптером для функций-поведений с явным порядком.
type BehaviorFunc struct {
	order int
	fn    func(ctx context.Context, msg Message, next Next) (any, error)
}

// NewBehaviorFunc создает поведение из функции.
func NewBehaviorFunc(order int, fn func(ctx context.Context, msg Message, next Next) (any, error)) *BehaviorFunc {
	return &BehaviorFunc{order: order, fn: fn}
}

// Handle реализует интерфейс PipelineBehavior.
func (b *BehaviorFunc) Handle(ctx context.Context, msg Message, next Next) (any, error) {
	return b.fn(ctx, msg, next)
}

// Order реализует интерфейс Ordered.
func (b *BehaviorFunc) Order() int {
	return b.order
}

// MessageKind различает отправку запроса и публикацию уведомления.
type MessageKind int

const (
	_ MessageKind = iota
	// KindRequest — сообщение отправлено через Send.
	KindRequest
	// KindNotification — сообщение опубликовано через Publish.
	KindNotification
)

// String возвращает имя вида сообщения.
func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

type kindKey struct{}

// withKind помещает вид сообщения в контекст отправки.
func withKind(ctx context.Context, kind MessageKind) context.Context {
	return context.WithValue(ctx, kindKey{}, kind)
}

// KindFromContext возвращает вид текущей отправки. Поведения используют его,
// чтобы пропускать сообщения, которые их не интересуют.
func KindFromContext(ctx context.Context) (MessageKind, bool) {
	kind, ok := ctx.Value(kindKey{}).(MessageKind)
	return kind, ok
}

// Metadatable определяет интерфейс для сообщений, которые могут нести метаданные.
type Metadatable interface {
	Metadata() map[string]string
}
