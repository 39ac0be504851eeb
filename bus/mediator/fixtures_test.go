package mediator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-reflect"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-mediator/bus/dependency"
	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// recorder собирает отметки о вызовах в порядке их появления.
type recorder struct {
	mu    sync.Mutex
	marks []string
}

func (r *recorder) add(mark string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = append(r.marks, mark)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.marks...)
}

func (r *recorder) count(mark string) int {
	n := 0
	for _, m := range r.list() {
		if m == mark {
			n++
		}
	}
	return n
}

// Запросы.

type greet struct {
	Name string
}

type greetHandler struct {
	mediator.HandlerMarker

	rec *recorder
}

func (h *greetHandler) Handle(_ context.Context, req greet) (string, error) {
	if h.rec != nil {
		h.rec.add("handler")
	}
	return "hello " + req.Name, nil
}

type ping struct{}

type failing struct{}

var errBoom = errors.New("boom")

type failingHandler struct {
	mediator.HandlerMarker
}

func (failingHandler) Handle(context.Context, failing) (mediator.Unit, error) {
	return mediator.Unit{}, errBoom
}

type anotherGreetHandler struct {
	mediator.HandlerMarker
}

func (anotherGreetHandler) Handle(_ context.Context, req greet) (string, error) {
	return "hi " + req.Name, nil
}

// auditable — интерфейсный ключ запроса.
type auditable interface {
	AuditID() string
}

type traceable interface {
	TraceID() string
}

type deleteUser struct {
	ID string
}

func (d deleteUser) AuditID() string { return d.ID }

type archiveUser struct {
	ID string
}

func (a archiveUser) AuditID() string { return a.ID }
func (a archiveUser) TraceID() string { return a.ID }

type auditHandler struct {
	mediator.HandlerMarker
}

func (auditHandler) Handle(_ context.Context, req auditable) (string, error) {
	return "audit " + req.AuditID(), nil
}

type traceHandler struct {
	mediator.HandlerMarker
}

func (traceHandler) Handle(_ context.Context, req traceable) (string, error) {
	return "trace " + req.TraceID(), nil
}

// Обработчики на основе встроенной обобщенной структуры.

type baseHandler[Req any, Res any] struct {
	mediator.HandlerMarker

	fn func(Req) Res
}

func (b baseHandler[Req, Res]) Handle(_ context.Context, req Req) (Res, error) {
	return b.fn(req), nil
}

type shout struct {
	Text string
}

type shoutHandler struct {
	baseHandler[shout, string]
}

type whisper struct {
	Text string
}

type middleHandler[Req any] struct {
	baseHandler[Req, string]
}

type whisperHandler struct {
	middleHandler[whisper]
}

// Уведомления.

type event struct {
	ID string
}

type firstEventHandler struct {
	mediator.HandlerMarker

	rec *recorder
}

func (h *firstEventHandler) Handle(context.Context, event) error {
	h.rec.add("first")
	return nil
}

type secondEventHandler struct {
	mediator.HandlerMarker

	rec *recorder
}

func (h *secondEventHandler) Handle(context.Context, event) error {
	h.rec.add("second")
	return nil
}

type domainEvent interface {
	EventName() string
}

type orderPlaced struct {
	ID string
}

func (orderPlaced) EventName() string { return "order.placed" }

type orderPlacedHandler struct {
	mediator.HandlerMarker

	rec *recorder
}

func (h *orderPlacedHandler) Handle(context.Context, orderPlaced) error {
	h.rec.add("order-placed")
	return nil
}

type domainEventHandler struct {
	mediator.HandlerMarker

	rec *recorder
}

func (h *domainEventHandler) Handle(_ context.Context, e domainEvent) error {
	h.rec.add("domain:" + e.EventName())
	return nil
}

type auditTrailHandler struct {
	mediator.HandlerMarker

	rec *recorder
}

func (h *auditTrailHandler) Handle(context.Context, mediator.Notification) error {
	h.rec.add("audit-trail")
	return nil
}

// Поведения с отметками до и после вызова next.

type markBehavior struct {
	name  string
	order int
	rec   *recorder
}

func (b *markBehavior) Handle(ctx context.Context, msg mediator.Message, next mediator.Next) (any, error) {
	b.rec.add(b.name)
	res, err := next(ctx, msg)
	b.rec.add(b.name)
	return res, err
}

func (b *markBehavior) Order() int { return b.order }

type authCheckBehavior struct{ *markBehavior }

type loggingBehavior struct{ *markBehavior }

type metricsBehavior struct{ *markBehavior }

// Вспомогательные функции сборки.

type registration func(c *dependency.Container) error

func value[T any](v T) registration {
	return func(c *dependency.Container) error {
		return dependency.ProvideValue(c, v)
	}
}

func factory[T any](fn dependency.Factory[T]) registration {
	return func(c *dependency.Container) error {
		return dependency.Provide(c, fn)
	}
}

func newContainer(t *testing.T, regs ...registration) *dependency.Container {
	t.Helper()

	c := dependency.New()
	for _, reg := range regs {
		require.NoError(t, reg(c))
	}
	return c
}

func newMediator(t *testing.T, opts []mediator.Option, regs ...registration) mediator.Mediator {
	t.Helper()

	opts = append([]mediator.Option{mediator.WithLogger(nil)}, opts...)
	m, err := mediator.New(newContainer(t, regs...), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})
	return m
}

func joined(marks []string) string {
	return strings.Join(marks, ",")
}

func typeFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// names возвращает имена типов. Значения reflect.Type сравниваются по
// указателю, assert.Equal их не различает.
func names(types ...reflect.Type) []string {
	result := make([]string, 0, len(types))
	for _, t := range types {
		if t == nil {
			result = append(result, "")
			continue
		}
		result = append(result, t.String())
	}
	return result
}
