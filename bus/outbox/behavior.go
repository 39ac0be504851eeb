package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/goccy/go-reflect"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// ErrUnknownTopic возвращается при восстановлении сообщения с незарегистрированным топиком.
var ErrUnknownTopic = errors.New("топик не зарегистрирован")

type replayKey struct{}

// withReplay помечает контекст повторной публикации из outbox.
func withReplay(ctx context.Context) context.Context {
	return context.WithValue(ctx, replayKey{}, true)
}

// IsReplay сообщает, что уведомление публикуется повторно из outbox.
func IsReplay(ctx context.Context) bool {
	replay, _ := ctx.Value(replayKey{}).(bool)
	return replay
}

type decoder func(payload []byte) (mediator.Notification, error)

// Behavior — pipeline-поведение, которое перехватывает публикацию
// зарегистрированных уведомлений и сохраняет их в Storage вместо доставки.
// Запросы и незарегистрированные уведомления проходят без изменений.
type Behavior struct {
	storage    Storage
	order      int
	propagator propagation.TextMapPropagator

	mu       sync.RWMutex
	topics   map[reflect.Type]string
	decoders map[string]decoder
}

// NewBehavior создает поведение outbox поверх хранилища.
func NewBehavior(storage Storage, opts ...Option) *Behavior {
	b := &Behavior{
		storage:    storage,
		order:      mediator.LowestPrecedence,
		propagator: propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
		topics:     make(map[reflect.Type]string),
		decoders:   make(map[string]decoder),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register направляет уведомления типа N в outbox под указанным топиком.
// Тип должен сериализоваться в JSON.
func Register[N mediator.Notification](b *Behavior, topic string) error {
	if topic == "" {
		return fmt.Errorf("топик не может быть пустым")
	}
	t := reflect.TypeOf((*N)(nil)).Elem()
	if t.Kind() == reflect.Interface {
		return fmt.Errorf("тип '%s' является интерфейсом, в outbox регистрируются только конкретные уведомления", t)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.decoders[topic]; exists {
		return fmt.Errorf("топик '%s' уже зарегистрирован", topic)
	}
	if existing, exists := b.topics[t]; exists {
		return fmt.Errorf("уведомление '%s' уже зарегистрировано с топиком '%s'", t, existing)
	}

	b.topics[t] = topic
	b.decoders[topic] = func(payload []byte) (mediator.Notification, error) {
		var n N
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil
}

// Order реализует интерфейс mediator.Ordered.
func (b *Behavior) Order() int {
	return b.order
}

// Handle реализует интерфейс mediator.PipelineBehavior.
func (b *Behavior) Handle(ctx context.Context, msg mediator.Message, next mediator.Next) (any, error) {
	if kind, _ := mediator.KindFromContext(ctx); kind != mediator.KindNotification || IsReplay(ctx) {
		return next(ctx, msg)
	}

	topic, ok := b.topicOf(msg)
	if !ok {
		return next(ctx, msg)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("не удалось сериализовать уведомление '%T': %w", msg, err)
	}

	metadata := make(map[string]string)
	if md, ok := msg.(mediator.Metadatable); ok {
		maps.Copy(metadata, md.Metadata())
	}
	b.propagator.Inject(ctx, propagation.MapCarrier(metadata))

	out := &Message{
		ID:        uuid.New(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  metadata,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.storage.Save(ctx, out); err != nil {
		return nil, fmt.Errorf("не удалось сохранить уведомление в outbox: %w", err)
	}
	return nil, nil
}

func (b *Behavior) topicOf(msg mediator.Message) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topic, ok := b.topics[reflect.TypeOf(msg)]
	return topic, ok
}

// decode восстанавливает уведомление по топику сообщения.
func (b *Behavior) decode(msg *Message) (mediator.Notification, error) {
	b.mu.RLock()
	dec, ok := b.decoders[msg.Topic]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTopic, msg.Topic)
	}
	n, err := dec(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("не удалось десериализовать сообщение '%s': %w", msg.ID, err)
	}
	return n, nil
}
