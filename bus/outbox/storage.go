package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Storage определяет контракт для персистентного хранения сообщений outbox.
// Все операции должны быть потокобезопасными.
type Storage interface {
	// Save сохраняет сообщение в хранилище.
	// Реализация ОБЯЗАНА извлечь транзакцию из контекста, если она там есть,
	// и выполнить операцию в ее рамках.
	Save(ctx context.Context, msg *Message) error

	// Fetch извлекает ожидающие сообщения в порядке сохранения.
	Fetch(ctx context.Context, limit int) ([]*Message, error)

	// MarkProcessed помечает сообщения как опубликованные.
	MarkProcessed(ctx context.Context, ids ...uuid.UUID) error
}

// MemoryStorage хранит сообщения в памяти процесса. Подходит для тестов и
// локального запуска, транзакций не поддерживает.
type MemoryStorage struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]*Message
	order    []uuid.UUID
}

// NewMemoryStorage создает пустое хранилище в памяти.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages: make(map[uuid.UUID]*Message),
	}
}

// Save реализует интерфейс Storage.
func (s *MemoryStorage) Save(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[msg.ID]; !exists {
		s.order = append(s.order, msg.ID)
	}
	stored := *msg
	s.messages[msg.ID] = &stored
	return nil
}

// Fetch реализует интерфейс Storage.
func (s *MemoryStorage) Fetch(ctx context.Context, limit int) ([]*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*Message, 0)
	for _, id := range s.order {
		if limit > 0 && len(pending) == limit {
			break
		}
		if msg := s.messages[id]; msg.Status == StatusPending {
			copied := *msg
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

// MarkProcessed реализует интерфейс Storage.
func (s *MemoryStorage) MarkProcessed(ctx context.Context, ids ...uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range ids {
		if msg, ok := s.messages[id]; ok {
			msg.Status = StatusProcessed
			msg.ProcessedAt = &now
		}
	}
	return nil
}

// Messages возвращает копии всех сообщений, включая опубликованные.
func (s *MemoryStorage) Messages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Message, 0, len(s.order))
	for _, id := range s.order {
		copied := *s.messages[id]
		all = append(all, &copied)
	}
	return all
}
