// Package outbox реализует паттерн Transactional Outbox для уведомлений медиатора.
// Зарегистрированные уведомления не доставляются обработчикам сразу, а
// сохраняются в хранилище в той же транзакции, что и изменения бизнес-данных.
// Retransmitter затем публикует их повторно через медиатор.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status — состояние сообщения в хранилище.
type Status string

const (
	// StatusPending означает, что сообщение ожидает публикации.
	StatusPending Status = "PENDING"
	// StatusProcessed означает, что сообщение было успешно опубликовано.
	StatusProcessed Status = "PROCESSED"
)

// Message представляет уведомление, сохраненное в хранилище outbox.
type Message struct {
	ID          uuid.UUID         // Уникальный идентификатор сообщения
	Topic       string            // Топик, по которому восстанавливается тип уведомления
	Payload     []byte            // Сериализованное уведомление
	Metadata    map[string]string // Метаданные (контекст трассировки и т.д.)
	Status      Status            // Статус (PENDING, PROCESSED)
	CreatedAt   time.Time         // Время создания
	ProcessedAt *time.Time        // Время публикации
}
