package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// Recovery превращает панику в обработчике или во внутренних поведениях в *PanicError.
// Паники обработчиков, запущенных стратегиями в отдельных горутинах, сюда не доходят.
type Recovery struct {
	s *settings
}

// NewRecovery создает поведение восстановления.
func NewRecovery(opts ...Option) *Recovery {
	return &Recovery{s: newSettings(RecoveryOrder, opts)}
}

// Order реализует интерфейс mediator.Ordered.
func (b *Recovery) Order() int {
	return b.s.order
}

// Handle реализует интерфейс mediator.PipelineBehavior.
func (b *Recovery) Handle(ctx context.Context, msg mediator.Message, next mediator.Next) (result any, err error) {
	if !b.s.applies(ctx) {
		return next(ctx, msg)
	}

	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{
				MessageType: fmt.Sprintf("%T", msg),
				Value:       r,
				Stack:       debug.Stack(),
			}
			if b.s.logger != nil {
				b.s.logger.ErrorContext(ctx, "паника при обработке сообщения",
					slog.String("message_type", perr.MessageType),
					slog.Any("panic", r),
					slog.String("stack", string(perr.Stack)),
				)
			}
			result, err = nil, perr
		}
	}()

	return next(ctx, msg)
}
