package behavior

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// RateLimit ограничивает частоту отправок общим для всех сообщений лимитером.
// Отправка ждет свободный токен. Отмена контекста прерывает ожидание.
type RateLimit struct {
	limiter *rate.Limiter
	s       *settings
}

// NewRateLimit создает поведение с лимитом perSecond отправок в секунду и
// допустимым всплеском burst.
func NewRateLimit(perSecond float64, burst int, opts ...Option) *RateLimit {
	return NewRateLimitWithLimiter(rate.NewLimiter(rate.Limit(perSecond), burst), opts...)
}

// NewRateLimitWithLimiter создает поведение поверх готового лимитера.
func NewRateLimitWithLimiter(limiter *rate.Limiter, opts ...Option) *RateLimit {
	return &RateLimit{
		limiter: limiter,
		s:       newSettings(RateLimitOrder, opts),
	}
}

// Order реализует интерфейс mediator.Ordered.
func (b *RateLimit) Order() int {
	return b.s.order
}

// Handle реализует интерфейс mediator.PipelineBehavior.
func (b *RateLimit) Handle(ctx context.Context, msg mediator.Message, next mediator.Next) (any, error) {
	if !b.s.applies(ctx) {
		return next(ctx, msg)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ожидание лимита для сообщения '%T' прервано: %w", msg, err)
	}
	return next(ctx, msg)
}
