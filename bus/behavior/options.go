// Package behavior содержит готовые pipeline-поведения для медиатора:
// восстановление после паники, ограничение частоты и валидацию сообщений.
package behavior

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// Порядок поведений по умолчанию. Восстановление оборачивает все остальные,
// ограничение частоты срабатывает до валидации.
const (
	RecoveryOrder   = mediator.HighestPrecedence
	RateLimitOrder  = -200
	ValidationOrder = -100
)

// settings содержит общую конфигурацию поведений.
type settings struct {
	order    int
	kinds    []mediator.MessageKind
	logger   *slog.Logger
	validate *validator.Validate
}

// Option определяет тип для функциональных опций поведений.
type Option func(*settings)

// WithOrder переопределяет приоритет поведения.
func WithOrder(order int) Option {
	return func(s *settings) {
		s.order = order
	}
}

// WithKinds ограничивает поведение указанными видами сообщений.
// По умолчанию поведение применяется и к запросам, и к уведомлениям.
func WithKinds(kinds ...mediator.MessageKind) Option {
	return func(s *settings) {
		s.kinds = append(s.kinds, kinds...)
	}
}

// WithLogger задает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithValidator задает собственный экземпляр валидатора, например с
// зарегистрированными пользовательскими правилами.
func WithValidator(v *validator.Validate) Option {
	return func(s *settings) {
		s.validate = v
	}
}

func newSettings(order int, opts []Option) *settings {
	s := &settings{
		order:  order,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// applies сообщает, относится ли текущая отправка к видам, на которые настроено поведение.
func (s *settings) applies(ctx context.Context) bool {
	if len(s.kinds) == 0 {
		return true
	}
	kind, ok := mediator.KindFromContext(ctx)
	if !ok {
		return false
	}
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}
