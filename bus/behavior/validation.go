package behavior

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-reflect"

	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

// Validation проверяет теги `validate` структурных сообщений до вызова обработчика.
// Сообщения, не являющиеся структурами, пропускаются без проверки.
type Validation struct {
	s *settings
}

// NewValidation создает поведение валидации.
func NewValidation(opts ...Option) *Validation {
	s := newSettings(ValidationOrder, opts)
	if s.validate == nil {
		s.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Validation{s: s}
}

// Order реализует интерфейс mediator.Ordered.
func (b *Validation) Order() int {
	return b.s.order
}

// Handle реализует интерфейс mediator.PipelineBehavior.
func (b *Validation) Handle(ctx context.Context, msg mediator.Message, next mediator.Next) (any, error) {
	if !b.s.applies(ctx) || !isStruct(msg) {
		return next(ctx, msg)
	}

	if err := b.s.validate.StructCtx(ctx, msg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("не удалось проверить сообщение '%T': %w", msg, err)
		}
		verr := &ValidationError{MessageType: fmt.Sprintf("%T", msg)}
		for _, fe := range fieldErrs {
			verr.Fields = append(verr.Fields, FieldError{
				Field: fe.Namespace(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
				Value: fe.Value(),
			})
		}
		return nil, verr
	}

	return next(ctx, msg)
}

func isStruct(msg any) bool {
	if msg == nil {
		return false
	}
	val := reflect.ValueOf(msg)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return false
		}
		val = val.Elem()
	}
	return val.Kind() == reflect.Struct
}
