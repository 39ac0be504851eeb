package behavior

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation возвращается, если сообщение не прошло валидацию.
	ErrValidation = errors.New("сообщение не прошло валидацию")
	// ErrPanic возвращается, если обработчик или поведение запаниковали.
	ErrPanic = errors.New("паника при обработке сообщения")
)

// FieldError описывает нарушение одного правила валидации.
type FieldError struct {
	Field string
	Tag   string
	Param string
	Value any
}

// ValidationError содержит все нарушения правил для одного сообщения.
type ValidationError struct {
	MessageType string
	Fields      []FieldError
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		rule := f.Tag
		if f.Param != "" {
			rule += "=" + f.Param
		}
		messages = append(messages, fmt.Sprintf("поле '%s' не прошло проверку %s (значение: '%v')", f.Field, rule, f.Value))
	}
	return fmt.Sprintf("сообщение '%s' не прошло валидацию: %s", e.MessageType, strings.Join(messages, "; "))
}

// Is позволяет сравнивать ошибку с ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PanicError содержит значение паники и стек вызовов.
type PanicError struct {
	MessageType string
	Value       any
	Stack       []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("паника при обработке сообщения '%s': %v", e.MessageType, e.Value)
}

// Is позволяет сравнивать ошибку с ErrPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrPanic
}

// Unwrap возвращает исходную ошибку, если паника была вызвана значением error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
