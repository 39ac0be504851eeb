package mediator

import (
	"context"
	"sort"
)

// orderOf возвращает приоритет поведения.
func orderOf(b PipelineBehavior) int {
	if o, ok := b.(Ordered); ok {
		return o.Order()
	}
	return HighestPrecedence
}

// sortBehaviors упорядочивает поведения по возрастанию Order. Поведение с
// наименьшим значением оказывается снаружи: его код до next выполняется первым,
// код после next — последним. Порядок равных значений не определен.
func sortBehaviors(behaviors []PipelineBehavior) []PipelineBehavior {
	sorted := append([]PipelineBehavior(nil), behaviors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return orderOf(sorted[i]) < orderOf(sorted[j])
	})
	return sorted
}

// buildChain сворачивает терминальный вызов через поведения от внутреннего к внешнему.
func buildChain(behaviors []PipelineBehavior, terminal Next) Next {
	next := terminal
	for i := len(behaviors) - 1; i >= 0; i-- {
		next = wrapBehavior(behaviors[i], next)
	}
	return next
}

func wrapBehavior(b PipelineBehavior, next Next) Next {
	return func(ctx context.Context, msg Message) (any, error) {
		return b.Handle(ctx, msg, next)
	}
}
