package mediator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-mediator/bus/dependency"
	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

func TestPipeline_Ordering(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	m := newMediator(t, nil,
		value(&greetHandler{rec: rec}),
		value(metricsBehavior{&markBehavior{name: "3", order: 3, rec: rec}}),
		value(authCheckBehavior{&markBehavior{name: "1", order: 1, rec: rec}}),
		value(loggingBehavior{&markBehavior{name: "2", order: 2, rec: rec}}),
	)

	res, err := mediator.Send[string](context.Background(), m, greet{Name: "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res)
	assert.Equal(t, []string{"1", "2", "3", "handler", "3", "2", "1"}, rec.list())
}

func TestPipeline_AuthCheckWrapsLogging(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	m := newMediator(t, nil,
		value(&greetHandler{rec: rec}),
		value(loggingBehavior{&markBehavior{name: "logging", order: 1, rec: rec}}),
		value(authCheckBehavior{&markBehavior{name: "auth-check", order: 0, rec: rec}}),
	)

	_, err := m.Send(context.Background(), greet{Name: "world"})
	require.NoError(t, err)
	assert.Equal(t, []string{"auth-check", "logging", "handler", "logging", "auth-check"}, rec.list())
}

func TestPipeline_DefaultOrderIsOutermost(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	m := newMediator(t, nil,
		value(&greetHandler{rec: rec}),
		value(loggingBehavior{&markBehavior{name: "ordered", order: -1000, rec: rec}}),
		value(mediator.NewBehaviorFunc(mediator.HighestPrecedence, func(ctx context.Context, msg mediator.Message, next mediator.Next) (any, error) {
			rec.add("highest")
			return next(ctx, msg)
		})),
	)

	_, err := m.Send(context.Background(), greet{})
	require.NoError(t, err)
	assert.Equal(t, []string{"highest", "ordered", "handler", "ordered"}, rec.list())
}

func TestPipeline_ShortCircuit(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	m := newMediator(t, nil,
		value(&greetHandler{rec: rec}),
		value(mediator.NewBehaviorFunc(0, func(context.Context, mediator.Message, mediator.Next) (any, error) {
			return "from cache", nil
		})),
	)

	res, err := mediator.Send[string](context.Background(), m, greet{Name: "world"})
	require.NoError(t, err)
	assert.Equal(t, "from cache", res)
	assert.Empty(t, rec.list(), "Обработчик не должен вызываться, если поведение не вызвало next")
}

func TestPipeline_TransformsMessageAndResult(t *testing.T) {
	t.Parallel()

	m := newMediator(t, nil,
		value(&greetHandler{}),
		value(mediator.NewBehaviorFunc(0, func(ctx context.Context, msg mediator.Message, next mediator.Next) (any, error) {
			if g, ok := msg.(greet); ok {
				msg = greet{Name: g.Name + "!"}
			}
			res, err := next(ctx, msg)
			if s, ok := res.(string); ok {
				res = s + "?"
			}
			return res, err
		})),
	)

	res, err := mediator.Send[string](context.Background(), m, greet{Name: "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world!?", res)
}

func TestPipeline_SwallowsError(t *testing.T) {
	t.Parallel()

	m := newMediator(t, nil,
		value(failingHandler{}),
		value(mediator.NewBehaviorFunc(0, func(ctx context.Context, msg mediator.Message, next mediator.Next) (any, error) {
			res, err := next(ctx, msg)
			if errors.Is(err, errBoom) {
				return mediator.Unit{}, nil
			}
			return res, err
		})),
	)

	_, err := mediator.Send[mediator.Unit](context.Background(), m, failing{})
	assert.NoError(t, err)
}

func TestPipeline_AppliesToNotifications(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	var kinds []mediator.MessageKind
	m := newMediator(t, nil,
		value(&firstEventHandler{rec: rec}),
		value(&greetHandler{rec: rec}),
		value(mediator.NewBehaviorFunc(0, func(ctx context.Context, msg mediator.Message, next mediator.Next) (any, error) {
			kind, ok := mediator.KindFromContext(ctx)
			require.True(t, ok)
			kinds = append(kinds, kind)
			return next(ctx, msg)
		})),
	)

	require.NoError(t, m.Publish(context.Background(), event{}))
	_, err := m.Send(context.Background(), greet{})
	require.NoError(t, err)

	assert.Equal(t, []mediator.MessageKind{mediator.KindNotification, mediator.KindRequest}, kinds)
	assert.Equal(t, []string{"first", "handler"}, rec.list())
}

func TestPipeline_BehaviorResolutionFailureIsNotCached(t *testing.T) {
	t.Parallel()

	ready := false
	m := newMediator(t, nil,
		value(&greetHandler{}),
		factory(func(*dependency.Container) (authCheckBehavior, error) {
			if !ready {
				return authCheckBehavior{}, errors.New("поведение не готово")
			}
			return authCheckBehavior{&markBehavior{name: "auth", rec: &recorder{}}}, nil
		}),
	)

	_, err := m.Send(context.Background(), greet{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "поведение не готово")

	ready = true
	res, err := mediator.Send[string](context.Background(), m, greet{Name: "again"})
	require.NoError(t, err)
	assert.Equal(t, "hello again", res)
}
