package actorutil

import (
	"context"
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

// SafeBackgroundTask runs fn off the actor goroutine. Panics and timeouts
// surface as errors to OnError or Recover instead of crashing the actor.
type SafeBackgroundTask[T any] struct {
	root      *actor.RootContext
	fn        func(context.Context) (*T, error)
	timeout   time.Duration
	onError   func(error)
	recover   func(error) T
	onSuccess func(T)
}

func NewBackgroundTask[T any](ctx actor.Context, fn func(context.Context) (*T, error)) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		root: ctx.ActorSystem().Root,
		fn:   fn,
	}
}

func NewBackgroundTaskNoError[T any](ctx actor.Context, fn func(context.Context) *T) *SafeBackgroundTask[T] {
	return NewBackgroundTask(ctx, func(c context.Context) (*T, error) {
		return fn(c), nil
	})
}

func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = timeout
	return t
}

func (t *SafeBackgroundTask[T]) OnError(fn func(error)) *SafeBackgroundTask[T] {
	t.onError = fn
	return t
}

func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

func (t *SafeBackgroundTask[T]) OnSuccess(fn func(T)) *SafeBackgroundTask[T] {
	t.onSuccess = fn
	return t
}

// PipeTo sends the result (or the recovered value) to pid once the task completes
func (t *SafeBackgroundTask[T]) PipeTo(pid *actor.PID) {
	t.onSuccess = func(value T) {
		t.root.Send(pid, value)
	}
	go t.Run()
}

// Run executes the task on the calling goroutine
func (t *SafeBackgroundTask[T]) Run() {
	runCtx := context.Background()
	var cancel context.CancelFunc = func() {}
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, t.timeout)
	}
	defer cancel()

	bgFn := io.Eval(func() (*T, error) {
		return t.fn(runCtx)
	})
	bg := io.Map(bgFn, func(a *T) T {
		if a != nil {
			return *a
		}
		panic(errors.New("result is nil"))
	})
	if t.timeout > 0 {
		bg = io.WithTimeout[T](t.timeout)(bg)
	}
	result := io.RunSync(bg)

	value := result.Value
	if result.Error != nil {
		switch {
		case t.recover != nil:
			value = t.recover(result.Error)
		case t.onError != nil:
			t.onError(result.Error)
			return
		default:
			return
		}
	}
	if t.onSuccess != nil {
		t.onSuccess(value)
	}
}
