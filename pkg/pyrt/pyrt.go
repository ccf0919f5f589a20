// Package pyrt is the embedding API over the execution core. A host
// scheduler creates an Engine, opens one Task per unit of concurrency
// and drives calls and futures through it; every method takes and
// releases the global runtime lock, so hosts may call in from any
// goroutine.
package pyrt

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/funvibe/pyrt/internal/config"
	"github.com/funvibe/pyrt/internal/runtime"
)

// Engine wraps the runtime for embedding.
type Engine struct {
	rt *runtime.Runtime
}

// Task is one execution context plus its engine.
type Task struct {
	eng *Engine
	ctx *runtime.ExecContext
}

// ErrPending reports that a polled future is not ready yet.
var ErrPending = errors.New("pyrt: future pending")

type Option func(*options)

type options struct {
	cfg    *config.Options
	logger *zap.Logger
	exit   func(int)
}

func WithConfig(cfg config.Options) Option {
	return func(o *options) { o.cfg = &cfg }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithExitFunc overrides process termination on uncaught exceptions.
func WithExitFunc(fn func(int)) Option {
	return func(o *options) { o.exit = fn }
}

func New(opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var rtOpts []runtime.Option
	if o.cfg != nil {
		rtOpts = append(rtOpts, runtime.WithConfig(*o.cfg))
	}
	if o.logger != nil {
		rtOpts = append(rtOpts, runtime.WithLogger(o.logger))
	}
	if o.exit != nil {
		rtOpts = append(rtOpts, runtime.WithExitFunc(o.exit))
	}
	return &Engine{rt: runtime.New(rtOpts...)}
}

// NewTask opens an execution context.
func (e *Engine) NewTask() *Task {
	e.rt.Lock()
	defer e.rt.Unlock()
	return &Task{eng: e, ctx: e.rt.NewContext()}
}

// Close drops the task's runtime state.
func (t *Task) Close() {
	t.eng.rt.Lock()
	defer t.eng.rt.Unlock()
	t.eng.rt.DropContext(t.ctx)
}

// Cancel marks the task cancelled.
func (t *Task) Cancel() {
	t.eng.rt.Lock()
	defer t.eng.rt.Unlock()
	t.ctx.Cancel()
}

// Context exposes the underlying execution context for hosts that work
// against the core package directly.
func (t *Task) Context() *runtime.ExecContext { return t.ctx }

// BuiltinClass returns a builtin class by name.
func (e *Engine) BuiltinClass(name string) runtime.Object {
	e.rt.Lock()
	defer e.rt.Unlock()
	if cls := e.rt.Class(name); cls != nil {
		return cls
	}
	return nil
}

// Call invokes callee with positional args and keyword kwargs,
// translating a pending exception into a Go error.
func (t *Task) Call(callee runtime.Object, args []runtime.Object, kwargs map[string]runtime.Object) (runtime.Object, error) {
	t.eng.rt.Lock()
	defer t.eng.rt.Unlock()

	ca := runtime.NewCallArgs(len(args))
	for _, a := range args {
		ca.PushPositional(a)
	}
	for k, v := range kwargs {
		if res := ca.PushKeyword(t.ctx, k, v); runtime.IsError(res) {
			ca.Release()
			return nil, t.takeError()
		}
	}
	res := runtime.Invoke(t.ctx, callee, ca)
	return t.finish(res)
}

// Poll advances a future one step. ErrPending means call again later.
func (t *Task) Poll(fut runtime.Object) (runtime.Object, error) {
	t.eng.rt.Lock()
	defer t.eng.rt.Unlock()

	f, ok := fut.(*runtime.Future)
	if !ok {
		return nil, fmt.Errorf("pyrt: %s is not a future", fut.Type())
	}
	res := runtime.PollOnce(t.ctx, f)
	if runtime.IsPending(res) {
		return nil, ErrPending
	}
	return t.finish(res)
}

// Raise records an exception on the task, aborting the process when
// nothing can catch it.
func (t *Task) Raise(exc runtime.Object) error {
	t.eng.rt.Lock()
	defer t.eng.rt.Unlock()
	t.ctx.Raise(exc)
	return t.takeError()
}

// RaiseFrom is raise ... from ...: the explicit cause suppresses
// implicit context display.
func (t *Task) RaiseFrom(exc, cause runtime.Object) error {
	t.eng.rt.Lock()
	defer t.eng.rt.Unlock()
	t.ctx.RaiseFrom(exc, cause)
	return t.takeError()
}

// DefineClass runs the full class construction protocol.
func (t *Task) DefineClass(name string, bases []runtime.Object, members map[string]runtime.Object) (runtime.Object, error) {
	t.eng.rt.Lock()
	defer t.eng.rt.Unlock()

	dict := runtime.NewDict()
	for k, v := range members {
		dict.Set(k, v)
	}
	res := runtime.NewClass(t.ctx, name, bases, dict, nil, nil)
	runtime.DecRef(dict)
	return t.finish(res)
}

func (t *Task) finish(res runtime.Object) (runtime.Object, error) {
	if runtime.IsError(res) {
		return nil, t.takeError()
	}
	return res, nil
}

// takeError converts the pending exception to a Go error.
func (t *Task) takeError() error {
	exc := t.ctx.TakePending()
	if exc == nil {
		return errors.New("pyrt: operation failed without a pending exception")
	}
	err := errors.New(runtime.FormatException(exc))
	runtime.DecRef(exc)
	return err
}
