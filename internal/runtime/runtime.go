// Package runtime implements the execution core of a CPython-compatible
// interpreter: dynamic call binding, exception propagation with chained
// tracebacks, a poll-driven coroutine runtime and the class system with
// C3 method resolution.
//
// The package is scheduler-agnostic. An embedding event loop creates one
// ExecContext per task, drives futures through PollOnce and owns the
// decision of when to run which task; everything here happens under the
// runtime's global lock.
package runtime

import (
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/funvibe/pyrt/internal/config"
)

// Runtime owns the shared interpreter state: the builtin classes, the
// per-task context table and the global lock that serializes mutation.
type Runtime struct {
	mu  sync.Mutex
	cfg config.Options
	log *zap.Logger

	tasks   map[uuid.UUID]*ExecContext
	classes map[string]*Class

	stderr   io.Writer
	exitFunc func(code int)
}

// Option configures a Runtime.
type Option func(*Runtime)

func WithLogger(log *zap.Logger) Option {
	return func(rt *Runtime) { rt.log = log }
}

func WithConfig(cfg config.Options) Option {
	return func(rt *Runtime) { rt.cfg = cfg }
}

// WithStderr redirects the fatal traceback printer.
func WithStderr(w io.Writer) Option {
	return func(rt *Runtime) { rt.stderr = w }
}

// WithExitFunc replaces os.Exit for the uncaught-exception path.
func WithExitFunc(fn func(int)) Option {
	return func(rt *Runtime) { rt.exitFunc = fn }
}

func New(opts ...Option) *Runtime {
	rt := &Runtime{
		cfg:      config.Default(),
		log:      zap.NewNop(),
		tasks:    make(map[uuid.UUID]*ExecContext),
		classes:  make(map[string]*Class),
		stderr:   os.Stderr,
		exitFunc: os.Exit,
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.bootstrapClasses()
	return rt
}

// Lock acquires the global interpreter lock. Every entry point from the
// embedding scheduler must hold it.
func (rt *Runtime) Lock()   { rt.mu.Lock() }
func (rt *Runtime) Unlock() { rt.mu.Unlock() }

func (rt *Runtime) Config() config.Options { return rt.cfg }

// Class returns a builtin class by name, or nil.
func (rt *Runtime) Class(name string) *Class { return rt.classes[name] }

// NewContext registers a fresh execution context keyed by a new task id.
// Call under the runtime lock.
func (rt *Runtime) NewContext() *ExecContext {
	ctx := &ExecContext{
		ID: uuid.New(),
		rt: rt,
	}
	rt.tasks[ctx.ID] = ctx
	if rt.cfg.TraceCalls {
		rt.log.Debug("context created", zap.String("task", ctx.ID.String()))
	}
	return ctx
}

// DropContext removes the context from the task table and releases any
// exception state it still owns.
func (rt *Runtime) DropContext(ctx *ExecContext) {
	delete(rt.tasks, ctx.ID)
	ctx.release()
}

// Context looks up a registered context by task id.
func (rt *Runtime) Context(id uuid.UUID) (*ExecContext, bool) {
	ctx, ok := rt.tasks[id]
	return ctx, ok
}

func (rt *Runtime) traceExc(msg string, fields ...zap.Field) {
	if rt.cfg.TraceExceptions {
		rt.log.Debug(msg, fields...)
	}
}

func (rt *Runtime) traceCall(msg string, fields ...zap.Field) {
	if rt.cfg.TraceCalls {
		rt.log.Debug(msg, fields...)
	}
}

func (rt *Runtime) tracePoll(msg string, fields ...zap.Field) {
	if rt.cfg.TracePoll {
		rt.log.Debug(msg, fields...)
	}
}
