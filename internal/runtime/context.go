package runtime

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Frame is one entry of a task's call stack, recorded for tracebacks.
type Frame struct {
	Name string
	File string
	Line int
}

// ExecContext is the per-task execution state. The embedding scheduler
// creates one per task and passes it to every operation it runs on that
// task's behalf. All fields are guarded by the runtime lock.
type ExecContext struct {
	ID uuid.UUID
	rt *Runtime

	frames []Frame

	// handlers records the frame depth at which each active try-region
	// handler was installed, innermost last.
	handlers []int

	// active holds the exceptions currently being handled, innermost
	// last. Entries below activeBase belong to an enclosing owner and
	// must not be popped by this task; generators adjust the base when
	// they save and restore their slice of the stack.
	active     []Object
	activeBase int

	// pending is the recorded, not yet consumed exception.
	pending Object

	cancelled bool

	// suspendDepth is nonzero while a future body runs on this task;
	// raises inside it park the exception instead of aborting.
	suspendDepth int

	// contexts are the top-level with-statement managers, entered order.
	// They are unwound in reverse on abort.
	contexts []Object
}

func (ctx *ExecContext) Runtime() *Runtime { return ctx.rt }

// PushFrame records a call-stack entry. It enforces the recursion limit.
func (ctx *ExecContext) PushFrame(name, file string, line int) Object {
	if len(ctx.frames) >= ctx.rt.cfg.RecursionLimit {
		return ctx.RaiseError("RecursionError", "maximum recursion depth exceeded")
	}
	ctx.frames = append(ctx.frames, Frame{Name: name, File: file, Line: line})
	return None{}
}

func (ctx *ExecContext) PopFrame() {
	if n := len(ctx.frames); n > 0 {
		ctx.frames = ctx.frames[:n-1]
	}
}

func (ctx *ExecContext) Depth() int { return len(ctx.frames) }

// SetLine updates the line of the innermost frame, so tracebacks point
// at the active statement rather than the call site.
func (ctx *ExecContext) SetLine(line int) {
	if n := len(ctx.frames); n > 0 {
		ctx.frames[n-1].Line = line
	}
}

// Cancel marks the task cancelled. A cancelled task tolerates handler
// stack underflow, since cancellation may unwind past installed handlers.
func (ctx *ExecContext) Cancel() {
	ctx.cancelled = true
}

func (ctx *ExecContext) Cancelled() bool { return ctx.cancelled }

// --- Handler stack ---

// PushHandler marks entry into a try region.
func (ctx *ExecContext) PushHandler() {
	ctx.handlers = append(ctx.handlers, len(ctx.frames))
	ctx.rt.traceExc("handler push",
		zap.String("task", ctx.ID.String()),
		zap.Int("depth", len(ctx.handlers)))
}

// PopHandler marks exit from a try region. Popping an empty stack is
// fatal unless the task has been cancelled: cancellation tears frames
// down out of band, so a drained stack is expected then.
func (ctx *ExecContext) PopHandler() Object {
	if len(ctx.handlers) == 0 {
		if ctx.cancelled {
			return None{}
		}
		return ctx.RaiseError("RuntimeError", "exception handler stack underflow")
	}
	ctx.handlers = ctx.handlers[:len(ctx.handlers)-1]
	return None{}
}

func (ctx *ExecContext) HandlerDepth() int { return len(ctx.handlers) }

// HandlerActive reports whether any try region is live on this task.
func (ctx *ExecContext) HandlerActive() bool { return len(ctx.handlers) > 0 }

// --- Active-exception stack ---

// PushActive records exc as the exception being handled; it backs bare
// raise and implicit context chaining inside handlers.
func (ctx *ExecContext) PushActive(exc Object) {
	IncRef(exc)
	ctx.active = append(ctx.active, exc)
}

func (ctx *ExecContext) PopActive() {
	n := len(ctx.active)
	if n <= ctx.activeBase {
		return
	}
	DecRef(ctx.active[n-1])
	ctx.active = ctx.active[:n-1]
}

// CurrentActive returns the innermost exception being handled, or nil.
func (ctx *ExecContext) CurrentActive() Object {
	if n := len(ctx.active); n > ctx.activeBase {
		return ctx.active[n-1]
	}
	return nil
}

// SaveActive detaches the entries this owner pushed above its baseline.
// Generators and tasks call it on suspension; the returned slice keeps
// the references and must be restored or dropped exactly once.
func (ctx *ExecContext) SaveActive(baseline int) []Object {
	if baseline < 0 || baseline > len(ctx.active) {
		baseline = len(ctx.active)
	}
	saved := make([]Object, len(ctx.active)-baseline)
	copy(saved, ctx.active[baseline:])
	ctx.active = ctx.active[:baseline]
	return saved
}

// RestoreActive reattaches a saved slice on resumption.
func (ctx *ExecContext) RestoreActive(saved []Object) {
	ctx.active = append(ctx.active, saved...)
}

// DropActive releases a saved slice that will never be restored.
func DropActive(saved []Object) {
	for i := range saved {
		ClearSlot(&saved[i])
	}
}

// ActiveBaseline returns the depth a suspendable body should restore to.
func (ctx *ExecContext) ActiveBaseline() int { return len(ctx.active) }

// SetActiveBase shields entries below depth from this task's pops.
// Returns the previous base so callers can restore it.
func (ctx *ExecContext) SetActiveBase(depth int) int {
	prev := ctx.activeBase
	ctx.activeBase = depth
	return prev
}

// --- Top-level context-manager stack ---

// EnterContext registers a top-level context manager for unwinding on
// abort.
func (ctx *ExecContext) EnterContext(mgr Object) {
	IncRef(mgr)
	ctx.contexts = append(ctx.contexts, mgr)
}

// ExitContext unregisters the most recent manager without invoking it.
func (ctx *ExecContext) ExitContext() {
	if n := len(ctx.contexts); n > 0 {
		DecRef(ctx.contexts[n-1])
		ctx.contexts = ctx.contexts[:n-1]
	}
}

func (ctx *ExecContext) release() {
	ClearSlot(&ctx.pending)
	for i := range ctx.active {
		DecRef(ctx.active[i])
	}
	ctx.active = nil
	for i := range ctx.contexts {
		DecRef(ctx.contexts[i])
	}
	ctx.contexts = nil
	ctx.handlers = nil
	ctx.frames = nil
}

// RaiseError builds an exception of the named builtin class with a
// formatted message, records it and returns the error sentinel.
func (ctx *ExecContext) RaiseError(kind, format string, args ...interface{}) Object {
	cls := ctx.rt.classes[kind]
	if cls == nil {
		cls = ctx.rt.classes["RuntimeError"]
	}
	exc := newException(cls, fmt.Sprintf(format, args...))
	ctx.Record(exc)
	DecRef(exc)
	return TheError
}

// TypeErrorf is shorthand for the most common binding failure.
func (ctx *ExecContext) TypeErrorf(format string, args ...interface{}) Object {
	return ctx.RaiseError("TypeError", format, args...)
}
