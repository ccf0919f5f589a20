package runtime

import "go.uber.org/zap"

// Record makes exc the pending exception of the task. A different
// exception already pending becomes exc's implicit __context__ unless
// exc brought its own; recording the same object again is a no-op for
// chaining, so retries cannot self-link. The traceback is materialized
// exactly once and survives re-raise.
func (ctx *ExecContext) Record(exc *Exception) {
	prior := ctx.pending
	ctx.pending = nil

	if prior != nil {
		if pe, ok := prior.(*Exception); ok && pe != exc && exc.Context == nil {
			// Transfer the pending reference into the chain.
			exc.Context = pe
		} else {
			DecRef(prior)
		}
	}

	if exc.Traceback == nil {
		exc.Traceback = buildTraceback(ctx, exc.Cause != nil)
	}

	IncRef(exc)
	ctx.pending = exc
	ctx.rt.traceExc("exception recorded",
		zap.String("task", ctx.ID.String()),
		zap.String("kind", exc.Class.Name))
}

// ExceptionPending reports whether an exception is waiting on the task.
func (ctx *ExecContext) ExceptionPending() bool { return ctx.pending != nil }

// PendingException returns the pending exception without consuming it.
func (ctx *ExecContext) PendingException() *Exception {
	if e, ok := ctx.pending.(*Exception); ok {
		return e
	}
	return nil
}

// TakePending consumes the pending exception and transfers its
// reference to the caller.
func (ctx *ExecContext) TakePending() *Exception {
	e, _ := ctx.pending.(*Exception)
	ctx.pending = nil
	return e
}

// ClearPending drops the pending exception, if any.
func (ctx *ExecContext) ClearPending() {
	ClearSlot(&ctx.pending)
}

// Raise normalizes o, records it and either returns the sentinel (a
// handler or suspended body will observe it) or aborts the process when
// nothing can catch it.
func (ctx *ExecContext) Raise(o Object) Object {
	norm := Normalize(ctx, o)
	if IsError(norm) {
		return TheError
	}
	exc := norm.(*Exception)
	ctx.Record(exc)
	DecRef(exc)

	if !ctx.HandlerActive() && ctx.suspendDepth == 0 {
		ctx.Abort(exc)
	}
	return TheError
}

// RaiseFrom implements "raise exc from cause". The explicit cause also
// suppresses implicit-context display; None is a legal cause and erases
// the chain from view.
func (ctx *ExecContext) RaiseFrom(o, cause Object) Object {
	norm := Normalize(ctx, o)
	if IsError(norm) {
		return TheError
	}
	exc := norm.(*Exception)

	if IsNone(cause) {
		ReplaceSlot(&exc.Cause, None{})
	} else {
		normCause := Normalize(ctx, cause)
		if IsError(normCause) {
			DecRef(exc)
			return TheError
		}
		old := exc.Cause
		exc.Cause = normCause
		DecRef(old)
	}
	exc.SuppressContext = true

	ctx.Record(exc)
	DecRef(exc)
	if !ctx.HandlerActive() && ctx.suspendDepth == 0 {
		ctx.Abort(exc)
	}
	return TheError
}

// ReRaise implements bare raise inside a handler.
func (ctx *ExecContext) ReRaise() Object {
	cur := ctx.CurrentActive()
	exc, ok := cur.(*Exception)
	if !ok {
		return ctx.RaiseError("RuntimeError", "No active exception to re-raise")
	}
	// The original traceback is preserved; Record will not rebuild it.
	ctx.Record(exc)
	return TheError
}
