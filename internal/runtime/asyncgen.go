package runtime

// Async-generator context managers: the @asynccontextmanager protocol
// expressed as two poll machines. Enter drives the generator to its
// first yield; exit resumes it, either normally or by throwing the
// in-flight exception into it, and decides suppression.

// callMethod looks up and invokes a method with positional arguments.
func callMethod(ctx *ExecContext, recv Object, name string, args ...Object) Object {
	m := GetAttr(ctx, recv, name)
	if IsError(m) {
		return TheError
	}
	ca := NewCallArgs(len(args))
	for _, a := range args {
		ca.PushPositional(a)
	}
	res := Invoke(ctx, m, ca)
	DecRef(m)
	return res
}

func pendingMatches(ctx *ExecContext, kind string) bool {
	pe := ctx.PendingException()
	if pe == nil {
		return false
	}
	cls := ctx.rt.classes[kind]
	return cls != nil && ExcMatches(pe, cls)
}

// Enter machine payload: slot 0 generator, slot 1 in-flight __anext__.
const (
	agenSlotGen   = 0
	agenSlotAwait = 1
	agenSlotNorm  = 2
	agenSlotMode  = 3
)

const (
	aexitModeAnext int64 = iota
	aexitModeThrow
)

// NewAsyncGenEnter builds the __aenter__ machine for an async
// generator backing a context manager.
func NewAsyncGenEnter(agen Object) *Future {
	fut := NewFuture("asyncgen.__aenter__", pollAsyncGenEnter, 2)
	fut.ReplaceBorrowed(agenSlotGen, agen)
	return fut
}

func pollAsyncGenEnter(ctx *ExecContext, fut *Future) Object {
	if fut.State == 0 {
		inner := callMethod(ctx, fut.Slot(agenSlotGen), "__anext__")
		if IsError(inner) {
			return enterOutcome(ctx, TheError)
		}
		innerFut, ok := inner.(*Future)
		if !ok {
			// Synchronous __anext__: already the yielded value.
			return inner
		}
		fut.ReplaceOwned(agenSlotAwait, innerFut)
		fut.State = 1
	}

	inner, _ := fut.Slot(agenSlotAwait).(*Future)
	res := PollOnce(ctx, inner)
	if IsPending(res) {
		return res
	}
	return enterOutcome(ctx, res)
}

func enterOutcome(ctx *ExecContext, res Object) Object {
	if !IsError(res) {
		return res
	}
	// The generator finishing before its first yield means there is no
	// value to enter with.
	if pendingMatches(ctx, "StopAsyncIteration") {
		ctx.ClearPending()
		return ctx.RaiseError("RuntimeError", "async generator didn't yield")
	}
	return TheError
}

// NewAsyncGenExit builds the __aexit__ machine. exc is the exception
// leaving the with-body, or nil/None when the body completed normally.
func NewAsyncGenExit(agen Object, exc Object) *Future {
	fut := NewFuture("asyncgen.__aexit__", pollAsyncGenExit, 4)
	fut.ReplaceBorrowed(agenSlotGen, agen)
	if exc != nil && !IsNone(exc) {
		fut.ReplaceBorrowed(agenSlotNorm, exc)
	}
	return fut
}

func pollAsyncGenExit(ctx *ExecContext, fut *Future) Object {
	if fut.State == 0 {
		var inner Object
		if thrown := fut.Slot(agenSlotNorm); thrown != nil {
			norm := Normalize(ctx, thrown)
			if IsError(norm) {
				return TheError
			}
			fut.ReplaceOwned(agenSlotNorm, norm)
			fut.SetInt(agenSlotMode, aexitModeThrow)
			inner = callMethod(ctx, fut.Slot(agenSlotGen), "athrow", norm)
		} else {
			fut.SetInt(agenSlotMode, aexitModeAnext)
			inner = callMethod(ctx, fut.Slot(agenSlotGen), "__anext__")
		}
		if IsError(inner) {
			return exitHandleException(ctx, fut)
		}
		innerFut, ok := inner.(*Future)
		if !ok {
			DecRef(inner)
			return exitDidNotStop(ctx, fut)
		}
		fut.ReplaceOwned(agenSlotAwait, innerFut)
		fut.State = 1
	}

	inner, _ := fut.Slot(agenSlotAwait).(*Future)
	res := PollOnce(ctx, inner)
	if IsPending(res) {
		return res
	}
	if IsError(res) {
		return exitHandleException(ctx, fut)
	}
	DecRef(res)
	return exitDidNotStop(ctx, fut)
}

// exitDidNotStop fires when the generator yielded again instead of
// finishing: a context-manager generator must have exactly one yield.
func exitDidNotStop(ctx *ExecContext, fut *Future) Object {
	if fut.IntAt(agenSlotMode) == aexitModeThrow {
		return ctx.RaiseError("RuntimeError", "async generator didn't stop after athrow")
	}
	return ctx.RaiseError("RuntimeError", "async generator didn't stop")
}

// exitHandleException maps what athrow/__anext__ raised onto the
// __aexit__ contract: StopAsyncIteration means the generator finished
// (suppress unless it is the very exception we threw in); getting the
// thrown exception back means it passed through unhandled; anything
// else propagates.
func exitHandleException(ctx *ExecContext, fut *Future) Object {
	pe := ctx.PendingException()
	if pe == nil {
		return TheError
	}
	mode := fut.IntAt(agenSlotMode)
	norm := fut.Slot(agenSlotNorm)

	if pendingMatches(ctx, "StopAsyncIteration") {
		if mode == aexitModeAnext {
			ctx.ClearPending()
			return Bool{Value: false}
		}
		suppress := Object(pe) != norm
		ctx.ClearPending()
		return Bool{Value: suppress}
	}
	if mode == aexitModeThrow && Object(pe) == norm {
		ctx.ClearPending()
		return Bool{Value: false}
	}
	return TheError
}
