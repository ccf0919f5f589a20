package runtime

// ExitStack and AsyncExitStack: LIFO stacks of exit callbacks. During
// unwinding each later callback observes the most recent surviving
// exception, a truthy __exit__ result suppresses it, and a replacement
// raised inside a callback chains to the one it displaced.

type exitCallbackKind int

const (
	cbSyncExit exitCallbackKind = iota // context manager __exit__
	cbSyncFn                           // plain callback
	cbAsyncExit                        // context manager __aexit__
	cbAsyncFn                          // awaitable-returning callback
)

type exitCallback struct {
	kind exitCallbackKind
	obj  Object // the manager or the callable, owned
}

type ExitStack struct {
	Header
	async     bool
	callbacks []exitCallback
}

func NewExitStack() *ExitStack {
	return &ExitStack{Header: newHeader()}
}

func NewAsyncExitStack() *ExitStack {
	return &ExitStack{Header: newHeader(), async: true}
}

func (*ExitStack) Type() ObjectType { return EXIT_STACK_OBJ }
func (s *ExitStack) Inspect() string {
	if s.async {
		return "<AsyncExitStack>"
	}
	return "<ExitStack>"
}

func (s *ExitStack) drop() {
	for i := range s.callbacks {
		ClearSlot(&s.callbacks[i].obj)
	}
	s.callbacks = nil
}

func (s *ExitStack) Len() int { return len(s.callbacks) }

func (s *ExitStack) push(kind exitCallbackKind, obj Object) {
	IncRef(obj)
	s.callbacks = append(s.callbacks, exitCallback{kind: kind, obj: obj})
}

// Callback registers a plain function to run on unwind.
func (s *ExitStack) Callback(ctx *ExecContext, fn Object) Object {
	if s.async {
		s.push(cbAsyncFn, fn)
		return None{}
	}
	s.push(cbSyncFn, fn)
	return None{}
}

// PushExit registers mgr's __exit__ without entering it.
func (s *ExitStack) PushExit(ctx *ExecContext, mgr Object, isAsync bool) Object {
	if isAsync && !s.async {
		return ctx.TypeErrorf("asynchronous callback cannot run in ExitStack")
	}
	if !isAsync && s.async {
		return ctx.TypeErrorf("synchronous callback cannot run in AsyncExitStack")
	}
	if isAsync {
		s.push(cbAsyncExit, mgr)
	} else {
		s.push(cbSyncExit, mgr)
	}
	return None{}
}

// EnterContext calls mgr.__enter__ and registers its __exit__. Returns
// what __enter__ returned.
func (s *ExitStack) EnterContext(ctx *ExecContext, mgr Object) Object {
	if s.async {
		return ctx.TypeErrorf("synchronous callback cannot run in AsyncExitStack")
	}
	res := callMethod(ctx, mgr, "__enter__")
	if IsError(res) {
		return TheError
	}
	s.push(cbSyncExit, mgr)
	return res
}

// Unwind runs the sync stack against exc (nil when the body finished
// normally). It returns True when an exception was received and the
// triple ended cleared, or when a replacement ended suppressed with
// nothing received; False when exc (or nothing) should continue as
// before; and the error sentinel when a callback raised a replacement
// that survived, which is left pending and chained.
func (s *ExitStack) Unwind(ctx *ExecContext, exc *Exception) Object {
	var cur Object
	if exc != nil {
		IncRef(exc)
		cur = exc
	}
	received := Object(nil)
	if exc != nil {
		received = exc
	}
	suppressed := false

	for i := len(s.callbacks) - 1; i >= 0; i-- {
		cb := s.callbacks[i]
		s.callbacks = s.callbacks[:i]

		var res Object
		switch cb.kind {
		case cbSyncExit:
			res = s.invokeExitTriple(ctx, cb.obj, cur)
		case cbSyncFn:
			res = callMethod0(ctx, cb.obj)
		default:
			DecRef(cb.obj)
			DecRef(cur)
			return ctx.TypeErrorf("asynchronous callback cannot run in ExitStack")
		}
		DecRef(cb.obj)

		if IsError(res) {
			replacement := ctx.TakePending()
			if replacement != nil {
				if ce, ok := cur.(*Exception); ok && ce != replacement && replacement.Context == nil {
					// Transfer cur into the chain.
					replacement.Context = ce
				} else {
					DecRef(cur)
				}
				cur = replacement
			}
			continue
		}
		// Only exit-style callbacks may suppress; a plain callback's
		// return value carries no meaning.
		if cb.kind == cbSyncExit && Truthy(res) && cur != nil {
			DecRef(cur)
			cur = nil
			suppressed = true
		}
		DecRef(res)
	}

	if cur == nil {
		if received != nil {
			return Bool{Value: true}
		}
		return Bool{Value: suppressed}
	}
	if cur == received {
		DecRef(cur)
		return Bool{Value: false}
	}
	// A replacement exception emerged; hand it back as pending.
	if ce, ok := cur.(*Exception); ok {
		ctx.Record(ce)
		DecRef(cur)
		return TheError
	}
	DecRef(cur)
	return Bool{Value: false}
}

func (s *ExitStack) invokeExitTriple(ctx *ExecContext, mgr Object, cur Object) Object {
	var clsArg, excArg, tbArg Object = None{}, None{}, None{}
	if ce, ok := cur.(*Exception); ok {
		clsArg = ce.Class
		excArg = ce
		if ce.Traceback != nil {
			tbArg = ce.Traceback
		}
	}
	return callMethod(ctx, mgr, "__exit__", clsArg, excArg, tbArg)
}

func callMethod0(ctx *ExecContext, fn Object) Object {
	ca := NewCallArgs(0)
	return Invoke(ctx, fn, ca)
}

// --- AsyncExitStack unwinding ---

// The async machine mirrors the sync loop but parks on every awaited
// __aexit__. Its payload layout:
const (
	aesSlotStack    = 0 // the AsyncExitStack
	aesSlotCurType  = 1 // class of the live exception
	aesSlotCurExc   = 2 // the live exception
	aesSlotCurTb    = 3 // its traceback
	aesSlotReceived = 4 // the exception the unwind started with
	aesSlotSupp     = 5 // whether received ended suppressed
	aesSlotAwait    = 6 // in-flight awaited future
	aesSlotKind     = 7 // kind of the in-flight callback
	aesSlotOwned    = 8 // live exception is owned by the machine
)

// NewAsyncExitStackUnwind builds the poll machine that unwinds an async
// stack against exc (nil for a clean exit). The result is True when the
// received exception ended cleared, or when a replacement was suppressed
// with nothing received; surviving replacements surface as pending.
func NewAsyncExitStackUnwind(stack *ExitStack, exc *Exception) *Future {
	fut := NewFuture("AsyncExitStack.__aexit__", pollAsyncExitStack, 9)
	fut.ReplaceBorrowed(aesSlotStack, stack)
	if exc != nil {
		fut.ReplaceBorrowed(aesSlotCurType, exc.Class)
		fut.ReplaceBorrowed(aesSlotCurExc, exc)
		if exc.Traceback != nil {
			fut.ReplaceBorrowed(aesSlotCurTb, exc.Traceback)
		}
		fut.ReplaceBorrowed(aesSlotReceived, exc)
	}
	fut.SetBool(aesSlotSupp, false)
	fut.SetBool(aesSlotOwned, true)
	return fut
}

func pollAsyncExitStack(ctx *ExecContext, fut *Future) Object {
	stack, _ := fut.Slot(aesSlotStack).(*ExitStack)
	for {
		// Resume exactly where the machine parked: an in-flight await
		// finishes before the next callback starts.
		if inner, ok := fut.Slot(aesSlotAwait).(*Future); ok {
			res := PollOnce(ctx, inner)
			if IsPending(res) {
				return res
			}
			fut.ClearSlot(aesSlotAwait)
			aesAbsorb(ctx, fut, res, exitCallbackKind(fut.IntAt(aesSlotKind)))
		}

		n := len(stack.callbacks)
		if n == 0 {
			return aesFinish(ctx, fut)
		}
		cb := stack.callbacks[n-1]
		stack.callbacks = stack.callbacks[:n-1]

		var res Object
		switch cb.kind {
		case cbAsyncExit:
			res = aesInvokeAexit(ctx, fut, cb.obj)
		case cbAsyncFn:
			res = callMethod0(ctx, cb.obj)
		default:
			DecRef(cb.obj)
			return ctx.TypeErrorf("synchronous callback cannot run in AsyncExitStack")
		}
		DecRef(cb.obj)

		if inner, ok := res.(*Future); ok {
			fut.ReplaceOwned(aesSlotAwait, inner)
			fut.SetInt(aesSlotKind, int64(cb.kind))
			continue
		}
		aesAbsorb(ctx, fut, res, cb.kind)
	}
}

func aesInvokeAexit(ctx *ExecContext, fut *Future, mgr Object) Object {
	clsArg, excArg, tbArg := Object(None{}), Object(None{}), Object(None{})
	if c := fut.Slot(aesSlotCurType); c != nil {
		clsArg = c
	}
	if e := fut.Slot(aesSlotCurExc); e != nil {
		excArg = e
	}
	if tb := fut.Slot(aesSlotCurTb); tb != nil {
		tbArg = tb
	}
	return callMethod(ctx, mgr, "__aexit__", clsArg, excArg, tbArg)
}

// aesAbsorb folds one callback outcome into the machine's current
// triple: an error replaces and chains, a truthy result from an
// exit-style callback suppresses.
func aesAbsorb(ctx *ExecContext, fut *Future, res Object, kind exitCallbackKind) {
	cur, _ := fut.Slot(aesSlotCurExc).(*Exception)

	if IsError(res) {
		replacement := ctx.TakePending()
		if replacement == nil {
			return
		}
		if cur != nil && cur != replacement && replacement.Context == nil {
			IncRef(cur)
			replacement.Context = cur
		}
		fut.ReplaceBorrowed(aesSlotCurType, replacement.Class)
		fut.ReplaceOwned(aesSlotCurExc, replacement)
		if replacement.Traceback != nil {
			fut.ReplaceBorrowed(aesSlotCurTb, replacement.Traceback)
		} else {
			fut.ClearSlot(aesSlotCurTb)
		}
		return
	}

	if kind == cbAsyncExit && Truthy(res) && cur != nil {
		fut.SetBool(aesSlotSupp, true)
		fut.ClearSlot(aesSlotCurType)
		fut.ClearSlot(aesSlotCurExc)
		fut.ClearSlot(aesSlotCurTb)
	}
	DecRef(res)
}

func aesFinish(ctx *ExecContext, fut *Future) Object {
	cur, _ := fut.Slot(aesSlotCurExc).(*Exception)
	received, _ := fut.Slot(aesSlotReceived).(*Exception)

	if cur == nil {
		if received != nil {
			return Bool{Value: true}
		}
		return Bool{Value: fut.BoolAt(aesSlotSupp)}
	}
	if cur == received {
		return Bool{Value: false}
	}
	ctx.Record(cur)
	return TheError
}
