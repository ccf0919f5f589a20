package runtime

import "go.uber.org/zap"

// PollFunc advances a future by one step. It returns Pending to park,
// the error sentinel after recording an exception, or the final value.
type PollFunc func(ctx *ExecContext, fut *Future) Object

// Future is a suspended computation: a state discriminant, a poll
// function and a fixed array of payload slots sized at allocation. A
// template-bound future additionally carries its bound frame.
type Future struct {
	Header
	Name  string
	State int
	Poll  PollFunc

	slots []Object
	Bound *BoundArgs

	// savedActive holds the slice of the active-exception stack this
	// future pushed before suspending.
	savedActive []Object

	done bool
}

func NewFuture(name string, poll PollFunc, nslots int) *Future {
	return &Future{
		Header: newHeader(),
		Name:   name,
		Poll:   poll,
		slots:  make([]Object, nslots),
	}
}

func (*Future) Type() ObjectType { return FUTURE_OBJ }
func (f *Future) Inspect() string {
	if f.done {
		return "<future " + f.Name + " done>"
	}
	return "<future " + f.Name + ">"
}

func (f *Future) drop() {
	f.teardown()
}

// teardown releases every owned payload slot, the bound frame and any
// detached exception state. Safe to run more than once.
func (f *Future) teardown() {
	for i := range f.slots {
		ClearSlot(&f.slots[i])
	}
	if f.Bound != nil {
		f.Bound.Release()
		f.Bound = nil
	}
	DropActive(f.savedActive)
	f.savedActive = nil
}

func (f *Future) Done() bool { return f.done }

// --- Payload slot discipline ---

func (f *Future) checkSlot(i int) {
	if i < 0 || i >= len(f.slots) {
		panic("future payload slot out of range")
	}
}

// Slot returns the borrowed contents of slot i.
func (f *Future) Slot(i int) Object {
	f.checkSlot(i)
	return f.slots[i]
}

// ReplaceOwned stores v, taking over the caller's reference and
// releasing the previous occupant.
func (f *Future) ReplaceOwned(i int, v Object) {
	f.checkSlot(i)
	old := f.slots[i]
	f.slots[i] = v
	DecRef(old)
}

// ReplaceBorrowed stores v, retaining it on behalf of the slot.
func (f *Future) ReplaceBorrowed(i int, v Object) {
	f.checkSlot(i)
	ReplaceSlot(&f.slots[i], v)
}

func (f *Future) ClearSlot(i int) {
	f.checkSlot(i)
	ClearSlot(&f.slots[i])
}

func (f *Future) SetBool(i int, v bool) {
	f.checkSlot(i)
	f.ReplaceOwned(i, Bool{Value: v})
}

func (f *Future) BoolAt(i int) bool {
	f.checkSlot(i)
	if b, ok := f.slots[i].(Bool); ok {
		return b.Value
	}
	return false
}

func (f *Future) SetInt(i int, v int64) {
	f.checkSlot(i)
	f.ReplaceOwned(i, Int{Value: v})
}

func (f *Future) IntAt(i int) int64 {
	f.checkSlot(i)
	if n, ok := f.slots[i].(Int); ok {
		return n.Value
	}
	return 0
}

// PollOnce drives a future one step under the poll protocol. A Pending
// return leaves every slot as the machine left it; completion or
// failure finishes the future and tears its payload down. Re-polling a
// finished future is an error.
func PollOnce(ctx *ExecContext, fut *Future) Object {
	if fut.done {
		return ctx.RaiseError("RuntimeError", "cannot reuse already awaited coroutine")
	}

	// The body runs with its own slice of the active-exception stack,
	// shielded from entries that belong to the resuming caller.
	baseline := ctx.ActiveBaseline()
	prevBase := ctx.SetActiveBase(baseline)
	ctx.RestoreActive(fut.savedActive)
	fut.savedActive = nil

	ctx.suspendDepth++
	res := fut.Poll(ctx, fut)
	ctx.suspendDepth--

	if IsPending(res) {
		fut.savedActive = ctx.SaveActive(baseline)
		ctx.SetActiveBase(prevBase)
		ctx.rt.tracePoll("pending", zap.String("future", fut.Name), zap.Int("state", fut.State))
		return Pending{}
	}

	leftover := ctx.SaveActive(baseline)
	DropActive(leftover)
	ctx.SetActiveBase(prevBase)

	fut.done = true
	fut.teardown()
	ctx.rt.tracePoll("completed",
		zap.String("future", fut.Name),
		zap.Bool("errored", IsError(res)))
	return res
}
