package runtime

import "fmt"

type ObjectType string

const (
	NONE_OBJ         = "NONE"
	BOOL_OBJ         = "BOOL"
	INT_OBJ          = "INT"
	FLOAT_OBJ        = "FLOAT"
	STRING_OBJ       = "STRING"
	BYTES_OBJ        = "BYTES"
	TUPLE_OBJ        = "TUPLE"
	LIST_OBJ         = "LIST"
	DICT_OBJ         = "DICT"
	FUNCTION_OBJ     = "FUNCTION"
	BUILTIN_OBJ      = "BUILTIN"
	BOUND_METHOD_OBJ = "BOUND_METHOD"
	CALL_ARGS_OBJ    = "CALL_ARGS"
	CLASS_OBJ        = "CLASS"
	INSTANCE_OBJ     = "INSTANCE"
	EXCEPTION_OBJ    = "EXCEPTION"
	TRACEBACK_OBJ    = "TRACEBACK"
	FUTURE_OBJ       = "FUTURE"
	EXIT_STACK_OBJ   = "EXIT_STACK"
	CELL_OBJ         = "CELL"
	PENDING_OBJ      = "PENDING"
	ERRORED_OBJ      = "ERRORED"
	NOT_IMPL_OBJ     = "NOT_IMPLEMENTED"
)

// Object is the uniform reference to any runtime value. Small scalars
// (None, Bool, Int, Float, Pending) are value types carried inline and
// are never reference counted; everything else is a heap object with a
// Header.
type Object interface {
	Type() ObjectType
	Inspect() string
}

// --- Inline scalars ---

type None struct{}

func (None) Type() ObjectType { return NONE_OBJ }
func (None) Inspect() string  { return "None" }

type Bool struct{ Value bool }

func (Bool) Type() ObjectType { return BOOL_OBJ }
func (b Bool) Inspect() string {
	if b.Value {
		return "True"
	}
	return "False"
}

type Int struct{ Value int64 }

func (Int) Type() ObjectType  { return INT_OBJ }
func (i Int) Inspect() string { return fmt.Sprintf("%d", i.Value) }

type Float struct{ Value float64 }

func (Float) Type() ObjectType  { return FLOAT_OBJ }
func (f Float) Inspect() string { return fmt.Sprintf("%g", f.Value) }

// Pending is the sentinel a poll function returns when the future is not
// ready. It never escapes to user-visible values.
type Pending struct{}

func (Pending) Type() ObjectType { return PENDING_OBJ }
func (Pending) Inspect() string  { return "<pending>" }

// Errored signals that an exception has been recorded on the execution
// context. Callers that receive it must not interpret it as a value.
type Errored struct{}

func (Errored) Type() ObjectType { return ERRORED_OBJ }
func (Errored) Inspect() string  { return "<errored>" }

type NotImplemented struct{}

func (NotImplemented) Type() ObjectType { return NOT_IMPL_OBJ }
func (NotImplemented) Inspect() string  { return "NotImplemented" }

// TheError is the canonical error sentinel.
var TheError = Errored{}

func IsError(o Object) bool {
	_, ok := o.(Errored)
	return ok
}

func IsPending(o Object) bool {
	_, ok := o.(Pending)
	return ok
}

func IsNone(o Object) bool {
	_, ok := o.(None)
	return ok
}

// --- Heap object header and reference counting ---

// Header sits at the front of every heap object. refs is manipulated only
// under the runtime lock, so plain integer ops suffice.
type Header struct {
	refs int32
}

func (h *Header) header() *Header { return h }

// heapObject is implemented by every refcounted shape. drop releases the
// object's owned payload when the count reaches zero; memory itself is
// reclaimed by the Go collector.
type heapObject interface {
	Object
	header() *Header
	drop()
}

func newHeader() Header { return Header{refs: 1} }

func IncRef(o Object) {
	if o == nil {
		return
	}
	if h, ok := o.(heapObject); ok {
		h.header().refs++
	}
}

func DecRef(o Object) {
	if o == nil {
		return
	}
	h, ok := o.(heapObject)
	if !ok {
		return
	}
	hd := h.header()
	hd.refs--
	if hd.refs == 0 {
		h.drop()
	}
}

func RefCount(o Object) int32 {
	if h, ok := o.(heapObject); ok {
		return h.header().refs
	}
	return -1
}

// ReplaceSlot stores v into an owned slot, retaining v and releasing
// whatever the slot held before. Safe when old and new are the same
// object: the retain lands before the release.
func ReplaceSlot(slot *Object, v Object) {
	old := *slot
	IncRef(v)
	*slot = v
	DecRef(old)
}

// ClearSlot releases an owned slot and leaves it nil.
func ClearSlot(slot *Object) {
	old := *slot
	*slot = nil
	DecRef(old)
}

// Truthy applies Python truth rules to o.
func Truthy(o Object) bool {
	switch v := o.(type) {
	case nil:
		return false
	case None:
		return false
	case Bool:
		return v.Value
	case Int:
		return v.Value != 0
	case Float:
		return v.Value != 0
	case *Str:
		return len(v.Value) != 0
	case *Bytes:
		return len(v.Value) != 0
	case *Tuple:
		return len(v.Items) != 0
	case *List:
		return len(v.Items) != 0
	case *Dict:
		return v.Len() != 0
	default:
		return true
	}
}

// Is reports identity. Inline scalars compare by value, which matches
// how small ints and singletons behave.
func Is(a, b Object) bool { return a == b }
