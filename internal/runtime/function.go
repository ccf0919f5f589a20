package runtime

// Param describes one named parameter slot.
type Param struct {
	Name    string
	Default Object // nil = required
	KwOnly  bool
}

// Signature is the full binding shape of a function: positional-only
// prefix, named slots, then the catch-all names.
type Signature struct {
	// PosOnly is the count of leading Params that cannot be passed by
	// keyword.
	PosOnly int
	Params  []Param
	VarArg  string // collects extra positionals, "" = rejected
	KwArg   string // collects extra keywords, "" = rejected
}

func (s Signature) paramIndex(name string) int {
	for i, p := range s.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (s Signature) positionalCount() int {
	n := 0
	for _, p := range s.Params {
		if p.KwOnly {
			break
		}
		n++
	}
	return n
}

// BoundArgs is the result of binding a call against a signature: one
// owned slot per parameter, plus the collected tuple and dict.
type BoundArgs struct {
	Slots  []Object
	VarArg *Tuple
	KwArg  *Dict
}

// Get returns the bound value of the named parameter.
func (b *BoundArgs) Get(sig Signature, name string) Object {
	if i := sig.paramIndex(name); i >= 0 {
		return b.Slots[i]
	}
	return nil
}

func (b *BoundArgs) Release() {
	for i := range b.Slots {
		ClearSlot(&b.Slots[i])
	}
	if b.VarArg != nil {
		DecRef(b.VarArg)
		b.VarArg = nil
	}
	if b.KwArg != nil {
		DecRef(b.KwArg)
		b.KwArg = nil
	}
}

// GoFunc is a function body. It receives its bound frame and returns a
// new reference, the error sentinel, or Pending.
type GoFunc func(ctx *ExecContext, args *BoundArgs) Object

// Function is a user-level callable. When Step is set the function is a
// generator or coroutine template: calling it binds the arguments and
// allocates a suspended future instead of running a body.
type Function struct {
	Header
	Name string
	File string
	Line int
	Sig  Signature

	Fn   GoFunc
	Step PollFunc
	// NumSlots sizes the payload of the future a template allocates.
	NumSlots int
}

func NewFunction(name string, sig Signature, fn GoFunc) *Function {
	return &Function{Header: newHeader(), Name: name, File: "<builtin>", Sig: sig, Fn: fn}
}

// NewTemplate creates a generator/coroutine template.
func NewTemplate(name string, sig Signature, step PollFunc, numSlots int) *Function {
	return &Function{Header: newHeader(), Name: name, File: "<builtin>", Sig: sig, Step: step, NumSlots: numSlots}
}

func (*Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string {
	return "<function " + f.Name + ">"
}
func (f *Function) drop() {
	for i := range f.Sig.Params {
		if f.Sig.Params[i].Default != nil {
			DecRef(f.Sig.Params[i].Default)
			f.Sig.Params[i].Default = nil
		}
	}
}

// BuiltinFn is a native body: positional slice plus keyword dict, both
// borrowed for the duration of the call.
type BuiltinFn func(ctx *ExecContext, args []Object, kwargs *Dict) Object

// Builtin is a native callable. Keyword acceptance and default filling
// are driven by the adapter table, not by a Signature.
type Builtin struct {
	Header
	Name    string
	Fn      BuiltinFn
	adapter *builtinAdapter
}

func NewBuiltin(name string, fn BuiltinFn) *Builtin {
	b := &Builtin{Header: newHeader(), Name: name, Fn: fn}
	b.adapter = lookupAdapter(name)
	return b
}

func (*Builtin) Type() ObjectType  { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string { return "<built-in function " + b.Name + ">" }
func (b *Builtin) drop()           {}

// BoundMethod pairs a callable with its receiver; invoking it prepends
// the receiver to the positional arguments.
type BoundMethod struct {
	Header
	Fn   Object
	Recv Object
}

func NewBoundMethod(fn, recv Object) *BoundMethod {
	IncRef(fn)
	IncRef(recv)
	return &BoundMethod{Header: newHeader(), Fn: fn, Recv: recv}
}

func (*BoundMethod) Type() ObjectType { return BOUND_METHOD_OBJ }
func (m *BoundMethod) Inspect() string {
	return "<bound method " + calleeName(m.Fn) + ">"
}
func (m *BoundMethod) drop() {
	ClearSlot(&m.Fn)
	ClearSlot(&m.Recv)
}

func calleeName(o Object) string {
	switch v := o.(type) {
	case *Function:
		return v.Name
	case *Builtin:
		return v.Name
	case *Class:
		return v.Name
	case *BoundMethod:
		return calleeName(v.Fn)
	default:
		return string(o.Type())
	}
}
