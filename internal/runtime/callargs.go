package runtime

// CallArgs accumulates the arguments of one call site: positionals in
// order, keywords by name. It is consumed exactly once by Invoke, which
// releases it; pushing after consumption or consuming twice is a runtime
// bug surfaced as RuntimeError.
type CallArgs struct {
	Header
	pos      []Object
	kwNames  []string
	kwVals   []Object
	consumed bool
}

func NewCallArgs(hint int) *CallArgs {
	return &CallArgs{Header: newHeader(), pos: make([]Object, 0, hint)}
}

func (*CallArgs) Type() ObjectType  { return CALL_ARGS_OBJ }
func (ca *CallArgs) Inspect() string { return "<call args>" }

func (ca *CallArgs) drop() {
	for i := range ca.pos {
		ClearSlot(&ca.pos[i])
	}
	for i := range ca.kwVals {
		ClearSlot(&ca.kwVals[i])
	}
	ca.pos = nil
	ca.kwNames = nil
	ca.kwVals = nil
}

func (ca *CallArgs) PushPositional(v Object) {
	IncRef(v)
	ca.pos = append(ca.pos, v)
}

// prependPositional is used by bound-method dispatch to slot in the
// receiver.
func (ca *CallArgs) prependPositional(v Object) {
	IncRef(v)
	ca.pos = append([]Object{v}, ca.pos...)
}

func (ca *CallArgs) PushKeyword(ctx *ExecContext, name string, v Object) Object {
	for _, n := range ca.kwNames {
		if n == name {
			return ctx.TypeErrorf("got multiple values for keyword argument '%s'", name)
		}
	}
	IncRef(v)
	ca.kwNames = append(ca.kwNames, name)
	ca.kwVals = append(ca.kwVals, v)
	return None{}
}

// ExtendPositional splats an iterable into the positional list.
func (ca *CallArgs) ExtendPositional(ctx *ExecContext, iterable Object) Object {
	switch v := iterable.(type) {
	case *Tuple:
		for _, it := range v.Items {
			ca.PushPositional(it)
		}
	case *List:
		for _, it := range v.Items {
			ca.PushPositional(it)
		}
	case *Str:
		for _, r := range v.Value {
			s := NewStr(string(r))
			ca.pos = append(ca.pos, s)
		}
	default:
		return ctx.TypeErrorf("argument after * must be an iterable, not %s",
			ClassOf(ctx.rt, iterable).Name)
	}
	return None{}
}

// MergeKeywords splats a mapping into the keyword list.
func (ca *CallArgs) MergeKeywords(ctx *ExecContext, mapping Object) Object {
	d, ok := mapping.(*Dict)
	if !ok {
		return ctx.TypeErrorf("argument after ** must be a mapping, not %s",
			ClassOf(ctx.rt, mapping).Name)
	}
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		if res := ca.PushKeyword(ctx, k, v); IsError(res) {
			return res
		}
	}
	return None{}
}

func (ca *CallArgs) NumPositional() int { return len(ca.pos) }
func (ca *CallArgs) NumKeyword() int    { return len(ca.kwNames) }

// consume marks the builder used. A second consumption is a dispatch
// bug, not a user error.
func (ca *CallArgs) consume(ctx *ExecContext) Object {
	if ca.consumed {
		return ctx.RaiseError("RuntimeError", "call arguments consumed twice")
	}
	ca.consumed = true
	return None{}
}

// Release drops the builder's references. Invoke calls it after
// dispatch; callers only call it on paths that never reach Invoke.
func (ca *CallArgs) Release() {
	DecRef(ca)
}
