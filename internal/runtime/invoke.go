package runtime

import "go.uber.org/zap"

// Invoke is the single entry point for calling anything callable. The
// CallArgs is consumed here exactly once and released on every path.
func Invoke(ctx *ExecContext, callee Object, ca *CallArgs) Object {
	if res := ca.consume(ctx); IsError(res) {
		ca.Release()
		return TheError
	}
	ctx.rt.traceCall("invoke", zap.String("callee", calleeName(callee)))
	res := dispatch(ctx, callee, ca)
	ca.Release()
	return res
}

// dispatch assumes ca is already consumed; recursive dispatch (bound
// methods, __call__, metaclasses) reenters here, not Invoke.
func dispatch(ctx *ExecContext, callee Object, ca *CallArgs) Object {
	switch fn := callee.(type) {
	case *Function:
		if fn.Step != nil {
			return callTemplate(ctx, fn, ca)
		}
		return callFunction(ctx, fn, ca)
	case *Builtin:
		return callBuiltin(ctx, fn, ca)
	case *BoundMethod:
		ca.prependPositional(fn.Recv)
		return dispatch(ctx, fn.Fn, ca)
	case *Class:
		return callClass(ctx, fn, ca)
	case *Instance:
		call, _ := LookupMRO(fn.Class, "__call__")
		if call == nil {
			return ctx.TypeErrorf("'%s' object is not callable", fn.Class.Name)
		}
		ca.prependPositional(fn)
		return dispatch(ctx, call, ca)
	default:
		return ctx.TypeErrorf("'%s' object is not callable", ClassOf(ctx.rt, callee).Name)
	}
}

// callClass runs the construction protocol: metaclass __call__ when the
// class has a nontrivial metaclass, the builtin fast paths, exception
// allocation, and finally __new__/__init__.
func callClass(ctx *ExecContext, cls *Class, ca *CallArgs) Object {
	rt := ctx.rt
	typeCls := rt.classes["type"]

	if cls.Meta != nil && cls.Meta != typeCls {
		if mcall, owner := LookupMRO(cls.Meta, "__call__"); mcall != nil && owner != typeCls {
			ca.prependPositional(cls)
			return dispatch(ctx, mcall, ca)
		}
	}

	if cls == typeCls {
		return callTypeBuiltin(ctx, ca)
	}
	if IsExceptionClass(rt, cls) {
		return newExceptionFromArgs(ctx, cls, ca)
	}
	if res, handled := callValueClass(ctx, cls, ca); handled {
		return res
	}

	// __new__ then __init__, skipping the object defaults.
	var obj Object
	if newFn, owner := LookupMRO(cls, "__new__"); newFn != nil && owner.Name != "object" {
		sub := ca.cloneWith(cls)
		obj = Invoke(ctx, newFn, sub)
		if IsError(obj) {
			return TheError
		}
	} else {
		obj = NewInstance(cls)
	}

	isInst := false
	if in, ok := obj.(*Instance); ok {
		isInst = IsSubclass(in.Class, cls)
	}
	if isInst {
		if initFn, owner := LookupMRO(cls, "__init__"); initFn != nil && owner.Name != "object" {
			sub := ca.cloneWith(obj)
			res := Invoke(ctx, initFn, sub)
			if IsError(res) {
				DecRef(obj)
				return TheError
			}
			if !IsNone(res) {
				name := ClassOf(rt, res).Name
				DecRef(res)
				DecRef(obj)
				return ctx.TypeErrorf("__init__() should return None, not '%s'", name)
			}
		}
	}
	return obj
}

// callTypeBuiltin handles type(x) and type(name, bases, dict).
func callTypeBuiltin(ctx *ExecContext, ca *CallArgs) Object {
	switch ca.NumPositional() {
	case 1:
		if ca.NumKeyword() > 0 {
			return ctx.TypeErrorf("type() takes no keyword arguments")
		}
		cls := ClassOf(ctx.rt, ca.pos[0])
		IncRef(cls)
		return cls
	case 3:
		nameObj, ok := ca.pos[0].(*Str)
		if !ok {
			return ctx.TypeErrorf("type() argument 1 must be str, not %s",
				ClassOf(ctx.rt, ca.pos[0]).Name)
		}
		basesTuple, ok := ca.pos[1].(*Tuple)
		if !ok {
			return ctx.TypeErrorf("type() argument 2 must be tuple, not %s",
				ClassOf(ctx.rt, ca.pos[1]).Name)
		}
		dict, ok := ca.pos[2].(*Dict)
		if !ok {
			return ctx.TypeErrorf("type() argument 3 must be dict, not %s",
				ClassOf(ctx.rt, ca.pos[2]).Name)
		}
		var kwargs *Dict
		if len(ca.kwNames) > 0 {
			kwargs = NewDict()
			defer DecRef(kwargs)
			for i, n := range ca.kwNames {
				kwargs.Set(n, ca.kwVals[i])
			}
		}
		return NewClass(ctx, nameObj.Value, basesTuple.Items, dict, nil, kwargs)
	default:
		return ctx.TypeErrorf("type() takes 1 or 3 arguments")
	}
}

// callValueClass covers constructing the builtin value classes.
func callValueClass(ctx *ExecContext, cls *Class, ca *CallArgs) (Object, bool) {
	switch cls.Name {
	case "object":
		if ca.NumPositional() != 0 || ca.NumKeyword() != 0 {
			return ctx.TypeErrorf("object() takes no arguments"), true
		}
		return NewInstance(cls), true
	case "dict":
		if ca.NumPositional() > 1 {
			return ctx.TypeErrorf("dict expected at most 1 argument, got %d", ca.NumPositional()), true
		}
		d := NewDict()
		if ca.NumPositional() > 0 {
			src, ok := ca.pos[0].(*Dict)
			if !ok {
				DecRef(d)
				return ctx.TypeErrorf("'%s' object is not a mapping", ClassOf(ctx.rt, ca.pos[0]).Name), true
			}
			for _, k := range src.Keys() {
				v, _ := src.Get(k)
				d.Set(k, v)
			}
		}
		for i, n := range ca.kwNames {
			d.Set(n, ca.kwVals[i])
		}
		return d, true
	case "list":
		if ca.NumPositional() == 0 {
			return NewList(), true
		}
		switch v := ca.pos[0].(type) {
		case *List:
			return NewList(v.Items...), true
		case *Tuple:
			return NewList(v.Items...), true
		}
		return ctx.TypeErrorf("'%s' object is not iterable", ClassOf(ctx.rt, ca.pos[0]).Name), true
	case "tuple":
		if ca.NumPositional() == 0 {
			return NewTuple(), true
		}
		switch v := ca.pos[0].(type) {
		case *Tuple:
			IncRef(v)
			return v, true
		case *List:
			return NewTuple(v.Items...), true
		}
		return ctx.TypeErrorf("'%s' object is not iterable", ClassOf(ctx.rt, ca.pos[0]).Name), true
	case "str":
		if ca.NumPositional() == 0 {
			return NewStr(""), true
		}
		if s, ok := ca.pos[0].(*Str); ok {
			IncRef(s)
			return s, true
		}
		return NewStr(ca.pos[0].Inspect()), true
	case "bool":
		if ca.NumPositional() == 0 {
			return Bool{Value: false}, true
		}
		return Bool{Value: Truthy(ca.pos[0])}, true
	case "int":
		if ca.NumPositional() == 0 {
			return Int{Value: 0}, true
		}
		switch v := ca.pos[0].(type) {
		case Int:
			return v, true
		case Bool:
			if v.Value {
				return Int{Value: 1}, true
			}
			return Int{Value: 0}, true
		case Float:
			return Int{Value: int64(v.Value)}, true
		}
		return ctx.TypeErrorf("int() argument must be a number, not '%s'",
			ClassOf(ctx.rt, ca.pos[0]).Name), true
	case "float":
		if ca.NumPositional() == 0 {
			return Float{Value: 0}, true
		}
		switch v := ca.pos[0].(type) {
		case Float:
			return v, true
		case Int:
			return Float{Value: float64(v.Value)}, true
		}
		return ctx.TypeErrorf("float() argument must be a number, not '%s'",
			ClassOf(ctx.rt, ca.pos[0]).Name), true
	}
	return nil, false
}

// cloneWith copies an already-consumed builder with an extra leading
// positional, for the __new__/__init__ double dispatch.
func (ca *CallArgs) cloneWith(lead Object) *CallArgs {
	sub := NewCallArgs(len(ca.pos) + 1)
	sub.PushPositional(lead)
	for _, v := range ca.pos {
		sub.PushPositional(v)
	}
	for i, n := range ca.kwNames {
		IncRef(ca.kwVals[i])
		sub.kwNames = append(sub.kwNames, n)
		sub.kwVals = append(sub.kwVals, ca.kwVals[i])
	}
	return sub
}
