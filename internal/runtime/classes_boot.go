package runtime

// bootstrapClasses builds the builtin class registry: the value classes
// and the exception hierarchy. Runs once from New, before any context
// exists.
func (rt *Runtime) bootstrapClasses() {
	object := &Class{Header: newHeader(), Name: "object", layout: layoutObject, Dict: NewDict()}
	object.MRO = []*Class{object}
	syncClassDict(object)
	rt.classes["object"] = object

	typ := rt.builtinClass("type", layoutType, object)
	object.Meta = typ
	typ.Meta = typ

	rt.builtinClass("NoneType", layoutObject, object)
	intCls := rt.builtinClass("int", layoutInt, object)
	rt.builtinClass("bool", layoutInt, intCls)
	rt.builtinClass("float", layoutFloat, object)
	rt.builtinClass("str", layoutStr, object)
	rt.builtinClass("bytes", layoutBytes, object)
	rt.builtinClass("tuple", layoutTuple, object)
	rt.builtinClass("list", layoutList, object)
	rt.builtinClass("dict", layoutDict, object)
	rt.builtinClass("function", layoutObject, object)
	rt.builtinClass("builtin_function_or_method", layoutObject, object)
	rt.builtinClass("coroutine", layoutObject, object)
	rt.builtinClass("traceback", layoutObject, object)

	baseExc := rt.builtinClass("BaseException", layoutException, object)
	exc := rt.builtinClass("Exception", layoutException, baseExc)
	rt.builtinClass("SystemExit", layoutException, baseExc)
	rt.builtinClass("KeyboardInterrupt", layoutException, baseExc)
	rt.builtinClass("GeneratorExit", layoutException, baseExc)
	rt.builtinClass("CancelledError", layoutException, baseExc)
	baseGroup := rt.builtinClass("BaseExceptionGroup", layoutException, baseExc)

	rt.builtinClass("TypeError", layoutException, exc)
	rt.builtinClass("ValueError", layoutException, exc)
	rt.builtinClass("AttributeError", layoutException, exc)
	rt.builtinClass("NameError", layoutException, exc)
	rt.builtinClass("StopIteration", layoutException, exc)
	rt.builtinClass("StopAsyncIteration", layoutException, exc)
	runtimeErr := rt.builtinClass("RuntimeError", layoutException, exc)
	rt.builtinClass("RecursionError", layoutException, runtimeErr)
	rt.builtinClass("NotImplementedError", layoutException, runtimeErr)
	arith := rt.builtinClass("ArithmeticError", layoutException, exc)
	rt.builtinClass("ZeroDivisionError", layoutException, arith)
	lookup := rt.builtinClass("LookupError", layoutException, exc)
	rt.builtinClass("KeyError", layoutException, lookup)
	rt.builtinClass("IndexError", layoutException, lookup)
	rt.builtinClass("ExceptionGroup", layoutException, exc, baseGroup)

	osErr := rt.builtinClass("OSError", layoutException, exc)
	fileNotFound := rt.builtinClass("FileNotFoundError", layoutException, osErr)
	permission := rt.builtinClass("PermissionError", layoutException, osErr)
	timeout := rt.builtinClass("TimeoutError", layoutException, osErr)

	// The OSError family binds keyword arguments onto the instance.
	for _, c := range []*Class{osErr, fileNotFound, permission, timeout} {
		c.acceptsKwargs = true
	}
}

func (rt *Runtime) builtinClass(name string, layout layoutKind, bases ...*Class) *Class {
	cls := &Class{Header: newHeader(), Name: name, layout: layout, Dict: NewDict()}
	cls.Bases = make([]*Class, len(bases))
	for i, b := range bases {
		IncRef(b)
		cls.Bases[i] = b
	}
	mro, ok := computeMRO(cls)
	if !ok {
		// Bootstrap hierarchies are hand-ordered; a merge failure here
		// is a programming error.
		panic("inconsistent builtin class hierarchy: " + name)
	}
	cls.MRO = mro
	cls.Meta = rt.classes["type"]
	syncClassDict(cls)
	rt.classes[name] = cls
	return cls
}
