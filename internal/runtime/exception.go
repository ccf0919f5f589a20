package runtime

// Exception is the runtime representation of a raised exception. Cause
// and Context are nil while unset; None is a legal Cause (raise ... from
// None) and still suppresses context display.
type Exception struct {
	Header
	Class *Class
	Args  *Tuple

	Cause           Object
	Context         Object
	SuppressContext bool

	Traceback *Traceback

	// StopValue carries the return value smuggled through StopIteration.
	StopValue Object

	// Dict is the instance dict, allocated on first attribute write.
	Dict *Dict
}

func (*Exception) Type() ObjectType { return EXCEPTION_OBJ }

func (e *Exception) Inspect() string {
	if e.Args == nil || len(e.Args.Items) == 0 {
		return e.Class.Name + "()"
	}
	return e.Class.Name + e.Args.Inspect()
}

func (e *Exception) drop() {
	cls := e.Class
	e.Class = nil
	DecRef(cls)
	ClearSlot2(&e.Args)
	ClearSlot(&e.Cause)
	ClearSlot(&e.Context)
	ClearSlot2(&e.Traceback)
	ClearSlot(&e.StopValue)
	ClearSlot2(&e.Dict)
}

func newException(cls *Class, msg string) *Exception {
	IncRef(cls)
	e := &Exception{Header: newHeader(), Class: cls}
	if msg != "" {
		m := NewStr(msg)
		e.Args = NewTuple(m)
		DecRef(m)
	} else {
		e.Args = NewTuple()
	}
	return e
}

// NewException builds an exception of the named builtin class without
// recording it.
func NewException(rt *Runtime, kind, msg string) *Exception {
	cls := rt.classes[kind]
	if cls == nil {
		cls = rt.classes["RuntimeError"]
	}
	return newException(cls, msg)
}

// newExceptionFromArgs implements exception-class calls: all
// positionals land in Args, and keywords are rejected unless the class
// opted in (the OSError family stores them on the instance dict).
func newExceptionFromArgs(ctx *ExecContext, cls *Class, ca *CallArgs) Object {
	if len(ca.kwNames) > 0 && !cls.acceptsKwargs {
		return ctx.TypeErrorf("%s() takes no keyword arguments", cls.Name)
	}
	IncRef(cls)
	e := &Exception{Header: newHeader(), Class: cls}
	e.Args = NewTuple(ca.pos...)
	if len(ca.kwNames) > 0 {
		e.Dict = NewDict()
		for i, n := range ca.kwNames {
			e.Dict.Set(n, ca.kwVals[i])
		}
	}
	return e
}

// Message renders the exception's argument text without the class name.
func (e *Exception) Message() string {
	if e.Args == nil || len(e.Args.Items) == 0 {
		return ""
	}
	if len(e.Args.Items) == 1 {
		arg := e.Args.Items[0]
		// KeyError shows the repr of its key, so KeyError('x') reads
		// as the failed subscript.
		if e.Class.Name == "KeyError" {
			return arg.Inspect()
		}
		if s, ok := arg.(*Str); ok {
			return s.Value
		}
		return arg.Inspect()
	}
	return e.Args.Inspect()
}

// FormatException renders the one-line "Kind: message" form used at the
// bottom of a traceback.
func FormatException(e *Exception) string {
	msg := e.Message()
	if groupSize, ok := exceptionGroupSize(e); ok {
		// Groups show their own message plus the member count instead
		// of the full argument tuple.
		msg = ""
		if e.Args != nil && len(e.Args.Items) > 0 {
			if s, isStr := e.Args.Items[0].(*Str); isStr {
				msg = s.Value
			} else {
				msg = e.Args.Items[0].Inspect()
			}
		}
		if msg != "" {
			msg += " "
		}
		msg += "(" + Int{Value: int64(groupSize)}.Inspect() + " sub-exceptions)"
	}
	if msg == "" {
		return e.Class.Name
	}
	return e.Class.Name + ": " + msg
}

func exceptionGroupSize(e *Exception) (int, bool) {
	for _, m := range e.Class.MRO {
		if m.Name == "BaseExceptionGroup" {
			if e.Args != nil && len(e.Args.Items) >= 2 {
				switch v := e.Args.Items[1].(type) {
				case *Tuple:
					return len(v.Items), true
				case *List:
					return len(v.Items), true
				}
			}
			return 0, true
		}
	}
	return 0, false
}

// IsExceptionClass reports whether cls derives from BaseException.
func IsExceptionClass(rt *Runtime, cls *Class) bool {
	base := rt.classes["BaseException"]
	return base != nil && IsSubclass(cls, base)
}

// ExcMatches implements the except-clause test.
func ExcMatches(exc *Exception, cls *Class) bool {
	return IsSubclass(exc.Class, cls)
}

// Normalize turns a raise operand into an exception instance: instances
// pass through, exception classes are instantiated with no arguments,
// anything else is rejected.
func Normalize(ctx *ExecContext, o Object) Object {
	switch v := o.(type) {
	case *Exception:
		IncRef(v)
		return v
	case *Class:
		if !IsExceptionClass(ctx.rt, v) {
			return ctx.TypeErrorf("exceptions must derive from BaseException")
		}
		return newException(v, "")
	default:
		return ctx.TypeErrorf("exceptions must derive from BaseException")
	}
}
