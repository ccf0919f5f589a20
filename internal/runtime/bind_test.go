package runtime

import (
	"io"
	"strings"
	"testing"
)

func newTestRuntime(t *testing.T) (*Runtime, *ExecContext, *int) {
	t.Helper()
	code := -1
	rt := New(
		WithStderr(io.Discard),
		WithExitFunc(func(c int) { code = c }),
	)
	ctx := rt.NewContext()
	return rt, ctx, &code
}

func expectPendingError(t *testing.T, ctx *ExecContext, res Object, kind, message string) {
	t.Helper()
	if !IsError(res) {
		t.Fatalf("expected error, got %s", res.Inspect())
	}
	exc := ctx.TakePending()
	if exc == nil {
		t.Fatalf("error sentinel without pending exception")
	}
	defer DecRef(exc)
	if exc.Class.Name != kind {
		t.Fatalf("expected %s, got %s: %s", kind, exc.Class.Name, exc.Message())
	}
	if message != "" && exc.Message() != message {
		t.Fatalf("expected message %q, got %q", message, exc.Message())
	}
}

// fixtureSig is f(a, b=2, *rest, **kw).
func fixtureSig() Signature {
	return Signature{
		Params: []Param{
			{Name: "a"},
			{Name: "b", Default: Int{Value: 2}},
		},
		VarArg: "rest",
		KwArg:  "kw",
	}
}

// captureFn stores the bound frame contents for inspection.
type capturedCall struct {
	slots  []Object
	vararg []Object
	kwarg  map[string]Object
}

func captureFunction(name string, sig Signature, out *capturedCall) *Function {
	return NewFunction(name, sig, func(ctx *ExecContext, args *BoundArgs) Object {
		out.slots = append([]Object(nil), args.Slots...)
		if args.VarArg != nil {
			out.vararg = append([]Object(nil), args.VarArg.Items...)
		}
		if args.KwArg != nil {
			out.kwarg = make(map[string]Object)
			for _, k := range args.KwArg.Keys() {
				v, _ := args.KwArg.Get(k)
				out.kwarg[k] = v
			}
		}
		return None{}
	})
}

func TestBindPositionalKeywordVariadic(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var got capturedCall
	fn := captureFunction("f", fixtureSig(), &got)
	defer DecRef(fn)

	ca := NewCallArgs(3)
	ca.PushPositional(Int{Value: 1})
	ca.PushPositional(Int{Value: 3})
	ca.PushPositional(Int{Value: 4})
	if res := ca.PushKeyword(ctx, "x", Int{Value: 5}); IsError(res) {
		t.Fatalf("push keyword failed")
	}
	res := Invoke(ctx, fn, ca)
	if IsError(res) {
		t.Fatalf("invoke failed: %s", ctx.TakePending().Message())
	}

	if got.slots[0] != (Int{Value: 1}) || got.slots[1] != (Int{Value: 3}) {
		t.Fatalf("wrong slot binding: a=%v b=%v", got.slots[0], got.slots[1])
	}
	if len(got.vararg) != 1 || got.vararg[0] != (Int{Value: 4}) {
		t.Fatalf("wrong *rest: %v", got.vararg)
	}
	if len(got.kwarg) != 1 || got.kwarg["x"] != (Int{Value: 5}) {
		t.Fatalf("wrong **kw: %v", got.kwarg)
	}
}

func TestBindDefaultsFillUnbound(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var got capturedCall
	fn := captureFunction("f", fixtureSig(), &got)
	defer DecRef(fn)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 7})
	if res := Invoke(ctx, fn, ca); IsError(res) {
		t.Fatalf("invoke failed")
	}
	if got.slots[1] != (Int{Value: 2}) {
		t.Fatalf("default for b not applied: %v", got.slots[1])
	}
}

func TestBindMissingRequired(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var got capturedCall
	fn := captureFunction("f", fixtureSig(), &got)
	defer DecRef(fn)

	ca := NewCallArgs(0)
	if res := ca.PushKeyword(ctx, "b", Int{Value: 9}); IsError(res) {
		t.Fatalf("push keyword failed")
	}
	res := Invoke(ctx, fn, ca)
	expectPendingError(t, ctx, res, "TypeError", "f() missing required argument 'a'")
}

func TestBindMissingKeywordOnly(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	sig := Signature{
		Params: []Param{
			{Name: "a"},
			{Name: "flag", KwOnly: true},
		},
	}
	var got capturedCall
	fn := captureFunction("g", sig, &got)
	defer DecRef(fn)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 1})
	res := Invoke(ctx, fn, ca)
	expectPendingError(t, ctx, res, "TypeError", "g() missing required keyword-only argument 'flag'")
}

func TestBindTooManyPositional(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	sig := Signature{Params: []Param{{Name: "a"}}}
	var got capturedCall
	fn := captureFunction("f", sig, &got)
	defer DecRef(fn)

	ca := NewCallArgs(2)
	ca.PushPositional(Int{Value: 1})
	ca.PushPositional(Int{Value: 2})
	res := Invoke(ctx, fn, ca)
	expectPendingError(t, ctx, res, "TypeError", "f() too many positional arguments")
}

func TestBindUnexpectedKeyword(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	sig := Signature{Params: []Param{{Name: "a"}}}
	var got capturedCall
	fn := captureFunction("f", sig, &got)
	defer DecRef(fn)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 1})
	if res := ca.PushKeyword(ctx, "zap", Int{Value: 2}); IsError(res) {
		t.Fatalf("push keyword failed")
	}
	res := Invoke(ctx, fn, ca)
	expectPendingError(t, ctx, res, "TypeError", "f() got an unexpected keyword 'zap'")
}

func TestBindMultipleValues(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	sig := Signature{Params: []Param{{Name: "a"}}}
	var got capturedCall
	fn := captureFunction("f", sig, &got)
	defer DecRef(fn)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 1})
	if res := ca.PushKeyword(ctx, "a", Int{Value: 2}); IsError(res) {
		t.Fatalf("push keyword failed")
	}
	res := Invoke(ctx, fn, ca)
	expectPendingError(t, ctx, res, "TypeError", "f() got multiple values for argument 'a'")
}

func TestBindPositionalOnlyAsKeyword(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	sig := Signature{
		PosOnly: 2,
		Params:  []Param{{Name: "a"}, {Name: "b"}},
	}
	var got capturedCall
	fn := captureFunction("f", sig, &got)
	defer DecRef(fn)

	ca := NewCallArgs(0)
	ca.PushKeyword(ctx, "a", Int{Value: 1})
	ca.PushKeyword(ctx, "b", Int{Value: 2})
	res := Invoke(ctx, fn, ca)
	expectPendingError(t, ctx, res, "TypeError",
		"f() got some positional-only arguments passed as keyword arguments: 'a, b'")
}

func TestBindPositionalOnlyLandsInKwargs(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	sig := Signature{
		PosOnly: 1,
		Params:  []Param{{Name: "a", Default: Int{Value: 0}}},
		KwArg:   "kw",
	}
	var got capturedCall
	fn := captureFunction("f", sig, &got)
	defer DecRef(fn)

	ca := NewCallArgs(0)
	ca.PushKeyword(ctx, "a", Int{Value: 9})
	if res := Invoke(ctx, fn, ca); IsError(res) {
		t.Fatalf("invoke failed")
	}
	if got.slots[0] != (Int{Value: 0}) {
		t.Fatalf("positional-only slot should keep its default, got %v", got.slots[0])
	}
	if got.kwarg["a"] != (Int{Value: 9}) {
		t.Fatalf("positional-only keyword should land in **kw, got %v", got.kwarg)
	}
}

func TestCallArgsDuplicateKeyword(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	ca := NewCallArgs(0)
	defer ca.Release()
	if res := ca.PushKeyword(ctx, "x", Int{Value: 1}); IsError(res) {
		t.Fatalf("first keyword rejected")
	}
	res := ca.PushKeyword(ctx, "x", Int{Value: 2})
	expectPendingError(t, ctx, res, "TypeError", "got multiple values for keyword argument 'x'")
}

func TestCallArgsConsumedOnce(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var got capturedCall
	fn := captureFunction("f", Signature{}, &got)
	defer DecRef(fn)

	ca := NewCallArgs(0)
	IncRef(ca)
	if res := Invoke(ctx, fn, ca); IsError(res) {
		t.Fatalf("first invoke failed")
	}
	res := Invoke(ctx, fn, ca)
	expectPendingError(t, ctx, res, "RuntimeError", "call arguments consumed twice")
}

func TestBoundMethodPrependsReceiver(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	sig := Signature{Params: []Param{{Name: "self"}, {Name: "x"}}}
	var got capturedCall
	fn := captureFunction("m", sig, &got)
	defer DecRef(fn)

	recv := NewStr("receiver")
	defer DecRef(recv)
	bm := NewBoundMethod(fn, recv)
	defer DecRef(bm)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 10})
	if res := Invoke(ctx, bm, ca); IsError(res) {
		t.Fatalf("invoke failed")
	}
	if got.slots[0] != Object(recv) {
		t.Fatalf("receiver not prepended")
	}
	if got.slots[1] != (Int{Value: 10}) {
		t.Fatalf("argument shifted wrong: %v", got.slots[1])
	}
}

func TestExtendAndMergeSplat(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var got capturedCall
	fn := captureFunction("f", fixtureSig(), &got)
	defer DecRef(fn)

	ca := NewCallArgs(0)
	tup := NewTuple(Int{Value: 1}, Int{Value: 3}, Int{Value: 4})
	defer DecRef(tup)
	if res := ca.ExtendPositional(ctx, tup); IsError(res) {
		t.Fatalf("splat failed")
	}
	kw := NewDict()
	defer DecRef(kw)
	kw.Set("x", Int{Value: 5})
	if res := ca.MergeKeywords(ctx, kw); IsError(res) {
		t.Fatalf("keyword splat failed")
	}
	if res := Invoke(ctx, fn, ca); IsError(res) {
		t.Fatalf("invoke failed")
	}
	if len(got.vararg) != 1 || got.vararg[0] != (Int{Value: 4}) {
		t.Fatalf("wrong *rest after splat: %v", got.vararg)
	}
	if got.kwarg["x"] != (Int{Value: 5}) {
		t.Fatalf("wrong **kw after splat")
	}
}

func TestSplatRejectsNonIterable(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	ca := NewCallArgs(0)
	defer ca.Release()
	res := ca.ExtendPositional(ctx, Int{Value: 3})
	expectPendingError(t, ctx, res, "TypeError", "argument after * must be an iterable, not int")
}

func TestTemplateBindsWithoutRunning(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	ran := false
	step := func(ctx *ExecContext, fut *Future) Object {
		ran = true
		return None{}
	}
	tmpl := NewTemplate("gen", Signature{Params: []Param{{Name: "n"}}}, step, 2)
	defer DecRef(tmpl)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 42})
	res := Invoke(ctx, tmpl, ca)
	fut, ok := res.(*Future)
	if !ok {
		t.Fatalf("template call should allocate a future, got %s", res.Type())
	}
	defer DecRef(fut)
	if ran {
		t.Fatalf("template body ran during binding")
	}
	if fut.Bound == nil || fut.Bound.Slots[0] != (Int{Value: 42}) {
		t.Fatalf("bound frame not captured")
	}
}

func TestTemplateBindingErrorsSurface(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	tmpl := NewTemplate("gen", Signature{Params: []Param{{Name: "n"}}}, func(ctx *ExecContext, fut *Future) Object {
		return None{}
	}, 1)
	defer DecRef(tmpl)

	ca := NewCallArgs(0)
	res := Invoke(ctx, tmpl, ca)
	expectPendingError(t, ctx, res, "TypeError", "gen() missing required argument 'n'")
}

func TestBuiltinAdapterDefaults(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var seen []Object
	b := NewBuiltin("round", func(ctx *ExecContext, args []Object, kwargs *Dict) Object {
		seen = append([]Object(nil), args...)
		return None{}
	})
	defer DecRef(b)

	ca := NewCallArgs(1)
	ca.PushPositional(Float{Value: 2.5})
	if res := Invoke(ctx, b, ca); IsError(res) {
		t.Fatalf("invoke failed")
	}
	if len(seen) != 2 || !IsNone(seen[1]) {
		t.Fatalf("round() should pad ndigits with None, got %v", seen)
	}
}

func TestBuiltinAdapterOpenDefaults(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var seen []Object
	b := NewBuiltin("open", func(ctx *ExecContext, args []Object, kwargs *Dict) Object {
		seen = append([]Object(nil), args...)
		return None{}
	})
	defer DecRef(b)

	ca := NewCallArgs(1)
	path := NewStr("data.txt")
	ca.PushPositional(path)
	DecRef(path)
	if res := ca.PushKeyword(ctx, "encoding", NewStr("utf-8")); IsError(res) {
		t.Fatalf("push keyword failed")
	}
	if res := Invoke(ctx, b, ca); IsError(res) {
		t.Fatalf("invoke failed")
	}
	if len(seen) != 4 {
		t.Fatalf("open() should bind through encoding, got %d args", len(seen))
	}
	mode, ok := seen[1].(*Str)
	if !ok || mode.Value != "r" {
		t.Fatalf("mode hole should default to 'r', got %v", seen[1])
	}
	if seen[2] != (Int{Value: -1}) {
		t.Fatalf("buffering hole should default to -1, got %v", seen[2])
	}
}

func TestBuiltinAdapterDictPopKeepsArity(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var seen []Object
	b := NewBuiltin("dict.pop", func(ctx *ExecContext, args []Object, kwargs *Dict) Object {
		seen = append([]Object(nil), args...)
		return None{}
	})
	defer DecRef(b)

	ca := NewCallArgs(1)
	key := NewStr("k")
	ca.PushPositional(key)
	DecRef(key)
	if res := Invoke(ctx, b, ca); IsError(res) {
		t.Fatalf("invoke failed")
	}
	if len(seen) != 1 {
		t.Fatalf("dict.pop must not invent a default, got %d args", len(seen))
	}
}

func TestBuiltinRejectsKeywords(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	b := NewBuiltin("id", func(ctx *ExecContext, args []Object, kwargs *Dict) Object {
		return None{}
	})
	defer DecRef(b)

	ca := NewCallArgs(0)
	ca.PushKeyword(ctx, "obj", Int{Value: 1})
	res := Invoke(ctx, b, ca)
	expectPendingError(t, ctx, res, "TypeError", "id() takes no keyword arguments")
}

func TestBuiltinMissingRequired(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	b := NewBuiltin("open", func(ctx *ExecContext, args []Object, kwargs *Dict) Object {
		return None{}
	})
	defer DecRef(b)

	ca := NewCallArgs(0)
	res := Invoke(ctx, b, ca)
	expectPendingError(t, ctx, res, "TypeError", "open() missing required argument 'file'")
}

func TestRecursionLimit(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var fn *Function
	fn = NewFunction("loop", Signature{}, func(ctx *ExecContext, args *BoundArgs) Object {
		ca := NewCallArgs(0)
		return Invoke(ctx, fn, ca)
	})
	defer DecRef(fn)

	ca := NewCallArgs(0)
	res := Invoke(ctx, fn, ca)
	if !IsError(res) {
		t.Fatalf("expected recursion failure")
	}
	exc := ctx.TakePending()
	defer DecRef(exc)
	if exc.Class.Name != "RecursionError" {
		t.Fatalf("expected RecursionError, got %s", exc.Class.Name)
	}
	if !strings.Contains(exc.Message(), "maximum recursion depth exceeded") {
		t.Fatalf("unexpected message %q", exc.Message())
	}
}
