package runtime

import (
	"strings"
	"testing"
)

func mustClass(t *testing.T, ctx *ExecContext, name string, bases ...Object) *Class {
	t.Helper()
	res := NewClass(ctx, name, bases, nil, nil, nil)
	if IsError(res) {
		exc := ctx.TakePending()
		t.Fatalf("class %s failed: %s", name, exc.Message())
	}
	return res.(*Class)
}

func mroNames(cls *Class) []string {
	names := make([]string, len(cls.MRO))
	for i, m := range cls.MRO {
		names[i] = m.Name
	}
	return names
}

func TestMRODiamond(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	a := mustClass(t, ctx, "A")
	defer DecRef(a)
	b := mustClass(t, ctx, "B")
	defer DecRef(b)
	c := mustClass(t, ctx, "C", a, b)
	defer DecRef(c)

	got := strings.Join(mroNames(c), ",")
	if got != "C,A,B,object" {
		t.Fatalf("wrong linearization: %s", got)
	}
}

func TestMROInconsistent(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	x := mustClass(t, ctx, "X")
	defer DecRef(x)
	y := mustClass(t, ctx, "Y")
	defer DecRef(y)
	a := mustClass(t, ctx, "A", x, y)
	defer DecRef(a)
	b := mustClass(t, ctx, "B", y, x)
	defer DecRef(b)

	res := NewClass(ctx, "C", []Object{a, b}, nil, nil, nil)
	if !IsError(res) {
		t.Fatalf("conflicting linearizations should fail")
	}
	exc := ctx.TakePending()
	defer DecRef(exc)
	if exc.Class.Name != "TypeError" {
		t.Fatalf("expected TypeError, got %s", exc.Class.Name)
	}
	if !strings.Contains(exc.Message(), "Cannot create a consistent method resolution order") {
		t.Fatalf("unexpected message %q", exc.Message())
	}
}

func TestDuplicateBase(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	a := mustClass(t, ctx, "A")
	defer DecRef(a)
	res := NewClass(ctx, "C", []Object{a, a}, nil, nil, nil)
	expectPendingError(t, ctx, res, "TypeError", "duplicate base class A")
}

func TestNonClassBase(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	res := NewClass(ctx, "C", []Object{Int{Value: 1}}, nil, nil, nil)
	expectPendingError(t, ctx, res, "TypeError", "base must be a type object")
}

func TestLayoutConflictIsAtomic(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t)

	res := NewClass(ctx, "C", []Object{rt.Class("dict"), rt.Class("list")}, nil, nil, nil)
	expectPendingError(t, ctx, res, "TypeError", "multiple bases have instance lay-out conflict")

	// Failure must publish nothing: the bases stay untouched.
	if _, ok := rt.Class("dict").Dict.Get("C"); ok {
		t.Fatalf("failed class leaked into a base")
	}
	if rt.Class("dict").LayoutVersion != 0 || rt.Class("list").LayoutVersion != 0 {
		t.Fatalf("failed class bumped a base layout version")
	}
}

func TestSetBasesRejectsSelfInheritance(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	a := mustClass(t, ctx, "A")
	defer DecRef(a)
	res := SetBases(ctx, a, []Object{a})
	expectPendingError(t, ctx, res, "TypeError", "class cannot inherit from itself")
}

func TestSetBasesRelinearizes(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	a := mustClass(t, ctx, "A")
	defer DecRef(a)
	b := mustClass(t, ctx, "B")
	defer DecRef(b)
	c := mustClass(t, ctx, "C", a)
	defer DecRef(c)

	before := c.LayoutVersion
	if res := SetBases(ctx, c, []Object{b}); IsError(res) {
		t.Fatalf("set bases failed: %s", ctx.TakePending().Message())
	}
	got := strings.Join(mroNames(c), ",")
	if got != "C,B,object" {
		t.Fatalf("wrong linearization after rebase: %s", got)
	}
	if c.LayoutVersion == before {
		t.Fatalf("rebase must bump the layout version")
	}

	mro, ok := c.Dict.Get("__mro__")
	if !ok {
		t.Fatalf("__mro__ not mirrored into class dict")
	}
	items := mro.(*Tuple).Items
	if items[1] != Object(b) {
		t.Fatalf("__mro__ out of sync after rebase")
	}
}

func TestSetClassAttrBumpsOnlyOnChange(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	a := mustClass(t, ctx, "A")
	defer DecRef(a)

	v := NewStr("payload")
	defer DecRef(v)

	before := a.LayoutVersion
	SetClassAttr(a, "attr", v)
	if a.LayoutVersion == before {
		t.Fatalf("new attribute must bump the layout version")
	}
	bumped := a.LayoutVersion
	SetClassAttr(a, "attr", v)
	if a.LayoutVersion != bumped {
		t.Fatalf("storing the identical value must not bump the layout version")
	}
}

func TestAttributeLookupFollowsMRO(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	a := mustClass(t, ctx, "A")
	defer DecRef(a)
	b := mustClass(t, ctx, "B")
	defer DecRef(b)

	av := NewStr("from A")
	defer DecRef(av)
	bv := NewStr("from B")
	defer DecRef(bv)
	SetClassAttr(a, "where", av)
	SetClassAttr(b, "where", bv)

	c := mustClass(t, ctx, "C", a, b)
	defer DecRef(c)

	val, owner := LookupMRO(c, "where")
	if owner != a {
		t.Fatalf("lookup should stop at A, got %s", owner.Name)
	}
	if val.(*Str).Value != "from A" {
		t.Fatalf("wrong value resolved")
	}
}

func TestConstructionNewInit(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	initSig := Signature{Params: []Param{{Name: "self"}, {Name: "x"}}}
	init := NewFunction("__init__", initSig, func(ctx *ExecContext, args *BoundArgs) Object {
		self := args.Slots[0].(*Instance)
		self.Dict.Set("x", args.Slots[1])
		return None{}
	})
	defer DecRef(init)

	dict := NewDict()
	dict.Set("__init__", init)
	cls := NewClass(ctx, "Point", nil, dict, nil, nil)
	DecRef(dict)
	if IsError(cls) {
		t.Fatalf("class creation failed")
	}
	defer DecRef(cls)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 11})
	obj := Invoke(ctx, cls, ca)
	if IsError(obj) {
		t.Fatalf("construction failed: %s", ctx.TakePending().Message())
	}
	defer DecRef(obj)

	inst := obj.(*Instance)
	if v, _ := inst.Dict.Get("x"); v != (Int{Value: 11}) {
		t.Fatalf("__init__ did not run")
	}
}

func TestInitMustReturnNone(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	init := NewFunction("__init__", Signature{Params: []Param{{Name: "self"}}}, func(ctx *ExecContext, args *BoundArgs) Object {
		return Int{Value: 3}
	})
	defer DecRef(init)

	dict := NewDict()
	dict.Set("__init__", init)
	cls := NewClass(ctx, "Bad", nil, dict, nil, nil)
	DecRef(dict)
	defer DecRef(cls)

	ca := NewCallArgs(0)
	res := Invoke(ctx, cls, ca)
	expectPendingError(t, ctx, res, "TypeError", "__init__() should return None, not 'int'")
}

func TestCustomNewControlsAllocation(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	newFn := NewFunction("__new__", Signature{Params: []Param{{Name: "cls"}}, VarArg: "args"}, func(ctx *ExecContext, args *BoundArgs) Object {
		return NewStr("not an instance")
	})
	defer DecRef(newFn)

	dict := NewDict()
	dict.Set("__new__", newFn)
	cls := NewClass(ctx, "Weird", nil, dict, nil, nil)
	DecRef(dict)
	defer DecRef(cls)

	ca := NewCallArgs(0)
	res := Invoke(ctx, cls, ca)
	if IsError(res) {
		t.Fatalf("construction failed")
	}
	defer DecRef(res)
	// __new__ returning a foreign object skips __init__.
	if s, ok := res.(*Str); !ok || s.Value != "not an instance" {
		t.Fatalf("custom __new__ result not honored: %s", res.Inspect())
	}
}

func TestInitSubclassReceivesClassKeywords(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	var gotCls Object
	var gotKw Object
	hook := NewFunction("__init_subclass__",
		Signature{Params: []Param{{Name: "cls"}}, KwArg: "kwargs"},
		func(ctx *ExecContext, args *BoundArgs) Object {
			gotCls = args.Slots[0]
			if v, ok := args.KwArg.Get("registry"); ok {
				gotKw = v
			}
			return None{}
		})
	defer DecRef(hook)

	dict := NewDict()
	dict.Set("__init_subclass__", hook)
	base := NewClass(ctx, "Base", nil, dict, nil, nil)
	DecRef(dict)
	defer DecRef(base)

	kwargs := NewDict()
	kwargs.Set("registry", NewStr("plugins"))
	sub := NewClass(ctx, "Sub", []Object{base}, nil, nil, kwargs)
	DecRef(kwargs)
	if IsError(sub) {
		t.Fatalf("subclass failed: %s", ctx.TakePending().Message())
	}
	defer DecRef(sub)

	if gotCls != sub {
		t.Fatalf("hook did not receive the new class")
	}
	if gotKw == nil || gotKw.(*Str).Value != "plugins" {
		t.Fatalf("hook did not receive class keywords")
	}
}

func TestMetaclassCallOverridesConstruction(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t)

	mcall := NewFunction("__call__", Signature{Params: []Param{{Name: "cls"}}, VarArg: "args"}, func(ctx *ExecContext, args *BoundArgs) Object {
		return NewStr("made by meta")
	})
	defer DecRef(mcall)

	metaDict := NewDict()
	metaDict.Set("__call__", mcall)
	meta := NewClass(ctx, "Meta", []Object{rt.Class("type")}, metaDict, nil, nil)
	DecRef(metaDict)
	defer DecRef(meta)

	cls := NewClass(ctx, "Configured", nil, nil, meta.(*Class), nil)
	if IsError(cls) {
		t.Fatalf("class failed")
	}
	defer DecRef(cls)

	ca := NewCallArgs(0)
	res := Invoke(ctx, cls, ca)
	if IsError(res) {
		t.Fatalf("metaclass call failed: %s", ctx.TakePending().Message())
	}
	defer DecRef(res)
	if s, ok := res.(*Str); !ok || s.Value != "made by meta" {
		t.Fatalf("metaclass __call__ not dispatched: %s", res.Inspect())
	}
}

func TestTypeBuiltinOneAndThreeArgs(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 5})
	res := Invoke(ctx, rt.Class("type"), ca)
	if IsError(res) {
		t.Fatalf("type(x) failed")
	}
	if res.(*Class).Name != "int" {
		t.Fatalf("type(5) should be int, got %s", res.(*Class).Name)
	}
	DecRef(res)

	name := NewStr("Made")
	bases := NewTuple()
	dict := NewDict()
	ca = NewCallArgs(3)
	ca.PushPositional(name)
	ca.PushPositional(bases)
	ca.PushPositional(dict)
	DecRef(name)
	DecRef(bases)
	DecRef(dict)
	res = Invoke(ctx, rt.Class("type"), ca)
	if IsError(res) {
		t.Fatalf("type(name, bases, dict) failed: %s", ctx.TakePending().Message())
	}
	defer DecRef(res)
	cls := res.(*Class)
	if cls.Name != "Made" || cls.MRO[len(cls.MRO)-1].Name != "object" {
		t.Fatalf("three-arg type() built a broken class")
	}
}

func TestTypeOneArgRejectsKeywords(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 5})
	ca.PushKeyword(ctx, "metaclass", Int{Value: 1})
	res := Invoke(ctx, rt.Class("type"), ca)
	expectPendingError(t, ctx, res, "TypeError", "type() takes no keyword arguments")
}

func TestDictConstructorRejectsNonMapping(t *testing.T) {
	rt, ctx, _ := newTestRuntime(t)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 7})
	res := Invoke(ctx, rt.Class("dict"), ca)
	expectPendingError(t, ctx, res, "TypeError", "'int' object is not a mapping")

	d1 := NewDict()
	d2 := NewDict()
	ca = NewCallArgs(2)
	ca.PushPositional(d1)
	ca.PushPositional(d2)
	DecRef(d1)
	DecRef(d2)
	res = Invoke(ctx, rt.Class("dict"), ca)
	expectPendingError(t, ctx, res, "TypeError", "dict expected at most 1 argument, got 2")
}

func TestInstanceCallDispatchesDunder(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	call := NewFunction("__call__", Signature{Params: []Param{{Name: "self"}, {Name: "x"}}}, func(ctx *ExecContext, args *BoundArgs) Object {
		return args.Slots[1]
	})
	defer DecRef(call)

	dict := NewDict()
	dict.Set("__call__", call)
	cls := NewClass(ctx, "Fn", nil, dict, nil, nil)
	DecRef(dict)
	defer DecRef(cls)

	inst := NewInstance(cls.(*Class))
	defer DecRef(inst)

	ca := NewCallArgs(1)
	ca.PushPositional(Int{Value: 9})
	res := Invoke(ctx, inst, ca)
	if IsError(res) {
		t.Fatalf("instance call failed: %s", ctx.TakePending().Message())
	}
	if res != (Int{Value: 9}) {
		t.Fatalf("wrong result %v", res)
	}
}

func TestNotCallable(t *testing.T) {
	_, ctx, _ := newTestRuntime(t)

	ca := NewCallArgs(0)
	res := Invoke(ctx, Int{Value: 3}, ca)
	expectPendingError(t, ctx, res, "TypeError", "'int' object is not callable")
}
