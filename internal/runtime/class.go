package runtime

import (
	"strings"

	"go.uber.org/zap"
)

// layoutKind identifies the instance memory shape a class commits to.
// Two bases with different non-object layouts cannot be combined.
type layoutKind int

const (
	layoutObject layoutKind = iota
	layoutType
	layoutInt
	layoutFloat
	layoutStr
	layoutBytes
	layoutTuple
	layoutList
	layoutDict
	layoutException
)

// Class is a type object. Mutation of Bases or the class dict bumps
// LayoutVersion so caches keyed on it invalidate.
type Class struct {
	Header
	Name  string
	Bases []*Class
	MRO   []*Class
	Dict  *Dict
	Meta  *Class

	LayoutVersion uint64
	layout        layoutKind

	// acceptsKwargs marks exception classes whose constructor binds
	// keyword arguments (the OSError family).
	acceptsKwargs bool
}

func (*Class) Type() ObjectType  { return CLASS_OBJ }
func (c *Class) Inspect() string { return "<class '" + c.Name + "'>" }

func (c *Class) drop() {
	ClearSlot2(&c.Dict)
	for i := range c.Bases {
		DecRef(c.Bases[i])
	}
	c.Bases = nil
	c.MRO = nil
}

// ClearSlot2 releases a typed slot. Small helper so typed fields do not
// need an Object temporary.
func ClearSlot2[T heapObject](slot *T) {
	old := *slot
	var zero T
	*slot = zero
	if any(old) != any(zero) {
		DecRef(old)
	}
}

// IsSubclass reports whether c appears in sub's MRO.
func IsSubclass(sub, c *Class) bool {
	for _, m := range sub.MRO {
		if m == c {
			return true
		}
	}
	return false
}

// LookupMRO scans the class dicts along the MRO and returns the first
// binding plus the class that defines it.
func LookupMRO(cls *Class, name string) (Object, *Class) {
	for _, m := range cls.MRO {
		if v, ok := m.Dict.Get(name); ok {
			return v, m
		}
	}
	return nil, nil
}

// bumpLayout invalidates caches keyed on the class shape. Only called
// when something actually changed.
func (c *Class) bumpLayout() { c.LayoutVersion++ }

func validateBases(ctx *ExecContext, self *Class, bases []Object) ([]*Class, Object) {
	out := make([]*Class, 0, len(bases))
	for _, b := range bases {
		bc, ok := b.(*Class)
		if !ok {
			return nil, ctx.TypeErrorf("base must be a type object")
		}
		if bc == self || (self != nil && IsSubclass(bc, self)) {
			return nil, ctx.TypeErrorf("class cannot inherit from itself")
		}
		for _, seen := range out {
			if seen == bc {
				return nil, ctx.TypeErrorf("duplicate base class %s", bc.Name)
			}
		}
		out = append(out, bc)
	}
	return out, nil
}

// bestLayout resolves the instance layout implied by the bases, or fails
// when two bases demand incompatible shapes.
func bestLayout(ctx *ExecContext, bases []*Class) (layoutKind, Object) {
	layout := layoutObject
	for _, b := range bases {
		if b.layout == layoutObject {
			continue
		}
		if layout == layoutObject || layout == b.layout {
			layout = b.layout
			continue
		}
		return 0, ctx.TypeErrorf("multiple bases have instance lay-out conflict")
	}
	return layout, nil
}

// NewClass creates a user class. Nothing is published on failure: the
// class object is only allocated after base validation, layout
// resolution and C3 linearization have all succeeded.
//
// kwargs carries the class keywords (everything after the bases in a
// class statement); they are forwarded to __init_subclass__.
func NewClass(ctx *ExecContext, name string, bases []Object, dict *Dict, meta *Class, kwargs *Dict) Object {
	rt := ctx.rt
	if len(bases) == 0 {
		bases = []Object{rt.classes["object"]}
	}
	resolved, errObj := validateBases(ctx, nil, bases)
	if errObj != nil {
		return errObj
	}
	layout, errObj := bestLayout(ctx, resolved)
	if errObj != nil {
		return errObj
	}
	if meta == nil {
		meta = rt.classes["type"]
	}

	cls := &Class{
		Header: newHeader(),
		Name:   name,
		Meta:   meta,
		layout: layout,
	}
	cls.Bases = resolved
	mro, ok := computeMRO(cls)
	if !ok {
		return ctx.TypeErrorf(
			"Cannot create a consistent method resolution order (MRO) for bases %s",
			baseNames(resolved))
	}

	// Point of no return: all checks passed, publish the class.
	for _, b := range resolved {
		IncRef(b)
	}
	cls.MRO = mro
	if dict == nil {
		dict = NewDict()
	} else {
		IncRef(dict)
	}
	cls.Dict = dict
	syncClassDict(cls)

	rt.traceCall("class created", zap.String("name", name), zap.Int("mro", len(mro)))

	if res := callInitSubclass(ctx, cls, kwargs); IsError(res) {
		DecRef(cls)
		return TheError
	}
	return cls
}

// SetBases re-parents an existing class. Validation happens against a
// shadow linearization first; the class is untouched on failure.
func SetBases(ctx *ExecContext, cls *Class, bases []Object) Object {
	resolved, errObj := validateBases(ctx, cls, bases)
	if errObj != nil {
		return errObj
	}
	if len(resolved) == 0 {
		resolved = []*Class{ctx.rt.classes["object"]}
	}
	if _, errObj := bestLayout(ctx, resolved); errObj != nil {
		return errObj
	}

	old := cls.Bases
	cls.Bases = resolved
	mro, ok := computeMRO(cls)
	if !ok {
		cls.Bases = old
		return ctx.TypeErrorf(
			"Cannot create a consistent method resolution order (MRO) for bases %s",
			baseNames(resolved))
	}

	changed := !sameClasses(old, cls.Bases) || !sameClasses(cls.MRO, mro)
	for _, b := range resolved {
		IncRef(b)
	}
	for _, b := range old {
		DecRef(b)
	}
	cls.MRO = mro
	syncClassDict(cls)
	if changed {
		cls.bumpLayout()
	}
	return None{}
}

// SetClassAttr mutates the class dict and bumps the layout version when
// the binding actually changed.
func SetClassAttr(cls *Class, name string, v Object) {
	if old, ok := cls.Dict.Get(name); ok && Is(old, v) {
		return
	}
	cls.Dict.Set(name, v)
	cls.bumpLayout()
}

// syncClassDict mirrors __name__, __bases__ and __mro__ into the class
// dict so attribute access sees them.
func syncClassDict(cls *Class) {
	nameObj := NewStr(cls.Name)
	cls.Dict.Set("__name__", nameObj)
	DecRef(nameObj)

	basesObjs := make([]Object, len(cls.Bases))
	for i, b := range cls.Bases {
		basesObjs[i] = b
	}
	basesTuple := NewTuple(basesObjs...)
	cls.Dict.Set("__bases__", basesTuple)
	DecRef(basesTuple)

	mroObjs := make([]Object, len(cls.MRO))
	for i, m := range cls.MRO {
		mroObjs[i] = m
	}
	mroTuple := NewTuple(mroObjs...)
	cls.Dict.Set("__mro__", mroTuple)
	DecRef(mroTuple)
}

// callInitSubclass invokes the nearest __init_subclass__ above the new
// class with the class object and the unconsumed class keywords.
func callInitSubclass(ctx *ExecContext, cls *Class, kwargs *Dict) Object {
	for _, m := range cls.MRO[1:] {
		hook, ok := m.Dict.Get("__init_subclass__")
		if !ok {
			continue
		}
		ca := NewCallArgs(1)
		ca.PushPositional(cls)
		if kwargs != nil {
			for _, k := range kwargs.Keys() {
				v, _ := kwargs.Get(k)
				if res := ca.PushKeyword(ctx, k, v); IsError(res) {
					ca.Release()
					return TheError
				}
			}
		}
		res := Invoke(ctx, hook, ca)
		if IsError(res) {
			return TheError
		}
		DecRef(res)
		return None{}
	}
	return None{}
}

func baseNames(bases []*Class) string {
	names := make([]string, len(bases))
	for i, b := range bases {
		names[i] = b.Name
	}
	return strings.Join(names, ", ")
}

func sameClasses(a, b []*Class) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Instance is a plain user-class instance with a dict.
type Instance struct {
	Header
	Class *Class
	Dict  *Dict
}

func NewInstance(cls *Class) *Instance {
	IncRef(cls)
	return &Instance{Header: newHeader(), Class: cls, Dict: NewDict()}
}

func (*Instance) Type() ObjectType { return INSTANCE_OBJ }
func (in *Instance) Inspect() string {
	return "<" + in.Class.Name + " object>"
}

func (in *Instance) drop() {
	ClearSlot2(&in.Dict)
	cls := in.Class
	in.Class = nil
	DecRef(cls)
}

// ClassOf returns the runtime class of any object.
func ClassOf(rt *Runtime, o Object) *Class {
	switch v := o.(type) {
	case *Instance:
		return v.Class
	case *Exception:
		return v.Class
	case *Class:
		if v.Meta != nil {
			return v.Meta
		}
		return rt.classes["type"]
	case None:
		return rt.classes["NoneType"]
	case Bool:
		return rt.classes["bool"]
	case Int:
		return rt.classes["int"]
	case Float:
		return rt.classes["float"]
	case *Str:
		return rt.classes["str"]
	case *Bytes:
		return rt.classes["bytes"]
	case *Tuple:
		return rt.classes["tuple"]
	case *List:
		return rt.classes["list"]
	case *Dict:
		return rt.classes["dict"]
	default:
		return rt.classes["object"]
	}
}

// GetAttr resolves attribute access on any object: instance dict first,
// then the MRO. Functions found on a class bind to the receiver. The
// result is a new reference; the caller releases it.
func GetAttr(ctx *ExecContext, o Object, name string) Object {
	switch v := o.(type) {
	case *Instance:
		if val, ok := v.Dict.Get(name); ok {
			IncRef(val)
			return val
		}
		if val, _ := LookupMRO(v.Class, name); val != nil {
			return bindIfFunction(val, o)
		}
	case *Exception:
		if v.Dict != nil {
			if val, ok := v.Dict.Get(name); ok {
				IncRef(val)
				return val
			}
		}
		if val, _ := LookupMRO(v.Class, name); val != nil {
			return bindIfFunction(val, o)
		}
	case *Class:
		if val, _ := LookupMRO(v, name); val != nil {
			IncRef(val)
			return val
		}
		if v.Meta != nil {
			if val, _ := LookupMRO(v.Meta, name); val != nil {
				return bindIfFunction(val, o)
			}
		}
	default:
		cls := ClassOf(ctx.rt, o)
		if cls != nil {
			if val, _ := LookupMRO(cls, name); val != nil {
				return bindIfFunction(val, o)
			}
		}
	}
	return ctx.RaiseError("AttributeError",
		"'%s' object has no attribute '%s'", ClassOf(ctx.rt, o).Name, name)
}

func bindIfFunction(val, recv Object) Object {
	switch val.(type) {
	case *Function, *Builtin:
		return NewBoundMethod(val, recv)
	}
	IncRef(val)
	return val
}
