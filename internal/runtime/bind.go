package runtime

import (
	"strings"

	"go.uber.org/zap"
)

// bindFunction matches a consumed CallArgs against a signature and
// produces the bound frame. On failure it records a TypeError prefixed
// with the callable's name and returns the sentinel.
//
// Binding order: positional slots left to right, then keywords, then
// defaults. Positional-only violations are collected across all keywords
// so the error can name every offender at once.
func bindFunction(ctx *ExecContext, name string, sig Signature, ca *CallArgs) (*BoundArgs, Object) {
	nslots := len(sig.Params)
	posCount := sig.positionalCount()
	slots := make([]Object, nslots)

	fail := func(errObj Object) (*BoundArgs, Object) {
		for i := range slots {
			ClearSlot(&slots[i])
		}
		return nil, errObj
	}

	// Positionals.
	var extra []Object
	for i, v := range ca.pos {
		if i < posCount {
			IncRef(v)
			slots[i] = v
			continue
		}
		if sig.VarArg == "" {
			return fail(ctx.TypeErrorf("%s() too many positional arguments", name))
		}
		extra = append(extra, v)
	}

	// Keywords.
	var kwDict *Dict
	if sig.KwArg != "" {
		kwDict = NewDict()
	}
	releaseKw := func() {
		if kwDict != nil {
			DecRef(kwDict)
		}
	}
	var posOnlyHits []string
	for i, kwName := range ca.kwNames {
		v := ca.kwVals[i]
		idx := sig.paramIndex(kwName)
		switch {
		case idx >= 0 && idx >= sig.PosOnly:
			if slots[idx] != nil {
				releaseKw()
				return fail(ctx.TypeErrorf("%s() got multiple values for argument '%s'", name, kwName))
			}
			IncRef(v)
			slots[idx] = v
		case idx >= 0:
			// A positional-only name passed by keyword lands in
			// **kwargs when there is one, otherwise it is an error.
			if kwDict != nil {
				kwDict.Set(kwName, v)
			} else {
				posOnlyHits = append(posOnlyHits, kwName)
			}
		case kwDict != nil:
			kwDict.Set(kwName, v)
		default:
			releaseKw()
			return fail(ctx.TypeErrorf("%s() got an unexpected keyword '%s'", name, kwName))
		}
	}
	if len(posOnlyHits) > 0 {
		releaseKw()
		return fail(ctx.TypeErrorf(
			"%s() got some positional-only arguments passed as keyword arguments: '%s'",
			name, strings.Join(posOnlyHits, ", ")))
	}

	// Defaults and missing checks.
	for i, p := range sig.Params {
		if slots[i] != nil {
			continue
		}
		if p.Default != nil {
			IncRef(p.Default)
			slots[i] = p.Default
			continue
		}
		releaseKw()
		if p.KwOnly {
			return fail(ctx.TypeErrorf("%s() missing required keyword-only argument '%s'", name, p.Name))
		}
		return fail(ctx.TypeErrorf("%s() missing required argument '%s'", name, p.Name))
	}

	ba := &BoundArgs{Slots: slots}
	if sig.VarArg != "" {
		ba.VarArg = NewTuple(extra...)
	}
	ba.KwArg = kwDict

	ctx.rt.traceCall("bound",
		zap.String("callable", name),
		zap.Int("positional", len(ca.pos)),
		zap.Int("keyword", len(ca.kwNames)))
	return ba, nil
}

// callFunction binds and runs a plain function body inside a fresh frame.
func callFunction(ctx *ExecContext, fn *Function, ca *CallArgs) Object {
	ba, errObj := bindFunction(ctx, fn.Name, fn.Sig, ca)
	if errObj != nil {
		return errObj
	}
	if res := ctx.PushFrame(fn.Name, fn.File, fn.Line); IsError(res) {
		ba.Release()
		return TheError
	}
	res := fn.Fn(ctx, ba)
	ctx.PopFrame()
	ba.Release()
	return res
}

// callTemplate binds a generator or coroutine template. The body does
// not run; a suspended future captures the bound frame and runs under
// the poll protocol.
func callTemplate(ctx *ExecContext, fn *Function, ca *CallArgs) Object {
	ba, errObj := bindFunction(ctx, fn.Name, fn.Sig, ca)
	if errObj != nil {
		return errObj
	}
	nslots := fn.NumSlots
	if nslots < 1 {
		nslots = 1
	}
	fut := NewFuture(fn.Name, fn.Step, nslots)
	fut.Bound = ba
	ctx.rt.tracePoll("template suspended", zap.String("callable", fn.Name))
	return fut
}
