package runtime

// Native callables do not carry a Signature; their keyword surface is
// described here as data. Each adapter names the accepted keywords in
// positional order and a default kind that selects the canned trailing
// defaults to substitute for missing arguments.

type defaultKind int

const (
	defMissing defaultKind = iota // no substitution, body enforces arity
	defNone                       // one trailing None
	defNone2                      // two trailing Nones
	defNegOne                     // one trailing -1
	defZero                       // one trailing 0
	defFalse                      // one trailing False
	defReplaceCount               // str.replace: count=-1
	defDictPop                    // dict.pop: absent default stays absent
	defDictUpdate                 // dict.update: default empty mapping
	defIORaw                      // open: mode='r', buffering=-1
	defIOTextWrapper              // text wrapper: encoding/errors/newline=None, line_buffering=False
)

type builtinAdapter struct {
	name     string
	keywords []string // accepted keyword names, positional order
	minArgs  int
	maxArgs  int // -1 = unbounded positional tail
	defaults defaultKind
}

var builtinAdapters = map[string]*builtinAdapter{
	"open": {
		name:     "open",
		keywords: []string{"file", "mode", "buffering", "encoding", "errors", "newline"},
		minArgs:  1, maxArgs: 6,
		defaults: defIORaw,
	},
	"TextIOWrapper": {
		name:     "TextIOWrapper",
		keywords: []string{"buffer", "encoding", "errors", "newline", "line_buffering"},
		minArgs:  1, maxArgs: 5,
		defaults: defIOTextWrapper,
	},
	"print": {
		name:     "print",
		keywords: []string{"sep", "end", "file", "flush"},
		minArgs:  0, maxArgs: -1,
		defaults: defMissing,
	},
	"getattr": {
		name:    "getattr",
		minArgs: 2, maxArgs: 3,
		defaults: defMissing,
	},
	"round": {
		name:     "round",
		keywords: []string{"number", "ndigits"},
		minArgs:  1, maxArgs: 2,
		defaults: defNone,
	},
	"sorted": {
		name:     "sorted",
		keywords: []string{"iterable", "key", "reverse"},
		minArgs:  1, maxArgs: 3,
		defaults: defNone2,
	},
	"int": {
		name:     "int",
		keywords: []string{"x", "base"},
		minArgs:  0, maxArgs: 2,
		defaults: defZero,
	},
	"str.replace": {
		name:     "replace",
		minArgs:  2, maxArgs: 3,
		defaults: defReplaceCount,
	},
	"str.split": {
		name:     "split",
		keywords: []string{"sep", "maxsplit"},
		minArgs:  0, maxArgs: 2,
		defaults: defNegOne,
	},
	"str.find": {
		name:    "find",
		minArgs: 1, maxArgs: 3,
		defaults: defNone2,
	},
	"dict.get": {
		name:     "get",
		minArgs:  1, maxArgs: 2,
		defaults: defNone,
	},
	"dict.setdefault": {
		name:     "setdefault",
		minArgs:  1, maxArgs: 2,
		defaults: defNone,
	},
	"dict.pop": {
		name:    "pop",
		minArgs: 1, maxArgs: 2,
		defaults: defDictPop,
	},
	"dict.update": {
		name:    "update",
		minArgs: 0, maxArgs: 1,
		defaults: defDictUpdate,
	},
	"list.sort": {
		name:     "sort",
		keywords: []string{"key", "reverse"},
		minArgs:  0, maxArgs: 2,
		defaults: defNone2,
	},
	"list.pop": {
		name:    "pop",
		minArgs: 0, maxArgs: 1,
		defaults: defNegOne,
	},
}

func lookupAdapter(name string) *builtinAdapter {
	return builtinAdapters[name]
}

// defaultsRow returns the canned defaults for a kind, aligned to the
// trailing positions of the adapter's arity.
func defaultsRow(kind defaultKind) []Object {
	switch kind {
	case defNone:
		return []Object{None{}}
	case defNone2:
		return []Object{None{}, None{}}
	case defNegOne, defReplaceCount:
		return []Object{Int{Value: -1}}
	case defZero:
		return []Object{Int{Value: 0}}
	case defFalse:
		return []Object{Bool{Value: false}}
	case defIORaw:
		return []Object{NewStr("r"), Int{Value: -1}, None{}, None{}, None{}}
	case defIOTextWrapper:
		return []Object{None{}, None{}, None{}, Bool{Value: false}}
	default:
		return nil
	}
}

// bindBuiltin flattens a CallArgs into the positional slice a native
// body expects. Keywords map onto positional slots by adapter order;
// holes are filled from the adapter's default row where it covers them.
// The returned slice holds new references; kwargs is non-nil only for
// variadic adapters that accept keywords.
func bindBuiltin(ctx *ExecContext, b *Builtin, ca *CallArgs) ([]Object, *Dict, Object) {
	ad := b.adapter
	if ad == nil {
		if len(ca.kwNames) > 0 {
			return nil, nil, ctx.TypeErrorf("%s() takes no keyword arguments", b.Name)
		}
		args := make([]Object, len(ca.pos))
		for i, v := range ca.pos {
			IncRef(v)
			args[i] = v
		}
		return args, nil, nil
	}

	// Variadic adapters take any number of positionals; keywords travel
	// beside them instead of mapping to slots.
	if ad.maxArgs < 0 {
		var kwargs *Dict
		for i, kwName := range ca.kwNames {
			known := false
			for _, n := range ad.keywords {
				if n == kwName {
					known = true
					break
				}
			}
			if !known {
				if kwargs != nil {
					DecRef(kwargs)
				}
				return nil, nil, ctx.TypeErrorf("%s() got an unexpected keyword '%s'", b.Name, kwName)
			}
			if kwargs == nil {
				kwargs = NewDict()
			}
			kwargs.Set(kwName, ca.kwVals[i])
		}
		args := make([]Object, len(ca.pos))
		for i, v := range ca.pos {
			IncRef(v)
			args[i] = v
		}
		return args, kwargs, nil
	}

	if len(ca.pos) > ad.maxArgs {
		return nil, nil, ctx.TypeErrorf("%s() too many positional arguments", b.Name)
	}

	slots := make([]Object, ad.maxArgs)
	for i, v := range ca.pos {
		slots[i] = v
	}
	for i, kwName := range ca.kwNames {
		idx := -1
		for j, n := range ad.keywords {
			if n == kwName {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, nil, ctx.TypeErrorf("%s() got an unexpected keyword '%s'", b.Name, kwName)
		}
		if slots[idx] != nil {
			return nil, nil, ctx.TypeErrorf("%s() got multiple values for argument '%s'", b.Name, kwName)
		}
		slots[idx] = ca.kwVals[i]
	}

	// Fill holes from the default row, which covers the trailing
	// len(row) positions. Row values arrive already owned; everything
	// taken from the call site is borrowed until the final retain.
	fromRow := make([]bool, len(slots))
	row := defaultsRow(ad.defaults)
	offset := ad.maxArgs - len(row)
	for i := range slots {
		if slots[i] != nil {
			continue
		}
		if i >= offset {
			slots[i] = row[i-offset]
			fromRow[i] = true
		}
	}

	// Trim trailing holes the row does not cover, then reject interior
	// ones and short calls.
	n := len(slots)
	for n > 0 && slots[n-1] == nil {
		n--
	}
	slots = slots[:n]
	for i, s := range slots {
		if s == nil {
			return nil, nil, ctx.TypeErrorf("%s() missing required argument '%s'", b.Name, argName(ad, i))
		}
	}
	if len(slots) < ad.minArgs {
		return nil, nil, ctx.TypeErrorf("%s() missing required argument '%s'", b.Name, argName(ad, len(slots)))
	}

	for i := range slots {
		if !fromRow[i] {
			IncRef(slots[i])
		}
	}
	return slots, nil, nil
}

func argName(ad *builtinAdapter, idx int) string {
	if idx < len(ad.keywords) {
		return ad.keywords[idx]
	}
	return "arg" + Int{Value: int64(idx + 1)}.Inspect()
}

// callBuiltin binds and runs a native body.
func callBuiltin(ctx *ExecContext, b *Builtin, ca *CallArgs) Object {
	args, kwargs, errObj := bindBuiltin(ctx, b, ca)
	if errObj != nil {
		return errObj
	}
	release := func() {
		for i := range args {
			DecRef(args[i])
		}
		if kwargs != nil {
			DecRef(kwargs)
		}
	}
	if res := ctx.PushFrame(b.Name, "<builtin>", 0); IsError(res) {
		release()
		return TheError
	}
	res := b.Fn(ctx, args, kwargs)
	ctx.PopFrame()
	release()
	return res
}
