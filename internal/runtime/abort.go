package runtime

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

// Abort is the uncaught-exception path: unwind the top-level context
// managers, honor SystemExit's exit-code contract, print the rendered
// chain to stderr and terminate with status 1.
func (ctx *ExecContext) Abort(exc *Exception) {
	rt := ctx.rt
	rt.traceExc("abort", zap.String("kind", exc.Class.Name))

	// Context managers entered at top level still get their __exit__,
	// in reverse entry order. Failures inside an exit are swallowed;
	// the original exception is what the user sees.
	for i := len(ctx.contexts) - 1; i >= 0; i-- {
		mgr := ctx.contexts[i]
		ctx.contexts = ctx.contexts[:i]
		invokeExit(ctx, mgr, exc)
		ctx.ClearPending()
		DecRef(mgr)
	}

	if sysExit := rt.classes["SystemExit"]; sysExit != nil && ExcMatches(exc, sysExit) {
		code, payload := systemExitCode(exc)
		if payload != nil {
			if s, ok := payload.(*Str); ok {
				fmt.Fprintln(rt.stderr, s.Value)
			} else {
				fmt.Fprintln(rt.stderr, payload.Inspect())
			}
		}
		rt.exitFunc(code)
		return
	}

	fmt.Fprint(rt.stderr, rt.colorizeChain(RenderExceptionChain(exc)))
	rt.exitFunc(1)
}

// invokeExit calls mgr.__exit__(type, exc, tb), ignoring its outcome.
func invokeExit(ctx *ExecContext, mgr Object, exc *Exception) {
	exit := GetAttr(ctx, mgr, "__exit__")
	if IsError(exit) {
		ctx.ClearPending()
		return
	}
	ca := NewCallArgs(3)
	ca.PushPositional(exc.Class)
	ca.PushPositional(exc)
	if exc.Traceback != nil {
		ca.PushPositional(exc.Traceback)
	} else {
		ca.PushPositional(None{})
	}
	res := Invoke(ctx, exit, ca)
	if !IsError(res) {
		DecRef(res)
	}
	DecRef(exit)
}

// systemExitCode maps SystemExit arguments onto a process exit status.
// No argument and None both mean success; a lone int is the status; any
// other payload is printed and the status is 1.
func systemExitCode(exc *Exception) (int, Object) {
	if exc.Args == nil || len(exc.Args.Items) == 0 {
		return 0, nil
	}
	if len(exc.Args.Items) == 1 {
		switch v := exc.Args.Items[0].(type) {
		case None:
			return 0, nil
		case Int:
			return int(v.Value), nil
		default:
			return 1, v
		}
	}
	return 1, exc.Args
}

func (rt *Runtime) colorEnabled() bool {
	switch rt.cfg.Color {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := rt.stderr.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// colorizeChain paints the final "Kind: message" line red when stderr
// wants color.
func (rt *Runtime) colorizeChain(text string) string {
	if !rt.colorEnabled() {
		return text
	}
	trimmed := strings.TrimRight(text, "\n")
	idx := strings.LastIndex(trimmed, "\n")
	if idx < 0 {
		return "\x1b[31m" + trimmed + "\x1b[0m\n"
	}
	return trimmed[:idx+1] + "\x1b[31m" + trimmed[idx+1:] + "\x1b[0m\n"
}
