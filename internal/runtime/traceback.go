package runtime

import "strings"

// Traceback is one frame of a materialized traceback. Next points
// toward the raise site, so rendering walks the list in order.
type Traceback struct {
	Header
	Frame Frame
	Next  *Traceback
}

func (*Traceback) Type() ObjectType  { return TRACEBACK_OBJ }
func (tb *Traceback) Inspect() string { return "<traceback>" }
func (tb *Traceback) drop() {
	next := tb.Next
	tb.Next = nil
	if next != nil {
		DecRef(next)
	}
}

// buildTraceback materializes the current call stack from the innermost
// active handler outward. includeCaller widens the capture by one frame;
// it is set when the exception carries an explicit cause, so the raise
// site's caller shows up in "raise ... from" chains.
func buildTraceback(ctx *ExecContext, includeCaller bool) *Traceback {
	start := 0
	if n := len(ctx.handlers); n > 0 {
		start = ctx.handlers[n-1]
	}
	if includeCaller && start > 0 {
		start--
	}
	if start > len(ctx.frames) {
		start = len(ctx.frames)
	}

	// Link from the raise site outward so the head ends up outermost.
	var head *Traceback
	for i := len(ctx.frames) - 1; i >= start; i-- {
		node := &Traceback{Header: newHeader(), Frame: ctx.frames[i], Next: head}
		head = node
	}
	return head
}

// FormatTraceback renders the frame list in CPython's order, most
// recent call last.
func FormatTraceback(tb *Traceback) string {
	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")
	for node := tb; node != nil; node = node.Next {
		b.WriteString("  File \"")
		b.WriteString(node.Frame.File)
		b.WriteString("\", line ")
		b.WriteString(Int{Value: int64(node.Frame.Line)}.Inspect())
		b.WriteString(", in ")
		b.WriteString(node.Frame.Name)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderExceptionChain renders an exception with its cause/context
// chain the way the interpreter prints an uncaught exception.
func RenderExceptionChain(e *Exception) string {
	var b strings.Builder
	renderChain(&b, e, make(map[*Exception]bool))
	return b.String()
}

func renderChain(b *strings.Builder, e *Exception, seen map[*Exception]bool) {
	if e == nil || seen[e] {
		return
	}
	seen[e] = true

	if cause, ok := e.Cause.(*Exception); ok {
		renderChain(b, cause, seen)
		b.WriteString("\nThe above exception was the direct cause of the following exception:\n\n")
	} else if !e.SuppressContext {
		if context, ok := e.Context.(*Exception); ok {
			renderChain(b, context, seen)
			b.WriteString("\nDuring handling of the above exception, another exception occurred:\n\n")
		}
	}

	if e.Traceback != nil {
		b.WriteString(FormatTraceback(e.Traceback))
	}
	b.WriteString(FormatException(e))
	b.WriteString("\n")
}
