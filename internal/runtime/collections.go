package runtime

import "strings"

type Str struct {
	Header
	Value string
}

func NewStr(s string) *Str { return &Str{Header: newHeader(), Value: s} }

func (*Str) Type() ObjectType  { return STRING_OBJ }
func (s *Str) Inspect() string { return reprQuote(s.Value) }
func (s *Str) drop()           {}

// reprQuote renders s the way Python repr() does: single quotes unless the
// string contains one and no double quote.
func reprQuote(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case rune(quote):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

type Bytes struct {
	Header
	Value []byte
}

func NewBytes(b []byte) *Bytes { return &Bytes{Header: newHeader(), Value: b} }

func (*Bytes) Type() ObjectType  { return BYTES_OBJ }
func (b *Bytes) Inspect() string { return "b" + reprQuote(string(b.Value)) }
func (b *Bytes) drop()           {}

type Tuple struct {
	Header
	Items []Object
}

// NewTuple retains each item; the tuple owns its elements. The slice is
// copied so callers keep ownership of theirs.
func NewTuple(items ...Object) *Tuple {
	owned := make([]Object, len(items))
	for i, it := range items {
		IncRef(it)
		owned[i] = it
	}
	return &Tuple{Header: newHeader(), Items: owned}
}

func (*Tuple) Type() ObjectType { return TUPLE_OBJ }
func (t *Tuple) Inspect() string {
	parts := make([]string, len(t.Items))
	for i, it := range t.Items {
		parts[i] = it.Inspect()
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t *Tuple) drop() {
	for i := range t.Items {
		ClearSlot(&t.Items[i])
	}
	t.Items = nil
}

type List struct {
	Header
	Items []Object
}

func NewList(items ...Object) *List {
	owned := make([]Object, len(items))
	for i, it := range items {
		IncRef(it)
		owned[i] = it
	}
	return &List{Header: newHeader(), Items: owned}
}

func (*List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string {
	parts := make([]string, len(l.Items))
	for i, it := range l.Items {
		parts[i] = it.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (l *List) Append(v Object) {
	IncRef(v)
	l.Items = append(l.Items, v)
}

func (l *List) drop() {
	for i := range l.Items {
		ClearSlot(&l.Items[i])
	}
	l.Items = nil
}

// Dict is the insertion-ordered string-keyed mapping used for class
// dicts, instance dicts and keyword arguments.
type Dict struct {
	Header
	keys  []string
	items map[string]Object
}

func NewDict() *Dict {
	return &Dict{Header: newHeader(), items: make(map[string]Object)}
}

func (*Dict) Type() ObjectType { return DICT_OBJ }

func (d *Dict) Inspect() string {
	parts := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		parts = append(parts, reprQuote(k)+": "+d.items[k].Inspect())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (d *Dict) Len() int { return len(d.keys) }

func (d *Dict) Keys() []string { return d.keys }

// Set stores v under key, retaining v and releasing any previous value.
func (d *Dict) Set(key string, v Object) {
	IncRef(v)
	old, existed := d.items[key]
	d.items[key] = v
	if existed {
		DecRef(old)
		return
	}
	d.keys = append(d.keys, key)
}

func (d *Dict) Get(key string) (Object, bool) {
	v, ok := d.items[key]
	return v, ok
}

func (d *Dict) Delete(key string) bool {
	old, ok := d.items[key]
	if !ok {
		return false
	}
	delete(d.items, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	DecRef(old)
	return true
}

func (d *Dict) drop() {
	for _, k := range d.keys {
		DecRef(d.items[k])
	}
	d.keys = nil
	d.items = nil
}

// Cell is a single mutable slot, used for captured variables.
type Cell struct {
	Header
	Value Object
}

func NewCell(v Object) *Cell {
	IncRef(v)
	return &Cell{Header: newHeader(), Value: v}
}

func (*Cell) Type() ObjectType  { return CELL_OBJ }
func (c *Cell) Inspect() string { return "<cell>" }
func (c *Cell) drop()           { ClearSlot(&c.Value) }
