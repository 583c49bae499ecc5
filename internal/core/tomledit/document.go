package tomledit

import (
	"fmt"
	"sort"
	"strings"
)

// NonExistentTableError reports a table-path segment that did not resolve to a
// table during descent.
type NonExistentTableError struct {
	Segment string
}

func (e *NonExistentTableError) Error() string {
	return fmt.Sprintf("the table `%s` could not be found", e.Segment)
}

// Entry is a key/value pair in a table. The surrounding trivia (comments,
// whitespace, the exact `=` spelling) is preserved across edits to the value.
type Entry struct {
	key    []string
	keyRaw string
	eqRaw  string
	val    *Value
	prefix string
	suffix string
}

// Key returns the entry's key. Dotted keys are joined with '.'.
func (e *Entry) Key() string { return strings.Join(e.key, ".") }

// Value returns the entry's value.
func (e *Entry) Value() *Value { return e.val }

// SetValue replaces the entry's value, keeping the entry's decoration.
func (e *Entry) SetValue(v *Value) { e.val = v }

func (e *Entry) render(sb *strings.Builder) {
	sb.WriteString(e.prefix)
	sb.WriteString(e.keyRaw)
	sb.WriteString(e.eqRaw)
	e.val.render(sb)
	sb.WriteString(e.suffix)
}

// Table is a named table in the document: the implicit root, a `[header]`
// table, or a `[[header]]` array element.
type Table struct {
	doc       *Document
	path      []string
	headerRaw string
	implicit  bool
	isArray   bool
	entries   []*Entry
	subs      []*Table
}

// Document is a format-preserving TOML document. Untouched regions render
// byte-for-byte as parsed.
type Document struct {
	root     *Table
	blocks   []*Table
	trailing string
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	doc := &Document{}
	doc.root = &Table{doc: doc, implicit: true}
	return doc
}

// Root returns the document's top-level table.
func (d *Document) Root() *Table { return d.root }

// String renders the document.
func (d *Document) String() string {
	var sb strings.Builder
	for _, e := range d.root.entries {
		e.render(&sb)
	}
	for _, t := range d.blocks {
		sb.WriteString(t.headerRaw)
		for _, e := range t.entries {
			e.render(&sb)
		}
	}
	sb.WriteString(d.trailing)
	return sb.String()
}

// Bytes renders the document.
func (d *Document) Bytes() []byte { return []byte(d.String()) }

// GetTable descends through path, requiring every segment to resolve to an
// existing table.
func (d *Document) GetTable(path []string) (*Table, error) {
	t := d.root
	for _, seg := range path {
		sub := t.Sub(seg)
		if sub == nil {
			return nil, &NonExistentTableError{Segment: seg}
		}
		t = sub
	}
	return t, nil
}

// GetOrInsertTable descends through path, creating missing tables. Created
// intermediate tables stay implicit; the final table gets a header rendered at
// the end of the document.
func (d *Document) GetOrInsertTable(path []string) *Table {
	t := d.root
	for i, seg := range path {
		sub := t.Sub(seg)
		if sub == nil {
			sub = &Table{doc: d, path: append(append([]string{}, path[:i]...), seg), implicit: true}
			t.subs = append(t.subs, sub)
		}
		t = sub
	}
	if t.implicit && t != d.root {
		t.implicit = false
		t.headerRaw = d.newHeader(t.path)
		d.blocks = append(d.blocks, t)
	}
	return t
}

func (d *Document) newHeader(path []string) string {
	segs := make([]string, len(path))
	for i, s := range path {
		segs[i] = formatKey(s)
	}
	header := "[" + strings.Join(segs, ".") + "]\n"
	if d.hasContent() {
		header = "\n" + header
	}
	return header
}

func (d *Document) hasContent() bool {
	return len(d.root.entries) > 0 || len(d.blocks) > 0
}

// Key returns the table's own key, the last segment of its path.
func (t *Table) Key() string {
	if len(t.path) == 0 {
		return ""
	}
	return t.path[len(t.path)-1]
}

// Path returns the table's full key path from the root.
func (t *Table) Path() []string { return append([]string{}, t.path...) }

// Sub returns the direct child table with the given key, or nil. Array-of-table
// children are not returned.
func (t *Table) Sub(key string) *Table {
	for _, s := range t.subs {
		if !s.isArray && s.Key() == key {
			return s
		}
	}
	return nil
}

// Subs returns the direct child tables, in document order.
func (t *Table) Subs() []*Table { return append([]*Table{}, t.subs...) }

// Entries returns the table's key/value entries in order.
func (t *Table) Entries() []*Entry { return append([]*Entry{}, t.entries...) }

// Get returns the value for a single-segment key, or nil.
func (t *Table) Get(key string) *Value {
	for _, e := range t.entries {
		if len(e.key) == 1 && e.key[0] == key {
			return e.val
		}
	}
	return nil
}

// Set inserts or replaces the value for a single-segment key. Replacements
// keep the original line's decoration; insertions append a canonical line.
func (t *Table) Set(key string, v *Value) {
	for _, e := range t.entries {
		if len(e.key) == 1 && e.key[0] == key {
			e.val = v
			return
		}
	}
	t.entries = append(t.entries, &Entry{
		key:    []string{key},
		keyRaw: formatKey(key),
		eqRaw:  " = ",
		val:    v,
		suffix: "\n",
	})
}

// Remove deletes the entry for key, reporting whether it was present.
func (t *Table) Remove(key string) bool {
	for i, e := range t.entries {
		if len(e.key) == 1 && e.key[0] == key {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveSub deletes the child table with the given key and every block nested
// under it, reporting whether it was present.
func (t *Table) RemoveSub(key string) bool {
	for i, s := range t.subs {
		if !s.isArray && s.Key() == key {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			t.doc.removeBlocks(s)
			return true
		}
	}
	return false
}

func (d *Document) removeBlocks(t *Table) {
	drop := map[*Table]bool{t: true}
	var mark func(*Table)
	mark = func(t *Table) {
		for _, s := range t.subs {
			drop[s] = true
			mark(s)
		}
	}
	mark(t)
	kept := d.blocks[:0]
	for _, b := range d.blocks {
		if !drop[b] {
			kept = append(kept, b)
		}
	}
	d.blocks = kept
}

// TableLike is the shared mutation surface of block tables and inline tables.
type TableLike interface {
	Get(key string) *Value
	Set(key string, v *Value)
	Remove(key string) bool
	Keys() []string
	Len() int
}

// Item is a single named member of a table: either a key/value entry or a
// child table block.
type Item struct {
	Key   string
	Value *Value
	Table *Table
}

// AsTableLike views the item as a table, whether it is an inline table value
// or a table block. It returns nil for scalar items.
func (i *Item) AsTableLike() TableLike {
	if i == nil {
		return nil
	}
	if i.Table != nil {
		return i.Table
	}
	if it := i.Value.AsInlineTable(); it != nil {
		return it
	}
	return nil
}

// Item returns the named member of the table, or nil.
func (t *Table) Item(key string) *Item {
	if v := t.Get(key); v != nil {
		return &Item{Key: key, Value: v}
	}
	if s := t.Sub(key); s != nil {
		return &Item{Key: key, Table: s}
	}
	return nil
}

// Items returns every member of the table: entries first, then child tables,
// each in document order. Array-of-table children are skipped.
func (t *Table) Items() []*Item {
	items := make([]*Item, 0, len(t.entries)+len(t.subs))
	for _, e := range t.entries {
		if len(e.key) == 1 {
			items = append(items, &Item{Key: e.key[0], Value: e.val})
		}
	}
	for _, s := range t.subs {
		if !s.isArray {
			items = append(items, &Item{Key: s.Key(), Table: s})
		}
	}
	return items
}

// RemoveItem deletes the named member, whether entry or child table.
func (t *Table) RemoveItem(key string) bool {
	if t.Remove(key) {
		return true
	}
	return t.RemoveSub(key)
}

// Keys returns the entry keys in order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		keys = append(keys, e.Key())
	}
	return keys
}

// Len reports the number of key/value entries.
func (t *Table) Len() int { return len(t.entries) }

// IsEmpty reports whether the table has neither entries nor child tables.
func (t *Table) IsEmpty() bool { return len(t.entries) == 0 && len(t.subs) == 0 }

// IsSorted reports whether the table's entries are in ascending key order.
func (t *Table) IsSorted() bool {
	return sort.SliceIsSorted(t.entries, func(i, j int) bool {
		return t.entries[i].Key() < t.entries[j].Key()
	})
}

// Sort stably reorders the table's entries by key, keeping each entry's
// decoration attached to it.
func (t *Table) Sort() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].Key() < t.entries[j].Key()
	})
}
