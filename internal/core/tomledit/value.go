package tomledit

import (
	"strconv"
	"strings"
)

// Kind identifies the type of a TOML value.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindDatetime
	KindArray
	KindInlineTable
)

// Value is a single TOML value. Values parsed from a document keep their
// original source text and render back byte-for-byte until mutated.
type Value struct {
	kind   Kind
	raw    string // original token text, "" when synthesized or mutated
	str    string
	i      int64
	f      float64
	b      bool
	arr    *Array
	inline *InlineTable
}

// String creates a new string value.
func String(s string) *Value {
	return &Value{kind: KindString, str: s}
}

// Bool creates a new boolean value.
func Bool(b bool) *Value {
	return &Value{kind: KindBool, b: b}
}

// Integer creates a new integer value.
func Integer(n int64) *Value {
	return &Value{kind: KindInteger, i: n}
}

// Kind reports the value's type.
func (v *Value) Kind() Kind { return v.kind }

// AsString returns the decoded string and true if the value is a string.
func (v *Value) AsString() (string, bool) {
	if v == nil || v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBool returns the boolean and true if the value is a boolean.
func (v *Value) AsBool() (bool, bool) {
	if v == nil || v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInteger returns the integer and true if the value is an integer.
func (v *Value) AsInteger() (int64, bool) {
	if v == nil || v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// AsArray returns the array, or nil if the value is not an array.
func (v *Value) AsArray() *Array {
	if v == nil || v.kind != KindArray {
		return nil
	}
	return v.arr
}

// AsInlineTable returns the inline table, or nil if the value is not one.
func (v *Value) AsInlineTable() *InlineTable {
	if v == nil || v.kind != KindInlineTable {
		return nil
	}
	return v.inline
}

func (v *Value) render(sb *strings.Builder) {
	if v.raw != "" {
		sb.WriteString(v.raw)
		return
	}
	switch v.kind {
	case KindString:
		sb.WriteString(quoteString(v.str))
	case KindInteger:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindArray:
		v.arr.render(sb)
	case KindInlineTable:
		v.inline.render(sb)
	case KindDatetime:
		// Datetimes are never synthesized; raw always carries them.
	}
}

func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

type arrayElem struct {
	prefix string // trivia between '[' or the previous comma and the value
	val    *Value
	suffix string // trivia between the value and its comma (or ']')
}

// Array is an ordered list of values. Elements removed or appended keep the
// remaining elements' original formatting.
type Array struct {
	owner         *Value
	elems         []arrayElem
	trailing      string // trivia between the last separator and ']'
	trailingComma bool
}

// NewArray creates an empty array value.
func NewArray() *Value {
	v := &Value{kind: KindArray, arr: &Array{}}
	v.arr.owner = v
	return v
}

// Len reports the number of elements.
func (a *Array) Len() int { return len(a.elems) }

// At returns the i-th element.
func (a *Array) At(i int) *Value { return a.elems[i].val }

// Append adds a value at the end of the array.
func (a *Array) Append(v *Value) {
	prefix := ""
	if len(a.elems) > 0 {
		prefix = " "
	}
	a.elems = append(a.elems, arrayElem{prefix: prefix, val: v})
	a.owner.markDirty()
}

// Remove deletes the i-th element.
func (a *Array) Remove(i int) {
	a.elems = append(a.elems[:i], a.elems[i+1:]...)
	if len(a.elems) == 0 {
		a.trailing = ""
		a.trailingComma = false
	}
	a.owner.markDirty()
}

func (a *Array) render(sb *strings.Builder) {
	sb.WriteByte('[')
	for i, e := range a.elems {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(e.prefix)
		e.val.render(sb)
		sb.WriteString(e.suffix)
	}
	if a.trailingComma && len(a.elems) > 0 {
		sb.WriteByte(',')
	}
	sb.WriteString(a.trailing)
	sb.WriteByte(']')
}

// markDirty marks the value as structurally modified so it re-renders from
// its parsed structure instead of its original text.
func (v *Value) markDirty() {
	if v != nil {
		v.raw = ""
	}
}

type inlineEntry struct {
	prefix string
	keyRaw string
	key    string
	eqRaw  string
	val    *Value
	suffix string
}

// InlineTable is a single-line table value `{ k = v, ... }`.
type InlineTable struct {
	owner    *Value
	entries  []*inlineEntry
	trailing string
}

// NewInlineTable creates an empty inline-table value.
func NewInlineTable() *Value {
	v := &Value{kind: KindInlineTable, inline: &InlineTable{}}
	v.inline.owner = v
	return v
}

// Len reports the number of entries.
func (t *InlineTable) Len() int { return len(t.entries) }

// Keys returns the entry keys in order.
func (t *InlineTable) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Get returns the value for key, or nil.
func (t *InlineTable) Get(key string) *Value {
	for _, e := range t.entries {
		if e.key == key {
			return e.val
		}
	}
	return nil
}

// Set inserts or replaces the value for key.
func (t *InlineTable) Set(key string, v *Value) {
	t.owner.markDirty()
	for _, e := range t.entries {
		if e.key == key {
			e.val = v
			return
		}
	}
	e := &inlineEntry{key: key, keyRaw: formatKey(key), eqRaw: " = ", val: v, prefix: " "}
	// The previous last entry's pre-`}` trivia moves past the new entry so
	// the separating comma lands right after the old value.
	if n := len(t.entries); n > 0 {
		last := t.entries[n-1]
		if t.trailing == "" {
			t.trailing = last.suffix
		}
		last.suffix = ""
	}
	t.entries = append(t.entries, e)
	if t.trailing == "" {
		t.trailing = " "
	}
}

// Remove deletes the entry for key, reporting whether it was present.
func (t *InlineTable) Remove(key string) bool {
	for i, e := range t.entries {
		if e.key == key {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			t.owner.markDirty()
			return true
		}
	}
	return false
}

func (t *InlineTable) render(sb *strings.Builder) {
	sb.WriteByte('{')
	for i, e := range t.entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(e.prefix)
		sb.WriteString(e.keyRaw)
		sb.WriteString(e.eqRaw)
		e.val.render(sb)
		sb.WriteString(e.suffix)
	}
	sb.WriteString(t.trailing)
	sb.WriteByte('}')
}

var bareKeyChars = func() [256]bool {
	var ok [256]bool
	for c := 'a'; c <= 'z'; c++ {
		ok[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		ok[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		ok[c] = true
	}
	ok['-'] = true
	ok['_'] = true
	return ok
}()

func isBareKey(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !bareKeyChars[s[i]] {
			return false
		}
	}
	return true
}

func formatKey(s string) string {
	if isBareKey(s) {
		return s
	}
	return quoteString(s)
}
