package tomledit

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports invalid TOML input.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("TOML parse error at line %d: %s", e.Line, e.Msg)
}

// Parse reads a TOML document, preserving all formatting and comments.
func Parse(data []byte) (*Document, error) {
	p := &parser{src: string(data), doc: NewDocument()}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

type parser struct {
	src string
	pos int
	doc *Document
}

func (p *parser) errf(format string, args ...interface{}) error {
	line := 1 + strings.Count(p.src[:p.pos], "\n")
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

// ws consumes spaces and tabs.
func (p *parser) ws() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c != ' ' && c != '\t' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

// trivia consumes whitespace, newlines, and comment lines.
func (p *parser) trivia() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return p.src[start:p.pos]
		}
	}
	return p.src[start:p.pos]
}

// lineEnd consumes trailing whitespace, an optional comment, and the newline.
func (p *parser) lineEnd() (string, error) {
	start := p.pos
	p.ws()
	if !p.eof() && p.src[p.pos] == '#' {
		for !p.eof() && p.src[p.pos] != '\n' {
			p.pos++
		}
	}
	if p.eof() {
		return p.src[start:p.pos], nil
	}
	if p.src[p.pos] == '\r' {
		p.pos++
	}
	if p.eof() || p.src[p.pos] != '\n' {
		return "", p.errf("expected newline")
	}
	p.pos++
	return p.src[start:p.pos], nil
}

func (p *parser) run() error {
	cur := p.doc.root
	for {
		prefix := p.trivia()
		if p.eof() {
			p.doc.trailing = prefix
			return nil
		}
		if p.peek() == '[' {
			t, err := p.header(prefix)
			if err != nil {
				return err
			}
			cur = t
			continue
		}
		e, err := p.entry(prefix)
		if err != nil {
			return err
		}
		cur.entries = append(cur.entries, e)
	}
}

func (p *parser) header(prefix string) (*Table, error) {
	start := p.pos
	p.pos++ // '['
	isArray := false
	if p.peek() == '[' {
		isArray = true
		p.pos++
	}
	p.ws()
	path, _, err := p.keyPath()
	if err != nil {
		return nil, err
	}
	p.ws()
	if p.peek() != ']' {
		return nil, p.errf("expected `]` closing table header")
	}
	p.pos++
	if isArray {
		if p.peek() != ']' {
			return nil, p.errf("expected `]]` closing array table header")
		}
		p.pos++
	}
	if _, err := p.lineEnd(); err != nil {
		return nil, err
	}
	raw := prefix + p.src[start:p.pos]

	parent := p.doc.root
	for _, seg := range path[:len(path)-1] {
		sub := parent.lastSub(seg)
		if sub == nil {
			sub = &Table{doc: p.doc, implicit: true}
			sub.path = append(append([]string{}, parent.path...), seg)
			parent.subs = append(parent.subs, sub)
		}
		parent = sub
	}
	key := path[len(path)-1]
	if isArray {
		t := &Table{doc: p.doc, headerRaw: raw, isArray: true}
		t.path = append(append([]string{}, parent.path...), key)
		parent.subs = append(parent.subs, t)
		p.doc.blocks = append(p.doc.blocks, t)
		return t, nil
	}
	t := parent.lastSub(key)
	if t != nil {
		if !t.implicit || t.isArray {
			return nil, p.errf("table `%s` defined twice", strings.Join(path, "."))
		}
		t.implicit = false
		t.headerRaw = raw
		p.doc.blocks = append(p.doc.blocks, t)
		return t, nil
	}
	t = &Table{doc: p.doc, headerRaw: raw}
	t.path = append(append([]string{}, parent.path...), key)
	parent.subs = append(parent.subs, t)
	p.doc.blocks = append(p.doc.blocks, t)
	return t, nil
}

// lastSub returns the most recent child with the given key, including
// array-of-table elements, so later headers nest under the right block.
func (t *Table) lastSub(key string) *Table {
	for i := len(t.subs) - 1; i >= 0; i-- {
		if t.subs[i].Key() == key {
			return t.subs[i]
		}
	}
	return nil
}

func (p *parser) entry(prefix string) (*Entry, error) {
	keyStart := p.pos
	path, keyEnd, err := p.keyPath()
	if err != nil {
		return nil, err
	}
	keyRaw := p.src[keyStart:keyEnd]
	eqStart := p.pos
	p.ws()
	if p.peek() != '=' {
		return nil, p.errf("expected `=` after key `%s`", keyRaw)
	}
	p.pos++
	p.ws()
	eqRaw := p.src[eqStart:p.pos]
	val, err := p.value()
	if err != nil {
		return nil, err
	}
	suffix, err := p.lineEnd()
	if err != nil {
		return nil, err
	}
	return &Entry{key: path, keyRaw: keyRaw, eqRaw: eqRaw, val: val, prefix: prefix, suffix: suffix}, nil
}

// keyPath parses a possibly dotted key. It returns the segments and the
// offset just past the last segment, leaving trailing whitespace unconsumed.
func (p *parser) keyPath() ([]string, int, error) {
	var segs []string
	end := p.pos
	for {
		seg, err := p.keySegment()
		if err != nil {
			return nil, 0, err
		}
		segs = append(segs, seg)
		end = p.pos
		save := p.pos
		p.ws()
		if p.peek() == '.' {
			p.pos++
			p.ws()
			continue
		}
		p.pos = save
		return segs, end, nil
	}
}

func (p *parser) keySegment() (string, error) {
	switch c := p.peek(); {
	case c == '"':
		return p.basicString()
	case c == '\'':
		return p.literalString()
	default:
		start := p.pos
		for !p.eof() && bareKeyChars[p.src[p.pos]] {
			p.pos++
		}
		if p.pos == start {
			return "", p.errf("expected key")
		}
		return p.src[start:p.pos], nil
	}
}

func (p *parser) value() (*Value, error) {
	start := p.pos
	switch c := p.peek(); {
	case c == '"':
		if strings.HasPrefix(p.src[p.pos:], `"""`) {
			s, err := p.multilineBasic()
			if err != nil {
				return nil, err
			}
			return &Value{kind: KindString, raw: p.src[start:p.pos], str: s}, nil
		}
		s, err := p.basicString()
		if err != nil {
			return nil, err
		}
		return &Value{kind: KindString, raw: p.src[start:p.pos], str: s}, nil
	case c == '\'':
		if strings.HasPrefix(p.src[p.pos:], "'''") {
			s, err := p.multilineLiteral()
			if err != nil {
				return nil, err
			}
			return &Value{kind: KindString, raw: p.src[start:p.pos], str: s}, nil
		}
		s, err := p.literalString()
		if err != nil {
			return nil, err
		}
		return &Value{kind: KindString, raw: p.src[start:p.pos], str: s}, nil
	case c == '[':
		return p.array()
	case c == '{':
		return p.inlineTable()
	default:
		return p.scalar()
	}
}

func (p *parser) scalar() (*Value, error) {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ',' || c == ']' || c == '}' || c == '#' {
			break
		}
		p.pos++
	}
	tok := p.src[start:p.pos]
	if tok == "" {
		return nil, p.errf("expected value")
	}
	if tok == "true" || tok == "false" {
		return &Value{kind: KindBool, raw: tok, b: tok == "true"}, nil
	}
	if strings.ContainsRune(tok, ':') || strings.Count(tok, "-") >= 2 {
		return &Value{kind: KindDatetime, raw: tok}, nil
	}
	plain := strings.ReplaceAll(tok, "_", "")
	if n, err := strconv.ParseInt(plain, 0, 64); err == nil {
		return &Value{kind: KindInteger, raw: tok, i: n}, nil
	}
	if f, err := strconv.ParseFloat(plain, 64); err == nil {
		return &Value{kind: KindFloat, raw: tok, f: f}, nil
	}
	return nil, p.errf("invalid value `%s`", tok)
}

func (p *parser) array() (*Value, error) {
	start := p.pos
	p.pos++ // '['
	arr := &Array{}
	v := &Value{kind: KindArray, arr: arr}
	arr.owner = v
	sawComma := false
	for {
		triv := p.trivia()
		if p.eof() {
			return nil, p.errf("unterminated array")
		}
		if p.peek() == ']' {
			p.pos++
			arr.trailing = triv
			arr.trailingComma = sawComma && len(arr.elems) > 0
			v.raw = p.src[start:p.pos]
			return v, nil
		}
		elem, err := p.value()
		if err != nil {
			return nil, err
		}
		suffix := p.trivia()
		arr.elems = append(arr.elems, arrayElem{prefix: triv, val: elem, suffix: suffix})
		if p.peek() == ',' {
			p.pos++
			sawComma = true
			continue
		}
		if p.peek() == ']' {
			p.pos++
			sawComma = false
			arr.trailingComma = false
			v.raw = p.src[start:p.pos]
			return v, nil
		}
		return nil, p.errf("expected `,` or `]` in array")
	}
}

func (p *parser) inlineTable() (*Value, error) {
	start := p.pos
	p.pos++ // '{'
	it := &InlineTable{}
	v := &Value{kind: KindInlineTable, inline: it}
	it.owner = v
	for {
		triv := p.ws()
		if p.eof() {
			return nil, p.errf("unterminated inline table")
		}
		if p.peek() == '}' {
			p.pos++
			it.trailing = triv
			v.raw = p.src[start:p.pos]
			return v, nil
		}
		keyStart := p.pos
		path, keyEnd, err := p.keyPath()
		if err != nil {
			return nil, err
		}
		keyRaw := p.src[keyStart:keyEnd]
		eqStart := p.pos
		p.ws()
		if p.peek() != '=' {
			return nil, p.errf("expected `=` in inline table")
		}
		p.pos++
		p.ws()
		eqRaw := p.src[eqStart:p.pos]
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		suffix := p.ws()
		it.entries = append(it.entries, &inlineEntry{
			prefix: triv,
			keyRaw: keyRaw,
			key:    strings.Join(path, "."),
			eqRaw:  eqRaw,
			val:    val,
			suffix: suffix,
		})
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.peek() == '}' {
			p.pos++
			v.raw = p.src[start:p.pos]
			return v, nil
		}
		return nil, p.errf("expected `,` or `}` in inline table")
	}
}

func (p *parser) basicString() (string, error) {
	p.pos++ // '"'
	var sb strings.Builder
	for {
		if p.eof() {
			return "", p.errf("unterminated string")
		}
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return sb.String(), nil
		case '\n':
			return "", p.errf("newline in single-line string")
		case '\\':
			p.pos++
			r, err := p.escape()
			if err != nil {
				return "", err
			}
			sb.WriteString(r)
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
}

func (p *parser) literalString() (string, error) {
	p.pos++ // '\''
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '\'' {
			s := p.src[start:p.pos]
			p.pos++
			return s, nil
		}
		if c == '\n' {
			return "", p.errf("newline in single-line string")
		}
		p.pos++
	}
	return "", p.errf("unterminated string")
}

func (p *parser) multilineBasic() (string, error) {
	p.pos += 3 // '"""'
	var sb strings.Builder
	if p.peek() == '\n' {
		p.pos++
	}
	for {
		if p.eof() {
			return "", p.errf("unterminated multi-line string")
		}
		if strings.HasPrefix(p.src[p.pos:], `"""`) {
			// Up to two extra quotes belong to the content.
			extra := 0
			for extra < 2 && p.pos+3+extra < len(p.src) && p.src[p.pos+3+extra] == '"' {
				extra++
			}
			for i := 0; i < extra; i++ {
				sb.WriteByte('"')
			}
			p.pos += 3 + extra
			return sb.String(), nil
		}
		if p.src[p.pos] == '\\' {
			p.pos++
			// Line-ending backslash swallows the newline and leading whitespace.
			if p.peek() == '\n' || p.peek() == '\r' || p.peek() == ' ' || p.peek() == '\t' {
				rest := strings.TrimLeft(p.src[p.pos:], " \t")
				if strings.HasPrefix(rest, "\n") || strings.HasPrefix(rest, "\r\n") {
					p.trivia()
					continue
				}
			}
			r, err := p.escape()
			if err != nil {
				return "", err
			}
			sb.WriteString(r)
			continue
		}
		sb.WriteByte(p.src[p.pos])
		p.pos++
	}
}

func (p *parser) multilineLiteral() (string, error) {
	p.pos += 3 // "'''"
	if p.peek() == '\n' {
		p.pos++
	}
	end := strings.Index(p.src[p.pos:], "'''")
	if end < 0 {
		return "", p.errf("unterminated multi-line string")
	}
	s := p.src[p.pos : p.pos+end]
	p.pos += end + 3
	return s, nil
}

func (p *parser) escape() (string, error) {
	if p.eof() {
		return "", p.errf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'b':
		return "\b", nil
	case 't':
		return "\t", nil
	case 'n':
		return "\n", nil
	case 'f':
		return "\f", nil
	case 'r':
		return "\r", nil
	case '"':
		return `"`, nil
	case '\\':
		return `\`, nil
	case 'u', 'U':
		n := 4
		if c == 'U' {
			n = 8
		}
		if p.pos+n > len(p.src) {
			return "", p.errf("truncated unicode escape")
		}
		code, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
		if err != nil {
			return "", p.errf("invalid unicode escape")
		}
		p.pos += n
		return string(rune(code)), nil
	default:
		return "", p.errf("invalid escape `\\%c`", c)
	}
}
