package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parser turns expression source into an AST.
type Parser struct {
	// Behaviors resolves `& name` suffixes. Referencing a behavior that is
	// not registered is a syntax error.
	Behaviors map[string]func(Expression) *Behavior
}

// Parse parses src with a parser that knows no behaviors.
func Parse(src string) (Expression, error) {
	return (&Parser{}).Parse(src)
}

// SplitInterpolation parses a ${...} template with a parser that knows no
// behaviors.
func SplitInterpolation(text string) (*Interpolation, error) {
	return (&Parser{}).Interpolation(text)
}

// Parse parses a single expression.
func (p *Parser) Parse(src string) (Expression, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	ps := &parseState{toks: toks, behaviors: p.Behaviors}
	e, err := ps.top()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return e, nil
}

// Interpolation is a template split into static parts and the expressions
// between them. Parts always has one more element than Expressions.
type Interpolation struct {
	Parts       []string
	Expressions []Expression
}

// IsStatic reports whether the template has no ${...} segments.
func (in *Interpolation) IsStatic() bool {
	return len(in.Expressions) == 0
}

func (in *Interpolation) String() string {
	var b strings.Builder
	for i, part := range in.Parts {
		b.WriteString(strings.ReplaceAll(part, "${", `\${`))
		if i < len(in.Expressions) {
			fmt.Fprintf(&b, "${%s}", in.Expressions[i])
		}
	}
	return b.String()
}

// Interpolation splits text at each ${...} segment and parses the segment
// expressions. A backslash before "${" keeps it literal.
func (p *Parser) Interpolation(text string) (*Interpolation, error) {
	in := &Interpolation{}
	var part strings.Builder
	for i := 0; i < len(text); {
		if strings.HasPrefix(text[i:], `\${`) {
			part.WriteString("${")
			i += 3
			continue
		}
		if !strings.HasPrefix(text[i:], "${") {
			part.WriteByte(text[i])
			i++
			continue
		}
		end, err := segmentEnd(text, i+2)
		if err != nil {
			return nil, err
		}
		src := strings.TrimSpace(text[i+2 : end])
		if src == "" {
			return nil, fmt.Errorf("%w: empty ${} at offset %d", ErrSyntax, i)
		}
		e, err := p.Parse(src)
		if err != nil {
			return nil, err
		}
		in.Parts = append(in.Parts, part.String())
		in.Expressions = append(in.Expressions, e)
		part.Reset()
		i = end + 1
	}
	in.Parts = append(in.Parts, part.String())
	return in, nil
}

// segmentEnd returns the offset of the brace closing a segment whose body
// starts at start, skipping quoted strings and nested braces.
func segmentEnd(text string, start int) (int, error) {
	depth := 1
	for j := start; j < len(text); j++ {
		switch c := text[j]; c {
		case '"', '\'':
			for j++; j < len(text) && text[j] != c; j++ {
				if text[j] == '\\' {
					j++
				}
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unterminated ${ at offset %d", ErrSyntax, start-2)
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || r == '$' || unicode.IsLetter(r):
			j := i + 1
			for j < len(rs) && (rs[j] == '_' || rs[j] == '$' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			toks = append(toks, token{tokIdent, string(rs[i:j]), i})
			i = j
		case unicode.IsDigit(r):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(rs[i:j]), i})
			i = j
		case r == '"' || r == '\'':
			var b strings.Builder
			j := i + 1
			for ; j < len(rs) && rs[j] != r; j++ {
				if rs[j] == '\\' && j+1 < len(rs) {
					j++
					switch rs[j] {
					case 'n':
						b.WriteRune('\n')
					case 't':
						b.WriteRune('\t')
					default:
						b.WriteRune(rs[j])
					}
					continue
				}
				b.WriteRune(rs[j])
			}
			if j >= len(rs) {
				return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrSyntax, i)
			}
			toks = append(toks, token{tokString, b.String(), i})
			i = j + 1
		case strings.ContainsRune(".[]?:()!&", r):
			toks = append(toks, token{tokPunct, string(r), i})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, r, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(rs)}), nil
}

type parseState struct {
	toks      []token
	i         int
	behaviors map[string]func(Expression) *Behavior
}

func (ps *parseState) peek() token { return ps.toks[ps.i] }

func (ps *parseState) peekAt(n int) token {
	if ps.i+n < len(ps.toks) {
		return ps.toks[ps.i+n]
	}
	return ps.toks[len(ps.toks)-1]
}

func (ps *parseState) next() token {
	t := ps.toks[ps.i]
	if t.kind != tokEOF {
		ps.i++
	}
	return t
}

func (ps *parseState) is(punct string) bool {
	t := ps.peek()
	return t.kind == tokPunct && t.text == punct
}

func (ps *parseState) expect(punct string) error {
	if !ps.is(punct) {
		return ps.unexpected()
	}
	ps.next()
	return nil
}

func (ps *parseState) unexpected() error {
	t := ps.peek()
	if t.kind == tokEOF {
		return fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}
	return fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, t.text, t.pos)
}

func (ps *parseState) top() (Expression, error) {
	e, err := ps.conditional()
	if err != nil {
		return nil, err
	}
	for ps.is("&") {
		ps.next()
		name := ps.next()
		if name.kind != tokIdent {
			return nil, fmt.Errorf("%w: behavior name expected at offset %d", ErrSyntax, name.pos)
		}
		factory, ok := ps.behaviors[name.text]
		if !ok {
			return nil, fmt.Errorf("%w: unknown behavior %q", ErrSyntax, name.text)
		}
		b := factory(e)
		if b.Name == "" {
			b.Name = name.text
		}
		e = b
	}
	if ps.peek().kind != tokEOF {
		return nil, ps.unexpected()
	}
	return e, nil
}

func (ps *parseState) conditional() (Expression, error) {
	test, err := ps.unary()
	if err != nil || !ps.is("?") {
		return test, err
	}
	ps.next()
	yes, err := ps.conditional()
	if err != nil {
		return nil, err
	}
	if err := ps.expect(":"); err != nil {
		return nil, err
	}
	no, err := ps.conditional()
	if err != nil {
		return nil, err
	}
	return &Conditional{Test: test, Yes: yes, No: no}, nil
}

func (ps *parseState) unary() (Expression, error) {
	if ps.is("!") {
		ps.next()
		operand, err := ps.unary()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return ps.postfix()
}

func (ps *parseState) postfix() (Expression, error) {
	e, err := ps.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case ps.is("."):
			ps.next()
			name := ps.next()
			if name.kind != tokIdent {
				return nil, fmt.Errorf("%w: property name expected at offset %d", ErrSyntax, name.pos)
			}
			e = &AccessMember{Object: e, Name: name.text}
		case ps.is("["):
			ps.next()
			key, err := ps.conditional()
			if err != nil {
				return nil, err
			}
			if err := ps.expect("]"); err != nil {
				return nil, err
			}
			e = &AccessKeyed{Object: e, Key: key}
		default:
			return e, nil
		}
	}
}

func (ps *parseState) primary() (Expression, error) {
	t := ps.peek()
	switch t.kind {
	case tokNumber:
		ps.next()
		if n, err := strconv.Atoi(t.text); err == nil {
			return &Literal{Value: n}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q at offset %d", ErrSyntax, t.text, t.pos)
		}
		return &Literal{Value: f}, nil
	case tokString:
		ps.next()
		return &Literal{Value: t.text}, nil
	case tokPunct:
		if t.text != "(" {
			return nil, ps.unexpected()
		}
		ps.next()
		e, err := ps.conditional()
		if err != nil {
			return nil, err
		}
		if err := ps.expect(")"); err != nil {
			return nil, err
		}
		return e, nil
	case tokIdent:
		ps.next()
		return ps.identifier(t)
	}
	return nil, ps.unexpected()
}

// identifier parses what follows an identifier token: keywords, $this,
// $parent chains and $host access.
func (ps *parseState) identifier(t token) (Expression, error) {
	switch t.text {
	case "true":
		return &Literal{Value: true}, nil
	case "false":
		return &Literal{Value: false}, nil
	case "null", "undefined":
		return &Literal{Value: nil}, nil
	case "$this":
		return &AccessThis{}, nil
	case "$host":
		if err := ps.expect("."); err != nil {
			return nil, err
		}
		name := ps.next()
		if name.kind != tokIdent {
			return nil, fmt.Errorf("%w: property name expected after $host", ErrSyntax)
		}
		return &AccessScope{Name: name.text, Host: true}, nil
	case "$parent":
		ancestor := 1
		for ps.is(".") && ps.peekAt(1).kind == tokIdent && ps.peekAt(1).text == "$parent" {
			ps.next()
			ps.next()
			ancestor++
		}
		if ps.is(".") && ps.peekAt(1).kind == tokIdent {
			ps.next()
			return &AccessScope{Name: ps.next().text, Ancestor: ancestor}, nil
		}
		return &AccessThis{Ancestor: ancestor}, nil
	}
	return &AccessScope{Name: t.text}, nil
}
