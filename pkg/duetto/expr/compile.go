package expr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmpty is returned when compiling a blank expression.
var ErrEmpty = errors.New("expr: empty expression")

// SyntaxError describes a malformed expression.
type SyntaxError struct {
	Expr string
	Msg  string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr: %s in %q", e.Msg, e.Expr)
}

// node is one compiled expression term.
type node interface {
	eval(vars map[string]any) any
}

type (
	literal struct{ v any }
	ident   struct{ name string }
	notNode struct{ x node }
	andNode struct{ l, r node }
	orNode  struct{ l, r node }
	cmpNode struct {
		op   string
		l, r node
	}
	matchNode struct {
		x  node
		re *regexp.Regexp
	}
	inNode struct {
		x    node
		list []node
	}
)

func (n literal) eval(map[string]any) any { return n.v }

func (n ident) eval(vars map[string]any) any {
	if v, ok := vars[n.name]; ok {
		return v
	}
	return n.name
}

func (n notNode) eval(vars map[string]any) any { return !IsTruthy(n.x.eval(vars)) }

func (n andNode) eval(vars map[string]any) any {
	return IsTruthy(n.l.eval(vars)) && IsTruthy(n.r.eval(vars))
}

func (n orNode) eval(vars map[string]any) any {
	return IsTruthy(n.l.eval(vars)) || IsTruthy(n.r.eval(vars))
}

func (n cmpNode) eval(vars map[string]any) any {
	l, r := n.l.eval(vars), n.r.eval(vars)
	switch n.op {
	case "==":
		return equals(l, r)
	case "!=":
		return !equals(l, r)
	case "<":
		return compare(l, r) < 0
	case "<=":
		return compare(l, r) <= 0
	case ">":
		return compare(l, r) > 0
	case ">=":
		return compare(l, r) >= 0
	case "contains":
		return contains(l, r)
	}
	return false
}

func (n matchNode) eval(vars map[string]any) any {
	return n.re.MatchString(str(n.x.eval(vars)))
}

func (n inNode) eval(vars map[string]any) any {
	v := n.x.eval(vars)
	for _, item := range n.list {
		if equals(v, item.eval(vars)) {
			return true
		}
	}
	return false
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) isWord(words ...string) bool {
	t := p.peek()
	if t.kind == tokOp {
		for _, w := range words {
			if t.text == w {
				return true
			}
		}
		return false
	}
	if t.kind != tokIdent {
		return false
	}
	for _, w := range words {
		if strings.EqualFold(t.text, w) {
			return true
		}
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isWord("or", "||") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isWord("and", "&&") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isWord("not", "!") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	switch {
	case t.kind == tokOp && t.text != "!" && t.text != "&&" && t.text != "||":
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return cmpNode{op: t.text, l: left, r: right}, nil

	case p.isWord("contains"):
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return cmpNode{op: "contains", l: left, r: right}, nil

	case p.isWord("matches"):
		p.next()
		pat := p.next()
		if pat.kind != tokString {
			return nil, p.errorf("matches needs a quoted pattern, got %s", pat)
		}
		re, err := regexp.Compile(pat.text)
		if err != nil {
			return nil, p.errorf("bad pattern %q: %v", pat.text, err)
		}
		return matchNode{x: left, re: re}, nil

	case p.isWord("in"):
		p.next()
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return inNode{x: left, list: list}, nil
	}
	return left, nil
}

func (p *parser) parseList() ([]node, error) {
	if t := p.next(); t.kind != tokLBracket {
		return nil, p.errorf("expected '[' after in, got %s", t)
	}
	var items []node
	if p.peek().kind == tokRBracket {
		p.next()
		return items, nil
	}
	for {
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		switch t := p.next(); t.kind {
		case tokComma:
		case tokRBracket:
			return items, nil
		default:
			return nil, p.errorf("expected ',' or ']', got %s", t)
		}
	}
}

func (p *parser) parseOperand() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf("expected ')', got %s", closing)
		}
		return inner, nil
	case tokString:
		return literal{t.text}, nil
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return literal{i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf("bad number %s", t)
		}
		return literal{f}, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return literal{true}, nil
		case "false":
			return literal{false}, nil
		case "null", "nil":
			return literal{nil}, nil
		case "and", "or", "not", "contains", "matches", "in":
			return nil, p.errorf("unexpected %s", t)
		}
		return ident{t.text}, nil
	case tokEOF:
		return nil, p.errorf("unexpected end of expression")
	default:
		return nil, p.errorf("unexpected %s", t)
	}
}
