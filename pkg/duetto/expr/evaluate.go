package expr

import "strings"

// Program is a compiled expression.
type Program struct {
	src  string
	root node
}

// Compile parses src into a Program.
func Compile(src string) (*Program, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, ErrEmpty
	}
	toks, err := lex(src)
	if err != nil {
		return nil, &SyntaxError{Expr: src, Msg: err.Error()}
	}

	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf("unexpected %s", t)
	}
	return &Program{src: src, root: root}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

// Eval evaluates the program against vars.
func (p *Program) Eval(vars map[string]any) bool {
	return IsTruthy(p.root.eval(vars))
}

// String returns the source expression.
func (p *Program) String() string {
	return p.src
}

// Eval compiles and evaluates expr in one step. An empty expression is
// false.
func Eval(expr string, vars map[string]any) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return false, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Eval(vars), nil
}
