package scenario

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrMalformedRule = errors.New("malformed rule expression")

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLiteral
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokLiteral:
		return "literal"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string
}

// isOperatorRune reports runes that end a literal.
func isOperatorRune(r rune) bool {
	switch r {
	case '(', ')', '∧', '∨', '¬', '&', '|', '!':
		return true
	}
	return false
}

// tokenize splits a rule into tokens. Literals are maximal runs of
// non-operator characters, so a key that is a substring of another key never
// splits it. Inside a run the upper-case words AND, OR and NOT are connectives.
func tokenize(expr string) []token {
	var tokens []token
	runes := []rune(expr)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case r == '∧' || r == '&':
			i++
			if r == '&' && i < len(runes) && runes[i] == '&' {
				i++
			}
			tokens = append(tokens, token{kind: tokAnd, text: "AND"})
		case r == '∨' || r == '|':
			i++
			if r == '|' && i < len(runes) && runes[i] == '|' {
				i++
			}
			tokens = append(tokens, token{kind: tokOr, text: "OR"})
		case r == '¬' || r == '!':
			tokens = append(tokens, token{kind: tokNot, text: "NOT"})
			i++
		default:
			start := i
			for i < len(runes) && !isOperatorRune(runes[i]) {
				i++
			}
			tokens = append(tokens, splitRun(string(runes[start:i]))...)
		}
	}
	return append(tokens, token{kind: tokEOF})
}

func splitRun(run string) []token {
	var out []token
	var words []string
	flush := func() {
		if len(words) > 0 {
			out = append(out, token{kind: tokLiteral, text: strings.Join(words, " ")})
			words = nil
		}
	}
	for _, w := range strings.Fields(run) {
		switch w {
		case "AND":
			flush()
			out = append(out, token{kind: tokAnd, text: w})
		case "OR":
			flush()
			out = append(out, token{kind: tokOr, text: w})
		case "NOT":
			flush()
			out = append(out, token{kind: tokNot, text: w})
		default:
			words = append(words, w)
		}
	}
	flush()
	return out
}

// Expr is a parsed rule.
type Expr interface {
	Eval(facts map[string]struct{}) bool
	literals(dst []string) []string
}

type literalExpr string

// Eval treats spaces in a literal as underscores when the exact key is absent,
// so "боль в горле" matches the key боль_в_горле.
func (l literalExpr) Eval(facts map[string]struct{}) bool {
	if _, ok := facts[string(l)]; ok {
		return true
	}
	_, ok := facts[strings.ReplaceAll(string(l), " ", "_")]
	return ok
}

func (l literalExpr) literals(dst []string) []string { return append(dst, string(l)) }

type notExpr struct{ x Expr }

func (n notExpr) Eval(facts map[string]struct{}) bool { return !n.x.Eval(facts) }

func (n notExpr) literals(dst []string) []string { return n.x.literals(dst) }

type binaryExpr struct {
	and         bool
	left, right Expr
}

func (b binaryExpr) Eval(facts map[string]struct{}) bool {
	if b.and {
		return b.left.Eval(facts) && b.right.Eval(facts)
	}
	return b.left.Eval(facts) || b.right.Eval(facts)
}

func (b binaryExpr) literals(dst []string) []string {
	return b.right.literals(b.left.literals(dst))
}

// Literals returns the symptom keys referenced by e, in order of appearance.
func Literals(e Expr) []string {
	return e.literals(nil)
}

type parser struct {
	tokens []token
	pos    int
}

// Parse builds an expression tree from a rule string.
//
//	expr    = orExpr
//	orExpr  = andExpr { OR andExpr }
//	andExpr = unary { AND unary }
//	unary   = NOT unary | primary
//	primary = literal | "(" expr ")"
func Parse(rule string) (Expr, error) {
	p := &parser{tokens: tokenize(rule)}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("%w: empty expression", ErrMalformedRule)
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, unexpected(tok, p.pos)
	}
	return e, nil
}

// Evaluate parses rule and evaluates it against the set of present keys.
func Evaluate(rule string, facts map[string]struct{}) (bool, error) {
	e, err := Parse(rule)
	if err != nil {
		return false, err
	}
	return e.Eval(facts), nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func unexpected(tok token, pos int) error {
	if tok.kind == tokLiteral {
		return fmt.Errorf("%w: unexpected literal %q at token %d", ErrMalformedRule, tok.text, pos)
	}
	return fmt.Errorf("%w: unexpected %s at token %d", ErrMalformedRule, tok.kind, pos)
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tokNot {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	pos := p.pos
	tok := p.next()
	switch tok.kind {
	case tokLiteral:
		return literalExpr(tok.text), nil
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrMalformedRule)
		}
		return e, nil
	default:
		return nil, unexpected(tok, pos)
	}
}
