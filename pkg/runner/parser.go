package runner

import (
	"errors"
	"fmt"
)

type (
	expr interface{ isExpr() }

	litExpr struct {
		value any
	}

	nameExpr struct {
		name string
	}

	listExpr struct {
		elems []expr
	}

	mapExpr struct {
		keys   []expr
		values []expr
	}

	unaryExpr struct {
		operand expr
		op      string
	}

	binaryExpr struct {
		left  expr
		right expr
		op    string
	}

	// boolExpr short-circuits: the right side is evaluated only when needed
	boolExpr struct {
		left  expr
		right expr
		op    string
	}

	callExpr struct {
		fn   expr
		args []expr
	}

	indexExpr struct {
		container expr
		index     expr
	}

	parser struct {
		tokens []token
		pos    int
	}
)

func (litExpr) isExpr()    {}
func (nameExpr) isExpr()   {}
func (listExpr) isExpr()   {}
func (mapExpr) isExpr()    {}
func (unaryExpr) isExpr()  {}
func (binaryExpr) isExpr() {}
func (boolExpr) isExpr()   {}
func (callExpr) isExpr()   {}
func (indexExpr) isExpr()  {}

var (
	ErrParse          = errors.New("parse error")
	ErrTrailingTokens = errors.New("unexpected trailing input")
)

// Binding powers, loosest to tightest
const (
	bpOr      = 1
	bpAnd     = 2
	bpNot     = 3
	bpCompare = 4
	bpBitOr   = 5
	bpBitXor  = 6
	bpBitAnd  = 7
	bpShift   = 8
	bpAdd     = 9
	bpMul     = 10
	bpUnary   = 11
	bpPower   = 12
	bpPostfix = 13
)

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"in": true,
}

func parseExpr(input string) (expr, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	res, err := p.parse(0)
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("%w: %q", ErrTrailingTokens, p.peek().text)
	}
	return res, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(text string) error {
	tok := p.advance()
	if tok.kind == tokEOF || tok.text != text {
		return fmt.Errorf("%w: expected %q, got %q", ErrParse, text, tok.text)
	}
	return nil
}

func (p *parser) parse(minBP int) (expr, error) {
	left, err := p.prefix()
	if err != nil {
		return nil, err
	}
	for {
		next, bp, ok := p.infixOp()
		if !ok || bp < minBP {
			return left, nil
		}
		left, err = p.infix(left, next, bp)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) prefix() (expr, error) {
	tok := p.advance()
	switch tok.kind {
	case tokNumber:
		return litExpr{value: tok.value}, nil
	case tokString:
		return p.postfix(litExpr{value: tok.text})
	case tokIdent:
		return p.prefixIdent(tok)
	case tokOp:
		return p.prefixOp(tok)
	}
	return nil, fmt.Errorf("%w: unexpected end of expression", ErrParse)
}

func (p *parser) prefixIdent(tok token) (expr, error) {
	switch tok.text {
	case "true", "True":
		return litExpr{value: true}, nil
	case "false", "False":
		return litExpr{value: false}, nil
	case "None", "null", "nil":
		return litExpr{value: nil}, nil
	case "not":
		operand, err := p.parse(bpNot)
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: "not", operand: operand}, nil
	}
	return p.postfix(nameExpr{name: tok.text})
}

func (p *parser) prefixOp(tok token) (expr, error) {
	switch tok.text {
	case "-":
		operand, err := p.parse(bpUnary)
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: "-", operand: operand}, nil
	case "!":
		operand, err := p.parse(bpNot)
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: "not", operand: operand}, nil
	case "(":
		return p.parenOrTuple()
	case "[":
		return p.list()
	case "{":
		return p.mapLiteral()
	}
	return nil, fmt.Errorf("%w: unexpected %q", ErrParse, tok.text)
}

// infixOp reports the pending infix operator and its binding power without
// consuming it
func (p *parser) infixOp() (string, int, bool) {
	tok := p.peek()
	text := tok.text
	switch tok.kind {
	case tokIdent:
		switch text {
		case "or":
			return "or", bpOr, true
		case "and":
			return "and", bpAnd, true
		case "in":
			return "in", bpCompare, true
		case "not":
			// "not in" is the only infix use of "not"
			if p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].text == "in" {
				return "not in", bpCompare, true
			}
		}
		return "", 0, false
	case tokOp:
		switch text {
		case "||":
			return "or", bpOr, true
		case "&&":
			return "and", bpAnd, true
		case "|":
			return "|", bpBitOr, true
		case "^":
			return "^", bpBitXor, true
		case "&":
			return "&", bpBitAnd, true
		case "<<", ">>":
			return text, bpShift, true
		case "+", "-":
			return text, bpAdd, true
		case "*", "/", "//", "%":
			return text, bpMul, true
		case "**":
			return text, bpPower, true
		}
		if comparisonOps[text] {
			return text, bpCompare, true
		}
	}
	return "", 0, false
}

func (p *parser) infix(left expr, op string, bp int) (expr, error) {
	p.advance()
	if op == "not in" {
		p.advance()
	}

	// exponentiation is right-associative
	nextBP := bp + 1
	if op == "**" {
		nextBP = bp
	}
	right, err := p.parse(nextBP)
	if err != nil {
		return nil, err
	}

	switch op {
	case "and", "or":
		return boolExpr{op: op, left: left, right: right}, nil
	}
	return binaryExpr{op: op, left: left, right: right}, nil
}

// postfix consumes call and index suffixes on a primary expression
func (p *parser) postfix(base expr) (expr, error) {
	for {
		tok := p.peek()
		if tok.kind != tokOp {
			return base, nil
		}
		switch tok.text {
		case "(":
			p.advance()
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			base = callExpr{fn: base, args: args}
		case "[":
			p.advance()
			idx, err := p.parse(0)
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			base = indexExpr{container: base, index: idx}
		default:
			return base, nil
		}
	}
}

func (p *parser) callArgs() ([]expr, error) {
	var args []expr
	if p.peek().text == ")" {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parse(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		tok := p.advance()
		switch tok.text {
		case ",":
		case ")":
			return args, nil
		default:
			return nil, fmt.Errorf("%w: expected , or ), got %q",
				ErrParse, tok.text)
		}
	}
}

// parenOrTuple handles parenthesized expressions and tuple literals, which
// evaluate to lists
func (p *parser) parenOrTuple() (expr, error) {
	if p.peek().text == ")" {
		p.advance()
		return p.postfix(listExpr{})
	}

	first, err := p.parse(0)
	if err != nil {
		return nil, err
	}
	if p.peek().text != "," {
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return p.postfix(first)
	}

	elems := []expr{first}
	for p.peek().text == "," {
		p.advance()
		if p.peek().text == ")" {
			break
		}
		elem, err := p.parse(0)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return p.postfix(listExpr{elems: elems})
}

func (p *parser) list() (expr, error) {
	var elems []expr
	if p.peek().text == "]" {
		p.advance()
		return p.postfix(listExpr{})
	}
	for {
		elem, err := p.parse(0)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		tok := p.advance()
		switch tok.text {
		case ",":
			if p.peek().text == "]" {
				p.advance()
				return p.postfix(listExpr{elems: elems})
			}
		case "]":
			return p.postfix(listExpr{elems: elems})
		default:
			return nil, fmt.Errorf("%w: expected , or ], got %q",
				ErrParse, tok.text)
		}
	}
}

func (p *parser) mapLiteral() (expr, error) {
	var keys, values []expr
	if p.peek().text == "}" {
		p.advance()
		return p.postfix(mapExpr{})
	}
	for {
		key, err := p.parse(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		value, err := p.parse(0)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		values = append(values, value)
		tok := p.advance()
		switch tok.text {
		case ",":
			if p.peek().text == "}" {
				p.advance()
				return p.postfix(mapExpr{keys: keys, values: values})
			}
		case "}":
			return p.postfix(mapExpr{keys: keys, values: values})
		default:
			return nil, fmt.Errorf("%w: expected , or }, got %q",
				ErrParse, tok.text)
		}
	}
}
