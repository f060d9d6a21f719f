package runner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type (
	tokenKind int

	token struct {
		value any
		text  string
		kind  tokenKind
	}

	lexer struct {
		input []rune
		pos   int
	}
)

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

var (
	ErrBadToken        = errors.New("unexpected character")
	ErrUnterminated    = errors.New("unterminated string literal")
	ErrMalformedNumber = errors.New("malformed number")
)

// multi-character operators, longest first
var multiOps = []string{
	"**", "//", "<<", ">>", "==", "!=", "<=", ">=", "&&", "||",
}

const singleOps = "+-*/%&|^<>!()[]{},:"

func tokenize(input string) ([]token, error) {
	lx := &lexer{input: []rune(input)}
	var tokens []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipSpace()
	if lx.pos >= len(lx.input) {
		return token{kind: tokEOF}, nil
	}

	r := lx.input[lx.pos]
	switch {
	case unicode.IsDigit(r) || r == '.' && lx.digitAt(lx.pos+1):
		return lx.number()
	case r == '\'' || r == '"':
		return lx.str(r)
	case unicode.IsLetter(r) || r == '_':
		return lx.ident(), nil
	}

	rest := string(lx.input[lx.pos:])
	for _, op := range multiOps {
		if strings.HasPrefix(rest, op) {
			lx.pos += len(op)
			return token{kind: tokOp, text: op}, nil
		}
	}
	if strings.ContainsRune(singleOps, r) {
		lx.pos++
		return token{kind: tokOp, text: string(r)}, nil
	}
	return token{}, fmt.Errorf("%w: %q", ErrBadToken, r)
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.input) && unicode.IsSpace(lx.input[lx.pos]) {
		lx.pos++
	}
}

func (lx *lexer) digitAt(pos int) bool {
	return pos < len(lx.input) && unicode.IsDigit(lx.input[pos])
}

func (lx *lexer) number() (token, error) {
	start := lx.pos
	isFloat := false
	for lx.pos < len(lx.input) {
		r := lx.input[lx.pos]
		if unicode.IsDigit(r) {
			lx.pos++
			continue
		}
		if r == '.' && !isFloat {
			isFloat = true
			lx.pos++
			continue
		}
		if (r == 'e' || r == 'E') && lx.pos > start {
			isFloat = true
			lx.pos++
			if lx.pos < len(lx.input) &&
				(lx.input[lx.pos] == '+' || lx.input[lx.pos] == '-') {
				lx.pos++
			}
			continue
		}
		break
	}

	text := string(lx.input[start:lx.pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, fmt.Errorf("%w: %s", ErrMalformedNumber, text)
		}
		return token{kind: tokNumber, text: text, value: f}, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return token{}, fmt.Errorf("%w: %s", ErrMalformedNumber, text)
	}
	return token{kind: tokNumber, text: text, value: n}, nil
}

func (lx *lexer) str(quote rune) (token, error) {
	lx.pos++
	var sb strings.Builder
	for lx.pos < len(lx.input) {
		r := lx.input[lx.pos]
		if r == quote {
			lx.pos++
			return token{kind: tokString, text: sb.String()}, nil
		}
		if r == '\\' && lx.pos+1 < len(lx.input) {
			lx.pos++
			switch esc := lx.input[lx.pos]; esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			default:
				sb.WriteRune(esc)
			}
			lx.pos++
			continue
		}
		sb.WriteRune(r)
		lx.pos++
	}
	return token{}, ErrUnterminated
}

func (lx *lexer) ident() token {
	start := lx.pos
	for lx.pos < len(lx.input) {
		r := lx.input[lx.pos]
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			lx.pos++
			continue
		}
		break
	}
	return token{kind: tokIdent, text: string(lx.input[start:lx.pos])}
}
