package main

import (
	"math"
	"strconv"
	"strings"
)

// evaluateArithmetic computes a restricted arithmetic expression (numbers,
// + - * /, unary minus, parentheses) without any dynamic evaluation.
// The result is nil whenever the expression cannot be computed: illegal
// characters, malformed syntax, trailing tokens, division by zero, or a
// non-finite result.
func evaluateArithmetic(expr string) *float64 {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}
	// Reject anything outside digits, operators, parentheses and whitespace
	// before parsing starts.
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case ch >= '0' && ch <= '9':
		case ch == '.' || ch == '(' || ch == ')':
		case ch == '+' || ch == '-' || ch == '*' || ch == '/':
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		default:
			return nil
		}
	}

	p := &arithParser{input: expr}
	val, ok := p.parseExpr()
	if !ok {
		return nil
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		// Unconsumed tokens invalidate the whole expression ("1 + 2 3").
		return nil
	}
	// Round to 10 decimal places to suppress binary floating point noise.
	rounded := math.Round(val*1e10) / 1e10
	if math.IsNaN(rounded) || math.IsInf(rounded, 0) {
		return nil
	}
	return &rounded
}

// arithParser is a recursive descent parser over the grammar
//
//	expr   -> term (('+' | '-') term)*
//	term   -> factor (('*' | '/') factor)*
//	factor -> '(' expr ')' | ['-'] number | '-' factor
type arithParser struct {
	input string
	pos   int
}

func (p *arithParser) skipSpaces() {
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			break
		}
		p.pos++
	}
}

func (p *arithParser) parseExpr() (float64, bool) {
	val, ok := p.parseTerm()
	if !ok {
		return 0, false
	}
	for {
		p.skipSpaces()
		if p.pos >= len(p.input) {
			break
		}
		op := p.input[p.pos]
		if op != '+' && op != '-' {
			break
		}
		p.pos++
		right, ok := p.parseTerm()
		if !ok {
			return 0, false
		}
		if op == '+' {
			val += right
		} else {
			val -= right
		}
	}
	return val, true
}

func (p *arithParser) parseTerm() (float64, bool) {
	val, ok := p.parseFactor()
	if !ok {
		return 0, false
	}
	for {
		p.skipSpaces()
		if p.pos >= len(p.input) {
			break
		}
		op := p.input[p.pos]
		if op != '*' && op != '/' {
			break
		}
		p.pos++
		right, ok := p.parseFactor()
		if !ok {
			return 0, false
		}
		if op == '*' {
			val *= right
		} else {
			if right == 0 {
				return 0, false
			}
			val /= right
		}
	}
	return val, true
}

func (p *arithParser) parseFactor() (float64, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	ch := p.input[p.pos]
	if ch == '-' {
		// Unary minus: only reachable at the start of an expression, after an
		// operator, or after '(' — i.e. wherever a factor is expected.
		p.pos++
		val, ok := p.parseFactor()
		if !ok {
			return 0, false
		}
		return -val, true
	}
	if ch == '(' {
		p.pos++
		val, ok := p.parseExpr()
		if !ok {
			return 0, false
		}
		p.skipSpaces()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, false
		}
		p.pos++
		return val, true
	}
	return p.parseNumber()
}

func (p *arithParser) parseNumber() (float64, bool) {
	start := p.pos
	sawDigit := false
	sawDot := false
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch >= '0' && ch <= '9' {
			sawDigit = true
			p.pos++
			continue
		}
		if ch == '.' {
			if sawDot {
				return 0, false
			}
			sawDot = true
			p.pos++
			continue
		}
		break
	}
	if !sawDigit {
		return 0, false
	}
	val, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, false
	}
	return val, true
}
