package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CPUToken is replaced by the detected CPU core count in parallel expressions.
const CPUToken = "[cpus]"

var (
	ErrEmptyExpression = errors.New("expression is empty")
	ErrDivideByZero    = errors.New("division by zero")
)

// EvaluateParallel evaluates an arithmetic expression such as "[cpus]*2" or
// "([cpus]+1)/2". Only numbers, the [cpus] token, + - * /, parentheses and
// unary minus are accepted. The result is rounded half away from zero.
func EvaluateParallel(expr string, cpus int) (int, error) {
	p := exprParser{src: strings.TrimSpace(expr), cpus: float64(cpus)}
	if p.src == "" {
		return 0, ErrEmptyExpression
	}
	value, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("expression %q is not finite", expr)
	}
	return int(math.Round(value)), nil
}

type exprParser struct {
	src  string
	pos  int
	cpus float64
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// sum := product (('+'|'-') product)*
func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// product := unary (('*'|'/') unary)*
func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
			continue
		}
		if right == 0 {
			return 0, ErrDivideByZero
		}
		left /= right
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	c := p.peek()
	switch {
	case c == 0:
		return 0, errors.New("unexpected end of expression")
	case c == '(':
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case strings.HasPrefix(p.src[p.pos:], CPUToken):
		p.pos += len(CPUToken)
		return p.cpus, nil
	case (c >= '0' && c <= '9') || c == '.':
		start := p.pos
		for p.pos < len(p.src) && ((p.src[p.pos] >= '0' && p.src[p.pos] <= '9') || p.src[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", p.src[start:p.pos])
		}
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected %q at offset %d", string(c), p.pos)
	}
}
