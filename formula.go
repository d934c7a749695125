package main

import (
	"regexp"
	"strings"
	"time"
)

// In-band error sentinels returned as the value of a failed formula cell.
// Evaluation never panics and never throws past the evaluator boundary.
const (
	errValue = "#VALUE!"
	errError = "#ERROR!"
	errDiv0  = "#DIV/0!"
)

// evalError is the internal tagged failure of a formula. It is carried
// through evaluation as data and serialized to its sentinel string only at
// the Evaluate boundary.
type evalError struct {
	sentinel string
	reason   string
}

func valueErr(reason string) *evalError {
	return &evalError{sentinel: errValue, reason: reason}
}

func evalErr(reason string) *evalError {
	return &evalError{sentinel: errError, reason: reason}
}

func div0Err(reason string) *evalError {
	return &evalError{sentinel: errDiv0, reason: reason}
}

// Clock provides the current time to TODAY/NOW so tests can pin it.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Evaluator evaluates "=" formulas against a snapshot. It holds no state
// besides the clock, so a single evaluator is safe to share: identical
// (formula, snapshot) pairs always produce identical results.
type Evaluator struct {
	clock Clock
}

func NewEvaluator() *Evaluator {
	return &Evaluator{clock: wallClock{}}
}

// NewEvaluatorWithClock pins the clock, for deterministic date functions.
func NewEvaluatorWithClock(clock Clock) *Evaluator {
	return &Evaluator{clock: clock}
}

var cellRefToken = regexp.MustCompile(`[A-Za-z]+[0-9]+`)

// Evaluate computes a formula string ("=SUM(A2:A5)") against the snapshot
// and returns a string, a float64, or an error sentinel string.
func (e *Evaluator) Evaluate(formula string, s *Snapshot) any {
	body := strings.TrimSpace(formula)
	body = strings.TrimPrefix(body, "=")
	v, err := e.evalExpr(body, s)
	if err != nil {
		return err.sentinel
	}
	return v
}

// evalExpr evaluates one formula body: a literal, a cell or range reference,
// a function call, or plain arithmetic over numbers and cell references.
func (e *Evaluator) evalExpr(body string, s *Snapshot) (any, *evalError) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, evalErr("empty formula")
	}

	// Quoted string literal.
	if len(body) >= 2 && body[0] == '"' && body[len(body)-1] == '"' {
		inner := body[1 : len(body)-1]
		if !strings.Contains(inner, `"`) {
			return inner, nil
		}
	}

	// Boolean literals.
	switch strings.ToUpper(body) {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	}

	// Lone cell reference resolves directly, whatever the cell type.
	if ref := parseCellRef(body); ref != nil && cellRefToken.FindString(body) == body {
		return s.ValueAt(ref.Col, ref.Row), nil
	}

	// Function call: NAME(args...) spanning the whole body.
	if name, argsStr, ok := splitFunctionCall(body); ok {
		return e.evalFunction(name, argsStr, s)
	}

	// Range references are only meaningful as function arguments.
	if start, end, ok := parseRangeRef(body); ok {
		return e.expandRange(start, end, s), nil
	}
	if strings.Contains(body, ":") {
		return nil, evalErr("malformed range " + body)
	}

	// Plain arithmetic, with cell references substituted by their values.
	return e.evalArithmetic(body, s)
}

// evalArithmetic substitutes resolved cell values for A1 tokens and hands
// the result to the safe arithmetic parser. Empty cells read as 0; a cell
// holding text makes the whole expression uncomputable.
func (e *Evaluator) evalArithmetic(body string, s *Snapshot) (any, *evalError) {
	substituted := cellRefToken.ReplaceAllStringFunc(body, func(tok string) string {
		ref := parseCellRef(tok)
		if ref == nil {
			return tok
		}
		v := s.ValueAt(ref.Col, ref.Row)
		if v == nil {
			return "0"
		}
		if n, ok := toNumber(v); ok {
			return cellString(n)
		}
		return cellString(v)
	})
	result := evaluateArithmetic(substituted)
	if result == nil {
		return nil, evalErr("cannot compute " + body)
	}
	return *result, nil
}

// splitFunctionCall recognizes a body of the exact form NAME(arguments),
// with the closing parenthesis ending the body.
func splitFunctionCall(body string) (name, argsStr string, ok bool) {
	open := strings.IndexByte(body, '(')
	if open <= 0 || body[len(body)-1] != ')' {
		return "", "", false
	}
	name = body[:open]
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') {
			return "", "", false
		}
	}
	// The opening parenthesis must match the final closing one.
	depth := 0
	inQuotes := false
	for i := open; i < len(body); i++ {
		switch body[i] {
		case '"':
			inQuotes = !inQuotes
		case '(':
			if !inQuotes {
				depth++
			}
		case ')':
			if !inQuotes {
				depth--
				if depth == 0 && i != len(body)-1 {
					return "", "", false
				}
			}
		}
	}
	if depth != 0 || inQuotes {
		return "", "", false
	}
	return name, body[open+1 : len(body)-1], true
}

// splitTopLevelArgs splits on commas at parenthesis depth zero, ignoring
// commas inside quotes or nested calls.
func splitTopLevelArgs(argsStr string) []string {
	if strings.TrimSpace(argsStr) == "" {
		return nil
	}
	var args []string
	depth := 0
	inQuotes := false
	start := 0
	for i := 0; i < len(argsStr); i++ {
		switch argsStr[i] {
		case '"':
			inQuotes = !inQuotes
		case '(':
			if !inQuotes {
				depth++
			}
		case ')':
			if !inQuotes {
				depth--
			}
		case ',':
			if !inQuotes && depth == 0 {
				args = append(args, argsStr[start:i])
				start = i + 1
			}
		}
	}
	args = append(args, argsStr[start:])
	return args
}

// evalFunction resolves every argument and dispatches through the registry.
func (e *Evaluator) evalFunction(name, argsStr string, s *Snapshot) (any, *evalError) {
	fn, ok := formulaFuncs[strings.ToUpper(name)]
	if !ok {
		return nil, evalErr("unknown function " + strings.ToUpper(name))
	}
	rawArgs := splitTopLevelArgs(argsStr)
	args := make([]any, 0, len(rawArgs))
	for _, raw := range rawArgs {
		v, err := e.evalArg(raw, s)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn(e, s, args)
}

// comparison operators recognized inside function arguments, longest first.
var comparisonOps = []string{">=", "<=", "<>", "!=", "==", ">", "<", "="}

// evalArg evaluates one function argument: literal, reference, range,
// nested call, comparison, or arithmetic.
func (e *Evaluator) evalArg(raw string, s *Snapshot) (any, *evalError) {
	arg := strings.TrimSpace(raw)
	if arg == "" {
		return nil, nil
	}
	// A top-level comparison yields a boolean (used by IF/AND/OR).
	if lhs, op, rhs, ok := splitComparison(arg); ok {
		left, err := e.evalArg(lhs, s)
		if err != nil {
			return nil, err
		}
		right, err := e.evalArg(rhs, s)
		if err != nil {
			return nil, err
		}
		return applyComparison(left, op, right), nil
	}
	if start, end, ok := parseRangeRef(arg); ok {
		return e.expandRange(start, end, s), nil
	}
	return e.evalExpr(arg, s)
}

// splitComparison finds a comparison operator at depth zero outside quotes.
func splitComparison(arg string) (lhs, op, rhs string, ok bool) {
	depth := 0
	inQuotes := false
	for i := 0; i < len(arg); i++ {
		switch arg[i] {
		case '"':
			inQuotes = !inQuotes
			continue
		case '(':
			if !inQuotes {
				depth++
			}
			continue
		case ')':
			if !inQuotes {
				depth--
			}
			continue
		}
		if inQuotes || depth != 0 {
			continue
		}
		for _, candidate := range comparisonOps {
			if strings.HasPrefix(arg[i:], candidate) {
				lhs = strings.TrimSpace(arg[:i])
				rhs = strings.TrimSpace(arg[i+len(candidate):])
				if lhs == "" || rhs == "" {
					return "", "", "", false
				}
				return lhs, candidate, rhs, true
			}
		}
	}
	return "", "", "", false
}

func applyComparison(left any, op string, right any) bool {
	cmp := compareValues(left, right)
	switch op {
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case "<>", "!=":
		return cmp != 0
	default: // "=", "=="
		return cmp == 0
	}
}

// compareValues orders two cell values: numerically when both coerce to
// numbers, lexicographically otherwise. nil sorts lowest.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(cellString(a), cellString(b))
}

// expandRange lists the values of a rectangular region in row-major order.
// Out-of-bounds cells appear as nil rather than being skipped.
func (e *Evaluator) expandRange(start, end *cellRef, s *Snapshot) []any {
	minCol, maxCol := start.Col, end.Col
	if minCol > maxCol {
		minCol, maxCol = maxCol, minCol
	}
	minRow, maxRow := start.Row, end.Row
	if minRow > maxRow {
		minRow, maxRow = maxRow, minRow
	}
	var values []any
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			values = append(values, s.ValueAt(col, row))
		}
	}
	return values
}
