package main

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// formulaFunc is one entry of the fixed function library. Arguments arrive
// already resolved: literals as string/float64/bool, references as their
// cell values, ranges as []any in row-major order.
type formulaFunc func(e *Evaluator, s *Snapshot, args []any) (any, *evalError)

// formulaFuncs is the function registry, keyed by upper-case name.
var formulaFuncs = map[string]formulaFunc{
	// Aggregate
	"SUM":     fnSum,
	"AVERAGE": fnAverage,
	"COUNT":   fnCount,
	"MIN":     fnMin,
	"MAX":     fnMax,
	// Math
	"ROUND": fnRound,
	"ABS":   fnAbs,
	"SQRT":  fnSqrt,
	"POWER": fnPower,
	"MOD":   fnMod,
	// Text
	"CONCAT":      fnConcat,
	"CONCATENATE": fnConcat,
	"LEFT":        fnLeft,
	"RIGHT":       fnRight,
	"LEN":         fnLen,
	"TRIM":        fnTrim,
	"UPPER":       fnUpper,
	"LOWER":       fnLower,
	// Logical
	"IF":       fnIf,
	"AND":      fnAnd,
	"OR":       fnOr,
	"NOT":      fnNot,
	"ISBLANK":  fnIsBlank,
	"ISNUMBER": fnIsNumber,
	// Date
	"TODAY":   fnToday,
	"NOW":     fnNow,
	"YEAR":    fnYear,
	"MONTH":   fnMonth,
	"DAY":     fnDay,
	"WEEKDAY": fnWeekday,
	"DATE":    fnDate,
	"DATEDIF": fnDateDif,
	// Lookup
	"INDEX": fnIndex,
	"MATCH": fnMatch,
}

// flattenValues expands range arguments so aggregates see one flat list.
func flattenValues(args []any) []any {
	var out []any
	for _, arg := range args {
		if list, ok := arg.([]any); ok {
			out = append(out, flattenValues(list)...)
			continue
		}
		out = append(out, arg)
	}
	return out
}

// --- Aggregate -------------------------------------------------------------

func fnSum(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	sum := 0.0
	for _, v := range flattenValues(args) {
		if n, ok := toNumber(v); ok && !math.IsNaN(n) {
			sum += n
		}
	}
	return sum, nil
}

func fnAverage(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	sum := 0.0
	count := 0
	for _, v := range flattenValues(args) {
		if n, ok := toNumber(v); ok && !math.IsNaN(n) {
			sum += n
			count++
		}
	}
	if count == 0 {
		return nil, div0Err("AVERAGE over no numeric values")
	}
	return sum / float64(count), nil
}

// fnCount counts every supplied value, blanks and text included. This is
// array-length semantics, deliberately kept from the original behavior even
// though spreadsheet COUNT conventionally counts numbers only.
func fnCount(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	return float64(len(flattenValues(args))), nil
}

func fnMin(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	best := math.Inf(1)
	found := false
	for _, v := range flattenValues(args) {
		if n, ok := toNumber(v); ok && !math.IsNaN(n) {
			best = math.Min(best, n)
			found = true
		}
	}
	if !found {
		return 0.0, nil
	}
	return best, nil
}

func fnMax(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	best := math.Inf(-1)
	found := false
	for _, v := range flattenValues(args) {
		if n, ok := toNumber(v); ok && !math.IsNaN(n) {
			best = math.Max(best, n)
			found = true
		}
	}
	if !found {
		return 0.0, nil
	}
	return best, nil
}

// --- Math ------------------------------------------------------------------

func argNumber(args []any, i int) (float64, *evalError) {
	if i >= len(args) {
		return 0, valueErr("missing numeric argument")
	}
	n, ok := toNumber(args[i])
	if !ok {
		return 0, valueErr("non-numeric argument")
	}
	return n, nil
}

func fnRound(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) < 1 || len(args) > 2 {
		return nil, valueErr("ROUND takes one or two arguments")
	}
	x, err := argNumber(args, 0)
	if err != nil {
		return nil, err
	}
	digits := 0.0
	if len(args) == 2 {
		digits, err = argNumber(args, 1)
		if err != nil {
			return nil, err
		}
	}
	scale := math.Pow(10, math.Trunc(digits))
	return math.Round(x*scale) / scale, nil
}

func fnAbs(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("ABS takes one argument")
	}
	x, err := argNumber(args, 0)
	if err != nil {
		return nil, err
	}
	return math.Abs(x), nil
}

func fnSqrt(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("SQRT takes one argument")
	}
	x, err := argNumber(args, 0)
	if err != nil {
		return nil, err
	}
	if x < 0 {
		return nil, valueErr("SQRT of a negative number")
	}
	return math.Sqrt(x), nil
}

func fnPower(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 2 {
		return nil, valueErr("POWER takes two arguments")
	}
	x, err := argNumber(args, 0)
	if err != nil {
		return nil, err
	}
	y, err := argNumber(args, 1)
	if err != nil {
		return nil, err
	}
	result := math.Pow(x, y)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, valueErr("POWER result out of range")
	}
	return result, nil
}

func fnMod(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 2 {
		return nil, valueErr("MOD takes two arguments")
	}
	x, err := argNumber(args, 0)
	if err != nil {
		return nil, err
	}
	y, err := argNumber(args, 1)
	if err != nil {
		return nil, err
	}
	if y == 0 {
		return nil, div0Err("MOD by zero")
	}
	return math.Mod(x, y), nil
}

// --- Text ------------------------------------------------------------------

func fnConcat(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	var sb strings.Builder
	for _, v := range flattenValues(args) {
		sb.WriteString(cellString(v))
	}
	return sb.String(), nil
}

func fnLeft(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 2 {
		return nil, valueErr("LEFT takes two arguments")
	}
	n, err := argNumber(args, 1)
	if err != nil {
		return nil, err
	}
	runes := []rune(cellString(args[0]))
	count := int(n)
	if count < 0 {
		count = 0
	}
	if count > len(runes) {
		count = len(runes)
	}
	return string(runes[:count]), nil
}

func fnRight(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 2 {
		return nil, valueErr("RIGHT takes two arguments")
	}
	n, err := argNumber(args, 1)
	if err != nil {
		return nil, err
	}
	runes := []rune(cellString(args[0]))
	count := int(n)
	if count < 0 {
		count = 0
	}
	if count > len(runes) {
		count = len(runes)
	}
	return string(runes[len(runes)-count:]), nil
}

func fnLen(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("LEN takes one argument")
	}
	return float64(len([]rune(cellString(args[0])))), nil
}

func fnTrim(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("TRIM takes one argument")
	}
	return strings.TrimSpace(cellString(args[0])), nil
}

func fnUpper(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("UPPER takes one argument")
	}
	return strings.ToUpper(cellString(args[0])), nil
}

func fnLower(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("LOWER takes one argument")
	}
	return strings.ToLower(cellString(args[0])), nil
}

// --- Logical ---------------------------------------------------------------

// toBool decides truthiness: booleans as-is, numbers by non-zero, nil false,
// strings by "true"/"false" keywords, numeric value, or non-emptiness.
func toBool(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		trimmed := strings.TrimSpace(b)
		if strings.EqualFold(trimmed, "true") {
			return true
		}
		if strings.EqualFold(trimmed, "false") {
			return false
		}
		if n, ok := toNumber(trimmed); ok {
			return n != 0
		}
		return trimmed != ""
	default:
		return false
	}
}

func fnIf(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 3 {
		return nil, valueErr("IF takes three arguments")
	}
	if toBool(args[0]) {
		return args[1], nil
	}
	return args[2], nil
}

func fnAnd(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	values := flattenValues(args)
	if len(values) == 0 {
		return nil, valueErr("AND takes at least one argument")
	}
	for _, v := range values {
		if !toBool(v) {
			return false, nil
		}
	}
	return true, nil
}

func fnOr(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	values := flattenValues(args)
	if len(values) == 0 {
		return nil, valueErr("OR takes at least one argument")
	}
	for _, v := range values {
		if toBool(v) {
			return true, nil
		}
	}
	return false, nil
}

func fnNot(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("NOT takes one argument")
	}
	return !toBool(args[0]), nil
}

func fnIsBlank(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("ISBLANK takes one argument")
	}
	return args[0] == nil || cellString(args[0]) == "", nil
}

func fnIsNumber(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("ISNUMBER takes one argument")
	}
	if args[0] == nil {
		return false, nil
	}
	_, ok := toNumber(args[0])
	return ok, nil
}

// --- Date ------------------------------------------------------------------

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// parseDateValue accepts a date-like cell value in the supported layouts.
func parseDateValue(v any) (time.Time, bool) {
	str := strings.TrimSpace(cellString(v))
	if str == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fnToday(e *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 0 {
		return nil, valueErr("TODAY takes no arguments")
	}
	return e.clock.Now().Format("2006-01-02"), nil
}

func fnNow(e *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 0 {
		return nil, valueErr("NOW takes no arguments")
	}
	return e.clock.Now().Format("2006-01-02 15:04:05"), nil
}

// YEAR/MONTH/DAY return 0 for an unparsable or empty date instead of an
// error, so a column of mixed values degrades quietly.
func fnYear(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("YEAR takes one argument")
	}
	t, ok := parseDateValue(args[0])
	if !ok {
		return 0.0, nil
	}
	return float64(t.Year()), nil
}

func fnMonth(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("MONTH takes one argument")
	}
	t, ok := parseDateValue(args[0])
	if !ok {
		return 0.0, nil
	}
	return float64(t.Month()), nil
}

func fnDay(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 1 {
		return nil, valueErr("DAY takes one argument")
	}
	t, ok := parseDateValue(args[0])
	if !ok {
		return 0.0, nil
	}
	return float64(t.Day()), nil
}

// fnWeekday maps return types: 1 (default) 1=Sunday..7=Saturday,
// 2 is 1=Monday..7=Sunday, 3 is 0=Monday..6=Sunday.
func fnWeekday(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) < 1 || len(args) > 2 {
		return nil, valueErr("WEEKDAY takes one or two arguments")
	}
	t, ok := parseDateValue(args[0])
	if !ok {
		return 0.0, nil
	}
	returnType := 1.0
	if len(args) == 2 {
		n, err := argNumber(args, 1)
		if err != nil {
			return nil, err
		}
		returnType = n
	}
	sundayBased := int(t.Weekday()) // 0=Sunday..6=Saturday
	switch int(returnType) {
	case 1:
		return float64(sundayBased + 1), nil
	case 2:
		return float64((sundayBased+6)%7 + 1), nil
	case 3:
		return float64((sundayBased + 6) % 7), nil
	default:
		return nil, valueErr("WEEKDAY return type must be 1, 2 or 3")
	}
}

func fnDate(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 3 {
		return nil, valueErr("DATE takes three arguments")
	}
	y, err := argNumber(args, 0)
	if err != nil {
		return nil, err
	}
	m, err := argNumber(args, 1)
	if err != nil {
		return nil, err
	}
	d, err := argNumber(args, 2)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("%04d-%02d-%02d", int(y), int(m), int(d)), nil
}

func fnDateDif(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 3 {
		return nil, valueErr("DATEDIF takes three arguments")
	}
	d1, ok := parseDateValue(args[0])
	if !ok {
		return nil, valueErr("DATEDIF start date is invalid")
	}
	d2, ok := parseDateValue(args[1])
	if !ok {
		return nil, valueErr("DATEDIF end date is invalid")
	}
	unit := strings.ToUpper(strings.TrimSpace(cellString(args[2])))
	switch unit {
	case "D":
		return math.Trunc(d2.Sub(d1).Hours() / 24), nil
	case "M":
		months := (d2.Year()-d1.Year())*12 + int(d2.Month()) - int(d1.Month())
		if d2.Day() < d1.Day() {
			months--
		}
		return float64(months), nil
	case "Y":
		years := d2.Year() - d1.Year()
		if d2.Month() < d1.Month() || (d2.Month() == d1.Month() && d2.Day() < d1.Day()) {
			years--
		}
		return float64(years), nil
	default:
		return nil, valueErr("DATEDIF unit must be D, M or Y")
	}
}

// --- Lookup ----------------------------------------------------------------

func fnIndex(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) != 2 {
		return nil, valueErr("INDEX takes two arguments")
	}
	list, ok := args[0].([]any)
	if !ok {
		return nil, valueErr("INDEX first argument must be a range")
	}
	n, err := argNumber(args, 1)
	if err != nil {
		return nil, err
	}
	idx := int(n)
	if idx < 1 || idx > len(list) {
		return nil, valueErr("INDEX position out of range")
	}
	return list[idx-1], nil
}

// fnMatch returns the 1-based position of value in the range. Match type 0
// (the default) is exact; 1 finds the largest entry not greater than value;
// -1 finds the smallest entry not less than value.
func fnMatch(_ *Evaluator, _ *Snapshot, args []any) (any, *evalError) {
	if len(args) < 2 || len(args) > 3 {
		return nil, valueErr("MATCH takes two or three arguments")
	}
	list, ok := args[1].([]any)
	if !ok {
		return nil, valueErr("MATCH second argument must be a range")
	}
	matchType := 0.0
	if len(args) == 3 {
		n, err := argNumber(args, 2)
		if err != nil {
			return nil, err
		}
		matchType = n
	}
	target := args[0]
	switch int(matchType) {
	case 0:
		for i, v := range list {
			if compareValues(v, target) == 0 {
				return float64(i + 1), nil
			}
		}
	case 1:
		best := -1
		for i, v := range list {
			if v == nil {
				continue
			}
			if compareValues(v, target) <= 0 {
				best = i
			}
		}
		if best >= 0 {
			return float64(best + 1), nil
		}
	case -1:
		best := -1
		for i, v := range list {
			if v == nil {
				continue
			}
			if compareValues(v, target) >= 0 {
				best = i
			}
		}
		if best >= 0 {
			return float64(best + 1), nil
		}
	default:
		return nil, valueErr("MATCH type must be -1, 0 or 1")
	}
	return nil, evalErr("MATCH found no result")
}
