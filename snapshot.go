package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Snapshot is an immutable spreadsheet state passed between operations.
// Mutation operations never modify a snapshot in place: each returns a new
// snapshot with fresh top-level containers, sharing unchanged rows with its
// input. Cell values are string, float64 or nil.
type Snapshot struct {
	Headers        []string             `json:"headers"`
	Rows           [][]any              `json:"rows"`
	Formulas       map[string]string    `json:"formulas,omitempty"`
	CellStyles     map[string]CellStyle `json:"cell_styles,omitempty"`
	PendingChanges []DataChange         `json:"pending_changes,omitempty"`
}

// CellStyle carries display attributes. The engine passes styles through
// unchanged; only the conditional-format applicator writes them.
type CellStyle struct {
	Background string `json:"background,omitempty"`
	Color      string `json:"color,omitempty"`
	Bold       bool   `json:"bold,omitempty"`
	Italic     bool   `json:"italic,omitempty"`
	Underline  bool   `json:"underline,omitempty"`
}

// isZero reports whether no visual property is set.
func (cs CellStyle) isZero() bool {
	return cs == CellStyle{}
}

// Change kinds on a DataChange.
const (
	ChangeKindValue   = "value"
	ChangeKindFormula = "formula"
)

// Change type groups understood by the applicator.
const (
	ChangeTypeCellUpdate   = "CELL_UPDATE"
	ChangeTypeColumnRename = "COLUMN_RENAME"
	ChangeTypeColumnDelete = "COLUMN_DELETE"
	ChangeTypeRowDelete    = "ROW_DELETE"
)

// DataChange is one atomic before/after record. Cells are addressed by A1
// reference; column-level changes carry the bare column letters in CellRef.
// A DataChange is never modified after creation.
type DataChange struct {
	CellRef    string `json:"cell_ref"`
	Before     any    `json:"before"`
	After      any    `json:"after"`
	Kind       string `json:"kind"`
	ChangeType string `json:"change_type,omitempty"`
}

// NewSnapshot builds an empty snapshot with the given headers.
func NewSnapshot(headers []string) *Snapshot {
	return &Snapshot{
		Headers:  append([]string{}, headers...),
		Rows:     [][]any{},
		Formulas: map[string]string{},
	}
}

// shallowClone copies every top-level container so the result can be edited
// without touching the receiver. Individual rows are still shared; callers
// must clone a row before writing to it.
func (s *Snapshot) shallowClone() *Snapshot {
	clone := &Snapshot{
		Headers: append([]string{}, s.Headers...),
		Rows:    append([][]any{}, s.Rows...),
	}
	if s.Formulas != nil {
		clone.Formulas = make(map[string]string, len(s.Formulas))
		for k, v := range s.Formulas {
			clone.Formulas[k] = v
		}
	}
	if s.CellStyles != nil {
		clone.CellStyles = make(map[string]CellStyle, len(s.CellStyles))
		for k, v := range s.CellStyles {
			clone.CellStyles[k] = v
		}
	}
	if s.PendingChanges != nil {
		clone.PendingChanges = append([]DataChange{}, s.PendingChanges...)
	}
	return clone
}

// cloneRow returns a copy of row i padded out to the header width.
func (s *Snapshot) cloneRow(i int) []any {
	width := len(s.Headers)
	row := make([]any, width)
	if i >= 0 && i < len(s.Rows) {
		copy(row, s.Rows[i])
	}
	return row
}

// ValueAt returns the cell value at zero-based (col, row). Out-of-bounds
// positions read as nil; short rows are padded on access.
func (s *Snapshot) ValueAt(col, row int) any {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Headers) {
		return nil
	}
	r := s.Rows[row]
	if col >= len(r) {
		return nil
	}
	return r[col]
}

// normalizeRows pads or truncates every row in place to the header width.
// Only call on rows the snapshot exclusively owns.
func (s *Snapshot) normalizeRows() {
	width := len(s.Headers)
	for i, row := range s.Rows {
		if len(row) == width {
			continue
		}
		fixed := make([]any, width)
		copy(fixed, row)
		s.Rows[i] = fixed
	}
}

// remapCellKeys rebuilds the formula and style maps through mapper. The
// mapper returns the new coordinates for a cell, or keep=false to drop the
// entry. Entries whose key no longer parses are dropped as well, keeping the
// invariant that every key refers to a cell inside current bounds.
func (s *Snapshot) remapCellKeys(mapper func(col, row int) (int, int, bool)) {
	if len(s.Formulas) > 0 {
		remapped := make(map[string]string, len(s.Formulas))
		for key, formula := range s.Formulas {
			ref := parseCellRef(key)
			if ref == nil {
				continue
			}
			col, row, keep := mapper(ref.Col, ref.Row)
			if !keep || col < 0 || col >= len(s.Headers) || row < 0 {
				continue
			}
			remapped[makeCellRef(col, row)] = formula
		}
		s.Formulas = remapped
	}
	if len(s.CellStyles) > 0 {
		remapped := make(map[string]CellStyle, len(s.CellStyles))
		for key, style := range s.CellStyles {
			ref := parseCellRef(key)
			if ref == nil {
				continue
			}
			col, row, keep := mapper(ref.Col, ref.Row)
			if !keep || col < 0 || col >= len(s.Headers) || row < 0 {
				continue
			}
			remapped[makeCellRef(col, row)] = style
		}
		s.CellStyles = remapped
	}
}

// Rendered returns a copy of the snapshot whose rows hold the evaluated
// result of every formula cell. This is the view the host serves to clients;
// the stored snapshot keeps raw values plus the formula map.
func (s *Snapshot) Rendered(ev *Evaluator) *Snapshot {
	if len(s.Formulas) == 0 {
		return s
	}
	out := s.shallowClone()
	for key, formula := range s.Formulas {
		ref := parseCellRef(key)
		if ref == nil || ref.Row < 0 || ref.Row >= len(out.Rows) || ref.Col >= len(out.Headers) {
			continue
		}
		row := out.cloneRow(ref.Row)
		row[ref.Col] = ev.Evaluate(formula, s)
		out.Rows[ref.Row] = row
	}
	return out
}

// toNumber coerces a cell value to float64. Strings are accepted when they
// parse as a number; everything else (nil, text, bool) reports ok=false.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// cellString renders a cell value for display, matching and replacement.
// Numbers drop trailing zeros; nil renders as the empty string.
func cellString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", n)
	}
}

// isEmptyValue reports whether a cell is nil or only whitespace.
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if str, ok := v.(string); ok {
		return strings.TrimSpace(str) == ""
	}
	return false
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}
