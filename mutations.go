package main

import (
	"sort"
	"strings"
)

// MutationResult is the outcome of one mutation operation: the new snapshot
// plus the change records needed for undo and for the applicator summary.
// Operations that drop rows also report what was removed.
type MutationResult struct {
	Data         *Snapshot    `json:"data"`
	Changes      []DataChange `json:"changes,omitempty"`
	RemovedRows  []int        `json:"removed_rows,omitempty"`
	RemovedCount int          `json:"removed_count,omitempty"`
}

// Every operation below is pure: the receiver snapshot is never modified,
// and the returned snapshot satisfies rows[i] length == header count.
// Invalid indices clamp to no-ops instead of failing, because upstream
// actions may carry stale coordinates after an earlier structural edit.

// SetCellValue writes a value at zero-based (row, col), growing the row set
// with padded rows when the target row is beyond the current length.
func (s *Snapshot) SetCellValue(row, col int, value any) MutationResult {
	if row < 0 || col < 0 || col >= len(s.Headers) {
		return MutationResult{Data: s}
	}
	out := s.shallowClone()
	for len(out.Rows) <= row {
		out.Rows = append(out.Rows, make([]any, len(out.Headers)))
	}
	before := s.ValueAt(col, row)
	updated := out.cloneRow(row)
	updated[col] = value
	out.Rows[row] = updated
	out.normalizeRows()
	return MutationResult{
		Data: out,
		Changes: []DataChange{{
			CellRef:    makeCellRef(col, row),
			Before:     before,
			After:      value,
			Kind:       ChangeKindValue,
			ChangeType: ChangeTypeCellUpdate,
		}},
	}
}

// SetCellFormula stores a formula for the cell, overwriting any prior entry.
// The formula is not evaluated here; evaluation happens where the value is
// read or committed.
func (s *Snapshot) SetCellFormula(row, col int, formula string) MutationResult {
	if row < 0 || col < 0 || col >= len(s.Headers) {
		return MutationResult{Data: s}
	}
	out := s.shallowClone()
	for len(out.Rows) <= row {
		out.Rows = append(out.Rows, make([]any, len(out.Headers)))
	}
	if out.Formulas == nil {
		out.Formulas = map[string]string{}
	}
	key := makeCellRef(col, row)
	var before any
	if prior, ok := out.Formulas[key]; ok {
		before = prior
	}
	out.Formulas[key] = formula
	out.normalizeRows()
	return MutationResult{
		Data: out,
		Changes: []DataChange{{
			CellRef:    key,
			Before:     before,
			After:      formula,
			Kind:       ChangeKindFormula,
			ChangeType: ChangeTypeCellUpdate,
		}},
	}
}

// AddColumn appends a column with the given name; every row grows by one
// nil cell.
func (s *Snapshot) AddColumn(name string) MutationResult {
	out := s.shallowClone()
	out.Headers = append(out.Headers, name)
	for i := range out.Rows {
		row := make([]any, len(out.Headers))
		copy(row, out.Rows[i])
		out.Rows[i] = row
	}
	return MutationResult{Data: out}
}

// RenameColumn changes a header name in place (data untouched).
func (s *Snapshot) RenameColumn(col int, name string) MutationResult {
	if col < 0 || col >= len(s.Headers) {
		return MutationResult{Data: s}
	}
	before := s.Headers[col]
	if before == name {
		return MutationResult{Data: s}
	}
	out := s.shallowClone()
	out.Headers[col] = name
	return MutationResult{
		Data: out,
		Changes: []DataChange{{
			CellRef:    columnLetter(col),
			Before:     before,
			After:      name,
			Kind:       ChangeKindValue,
			ChangeType: ChangeTypeColumnRename,
		}},
	}
}

// DeleteColumns removes the given zero-based columns in one pass. Each
// affected cell yields one change record for undo granularity; formula and
// style keys are shifted left or dropped with their column.
func (s *Snapshot) DeleteColumns(cols []int) MutationResult {
	deleted := map[int]bool{}
	for _, c := range cols {
		if c >= 0 && c < len(s.Headers) {
			deleted[c] = true
		}
	}
	if len(deleted) == 0 {
		return MutationResult{Data: s}
	}

	var changes []DataChange
	out := &Snapshot{}
	for c, name := range s.Headers {
		if !deleted[c] {
			out.Headers = append(out.Headers, name)
			continue
		}
		for r := range s.Rows {
			if v := s.ValueAt(c, r); v != nil {
				changes = append(changes, DataChange{
					CellRef:    makeCellRef(c, r),
					Before:     v,
					After:      nil,
					Kind:       ChangeKindValue,
					ChangeType: ChangeTypeColumnDelete,
				})
			}
		}
	}
	out.Rows = make([][]any, len(s.Rows))
	for r := range s.Rows {
		row := make([]any, 0, len(out.Headers))
		for c := range s.Headers {
			if !deleted[c] {
				row = append(row, s.ValueAt(c, r))
			}
		}
		out.Rows[r] = row
	}
	out.Formulas = s.Formulas
	out.CellStyles = s.CellStyles
	out.PendingChanges = append([]DataChange{}, s.PendingChanges...)
	out.remapCellKeys(func(col, row int) (int, int, bool) {
		if deleted[col] {
			return 0, 0, false
		}
		shift := 0
		for c := range deleted {
			if c < col {
				shift++
			}
		}
		return col - shift, row, true
	})
	return MutationResult{Data: out, Changes: changes}
}

// DeleteRows filters out the given zero-based row indices; indices not
// present are ignored.
func (s *Snapshot) DeleteRows(rows []int) MutationResult {
	deleted := map[int]bool{}
	for _, r := range rows {
		if r >= 0 && r < len(s.Rows) {
			deleted[r] = true
		}
	}
	if len(deleted) == 0 {
		return MutationResult{Data: s}
	}

	var changes []DataChange
	var removed []int
	out := s.shallowClone()
	out.Rows = out.Rows[:0]
	for r, row := range s.Rows {
		if !deleted[r] {
			out.Rows = append(out.Rows, row)
			continue
		}
		removed = append(removed, r)
		for c := range s.Headers {
			if v := s.ValueAt(c, r); v != nil {
				changes = append(changes, DataChange{
					CellRef:    makeCellRef(c, r),
					Before:     v,
					After:      nil,
					Kind:       ChangeKindValue,
					ChangeType: ChangeTypeRowDelete,
				})
			}
		}
	}
	out.remapCellKeys(func(col, row int) (int, int, bool) {
		if deleted[row] {
			return 0, 0, false
		}
		shift := 0
		for r := range deleted {
			if r < row {
				shift++
			}
		}
		return col, row - shift, true
	})
	out.normalizeRows()
	return MutationResult{
		Data:         out,
		Changes:      changes,
		RemovedRows:  removed,
		RemovedCount: len(removed),
	}
}

// RemoveEmptyRows deletes every row whose cells are all nil or whitespace.
// Removed rows are reported as the user-facing spreadsheet row numbers
// (1-indexed with the header offset), matching what the grid displays.
func (s *Snapshot) RemoveEmptyRows() MutationResult {
	var empty []int
	for r, row := range s.Rows {
		isEmpty := true
		for _, v := range row {
			if !isEmptyValue(v) {
				isEmpty = false
				break
			}
		}
		if isEmpty {
			empty = append(empty, r)
		}
	}
	if len(empty) == 0 {
		return MutationResult{Data: s}
	}
	result := s.DeleteRows(empty)
	display := make([]int, len(empty))
	for i, r := range empty {
		display[i] = r + headerRowOffset
	}
	result.RemovedRows = display
	result.RemovedCount = len(display)
	return result
}

// FindReplace performs a substring replacement (not regex) across all cells,
// optionally restricted to a set of columns. A change is recorded only for
// cells whose string form actually contains the needle.
func (s *Snapshot) FindReplace(find, replace string, columns []int) MutationResult {
	if find == "" {
		return MutationResult{Data: s}
	}
	var allowed map[int]bool
	if len(columns) > 0 {
		allowed = map[int]bool{}
		for _, c := range columns {
			allowed[c] = true
		}
	}

	var changes []DataChange
	out := s.shallowClone()
	for r := range s.Rows {
		var updated []any
		for c := range s.Headers {
			if allowed != nil && !allowed[c] {
				continue
			}
			before := s.ValueAt(c, r)
			str := cellString(before)
			if !strings.Contains(str, find) {
				continue
			}
			replaced := strings.ReplaceAll(str, find, replace)
			var after any = replaced
			// A numeric cell stays numeric when the replacement still
			// parses as a number.
			if _, wasNumber := before.(float64); wasNumber {
				if n, ok := toNumber(replaced); ok {
					after = n
				}
			}
			if updated == nil {
				updated = out.cloneRow(r)
			}
			updated[c] = after
			changes = append(changes, DataChange{
				CellRef:    makeCellRef(c, r),
				Before:     before,
				After:      after,
				Kind:       ChangeKindValue,
				ChangeType: ChangeTypeCellUpdate,
			})
		}
		if updated != nil {
			out.Rows[r] = updated
		}
	}
	if len(changes) == 0 {
		return MutationResult{Data: s}
	}
	out.normalizeRows()
	return MutationResult{Data: out, Changes: changes}
}

// SortData stably sorts rows by one column. Comparison is numeric when both
// values parse as numbers, lexicographic otherwise; nil sorts lowest.
// Formula and style keys follow their rows.
func (s *Snapshot) SortData(col int, direction string) MutationResult {
	if col < 0 || col >= len(s.Headers) || len(s.Rows) < 2 {
		return MutationResult{Data: s}
	}
	desc := strings.EqualFold(direction, "desc")

	perm := make([]int, len(s.Rows))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		cmp := compareValues(s.ValueAt(col, perm[i]), s.ValueAt(col, perm[j]))
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})

	out := s.shallowClone()
	for newIdx, oldIdx := range perm {
		out.Rows[newIdx] = s.Rows[oldIdx]
	}
	newIndex := make([]int, len(perm)) // old row -> new row
	for newIdx, oldIdx := range perm {
		newIndex[oldIdx] = newIdx
	}
	out.remapCellKeys(func(c, r int) (int, int, bool) {
		if r < 0 || r >= len(newIndex) {
			return c, r, true
		}
		return c, newIndex[r], true
	})
	out.normalizeRows()
	return MutationResult{Data: out}
}

// rowIdentity builds a structural-equality key for a row: type-tagged cell
// strings joined with an unprintable separator.
func rowIdentity(s *Snapshot, r int) string {
	var sb strings.Builder
	for c := range s.Headers {
		v := s.ValueAt(c, r)
		switch v.(type) {
		case nil:
			sb.WriteString("n:")
		case float64:
			sb.WriteString("f:")
		default:
			sb.WriteString("s:")
		}
		sb.WriteString(cellString(v))
		sb.WriteByte(0x1f)
	}
	return sb.String()
}

// RemoveDuplicates drops rows that are structurally equal to an earlier row,
// keeping the first occurrence.
func (s *Snapshot) RemoveDuplicates() MutationResult {
	seen := map[string]bool{}
	var dupes []int
	for r := range s.Rows {
		key := rowIdentity(s, r)
		if seen[key] {
			dupes = append(dupes, r)
			continue
		}
		seen[key] = true
	}
	if len(dupes) == 0 {
		return MutationResult{Data: s}
	}
	return s.DeleteRows(dupes)
}

// FillDown copies the nearest non-empty value above into each empty cell of
// the column, top to bottom. Populated cells are never overwritten.
func (s *Snapshot) FillDown(col int) MutationResult {
	if col < 0 || col >= len(s.Headers) {
		return MutationResult{Data: s}
	}
	var changes []DataChange
	out := s.shallowClone()
	var carry any
	for r := range s.Rows {
		v := s.ValueAt(col, r)
		if !isEmptyValue(v) {
			carry = v
			continue
		}
		if carry == nil {
			continue
		}
		updated := out.cloneRow(r)
		updated[col] = carry
		out.Rows[r] = updated
		changes = append(changes, DataChange{
			CellRef:    makeCellRef(col, r),
			Before:     v,
			After:      carry,
			Kind:       ChangeKindValue,
			ChangeType: ChangeTypeCellUpdate,
		})
	}
	if len(changes) == 0 {
		return MutationResult{Data: s}
	}
	out.normalizeRows()
	return MutationResult{Data: out, Changes: changes}
}

// Filter operators understood by FilterRows (and validated upstream).
var filterOperators = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true,
	"==": true, "!=": true,
	"contains": true, "not_contains": true,
	"empty": true, "not_empty": true,
}

// matchesFilter applies one filter operator to a cell value.
func matchesFilter(v any, operator string, filterValue any) bool {
	switch operator {
	case "empty":
		return isEmptyValue(v)
	case "not_empty":
		return !isEmptyValue(v)
	case "contains":
		return strings.Contains(cellString(v), cellString(filterValue))
	case "not_contains":
		return !strings.Contains(cellString(v), cellString(filterValue))
	case ">":
		return compareValues(v, filterValue) > 0
	case "<":
		return compareValues(v, filterValue) < 0
	case ">=":
		return compareValues(v, filterValue) >= 0
	case "<=":
		return compareValues(v, filterValue) <= 0
	case "==":
		return compareValues(v, filterValue) == 0
	case "!=":
		return compareValues(v, filterValue) != 0
	default:
		return false
	}
}

// FilterRows keeps only rows whose value in the column satisfies the
// operator, deleting the rest.
func (s *Snapshot) FilterRows(col int, operator string, filterValue any) MutationResult {
	if col < 0 || col >= len(s.Headers) || !filterOperators[operator] {
		return MutationResult{Data: s}
	}
	var drop []int
	for r := range s.Rows {
		if !matchesFilter(s.ValueAt(col, r), operator, filterValue) {
			drop = append(drop, r)
		}
	}
	if len(drop) == 0 {
		return MutationResult{Data: s}
	}
	return s.DeleteRows(drop)
}
