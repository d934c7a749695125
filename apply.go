package main

import (
	"fmt"
	"sort"
	"strings"
)

// ApplyResult is what the applicator hands back to the host: the committed
// snapshot and a human-readable summary for the chat transcript. Warnings
// collect the groups or actions that degraded to a fallback.
type ApplyResult struct {
	Data        *Snapshot `json:"data"`
	Description string    `json:"description"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// ApplyChanges groups a flat change log by change type (first-seen order,
// ungrouped changes default to cell updates) and replays each group through
// the matching mutation operation. The snapshot threads through the groups
// sequentially, so a later group observes the structural edits of an
// earlier one. Pending changes are cleared on the result: they are now
// committed.
func ApplyChanges(s *Snapshot, changes []DataChange, ev *Evaluator) ApplyResult {
	result := ApplyResult{}
	var order []string
	groups := map[string][]DataChange{}
	for _, change := range changes {
		key := change.ChangeType
		if key == "" {
			key = ChangeTypeCellUpdate
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], change)
	}

	var clauses []string
	current := s
	for _, key := range order {
		group := groups[key]
		switch key {
		case ChangeTypeCellUpdate:
			current = replayCellUpdates(current, group, ev)
			clauses = append(clauses, fmt.Sprintf("Updated %d cell(s)", len(group)))

		case ChangeTypeColumnRename:
			for _, change := range group {
				col := columnFromRef(change.CellRef)
				name := cellString(change.After)
				current = current.RenameColumn(col, name).Data
				clauses = append(clauses, fmt.Sprintf("Renamed column %s to %q", strings.ToUpper(change.CellRef), name))
			}

		case ChangeTypeColumnDelete:
			cols := map[int]bool{}
			for _, change := range group {
				if col := columnFromRef(change.CellRef); col >= 0 {
					cols[col] = true
				}
			}
			var letters []string
			var indices []int
			for col := range cols {
				indices = append(indices, col)
				letters = append(letters, columnLetter(col))
			}
			sort.Strings(letters)
			current = current.DeleteColumns(indices).Data
			clauses = append(clauses, "Deleted column(s): "+strings.Join(letters, ", "))

		case ChangeTypeRowDelete:
			rows := map[int]bool{}
			for _, change := range group {
				if ref := parseCellRef(change.CellRef); ref != nil {
					rows[ref.Row] = true
				}
			}
			var indices []int
			for r := range rows {
				indices = append(indices, r)
			}
			current = current.DeleteRows(indices).Data
			clauses = append(clauses, fmt.Sprintf("Deleted %d row(s)", len(rows)))

		default:
			// Unknown group kinds degrade to plain cell updates instead of
			// failing the whole batch.
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("unrecognized change type %q, applied as cell updates", key))
			current = replayCellUpdates(current, group, ev)
			clauses = append(clauses, fmt.Sprintf("Updated %d cell(s)", len(group)))
		}
	}

	if current == s {
		current = s.shallowClone()
	}
	current.PendingChanges = nil
	result.Data = current
	result.Description = strings.Join(clauses, "; ")
	return result
}

// replayCellUpdates commits one group of value/formula changes. A formula
// change stores the formula and caches its evaluated result as the cell
// value.
func replayCellUpdates(s *Snapshot, group []DataChange, ev *Evaluator) *Snapshot {
	current := s
	for _, change := range group {
		ref := parseCellRef(change.CellRef)
		if ref == nil || ref.Row < 0 {
			continue
		}
		if change.Kind == ChangeKindFormula {
			formula := cellString(change.After)
			current = current.SetCellFormula(ref.Row, ref.Col, formula).Data
			current = current.SetCellValue(ref.Row, ref.Col, ev.Evaluate(formula, current)).Data
			continue
		}
		current = current.SetCellValue(ref.Row, ref.Col, change.After).Data
	}
	return current
}

// columnFromRef extracts a zero-based column index from either a bare
// column reference ("B") or a cell reference ("B3"). Returns -1 when
// neither parses.
func columnFromRef(ref string) int {
	if isColumnLetters(ref) {
		return columnIndex(ref)
	}
	if parsed := parseCellRef(ref); parsed != nil {
		return parsed.Col
	}
	return -1
}

// ApplyAction translates one validated action into mutation operations and
// commits it. Actions the engine does not execute (charts, templates,
// undo/redo, clipboard moves) come back unchanged with a warning, leaving
// the host to handle or ignore them.
func ApplyAction(s *Snapshot, action *Action, ev *Evaluator) ApplyResult {
	a := NormalizeAction(action)
	if a == nil || a.Type == "" {
		return ApplyResult{Data: s, Warnings: []string{"empty action"}}
	}

	switch a.Type {
	case ActionInsertFormula:
		ref := targetCellRef(a.Target)
		if ref == nil {
			return applyWarning(s, "INSERT_FORMULA target is not a cell")
		}
		change := DataChange{
			CellRef:    makeCellRef(ref.Col, ref.Row),
			After:      a.Formula,
			Kind:       ChangeKindFormula,
			ChangeType: ChangeTypeCellUpdate,
		}
		result := ApplyChanges(s, []DataChange{change}, ev)
		result.Description = fmt.Sprintf("Inserted formula %s at %s", a.Formula, change.CellRef)
		return result

	case ActionEditCell:
		ref := targetCellRef(a.Target)
		if ref == nil {
			return applyWarning(s, "EDIT_CELL target is not a cell")
		}
		if a.Formula != "" {
			formulaAction := *a
			formulaAction.Type = ActionInsertFormula
			return ApplyAction(s, &formulaAction, ev)
		}
		result := s.SetCellValue(ref.Row, ref.Col, a.Value)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Updated cell %s", makeCellRef(ref.Col, ref.Row)),
		}

	case ActionEditRange:
		cells := targetCells(s, a.Target)
		current := s
		for _, ref := range cells {
			current = current.SetCellValue(ref.Row, ref.Col, a.Value).Data
		}
		return ApplyResult{
			Data:        commit(current),
			Description: fmt.Sprintf("Updated %d cell(s)", len(cells)),
		}

	case ActionAddColumn:
		result := s.AddColumn(a.ColumnName)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Added column %q", a.ColumnName),
		}

	case ActionRenameColumn:
		col := resolveColumn(s, targetRef(a.Target))
		if col < 0 {
			return applyWarning(s, "RENAME_COLUMN target column not found")
		}
		name := a.NewColumnName
		if name == "" {
			name = a.ColumnName
		}
		result := s.RenameColumn(col, name)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Renamed column %s to %q", columnLetter(col), name),
		}

	case ActionDeleteColumn:
		var cols []int
		var letters []string
		for _, part := range strings.Split(targetRef(a.Target), ",") {
			col := resolveColumn(s, strings.TrimSpace(part))
			if col >= 0 {
				cols = append(cols, col)
				letters = append(letters, columnLetter(col))
			}
		}
		if len(cols) == 0 {
			return applyWarning(s, "DELETE_COLUMN target column not found")
		}
		sort.Strings(letters)
		result := s.DeleteColumns(cols)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: "Deleted column(s): " + strings.Join(letters, ", "),
		}

	case ActionAddRow:
		result := s.SetCellValue(len(s.Rows), 0, nil)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: "Added 1 row",
		}

	case ActionDeleteRows:
		indices := append([]int{}, a.RowIndices...)
		if len(indices) == 0 && a.Target != nil {
			for _, ref := range targetCells(s, a.Target) {
				indices = append(indices, ref.Row)
			}
		}
		result := s.DeleteRows(indices)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Deleted %d row(s)", result.RemovedCount),
		}

	case ActionRemoveEmptyRows:
		result := s.RemoveEmptyRows()
		if result.RemovedCount == 0 {
			return ApplyResult{Data: commit(result.Data), Description: "No empty rows found"}
		}
		rowWords := make([]string, len(result.RemovedRows))
		for i, r := range result.RemovedRows {
			rowWords[i] = itoa(r)
		}
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Removed %d empty row(s): %s", result.RemovedCount, strings.Join(rowWords, ", ")),
		}

	case ActionSortData:
		col := resolveColumn(s, a.SortColumn)
		if col < 0 {
			return applyWarning(s, "SORT_DATA column not found")
		}
		result := s.SortData(col, a.SortDirection)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Sorted by column %s (%s)", columnLetter(col), a.SortDirection),
		}

	case ActionFilterData:
		col := filterColumn(s, a.Target)
		if col < 0 {
			return applyWarning(s, "FILTER_DATA target column not found")
		}
		result := s.FilterRows(col, a.FilterOperator, a.FilterValue)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Filtered out %d row(s)", result.RemovedCount),
		}

	case ActionFindReplace:
		var columns []int
		if a.Target != nil && a.Target.Type == "column" {
			if col := resolveColumn(s, a.Target.Ref); col >= 0 {
				columns = append(columns, col)
			}
		}
		result := s.FindReplace(a.Find, a.Replace, columns)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Replaced %q with %q in %d cell(s)", a.Find, a.Replace, len(result.Changes)),
		}

	case ActionRemoveDuplicates:
		result := s.RemoveDuplicates()
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Removed %d duplicate row(s)", result.RemovedCount),
		}

	case ActionFillDown:
		col := resolveColumn(s, targetRef(a.Target))
		if col < 0 {
			return applyWarning(s, "FILL_DOWN target column not found")
		}
		result := s.FillDown(col)
		return ApplyResult{
			Data:        commit(result.Data),
			Description: fmt.Sprintf("Filled down %d cell(s) in column %s", len(result.Changes), columnLetter(col)),
		}

	case ActionConditionalFormat:
		return applyConditionalFormat(s, a)

	case ActionFormatCells:
		if a.FormatStyle == nil {
			return applyWarning(s, "FORMAT_CELLS has no style")
		}
		cells := targetCells(s, a.Target)
		out := s.shallowClone()
		if out.CellStyles == nil {
			out.CellStyles = map[string]CellStyle{}
		}
		for _, ref := range cells {
			out.CellStyles[makeCellRef(ref.Col, ref.Row)] = *a.FormatStyle
		}
		return ApplyResult{
			Data:        commit(out),
			Description: fmt.Sprintf("Formatted %d cell(s)", len(cells)),
		}

	case ActionClearFormatting:
		cells := targetCells(s, a.Target)
		out := s.shallowClone()
		for _, ref := range cells {
			delete(out.CellStyles, makeCellRef(ref.Col, ref.Row))
		}
		return ApplyResult{
			Data:        commit(out),
			Description: fmt.Sprintf("Cleared formatting on %d cell(s)", len(cells)),
		}

	case ActionClearRange:
		cells := targetCells(s, a.Target)
		current := s
		for _, ref := range cells {
			current = current.SetCellValue(ref.Row, ref.Col, nil).Data
		}
		return ApplyResult{
			Data:        commit(current),
			Description: fmt.Sprintf("Cleared %d cell(s)", len(cells)),
		}

	case ActionTrimWhitespace:
		col := resolveColumn(s, targetRef(a.Target))
		if col < 0 {
			return applyWarning(s, "TRIM_WHITESPACE target column not found")
		}
		current := s
		trimmed := 0
		for r := range s.Rows {
			if str, ok := s.ValueAt(col, r).(string); ok {
				if cleaned := strings.TrimSpace(str); cleaned != str {
					current = current.SetCellValue(r, col, cleaned).Data
					trimmed++
				}
			}
		}
		return ApplyResult{
			Data:        commit(current),
			Description: fmt.Sprintf("Trimmed whitespace in %d cell(s)", trimmed),
		}

	default:
		return applyWarning(s, fmt.Sprintf("action type %s is not applied by the engine", a.Type))
	}
}

// commit returns a snapshot with pending changes cleared, cloning only when
// the snapshot still is the caller's input.
func commit(s *Snapshot) *Snapshot {
	if len(s.PendingChanges) == 0 {
		return s
	}
	out := s.shallowClone()
	out.PendingChanges = nil
	return out
}

func applyWarning(s *Snapshot, warning string) ApplyResult {
	return ApplyResult{Data: s, Warnings: []string{warning}}
}

// targetRef safely reads the ref of an optional target.
func targetRef(t *CellTarget) string {
	if t == nil {
		return ""
	}
	return t.Ref
}

// targetCellRef parses a single-cell target.
func targetCellRef(t *CellTarget) *cellRef {
	if t == nil {
		return nil
	}
	ref := parseCellRef(t.Ref)
	if ref == nil || ref.Row < 0 {
		return nil
	}
	return ref
}

// targetCells expands a target into the concrete in-bounds cells it covers.
func targetCells(s *Snapshot, t *CellTarget) []cellRef {
	if t == nil {
		return nil
	}
	var cells []cellRef
	switch t.Type {
	case "cell":
		if ref := parseCellRef(t.Ref); ref != nil && ref.Row >= 0 && ref.Row < len(s.Rows) && ref.Col < len(s.Headers) {
			cells = append(cells, *ref)
		}
	case "range":
		start, end, ok := parseRangeRef(t.Ref)
		if !ok {
			return nil
		}
		minCol, maxCol := start.Col, end.Col
		if minCol > maxCol {
			minCol, maxCol = maxCol, minCol
		}
		minRow, maxRow := start.Row, end.Row
		if minRow > maxRow {
			minRow, maxRow = maxRow, minRow
		}
		for r := max(minRow, 0); r <= maxRow && r < len(s.Rows); r++ {
			for c := max(minCol, 0); c <= maxCol && c < len(s.Headers); c++ {
				cells = append(cells, cellRef{Col: c, Row: r, DisplayRow: r + headerRowOffset})
			}
		}
	case "column":
		col := resolveColumn(s, t.Ref)
		if col < 0 {
			return nil
		}
		for r := range s.Rows {
			cells = append(cells, cellRef{Col: col, Row: r, DisplayRow: r + headerRowOffset})
		}
	case "row":
		displayRow := 0
		for i := 0; i < len(t.Ref); i++ {
			ch := t.Ref[i]
			if ch < '0' || ch > '9' {
				return nil
			}
			displayRow = displayRow*10 + int(ch-'0')
		}
		row := displayRow - headerRowOffset
		if row < 0 || row >= len(s.Rows) {
			return nil
		}
		for c := range s.Headers {
			cells = append(cells, cellRef{Col: c, Row: row, DisplayRow: displayRow})
		}
	}
	return cells
}

// resolveColumn maps a header name or column letters to a zero-based index,
// preferring an exact header-name match.
func resolveColumn(s *Snapshot, name string) int {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return -1
	}
	for i, header := range s.Headers {
		if strings.EqualFold(header, trimmed) {
			return i
		}
	}
	if isColumnLetters(trimmed) {
		if col := columnIndex(trimmed); col < len(s.Headers) {
			return col
		}
	}
	return -1
}

// filterColumn picks the column a FILTER_DATA target addresses: the column
// itself, or the leading column of a range.
func filterColumn(s *Snapshot, t *CellTarget) int {
	if t == nil {
		return -1
	}
	if t.Type == "column" {
		return resolveColumn(s, t.Ref)
	}
	if start, _, ok := parseRangeRef(t.Ref); ok && start.Col < len(s.Headers) {
		return start.Col
	}
	return -1
}

// conditionOperator maps conditional-format condition types onto the filter
// operator set.
var conditionOperator = map[string]string{
	"greater_than": ">",
	"less_than":    "<",
	"equal":        "==",
	"equals":       "==",
	"not_equal":    "!=",
	"contains":     "contains",
	"empty":        "empty",
	"not_empty":    "not_empty",
	">":            ">",
	"<":            "<",
	">=":           ">=",
	"<=":           "<=",
	"==":           "==",
	"!=":           "!=",
}

// applyConditionalFormat writes style records for every target cell that
// satisfies the condition. Both the legacy single-rule shape and the newer
// rules list land here after normalization.
func applyConditionalFormat(s *Snapshot, a *Action) ApplyResult {
	rules := a.Rules
	if len(rules) == 0 {
		rules = []FormatRule{{
			ConditionType:   a.ConditionType,
			ConditionValues: a.ConditionValues,
			Style:           a.FormatStyle,
		}}
	}
	cells := targetCells(s, a.Target)
	out := s.shallowClone()
	if out.CellStyles == nil {
		out.CellStyles = map[string]CellStyle{}
	}
	styled := 0
	for _, rule := range rules {
		if rule.Style == nil {
			continue
		}
		for _, ref := range cells {
			v := s.ValueAt(ref.Col, ref.Row)
			if !conditionMatches(v, rule.ConditionType, rule.ConditionValues) {
				continue
			}
			out.CellStyles[makeCellRef(ref.Col, ref.Row)] = *rule.Style
			styled++
		}
	}
	return ApplyResult{
		Data:        commit(out),
		Description: fmt.Sprintf("Applied conditional formatting to %d cell(s)", styled),
	}
}

func conditionMatches(v any, conditionType string, values []any) bool {
	if conditionType == "between" {
		if len(values) != 2 {
			return false
		}
		return compareValues(v, values[0]) >= 0 && compareValues(v, values[1]) <= 0
	}
	op, ok := conditionOperator[conditionType]
	if !ok {
		return false
	}
	var operand any
	if len(values) > 0 {
		operand = values[0]
	}
	return matchesFilter(v, op, operand)
}
