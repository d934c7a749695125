package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mohae/deepcopy"
)

func TestApplyChangesGroupsByType(t *testing.T) {
	s := ordersSnapshot()
	pristine := deepcopy.Copy(s)
	ev := NewEvaluator()

	changes := []DataChange{
		{CellRef: "A2", After: "ALICE", Kind: ChangeKindValue, ChangeType: ChangeTypeCellUpdate},
		{CellRef: "B3", After: 11.0, Kind: ChangeKindValue}, // missing type defaults to cell update
		{CellRef: "C", ChangeType: ChangeTypeColumnDelete},
	}
	result := ApplyChanges(s, changes, ev)
	if !reflect.DeepEqual(s, pristine) {
		t.Error("input snapshot was modified")
	}

	out := result.Data
	if got := out.ValueAt(0, 0); got != "ALICE" {
		t.Errorf("A2 = %v", got)
	}
	if got := out.ValueAt(1, 1); got != 11.0 {
		t.Errorf("B3 = %v", got)
	}
	if !reflect.DeepEqual(out.Headers, []string{"Name", "Amount"}) {
		t.Errorf("headers = %v", out.Headers)
	}
	if result.Description != "Updated 2 cell(s); Deleted column(s): C" {
		t.Errorf("description = %q", result.Description)
	}
	if len(out.PendingChanges) != 0 {
		t.Errorf("pending changes not cleared: %v", out.PendingChanges)
	}
}

func TestApplyChangesEvaluatesFormulaKind(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	changes := []DataChange{
		{CellRef: "B5", After: "=SUM(B2:B4)", Kind: ChangeKindFormula},
	}
	out := ApplyChanges(s, changes, ev).Data
	if got := out.Formulas["B5"]; got != "=SUM(B2:B4)" {
		t.Errorf("formula not stored: %v", out.Formulas)
	}
	if got := out.ValueAt(1, 3); got != 60.0 {
		t.Errorf("cached value = %v, want 60", got)
	}
}

func TestApplyChangesUnknownTypeDegradesWithWarning(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	changes := []DataChange{
		{CellRef: "A2", After: "x", Kind: ChangeKindValue, ChangeType: "TELEPORT"},
	}
	result := ApplyChanges(s, changes, ev)
	if got := result.Data.ValueAt(0, 0); got != "x" {
		t.Errorf("fallback did not apply the cell update: %v", got)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "TELEPORT") {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestApplyActionInsertFormula(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	result := ApplyAction(s, &Action{
		Type:    ActionInsertFormula,
		Formula: "=AVERAGE(B2:B4)",
		Target:  &CellTarget{Type: "cell", Ref: "B5"},
	}, ev)

	if got := result.Data.Formulas["B5"]; got != "=AVERAGE(B2:B4)" {
		t.Errorf("formula not stored: %v", result.Data.Formulas)
	}
	if got := result.Data.ValueAt(1, 3); got != 20.0 {
		t.Errorf("cached value = %v, want 20", got)
	}
	if !strings.Contains(result.Description, "B5") {
		t.Errorf("description = %q", result.Description)
	}
}

func TestApplyActionEditCellAndRange(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	edited := ApplyAction(s, &Action{
		Type:   ActionEditCell,
		Value:  "eve",
		Target: &CellTarget{Type: "cell", Ref: "A2"},
	}, ev)
	if got := edited.Data.ValueAt(0, 0); got != "eve" {
		t.Errorf("A2 = %v", got)
	}

	ranged := ApplyAction(s, &Action{
		Type:   ActionEditRange,
		Value:  0.0,
		Target: &CellTarget{Type: "range", Ref: "B2:B4"},
	}, ev)
	for r := 0; r < 3; r++ {
		if got := ranged.Data.ValueAt(1, r); got != 0.0 {
			t.Errorf("row %d = %v", r, got)
		}
	}
	if ranged.Description != "Updated 3 cell(s)" {
		t.Errorf("description = %q", ranged.Description)
	}
}

func TestApplyActionSortByHeaderName(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	result := ApplyAction(s, &Action{
		Type:          ActionSortData,
		SortColumn:    "Amount",
		SortDirection: "asc",
	}, ev)
	gotOrder := []any{
		result.Data.ValueAt(0, 0),
		result.Data.ValueAt(0, 1),
		result.Data.ValueAt(0, 2),
	}
	if !reflect.DeepEqual(gotOrder, []any{"bob", "carol", "alice"}) {
		t.Errorf("order after sort = %v", gotOrder)
	}
	if !strings.Contains(result.Description, "column B") {
		t.Errorf("description = %q", result.Description)
	}
}

func TestApplyActionFilterKeepsMatching(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	result := ApplyAction(s, &Action{
		Type:           ActionFilterData,
		FilterOperator: ">",
		FilterValue:    25.0,
		Target:         &CellTarget{Type: "column", Ref: "Amount"},
	}, ev)

	if len(result.Data.Rows) != 1 {
		t.Fatalf("rows after filter: %v", result.Data.Rows)
	}
	if got := result.Data.ValueAt(0, 0); got != "alice" {
		t.Errorf("surviving row = %v", result.Data.Rows[0])
	}
	if result.Description != "Filtered out 2 row(s)" {
		t.Errorf("description = %q", result.Description)
	}
}

func TestApplyActionColumnOperations(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	added := ApplyAction(s, &Action{Type: ActionAddColumn, ColumnName: "Total"}, ev)
	if !reflect.DeepEqual(added.Data.Headers, []string{"Name", "Amount", "City", "Total"}) {
		t.Errorf("headers after add = %v", added.Data.Headers)
	}

	renamed := ApplyAction(s, &Action{
		Type:          ActionRenameColumn,
		NewColumnName: "Sum",
		Target:        &CellTarget{Type: "column", Ref: "B"},
	}, ev)
	if renamed.Data.Headers[1] != "Sum" {
		t.Errorf("headers after rename = %v", renamed.Data.Headers)
	}

	deleted := ApplyAction(s, &Action{
		Type:   ActionDeleteColumn,
		Target: &CellTarget{Type: "column", Ref: "City"},
	}, ev)
	if !reflect.DeepEqual(deleted.Data.Headers, []string{"Name", "Amount"}) {
		t.Errorf("headers after delete = %v", deleted.Data.Headers)
	}
	if deleted.Description != "Deleted column(s): C" {
		t.Errorf("description = %q", deleted.Description)
	}
}

func TestApplyActionConditionalFormat(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	result := ApplyAction(s, &Action{
		Type:            ActionConditionalFormat,
		Target:          &CellTarget{Type: "column", Ref: "B"},
		ConditionType:   "greater_than",
		ConditionValues: []any{15.0},
		FormatStyle:     &CellStyle{Background: "#fde047"},
	}, ev)

	styles := result.Data.CellStyles
	if len(styles) != 2 {
		t.Fatalf("styles = %v", styles)
	}
	// alice (30, row B2) and carol (20, row B4) exceed 15.
	for _, key := range []string{"B2", "B4"} {
		if styles[key].Background != "#fde047" {
			t.Errorf("cell %s not styled: %v", key, styles)
		}
	}
	if _, ok := styles["B3"]; ok {
		t.Errorf("bob's cell should not be styled: %v", styles)
	}
}

func TestApplyActionTrimWhitespace(t *testing.T) {
	s := NewSnapshot([]string{"Name"})
	s.Rows = [][]any{{"  alice "}, {"bob"}, {3.0}}
	ev := NewEvaluator()

	result := ApplyAction(s, &Action{
		Type:   ActionTrimWhitespace,
		Target: &CellTarget{Type: "column", Ref: "A"},
	}, ev)
	if got := result.Data.ValueAt(0, 0); got != "alice" {
		t.Errorf("trimmed value = %#v", got)
	}
	if got := result.Data.ValueAt(0, 2); got != 3.0 {
		t.Errorf("numeric cell changed: %#v", got)
	}
	if result.Description != "Trimmed whitespace in 1 cell(s)" {
		t.Errorf("description = %q", result.Description)
	}
}

func TestApplyActionUnsupportedKindWarns(t *testing.T) {
	s := ordersSnapshot()
	ev := NewEvaluator()

	result := ApplyAction(s, &Action{Type: ActionCreateChart}, ev)
	if result.Data != s {
		t.Error("unsupported action should leave the snapshot untouched")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning for an engine-unsupported action")
	}
}

func TestApplyActionRemoveDuplicatesAndFillDown(t *testing.T) {
	s := NewSnapshot([]string{"K", "V"})
	s.Rows = [][]any{
		{"a", 1.0},
		{"a", 1.0},
		{nil, 2.0},
	}
	ev := NewEvaluator()

	deduped := ApplyAction(s, &Action{Type: ActionRemoveDuplicates}, ev)
	if len(deduped.Data.Rows) != 2 {
		t.Fatalf("rows after dedupe: %v", deduped.Data.Rows)
	}
	if deduped.Description != "Removed 1 duplicate row(s)" {
		t.Errorf("description = %q", deduped.Description)
	}

	filled := ApplyAction(deduped.Data, &Action{
		Type:   ActionFillDown,
		Target: &CellTarget{Type: "column", Ref: "K"},
	}, ev)
	if got := filled.Data.ValueAt(0, 1); got != "a" {
		t.Errorf("fill down gave %v", got)
	}
}
