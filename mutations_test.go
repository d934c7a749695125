package main

import (
	"reflect"
	"testing"

	"github.com/mohae/deepcopy"
)

// orders: the snapshot most mutation tests start from.
//
//	A (Name)  B (Amount)  C (City)
//	alice     30          Oslo
//	bob       10          Lima
//	carol     20          Oslo
func ordersSnapshot() *Snapshot {
	s := NewSnapshot([]string{"Name", "Amount", "City"})
	s.Rows = [][]any{
		{"alice", 30.0, "Oslo"},
		{"bob", 10.0, "Lima"},
		{"carol", 20.0, "Oslo"},
	}
	return s
}

// assertUnchanged fails if the mutation touched the input snapshot.
func assertUnchanged(t *testing.T, before *Snapshot, pristine any) {
	t.Helper()
	if !reflect.DeepEqual(before, pristine) {
		t.Errorf("input snapshot was modified:\n got  %#v\n want %#v", before, pristine)
	}
}

func TestSetCellValue(t *testing.T) {
	s := ordersSnapshot()
	pristine := deepcopy.Copy(s)

	result := s.SetCellValue(1, 1, 99.0)
	assertUnchanged(t, s, pristine)

	if got := result.Data.ValueAt(1, 1); got != 99.0 {
		t.Errorf("ValueAt(1,1) = %v, want 99", got)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(result.Changes))
	}
	change := result.Changes[0]
	if change.CellRef != "B3" || change.Before != 10.0 || change.After != 99.0 {
		t.Errorf("unexpected change record %+v", change)
	}
}

func TestSetCellValueGrowsRows(t *testing.T) {
	s := ordersSnapshot()
	result := s.SetCellValue(5, 0, "dave")

	if len(result.Data.Rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(result.Data.Rows))
	}
	if got := result.Data.ValueAt(0, 5); got != "dave" {
		t.Errorf("ValueAt(0,5) = %v", got)
	}
	for _, row := range result.Data.Rows {
		if len(row) != len(result.Data.Headers) {
			t.Errorf("row %v not padded to header width", row)
		}
	}
}

func TestSetCellValueOutOfBoundsIsNoop(t *testing.T) {
	s := ordersSnapshot()
	for _, result := range []MutationResult{
		s.SetCellValue(-1, 0, "x"),
		s.SetCellValue(0, -1, "x"),
		s.SetCellValue(0, 99, "x"),
	} {
		if result.Data != s || len(result.Changes) != 0 {
			t.Errorf("out-of-bounds write should be a no-op, got %+v", result)
		}
	}
}

func TestSetCellFormulaStoresWithoutEvaluating(t *testing.T) {
	s := ordersSnapshot()
	result := s.SetCellFormula(0, 1, "=SUM(B2:B4)")

	if got := result.Data.Formulas["B2"]; got != "=SUM(B2:B4)" {
		t.Errorf("formula not stored: %q", got)
	}
	// The raw cell value is untouched; evaluation happens on render.
	if got := result.Data.ValueAt(1, 0); got != 30.0 {
		t.Errorf("raw value changed to %v", got)
	}
	rendered := result.Data.Rendered(NewEvaluator())
	if got := rendered.ValueAt(1, 0); got != 60.0 {
		t.Errorf("rendered value = %v, want 60", got)
	}
}

func TestAddAndRenameColumn(t *testing.T) {
	s := ordersSnapshot()
	added := s.AddColumn("Score").Data
	if len(added.Headers) != 4 || added.Headers[3] != "Score" {
		t.Fatalf("headers after add: %v", added.Headers)
	}
	for _, row := range added.Rows {
		if len(row) != 4 {
			t.Errorf("row %v not widened", row)
		}
	}

	renamed := added.RenameColumn(3, "Points")
	if renamed.Data.Headers[3] != "Points" {
		t.Errorf("headers after rename: %v", renamed.Data.Headers)
	}
	if len(renamed.Changes) != 1 || renamed.Changes[0].CellRef != "D" ||
		renamed.Changes[0].ChangeType != ChangeTypeColumnRename {
		t.Errorf("unexpected rename change %+v", renamed.Changes)
	}

	// Renaming to the same name is a no-op.
	if again := renamed.Data.RenameColumn(3, "Points"); again.Data != renamed.Data {
		t.Error("no-op rename should return the input snapshot")
	}
}

func TestDeleteColumnsShiftsKeys(t *testing.T) {
	s := ordersSnapshot()
	s.Formulas["C2"] = "=B2*2"
	s.Formulas["B3"] = "=1+1"
	pristine := deepcopy.Copy(s)

	result := s.DeleteColumns([]int{1})
	assertUnchanged(t, s, pristine)

	out := result.Data
	if !reflect.DeepEqual(out.Headers, []string{"Name", "City"}) {
		t.Fatalf("headers = %v", out.Headers)
	}
	if got := out.ValueAt(1, 0); got != "Oslo" {
		t.Errorf("City shifted wrong: %v", got)
	}
	// The formula on column C follows its cell to column B; the formula on
	// the deleted column is gone.
	if got := out.Formulas["B2"]; got != "=B2*2" {
		t.Errorf("formula did not shift: %v", out.Formulas)
	}
	if _, ok := out.Formulas["B3"]; ok {
		t.Errorf("formula on deleted column survived: %v", out.Formulas)
	}
	// One change per non-empty deleted cell.
	if len(result.Changes) != 3 {
		t.Errorf("expected 3 changes, got %+v", result.Changes)
	}
}

func TestDeleteRows(t *testing.T) {
	s := ordersSnapshot()
	result := s.DeleteRows([]int{0, 2, 99, -1})

	if len(result.Data.Rows) != 1 {
		t.Fatalf("rows after delete: %v", result.Data.Rows)
	}
	if got := result.Data.ValueAt(0, 0); got != "bob" {
		t.Errorf("surviving row = %v", result.Data.Rows[0])
	}
	if result.RemovedCount != 2 {
		t.Errorf("RemovedCount = %d, want 2", result.RemovedCount)
	}
	for _, change := range result.Changes {
		if change.ChangeType != ChangeTypeRowDelete {
			t.Errorf("change type %q", change.ChangeType)
		}
	}
}

func TestRemoveEmptyRowsReportsDisplayRows(t *testing.T) {
	s := NewSnapshot([]string{"A", "B"})
	s.Rows = [][]any{
		{"x", 1.0},
		{nil, "  "},
		{"y", 2.0},
		{nil, nil},
	}
	result := s.RemoveEmptyRows()

	if len(result.Data.Rows) != 2 {
		t.Fatalf("rows after remove: %v", result.Data.Rows)
	}
	// Data rows 1 and 3 display as spreadsheet rows 3 and 5.
	if !reflect.DeepEqual(result.RemovedRows, []int{3, 5}) {
		t.Errorf("RemovedRows = %v, want [3 5]", result.RemovedRows)
	}
	if result.RemovedCount != 2 {
		t.Errorf("RemovedCount = %d", result.RemovedCount)
	}
}

func TestFindReplace(t *testing.T) {
	s := NewSnapshot([]string{"Name", "Code"})
	s.Rows = [][]any{
		{"alpha", "alpha-1"},
		{"beta", 12.5},
	}
	pristine := deepcopy.Copy(s)

	// Restricted to column 0: the Code column keeps its text.
	result := s.FindReplace("alpha", "omega", []int{0})
	assertUnchanged(t, s, pristine)
	if got := result.Data.ValueAt(0, 0); got != "omega" {
		t.Errorf("ValueAt(0,0) = %v", got)
	}
	if got := result.Data.ValueAt(1, 0); got != "alpha-1" {
		t.Errorf("restricted replace leaked into column B: %v", got)
	}

	// A numeric cell whose replacement still parses stays numeric.
	numeric := s.FindReplace("12.5", "13", nil)
	if got := numeric.Data.ValueAt(1, 1); got != 13.0 {
		t.Errorf("numeric re-parse gave %#v, want 13.0", got)
	}

	// A numeric cell whose replacement is text becomes a string.
	text := s.FindReplace("12.5", "n/a", nil)
	if got := text.Data.ValueAt(1, 1); got != "n/a" {
		t.Errorf("text replacement gave %#v", got)
	}

	if noop := s.FindReplace("zzz", "x", nil); noop.Data != s {
		t.Error("replace with no matches should return the input snapshot")
	}
}

func TestSortData(t *testing.T) {
	s := ordersSnapshot()
	s.Formulas["B2"] = "=10*3" // follows alice wherever she sorts
	pristine := deepcopy.Copy(s)

	asc := s.SortData(1, "asc")
	assertUnchanged(t, s, pristine)
	gotOrder := []any{asc.Data.ValueAt(0, 0), asc.Data.ValueAt(0, 1), asc.Data.ValueAt(0, 2)}
	if !reflect.DeepEqual(gotOrder, []any{"bob", "carol", "alice"}) {
		t.Errorf("asc order = %v", gotOrder)
	}
	// alice moved from data row 0 to data row 2, so her formula is now B4.
	if got := asc.Data.Formulas["B4"]; got != "=10*3" {
		t.Errorf("formula did not follow its row: %v", asc.Data.Formulas)
	}

	desc := s.SortData(1, "desc")
	gotOrder = []any{desc.Data.ValueAt(0, 0), desc.Data.ValueAt(0, 1), desc.Data.ValueAt(0, 2)}
	if !reflect.DeepEqual(gotOrder, []any{"alice", "carol", "bob"}) {
		t.Errorf("desc order = %v", gotOrder)
	}
}

func TestSortDataIsStable(t *testing.T) {
	s := NewSnapshot([]string{"K", "V"})
	s.Rows = [][]any{
		{"same", "first"},
		{"same", "second"},
		{"same", "third"},
	}
	sorted := s.SortData(0, "asc").Data
	gotOrder := []any{sorted.ValueAt(1, 0), sorted.ValueAt(1, 1), sorted.ValueAt(1, 2)}
	if !reflect.DeepEqual(gotOrder, []any{"first", "second", "third"}) {
		t.Errorf("equal keys reordered: %v", gotOrder)
	}
}

func TestSortDataMixedTypes(t *testing.T) {
	s := NewSnapshot([]string{"V"})
	s.Rows = [][]any{{"banana"}, {2.0}, {nil}, {10.0}, {"apple"}}
	sorted := s.SortData(0, "asc").Data

	var gotOrder []any
	for r := range sorted.Rows {
		gotOrder = append(gotOrder, sorted.ValueAt(0, r))
	}
	// nil lowest, numbers ordered numerically, text after numbers
	// (numeric-vs-text pairs compare as strings).
	if gotOrder[0] != nil {
		t.Errorf("nil should sort first, got %v", gotOrder)
	}
	idx := map[any]int{}
	for i, v := range gotOrder {
		idx[v] = i
	}
	if idx[2.0] > idx[10.0] {
		t.Errorf("numeric order wrong: %v", gotOrder)
	}
	if idx["apple"] > idx["banana"] {
		t.Errorf("text order wrong: %v", gotOrder)
	}
}

func TestRemoveDuplicatesKeepsFirst(t *testing.T) {
	s := NewSnapshot([]string{"A", "B"})
	s.Rows = [][]any{
		{"x", 1.0},
		{"y", 2.0},
		{"x", 1.0},
		{"x", "1"}, // same display text, different type: not a duplicate
	}
	result := s.RemoveDuplicates()

	if len(result.Data.Rows) != 3 {
		t.Fatalf("rows after dedupe: %v", result.Data.Rows)
	}
	if result.RemovedCount != 1 {
		t.Errorf("RemovedCount = %d, want 1", result.RemovedCount)
	}
	if got := result.Data.ValueAt(1, 2); got != "1" {
		t.Errorf("type-distinct row was dropped: %v", result.Data.Rows)
	}
}

func TestFillDownNeverOverwrites(t *testing.T) {
	s := NewSnapshot([]string{"V"})
	s.Rows = [][]any{{"a"}, {nil}, {" "}, {"b"}, {nil}}
	result := s.FillDown(0)

	want := []any{"a", "a", "a", "b", "b"}
	for r, w := range want {
		if got := result.Data.ValueAt(0, r); got != w {
			t.Errorf("row %d = %v, want %v", r, got, w)
		}
	}
	if len(result.Changes) != 3 {
		t.Errorf("expected 3 fills, got %d", len(result.Changes))
	}

	// Leading empties have nothing to carry.
	s2 := NewSnapshot([]string{"V"})
	s2.Rows = [][]any{{nil}, {"x"}}
	if result := s2.FillDown(0); result.Data.ValueAt(0, 0) != nil {
		t.Error("leading empty cell was filled")
	}
}

func TestFilterRows(t *testing.T) {
	s := ordersSnapshot()
	pristine := deepcopy.Copy(s)

	result := s.FilterRows(1, ">", 15.0)
	assertUnchanged(t, s, pristine)
	if len(result.Data.Rows) != 2 {
		t.Fatalf("rows after filter: %v", result.Data.Rows)
	}
	if result.RemovedCount != 1 {
		t.Errorf("RemovedCount = %d", result.RemovedCount)
	}

	contains := s.FilterRows(2, "contains", "Oslo")
	if len(contains.Data.Rows) != 2 {
		t.Errorf("contains filter kept %v", contains.Data.Rows)
	}

	if noop := s.FilterRows(1, "frobnicate", 1.0); noop.Data != s {
		t.Error("unknown operator should be a no-op")
	}
}

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		v        any
		operator string
		operand  any
		want     bool
	}{
		{30.0, ">", 25.0, true},
		{30.0, "<", 25.0, false},
		{"30", ">=", 30.0, true},
		{"abc", "==", "abc", true},
		{"abc", "!=", "abd", true},
		{"hello world", "contains", "world", true},
		{"hello", "not_contains", "world", true},
		{nil, "empty", nil, true},
		{"  ", "empty", nil, true},
		{"x", "not_empty", nil, true},
		{nil, ">", 1.0, false},
	}
	for _, tt := range tests {
		if got := matchesFilter(tt.v, tt.operator, tt.operand); got != tt.want {
			t.Errorf("matchesFilter(%v, %q, %v) = %v, want %v",
				tt.v, tt.operator, tt.operand, got, tt.want)
		}
	}
}
