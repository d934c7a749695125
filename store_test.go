package main

import (
	"testing"
)

func testSheet() *Sheet {
	return &Sheet{
		ID:       "t1",
		Name:     "test",
		Owner:    "alice",
		Data:     ordersSnapshot(),
		AuditLog: []AuditEntry{},
	}
}

func TestSheetApplyActionRecordsAudit(t *testing.T) {
	sheet := testSheet()
	ev := NewEvaluator()

	result, rejection := sheet.ApplyAction(&Action{
		Type:   ActionEditCell,
		Value:  "eve",
		Target: &CellTarget{Type: "cell", Ref: "A2"},
	}, "alice", ev)
	if rejection != nil {
		t.Fatalf("action rejected: %v", rejection.Errors)
	}
	if got := sheet.Data.ValueAt(0, 0); got != "eve" {
		t.Errorf("sheet data = %v", got)
	}
	if result.Description == "" {
		t.Error("expected a description")
	}

	last := sheet.AuditLog[len(sheet.AuditLog)-1]
	if last.User != "alice" || last.Action != ActionEditCell {
		t.Errorf("audit entry = %+v", last)
	}
}

func TestSheetApplyActionRejectionLeavesDataUntouched(t *testing.T) {
	sheet := testSheet()
	before := sheet.Data
	ev := NewEvaluator()

	_, rejection := sheet.ApplyAction(&Action{Type: "EXPLODE"}, "alice", ev)
	if rejection == nil {
		t.Fatal("unknown action type should be rejected")
	}
	if sheet.Data != before {
		t.Error("rejected action changed the snapshot")
	}
	last := sheet.AuditLog[len(sheet.AuditLog)-1]
	if last.Action != "ACTION_REJECTED" {
		t.Errorf("audit entry = %+v", last)
	}
}

func TestSheetUndoRedo(t *testing.T) {
	sheet := testSheet()
	ev := NewEvaluator()

	original := sheet.Data
	if sheet.Undo("alice") {
		t.Fatal("undo with empty history should report false")
	}

	sheet.ApplyAction(&Action{
		Type:   ActionEditCell,
		Value:  "eve",
		Target: &CellTarget{Type: "cell", Ref: "A2"},
	}, "alice", ev)
	edited := sheet.Data

	sheet.ApplyAction(&Action{Type: ActionRemoveDuplicates}, "alice", ev)

	if !sheet.Undo("alice") {
		t.Fatal("first undo failed")
	}
	if sheet.Data != edited {
		t.Error("undo did not restore the intermediate snapshot")
	}
	if !sheet.Undo("alice") {
		t.Fatal("second undo failed")
	}
	if sheet.Data != original {
		t.Error("undo did not restore the original snapshot")
	}

	if !sheet.Redo("alice") {
		t.Fatal("redo failed")
	}
	if sheet.Data != edited {
		t.Error("redo did not re-apply the edit")
	}
}

func TestSheetUndoStackClearedByNewAction(t *testing.T) {
	sheet := testSheet()
	ev := NewEvaluator()

	sheet.ApplyAction(&Action{
		Type:   ActionEditCell,
		Value:  "x",
		Target: &CellTarget{Type: "cell", Ref: "A2"},
	}, "alice", ev)
	sheet.Undo("alice")

	// A fresh edit forks the timeline: redo history is gone.
	sheet.ApplyAction(&Action{
		Type:   ActionEditCell,
		Value:  "y",
		Target: &CellTarget{Type: "cell", Ref: "A2"},
	}, "alice", ev)
	if sheet.Redo("alice") {
		t.Error("redo should be unavailable after a new action")
	}
}

func TestSheetNoopActionSkipsHistory(t *testing.T) {
	sheet := testSheet()
	ev := NewEvaluator()

	// Deleting a column that does not resolve leaves the snapshot pointer
	// unchanged, so no undo step is recorded.
	sheet.ApplyAction(&Action{
		Type:   ActionDeleteColumn,
		Target: &CellTarget{Type: "column", Ref: "ZZ"},
	}, "alice", ev)
	if sheet.Undo("alice") {
		t.Error("no-op action should not create an undo step")
	}
}
