package main

import (
	"strings"
	"testing"
)

func TestValidateActionRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		action  *Action
		wantErr string
	}{
		{
			name:    "nil action",
			action:  nil,
			wantErr: "must be an object",
		},
		{
			name:    "missing type",
			action:  &Action{},
			wantErr: "missing a type",
		},
		{
			name:    "unknown type",
			action:  &Action{Type: "EXPLODE"},
			wantErr: "unknown action type",
		},
		{
			name:    "formula without target",
			action:  &Action{Type: ActionInsertFormula, Formula: "=SUM(A2:A4)"},
			wantErr: "requires a target",
		},
		{
			name: "formula with empty body",
			action: &Action{
				Type:   ActionInsertFormula,
				Target: &CellTarget{Type: "cell", Ref: "B2"},
			},
			wantErr: "non-empty formula",
		},
		{
			name: "edit cell with bad ref",
			action: &Action{
				Type:   ActionEditCell,
				Value:  "x",
				Target: &CellTarget{Type: "cell", Ref: "not-a-ref"},
			},
			wantErr: "not a valid cell reference",
		},
		{
			name: "edit cell with neither value nor formula",
			action: &Action{
				Type:   ActionEditCell,
				Target: &CellTarget{Type: "cell", Ref: "B2"},
			},
			wantErr: "requires a value or a formula",
		},
		{
			name:    "sort missing direction",
			action:  &Action{Type: ActionSortData, SortColumn: "Amount"},
			wantErr: "sortDirection",
		},
		{
			name: "sort with bad direction",
			action: &Action{
				Type:          ActionSortData,
				SortColumn:    "Amount",
				SortDirection: "sideways",
			},
			wantErr: `must be "asc" or "desc"`,
		},
		{
			name: "filter with unknown operator",
			action: &Action{
				Type:           ActionFilterData,
				FilterOperator: "almost",
				FilterValue:    1.0,
				Target:         &CellTarget{Type: "column", Ref: "B"},
			},
			wantErr: "invalid filterOperator",
		},
		{
			name: "filter missing value",
			action: &Action{
				Type:           ActionFilterData,
				FilterOperator: ">",
				Target:         &CellTarget{Type: "column", Ref: "B"},
			},
			wantErr: "requires filterValue",
		},
		{
			name: "filter with cell target",
			action: &Action{
				Type:           ActionFilterData,
				FilterOperator: "empty",
				Target:         &CellTarget{Type: "cell", Ref: "B2"},
			},
			wantErr: "must be a column or range",
		},
		{
			name:    "find replace without needle",
			action:  &Action{Type: ActionFindReplace, Replace: "x"},
			wantErr: "requires find text",
		},
		{
			name: "between with one bound",
			action: &Action{
				Type:            ActionConditionalFormat,
				Target:          &CellTarget{Type: "column", Ref: "B"},
				ConditionType:   "between",
				ConditionValues: []any{10.0},
				FormatStyle:     &CellStyle{Background: "#ff0000"},
			},
			wantErr: "exactly two conditionValues",
		},
		{
			name: "format cells without style",
			action: &Action{
				Type:   ActionFormatCells,
				Target: &CellTarget{Type: "range", Ref: "A2:B4"},
			},
			wantErr: "requires formatStyle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vr := ValidateAction(tt.action)
			if vr.IsValid {
				t.Fatalf("action %+v should be invalid", tt.action)
			}
			if !containsSubstring(vr.Errors, tt.wantErr) {
				t.Errorf("errors %v do not mention %q", vr.Errors, tt.wantErr)
			}
		})
	}
}

func TestValidateActionAccepts(t *testing.T) {
	actions := []*Action{
		{
			Type:    ActionInsertFormula,
			Formula: "=SUM(B2:B10)",
			Target:  &CellTarget{Type: "cell", Ref: "B11"},
		},
		{
			Type:   ActionEditCell,
			Value:  42.0,
			Target: &CellTarget{Type: "cell", Ref: "C3"},
		},
		{Type: ActionAddColumn, ColumnName: "Total"},
		{Type: "sort_data", SortColumn: "B", SortDirection: "desc"}, // case-folded
		{
			Type:           ActionFilterData,
			FilterOperator: ">",
			FilterValue:    25.0,
			Target:         &CellTarget{Type: "column", Ref: "B"},
		},
		{
			Type:           ActionFilterData,
			FilterOperator: "not_empty",
			Target:         &CellTarget{Type: "range", Ref: "A2:A20"},
		},
		{Type: ActionFindReplace, Find: "old", Replace: "new"},
		{Type: ActionRemoveEmptyRows},
		{Type: ActionRemoveDuplicates},
		{Type: ActionUndo},
		{
			Type:   ActionConditionalFormat,
			Target: &CellTarget{Type: "column", Ref: "B"},
			Rules: []FormatRule{{
				ConditionType:   "between",
				ConditionValues: []any{10.0, 20.0},
				Style:           &CellStyle{Bold: true},
			}},
		},
	}
	for _, a := range actions {
		t.Run(a.Type, func(t *testing.T) {
			vr := ValidateAction(a)
			if !vr.IsValid {
				t.Errorf("action %+v rejected: %v", a, vr.Errors)
			}
		})
	}
}

func TestValidateActionNormalizesParams(t *testing.T) {
	a := &Action{
		Type: ActionSortData,
		Params: map[string]any{
			"sortColumn":    "Amount",
			"sortDirection": "asc",
		},
	}
	vr := ValidateAction(a)
	if !vr.IsValid {
		t.Errorf("nested params layout rejected: %v", vr.Errors)
	}

	// Target under params as a plain map, the way decoded JSON delivers it.
	b := &Action{
		Type: ActionFilterData,
		Params: map[string]any{
			"filterOperator": "empty",
			"target":         map[string]any{"type": "column", "ref": "C"},
		},
	}
	vr = ValidateAction(b)
	if !vr.IsValid {
		t.Errorf("params target rejected: %v", vr.Errors)
	}
}

func TestValidateActionWarningsDoNotBlock(t *testing.T) {
	a := &Action{
		Type:        ActionFormatCells,
		Target:      &CellTarget{Type: "range", Ref: "A2:B4"},
		FormatStyle: &CellStyle{},
	}
	vr := ValidateAction(a)
	if !vr.IsValid {
		t.Fatalf("empty style should only warn, got errors %v", vr.Errors)
	}
	if len(vr.Warnings) == 0 {
		t.Error("expected a warning for a style with no properties")
	}
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
