package main

import (
	"encoding/json"
	"strings"
)

// Action statuses.
const (
	ActionStatusPending  = "pending"
	ActionStatusApplied  = "applied"
	ActionStatusRejected = "rejected"
)

// The closed set of action kinds the assistant may emit. Kinds the
// applicator does not implement still validate so the caller can surface a
// clear "not supported" instead of a schema error.
const (
	ActionInsertFormula     = "INSERT_FORMULA"
	ActionEditCell          = "EDIT_CELL"
	ActionEditRange         = "EDIT_RANGE"
	ActionAddColumn         = "ADD_COLUMN"
	ActionDeleteColumn      = "DELETE_COLUMN"
	ActionRenameColumn      = "RENAME_COLUMN"
	ActionAddRow            = "ADD_ROW"
	ActionDeleteRows        = "DELETE_ROWS"
	ActionRemoveEmptyRows   = "REMOVE_EMPTY_ROWS"
	ActionSortData          = "SORT_DATA"
	ActionFilterData        = "FILTER_DATA"
	ActionFindReplace       = "FIND_REPLACE"
	ActionRemoveDuplicates  = "REMOVE_DUPLICATES"
	ActionFillDown          = "FILL_DOWN"
	ActionConditionalFormat = "CONDITIONAL_FORMAT"
	ActionFormatCells       = "FORMAT_CELLS"
	ActionClearFormatting   = "CLEAR_FORMATTING"
	ActionClearRange        = "CLEAR_RANGE"
	ActionCopyRange         = "COPY_RANGE"
	ActionMoveRange         = "MOVE_RANGE"
	ActionTrimWhitespace    = "TRIM_WHITESPACE"
	ActionSplitColumn       = "SPLIT_COLUMN"
	ActionMergeColumns      = "MERGE_COLUMNS"
	ActionTransposeData     = "TRANSPOSE_DATA"
	ActionCreateChart       = "CREATE_CHART"
	ActionCreatePivot       = "CREATE_PIVOT"
	ActionApplyTemplate     = "APPLY_TEMPLATE"
	ActionFreezeRows        = "FREEZE_ROWS"
	ActionUndo              = "UNDO"
	ActionRedo              = "REDO"
)

var knownActionTypes = map[string]bool{
	ActionInsertFormula: true, ActionEditCell: true, ActionEditRange: true,
	ActionAddColumn: true, ActionDeleteColumn: true, ActionRenameColumn: true,
	ActionAddRow: true, ActionDeleteRows: true, ActionRemoveEmptyRows: true,
	ActionSortData: true, ActionFilterData: true, ActionFindReplace: true,
	ActionRemoveDuplicates: true, ActionFillDown: true,
	ActionConditionalFormat: true, ActionFormatCells: true,
	ActionClearFormatting: true, ActionClearRange: true,
	ActionCopyRange: true, ActionMoveRange: true, ActionTrimWhitespace: true,
	ActionSplitColumn: true, ActionMergeColumns: true, ActionTransposeData: true,
	ActionCreateChart: true, ActionCreatePivot: true, ActionApplyTemplate: true,
	ActionFreezeRows: true, ActionUndo: true, ActionRedo: true,
}

// CellTarget addresses the region an action operates on.
type CellTarget struct {
	Type string `json:"type"` // "cell" | "range" | "column" | "row"
	Ref  string `json:"ref"`
}

// FormatRule is one conditional-format rule in the newer params shape.
type FormatRule struct {
	ConditionType   string     `json:"conditionType"`
	ConditionValues []any      `json:"conditionValues,omitempty"`
	Style           *CellStyle `json:"style,omitempty"`
}

// Action is one structured edit instruction decoded from the assistant's
// response. Historically some fields arrived at the top level and some
// nested under "params"; NormalizeAction folds both layouts into the
// canonical top-level fields so validation and application see one shape.
type Action struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`

	Target  *CellTarget `json:"target,omitempty"`
	Formula string      `json:"formula,omitempty"`
	Value   any         `json:"value,omitempty"`

	ColumnName    string `json:"columnName,omitempty"`
	NewColumnName string `json:"newColumnName,omitempty"`

	SortColumn    string `json:"sortColumn,omitempty"`
	SortDirection string `json:"sortDirection,omitempty"`

	FilterOperator string `json:"filterOperator,omitempty"`
	FilterValue    any    `json:"filterValue,omitempty"`

	Find    string `json:"find,omitempty"`
	Replace string `json:"replace,omitempty"`

	ConditionType   string       `json:"conditionType,omitempty"`
	ConditionValues []any        `json:"conditionValues,omitempty"`
	FormatStyle     *CellStyle   `json:"formatStyle,omitempty"`
	Rules           []FormatRule `json:"rules,omitempty"`

	RowIndices []int `json:"rowIndices,omitempty"`

	Params map[string]any `json:"params,omitempty"`
}

// NormalizeAction lifts fields from the legacy nested params layout into the
// canonical struct. Top-level fields win when both are present. The input
// is not modified.
func NormalizeAction(a *Action) *Action {
	if a == nil {
		return nil
	}
	out := *a
	out.Type = strings.ToUpper(strings.TrimSpace(out.Type))
	if len(a.Params) == 0 {
		return &out
	}

	paramString := func(key string) string {
		if v, ok := a.Params[key]; ok {
			if str, ok := v.(string); ok {
				return str
			}
		}
		return ""
	}
	if out.Formula == "" {
		out.Formula = paramString("formula")
	}
	if out.ColumnName == "" {
		out.ColumnName = paramString("columnName")
	}
	if out.NewColumnName == "" {
		out.NewColumnName = paramString("newColumnName")
	}
	if out.SortColumn == "" {
		out.SortColumn = paramString("sortColumn")
	}
	if out.SortDirection == "" {
		out.SortDirection = paramString("sortDirection")
	}
	if out.FilterOperator == "" {
		out.FilterOperator = paramString("filterOperator")
	}
	if out.FilterValue == nil {
		out.FilterValue = a.Params["filterValue"]
	}
	if out.Find == "" {
		out.Find = paramString("find")
	}
	if out.Replace == "" {
		out.Replace = paramString("replace")
	}
	if out.ConditionType == "" {
		out.ConditionType = paramString("conditionType")
	}
	if out.Value == nil {
		out.Value = a.Params["value"]
	}
	if out.Target == nil {
		out.Target = decodeParam[CellTarget](a.Params["target"])
	}
	if out.ConditionValues == nil {
		if vals, ok := a.Params["conditionValues"].([]any); ok {
			out.ConditionValues = vals
		}
	}
	if out.FormatStyle == nil {
		out.FormatStyle = decodeParam[CellStyle](a.Params["formatStyle"])
	}
	if out.Rules == nil {
		if raw, ok := a.Params["rules"].([]any); ok {
			for _, entry := range raw {
				if rule := decodeParam[FormatRule](entry); rule != nil {
					out.Rules = append(out.Rules, *rule)
				}
			}
		}
	}
	return &out
}

// decodeParam re-marshals a loosely typed params entry into a concrete
// struct; returns nil when the shape does not fit.
func decodeParam[T any](raw any) *T {
	if raw == nil {
		return nil
	}
	if typed, ok := raw.(T); ok {
		return &typed
	}
	if typed, ok := raw.(*T); ok {
		return typed
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var out T
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil
	}
	return &out
}
