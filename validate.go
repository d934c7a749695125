package main

import "fmt"

// ValidationResult reports the structural health of an action. Errors block
// execution; warnings never do. Validation is pure data in, data out — it
// must not panic for any input shape, because the action originates from an
// untrusted upstream response.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (vr *ValidationResult) addError(format string, args ...any) {
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

func (vr *ValidationResult) addWarning(format string, args ...any) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// ValidateAction checks an externally supplied action against the schema for
// its kind. The action is normalized first, so both the legacy top-level
// layout and the nested params layout are accepted.
func ValidateAction(action *Action) ValidationResult {
	vr := ValidationResult{Errors: []string{}, Warnings: []string{}}
	if action == nil {
		vr.addError("action must be an object")
		return vr
	}
	a := NormalizeAction(action)
	if a.Type == "" {
		vr.addError("action is missing a type")
		return vr
	}
	if !knownActionTypes[a.Type] {
		vr.addError("unknown action type %q", a.Type)
		return vr
	}

	switch a.Type {
	case ActionInsertFormula:
		if a.Formula == "" {
			vr.addError("%s requires a non-empty formula", a.Type)
		}
		validateTarget(&vr, a.Target, true, "cell")

	case ActionEditCell:
		validateTarget(&vr, a.Target, true, "cell")
		if a.Value == nil && a.Formula == "" {
			vr.addError("%s requires a value or a formula", a.Type)
		}

	case ActionEditRange:
		validateTarget(&vr, a.Target, true, "range")
		if a.Value == nil {
			vr.addError("%s requires a value", a.Type)
		}

	case ActionAddColumn:
		if a.ColumnName == "" {
			vr.addError("%s requires columnName", a.Type)
		}

	case ActionRenameColumn:
		validateTarget(&vr, a.Target, true, "column")
		if a.NewColumnName == "" && a.ColumnName == "" {
			vr.addError("%s requires newColumnName", a.Type)
		}

	case ActionDeleteColumn, ActionFillDown, ActionTrimWhitespace, ActionSplitColumn:
		validateTarget(&vr, a.Target, true, "column")

	case ActionDeleteRows:
		if len(a.RowIndices) == 0 && a.Target == nil {
			vr.addError("%s requires rowIndices or a row target", a.Type)
		}

	case ActionSortData:
		if a.SortColumn == "" {
			vr.addError("%s requires sortColumn", a.Type)
		}
		if a.SortDirection == "" {
			vr.addError("%s requires sortDirection", a.Type)
		} else if a.SortDirection != "asc" && a.SortDirection != "desc" {
			vr.addError("%s sortDirection must be \"asc\" or \"desc\"", a.Type)
		}

	case ActionFilterData:
		if a.FilterOperator == "" {
			vr.addError("%s requires filterOperator", a.Type)
		} else if !filterOperators[a.FilterOperator] {
			vr.addError("%s has invalid filterOperator %q", a.Type, a.FilterOperator)
		} else if a.FilterOperator != "empty" && a.FilterOperator != "not_empty" && a.FilterValue == nil {
			vr.addError("%s requires filterValue for operator %q", a.Type, a.FilterOperator)
		}
		if a.Target == nil {
			vr.addError("%s requires a target", a.Type)
		} else if a.Target.Type != "column" && a.Target.Type != "range" {
			vr.addError("%s target must be a column or range", a.Type)
		} else if a.Target.Ref == "" {
			vr.addError("%s target is missing a ref", a.Type)
		}

	case ActionFindReplace:
		if a.Find == "" {
			vr.addError("%s requires find text", a.Type)
		}

	case ActionConditionalFormat:
		validateConditionalFormat(&vr, a)

	case ActionFormatCells:
		validateTarget(&vr, a.Target, true, "")
		if a.FormatStyle == nil {
			vr.addError("%s requires formatStyle", a.Type)
		} else if a.FormatStyle.isZero() {
			vr.addWarning("%s formatStyle sets no visual properties", a.Type)
		}

	case ActionClearFormatting, ActionClearRange, ActionCopyRange, ActionMoveRange:
		validateTarget(&vr, a.Target, true, "")

	case ActionMergeColumns:
		if a.Target == nil {
			vr.addError("%s requires a target", a.Type)
		}

	case ActionCreateChart, ActionCreatePivot, ActionApplyTemplate:
		// Presentation-layer actions; the engine only checks they are
		// well-formed enough to pass along.
		if a.Target != nil {
			validateTarget(&vr, a.Target, false, "")
		}

	case ActionAddRow, ActionRemoveEmptyRows, ActionRemoveDuplicates,
		ActionTransposeData, ActionFreezeRows, ActionUndo, ActionRedo:
		// No required fields beyond the type.
	}

	if a.Status != "" && a.Status != ActionStatusPending &&
		a.Status != ActionStatusApplied && a.Status != ActionStatusRejected {
		vr.addWarning("unrecognized status %q", a.Status)
	}

	vr.IsValid = len(vr.Errors) == 0
	return vr
}

// validateTarget checks a CellTarget's shape and, when wantType is set, its
// kind. required=false only reports problems with a present target.
func validateTarget(vr *ValidationResult, t *CellTarget, required bool, wantType string) {
	if t == nil {
		if required {
			vr.addError("action requires a target")
		}
		return
	}
	switch t.Type {
	case "cell", "range", "column", "row":
	default:
		vr.addError("target type %q is not one of cell, range, column, row", t.Type)
		return
	}
	if wantType != "" && t.Type != wantType {
		vr.addError("target must be a %s, got %q", wantType, t.Type)
		return
	}
	if t.Ref == "" {
		vr.addError("target is missing a ref")
		return
	}
	switch t.Type {
	case "cell":
		if parseCellRef(t.Ref) == nil {
			vr.addError("target ref %q is not a valid cell reference", t.Ref)
		}
	case "range":
		if _, _, ok := parseRangeRef(t.Ref); !ok {
			vr.addError("target ref %q is not a valid range reference", t.Ref)
		}
	case "column":
		if !isColumnLetters(t.Ref) {
			vr.addError("target ref %q is not a valid column reference", t.Ref)
		}
	}
}

// validateConditionalFormat accepts either the legacy triple
// (target, conditionType, formatStyle) or the newer rules list shape.
func validateConditionalFormat(vr *ValidationResult, a *Action) {
	if len(a.Rules) > 0 {
		if a.Target == nil {
			vr.addError("%s with rules requires params.target", a.Type)
		} else {
			validateTarget(vr, a.Target, true, "")
		}
		for i, rule := range a.Rules {
			if rule.ConditionType == "" {
				vr.addError("%s rule %d is missing conditionType", a.Type, i+1)
			}
			if rule.ConditionType == "between" && len(rule.ConditionValues) != 2 {
				vr.addError("%s rule %d: between requires exactly two conditionValues", a.Type, i+1)
			}
			if rule.Style == nil {
				vr.addError("%s rule %d is missing a style", a.Type, i+1)
			} else if rule.Style.isZero() {
				vr.addWarning("%s rule %d style sets no visual properties", a.Type, i+1)
			}
		}
		return
	}

	validateTarget(vr, a.Target, true, "")
	if a.ConditionType == "" {
		vr.addError("%s requires conditionType", a.Type)
	}
	if a.ConditionType == "between" && len(a.ConditionValues) != 2 {
		vr.addError("%s with between requires exactly two conditionValues", a.Type)
	}
	if a.FormatStyle == nil {
		vr.addError("%s requires formatStyle", a.Type)
	} else if a.FormatStyle.isZero() {
		vr.addWarning("%s formatStyle sets no visual properties", a.Type)
	}
}
