package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const workbookSheetName = "Sheet1"

// ExportWorkbook renders a sheet into an XLSX workbook: headers on row 1,
// data rows below, lining up with the cell references the engine uses.
// Formula cells are written as formulas so the workbook stays live.
func ExportWorkbook(sheet *Sheet, ev *Evaluator) (*excelize.File, error) {
	sheet.mu.RLock()
	snap := sheet.Data
	sheet.mu.RUnlock()

	f := excelize.NewFile()
	for c, header := range snap.Headers {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return nil, fmt.Errorf("excel: header cell %d: %w", c, err)
		}
		if err := f.SetCellValue(workbookSheetName, cell, header); err != nil {
			return nil, fmt.Errorf("excel: write header %s: %w", cell, err)
		}
	}

	for r, row := range snap.Rows {
		for c := range snap.Headers {
			cell, err := excelize.CoordinatesToCellName(c+1, r+headerRowOffset)
			if err != nil {
				return nil, fmt.Errorf("excel: data cell %d,%d: %w", c, r, err)
			}
			if formula, ok := snap.Formulas[cell]; ok {
				if err := f.SetCellFormula(workbookSheetName, cell, strings.TrimPrefix(formula, "=")); err != nil {
					return nil, fmt.Errorf("excel: write formula %s: %w", cell, err)
				}
				continue
			}
			if c >= len(row) || row[c] == nil {
				continue
			}
			if err := f.SetCellValue(workbookSheetName, cell, row[c]); err != nil {
				return nil, fmt.Errorf("excel: write cell %s: %w", cell, err)
			}
		}
	}
	return f, nil
}

// ImportWorkbook reads the first worksheet of an XLSX stream into a
// snapshot. Row 1 becomes the headers; numeric-looking cells become
// float64 values, everything else stays text.
func ImportWorkbook(r io.Reader) (*Snapshot, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("excel: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("excel: read rows: %w", err)
	}
	if len(rows) == 0 {
		return NewSnapshot(nil), nil
	}

	snap := NewSnapshot(rows[0])
	for _, row := range rows[1:] {
		converted := make([]any, len(snap.Headers))
		for c := range snap.Headers {
			if c >= len(row) || row[c] == "" {
				continue
			}
			converted[c] = importCellValue(row[c])
		}
		snap.Rows = append(snap.Rows, converted)
	}
	snap.normalizeRows()
	return snap, nil
}

func importCellValue(raw string) any {
	if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return n
	}
	return raw
}
