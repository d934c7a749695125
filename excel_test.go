package main

import (
	"bytes"
	"reflect"
	"testing"
)

func TestWorkbookRoundTrip(t *testing.T) {
	sheet := &Sheet{
		ID:    "x1",
		Name:  "export",
		Owner: "alice",
		Data:  ordersSnapshot(),
	}

	f, err := ExportWorkbook(sheet, NewEvaluator())
	if err != nil {
		t.Fatalf("ExportWorkbook: %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	snap, err := ImportWorkbook(&buf)
	if err != nil {
		t.Fatalf("ImportWorkbook: %v", err)
	}
	if !reflect.DeepEqual(snap.Headers, []string{"Name", "Amount", "City"}) {
		t.Errorf("headers = %v", snap.Headers)
	}
	if len(snap.Rows) != 3 {
		t.Fatalf("rows = %v", snap.Rows)
	}
	if got := snap.ValueAt(0, 0); got != "alice" {
		t.Errorf("A2 = %#v", got)
	}
	// Numeric cells survive as numbers, not text.
	if got := snap.ValueAt(1, 1); got != 10.0 {
		t.Errorf("B3 = %#v", got)
	}
}

func TestImportWorkbookEmpty(t *testing.T) {
	if _, err := ImportWorkbook(bytes.NewReader(nil)); err == nil {
		t.Error("expected an error for a non-XLSX stream")
	}
}
