package main

import "testing"

func TestColumnLetterRoundTrip(t *testing.T) {
	cases := map[string]int{
		"A":   0,
		"B":   1,
		"Z":   25,
		"AA":  26,
		"AZ":  51,
		"BA":  52,
		"ZZ":  701,
		"AAA": 702,
	}
	for letters, want := range cases {
		if got := columnIndex(letters); got != want {
			t.Errorf("columnIndex(%q) = %d, want %d", letters, got, want)
		}
		if got := columnLetter(want); got != letters {
			t.Errorf("columnLetter(%d) = %q, want %q", want, got, letters)
		}
	}
}

func TestColumnIndexCaseInsensitive(t *testing.T) {
	if columnIndex("aa") != columnIndex("AA") {
		t.Errorf("lowercase column letters should parse like uppercase")
	}
}

func TestParseCellRef(t *testing.T) {
	tests := []struct {
		ref     string
		wantCol int
		wantRow int
		wantNil bool
	}{
		{ref: "A2", wantCol: 0, wantRow: 0},
		{ref: "B3", wantCol: 1, wantRow: 1},
		{ref: "AA10", wantCol: 26, wantRow: 8},
		{ref: "b3", wantCol: 1, wantRow: 1},
		{ref: "A1", wantCol: 0, wantRow: -1}, // header row
		{ref: "", wantNil: true},
		{ref: "A", wantNil: true},
		{ref: "12", wantNil: true},
		{ref: "A2B", wantNil: true},
		{ref: "A-2", wantNil: true},
		{ref: "$A$2", wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got := parseCellRef(tt.ref)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("parseCellRef(%q) = %+v, want nil", tt.ref, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("parseCellRef(%q) = nil", tt.ref)
			}
			if got.Col != tt.wantCol || got.Row != tt.wantRow {
				t.Errorf("parseCellRef(%q) = col %d row %d, want col %d row %d",
					tt.ref, got.Col, got.Row, tt.wantCol, tt.wantRow)
			}
		})
	}
}

func TestMakeCellRefRoundTrip(t *testing.T) {
	for col := 0; col < 60; col += 7 {
		for row := 0; row < 40; row += 3 {
			ref := makeCellRef(col, row)
			parsed := parseCellRef(ref)
			if parsed == nil {
				t.Fatalf("makeCellRef(%d,%d) = %q does not parse back", col, row, ref)
			}
			if parsed.Col != col || parsed.Row != row {
				t.Errorf("round trip (%d,%d) via %q gave (%d,%d)", col, row, ref, parsed.Col, parsed.Row)
			}
			if parsed.DisplayRow != row+headerRowOffset {
				t.Errorf("display row for %q = %d, want %d", ref, parsed.DisplayRow, row+headerRowOffset)
			}
		}
	}
}

func TestParseRangeRef(t *testing.T) {
	start, end, ok := parseRangeRef("A2:B5")
	if !ok {
		t.Fatal("A2:B5 should parse as a range")
	}
	if start.Col != 0 || start.Row != 0 || end.Col != 1 || end.Row != 3 {
		t.Errorf("A2:B5 parsed to %+v .. %+v", start, end)
	}

	for _, bad := range []string{"", "A2", "A2:", ":B5", "A2:B5:C7", "foo:bar"} {
		if _, _, ok := parseRangeRef(bad); ok {
			t.Errorf("parseRangeRef(%q) should fail", bad)
		}
	}
}
