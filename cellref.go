package main

import "strings"

// cellRef is a parsed A1-style reference. Col and Row are zero-based; Row is
// the data row index (display row minus the header offset) and may be negative
// for references that point into the header row.
type cellRef struct {
	Col        int
	Row        int
	DisplayRow int
}

// Display row 1 is reserved for the header row, so data row r is labeled r+2.
const headerRowOffset = 2

// columnIndex converts column letters to a zero-based index (A=0, Z=25, AA=26).
// Letters are treated case-insensitively. Inverse of columnLetter.
func columnIndex(letters string) int {
	letters = strings.ToUpper(letters)
	idx := 0
	for i := 0; i < len(letters); i++ {
		idx = idx*26 + int(letters[i]-'A'+1)
	}
	return idx - 1
}

// columnLetter converts a zero-based column index to column letters.
func columnLetter(index int) string {
	idx := index + 1
	label := ""
	for idx > 0 {
		idx--
		b := byte(int('A') + (idx % 26))
		label = string([]byte{b}) + label
		idx /= 26
	}
	return label
}

// makeCellRef builds the A1-style reference for a zero-based (col, row) data cell.
func makeCellRef(col, row int) string {
	return columnLetter(col) + itoa(row+headerRowOffset)
}

// parseCellRef parses a reference of the form letters-then-digits ("B3").
// Returns nil on any non-match, including the empty string.
func parseCellRef(ref string) *cellRef {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	split := -1
	for i := 0; i < len(ref); i++ {
		ch := ref[i]
		if ch >= '0' && ch <= '9' {
			split = i
			break
		}
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') {
			return nil
		}
	}
	if split <= 0 {
		// No digits, or digits with no leading letters
		return nil
	}
	letters := ref[:split]
	digits := ref[split:]
	displayRow := 0
	for i := 0; i < len(digits); i++ {
		ch := digits[i]
		if ch < '0' || ch > '9' {
			return nil
		}
		displayRow = displayRow*10 + int(ch-'0')
	}
	return &cellRef{
		Col:        columnIndex(letters),
		Row:        displayRow - headerRowOffset,
		DisplayRow: displayRow,
	}
}

// parseRangeRef splits a range like "A2:B10" on the colon and parses both
// sides independently. Malformed ranges (missing colon, unparsable side)
// report ok=false; the caller decides how to surface that.
func parseRangeRef(ref string) (start, end *cellRef, ok bool) {
	parts := strings.Split(ref, ":")
	if len(parts) != 2 {
		return nil, nil, false
	}
	start = parseCellRef(parts[0])
	end = parseCellRef(parts[1])
	if start == nil || end == nil {
		return nil, nil, false
	}
	return start, end, true
}

// isColumnLetters reports whether ref is only column letters ("B", "AA").
func isColumnLetters(ref string) bool {
	if ref == "" {
		return false
	}
	for i := 0; i < len(ref); i++ {
		ch := ref[i]
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') {
			return false
		}
	}
	return true
}
