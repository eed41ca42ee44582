package pad

import (
	"strings"
	"unicode/utf8"
)

// offsetAt converts a row and rune column into a byte offset into text. Both
// are clamped to the text.
func offsetAt(text string, row, col int) int {
	if row < 0 {
		row = 0
	}
	if col < 0 {
		col = 0
	}

	offset := 0
	for i := 0; i < row; i++ {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			return len(text)
		}
		offset += nl + 1
	}

	line := text[offset:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	for i := 0; i < col && line != ""; i++ {
		_, size := utf8.DecodeRuneInString(line)
		offset += size
		line = line[size:]
	}
	return offset
}

// positionOf converts a byte offset into a row and rune column.
func positionOf(text string, offset int) (row, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	before := text[:offset]
	row = strings.Count(before, "\n")
	if nl := strings.LastIndexByte(before, '\n'); nl >= 0 {
		before = before[nl+1:]
	}
	return row, utf8.RuneCountInString(before)
}
