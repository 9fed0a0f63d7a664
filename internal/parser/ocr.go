package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// OCRRow is one successfully recognized (name, price) pair.
type OCRRow struct {
	Line      int    `json:"line"`
	RawText   string `json:"raw_text"`
	ItemName  string `json:"item_name"`
	UnitPrice int64  `json:"unit_price"`
}

// OCRResult holds the valid rows and the lines that could not be read.
type OCRResult struct {
	Rows    []OCRRow  `json:"rows"`
	Invalid []Warning `json:"invalid"`
}

// ocrConfusions maps characters the recognizer routinely mistakes for
// digits, applied only inside the trailing number run.
var ocrConfusions = map[rune]rune{
	'O': '0', 'o': '0',
	'l': '1', 'I': '1',
}

// separator punctuation normalized to ASCII before scanning; pipes and
// full-width comma/colon variants show up in two-column screenshots.
var ocrSeparators = strings.NewReplacer(
	"|", " ", "｜", " ",
	"，", ",", "、", ",",
	"：", ":", "　", " ",
)

// ParseOCRLines converts noisy recognized text into candidate (name, price)
// rows, one per line. A line with no trailing number run, an empty extracted
// name, or an out-of-range number is collected as invalid; the parser never
// fails on a single line and performs no item-name resolution.
func ParseOCRLines(text string) (*OCRResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("parse ocr lines: %w", ErrEmptyInput)
	}
	res := &OCRResult{}
	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		if strings.TrimSpace(raw) == "" {
			continue
		}
		row, reason := parseOCRLine(raw)
		if reason != "" {
			res.Invalid = append(res.Invalid, Warning{Line: lineNo, Text: raw, Reason: reason})
			continue
		}
		row.Line = lineNo
		row.RawText = raw
		res.Rows = append(res.Rows, *row)
	}
	return res, nil
}

func parseOCRLine(raw string) (*OCRRow, string) {
	line := ocrSeparators.Replace(raw)
	line = strings.Join(strings.Fields(line), " ")

	digits, nameEnd := trailingNumberRun(line)
	if digits == "" {
		return nil, "no trailing number found"
	}
	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil, fmt.Sprintf("number %q is out of range", digits)
	}
	if price < 0 {
		return nil, fmt.Sprintf("price %d is negative", price)
	}

	name := strings.TrimRight(line[:nameEnd], " \t:,-.")
	name = stripListPrefix(name)
	if strings.TrimSpace(name) == "" {
		return nil, "no item name before the number"
	}
	return &OCRRow{ItemName: strings.TrimSpace(name), UnitPrice: price}, ""
}

// trailingNumberRun scans backwards for the run of digits ending the line,
// tolerating grouping commas and the OCR confusion table. It returns the
// cleaned digit string and the byte offset where the run begins.
func trailingNumberRun(line string) (string, int) {
	runes := []rune(line)
	end := len(runes)
	for end > 0 && isRunPadding(runes[end-1]) {
		end--
	}
	start := end
	for start > 0 && isRunRune(runes[start-1]) {
		start--
	}

	var b strings.Builder
	sawDigit := false
	for _, r := range runes[start:end] {
		if mapped, ok := ocrConfusions[r]; ok {
			r = mapped
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			sawDigit = true
		}
		// grouping separators drop out
	}
	if !sawDigit {
		return "", len(line)
	}
	return b.String(), len(string(runes[:start]))
}

// isRunRune reports whether a rune can belong to the trailing number run.
func isRunRune(r rune) bool {
	if r >= '0' && r <= '9' {
		return true
	}
	if _, ok := ocrConfusions[r]; ok {
		return true
	}
	return r == ','
}

// isRunPadding is trailing junk after the number (spaces, stray dots).
func isRunPadding(r rune) bool {
	return r == ' ' || r == '.' || r == ','
}

// stripListPrefix removes leading ordinal or bullet markers such as
// "3.", "(12)", "4)", "-", "*", "・".
func stripListPrefix(name string) string {
	s := strings.TrimLeft(name, " -*•・#>")
	trimmed := strings.TrimLeft(s, "(")
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i > 0 && i <= 3 && i < len(trimmed) && (trimmed[i] == '.' || trimmed[i] == ')') {
		return strings.TrimSpace(trimmed[i+1:])
	}
	return strings.TrimSpace(s)
}
