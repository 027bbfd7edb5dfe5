package core

// parser.go turns uploaded file bytes into a ParsedDataset.
//
// CSV files are sanitized (BOM, invalid UTF-8) before reading and the
// delimiter is detected from the header line. Spreadsheets are read with
// excelize; only the first sheet is used.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ParseErrorKind classifies why a file could not be parsed.
type ParseErrorKind string

const (
	ParseUnsupportedFormat ParseErrorKind = "unsupported-format"
	ParseEmpty             ParseErrorKind = "empty"
	ParseMalformed         ParseErrorKind = "malformed"
	ParseTooLarge          ParseErrorKind = "too-large"
)

// ParseError is returned when an uploaded file cannot become a dataset.
// It is fatal to the parse stage only.
type ParseError struct {
	Kind     ParseErrorKind
	FileName string
	Err      error
}

func (e *ParseError) Error() string {
	var msg string
	switch e.Kind {
	case ParseUnsupportedFormat:
		msg = "unsupported file format"
	case ParseEmpty:
		msg = "empty file"
	case ParseTooLarge:
		msg = "file too large"
	default:
		msg = "invalid file"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.FileName != "" {
		return fmt.Sprintf("parse %s: %s", e.FileName, msg)
	}
	return "parse: " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is a ParseError of the given kind.
func IsParseError(err error, kind ParseErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}

// SupportedExtensions lists the file extensions accepted by Parse.
var SupportedExtensions = []string{".csv", ".xlsx", ".xls"}

// candidateDelimiters is checked in order; earlier entries win ties.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// numericCell matches cells that are read as numbers.
var numericCell = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Parse reads an uploaded file into a dataset. The format is chosen by extension.
func Parse(fileName string, data []byte) (*ParsedDataset, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSVDataset(fileName, data)
	case ".xlsx", ".xls":
		return parseSpreadsheetDataset(fileName, data)
	default:
		return nil, &ParseError{
			Kind:     ParseUnsupportedFormat,
			FileName: fileName,
			Err:      fmt.Errorf("extension %q (expected one of %s)", ext, strings.Join(SupportedExtensions, ", ")),
		}
	}
}

func parseCSVDataset(fileName string, data []byte) (*ParsedDataset, error) {
	data = sanitizeUTF8(stripBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var headers []string
	var rows []Row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Kind: ParseMalformed, FileName: fileName, Err: fmt.Errorf("invalid csv: %w", err)}
		}
		if isEmptyRow(record) {
			continue
		}
		if headers == nil {
			headers = uniqueHeaders(record)
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i >= len(record) {
				break
			}
			row[h] = typedCell(record[i])
		}
		rows = append(rows, row)
	}

	if len(headers) == 0 || len(rows) == 0 {
		return nil, &ParseError{Kind: ParseEmpty, FileName: fileName}
	}

	return &ParsedDataset{
		Headers:      headers,
		Rows:         rows,
		SourceFormat: FormatCSV,
		FileName:     fileName,
	}, nil
}

func parseSpreadsheetDataset(fileName string, data []byte) (*ParsedDataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Kind: ParseMalformed, FileName: fileName, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Kind: ParseEmpty, FileName: fileName}
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Kind: ParseMalformed, FileName: fileName, Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}
	if len(records) == 0 {
		return nil, &ParseError{Kind: ParseEmpty, FileName: fileName}
	}

	headers := uniqueHeaders(records[0])

	var rows []Row
	for _, record := range records[1:] {
		if isEmptyRow(record) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i >= len(record) {
				break
			}
			if record[i] == "" {
				continue
			}
			row[h] = typedCell(record[i])
		}
		rows = append(rows, row)
	}

	if len(headers) == 0 || len(rows) == 0 {
		return nil, &ParseError{Kind: ParseEmpty, FileName: fileName}
	}

	return &ParsedDataset{
		Headers:      headers,
		Rows:         rows,
		SourceFormat: FormatSpreadsheet,
		FileName:     fileName,
	}, nil
}

// uniqueHeaders trims header cells and renames repeats to Name_1, Name_2, ...
// so every column keeps its own key in a Row.
func uniqueHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		name := h
		for n := 1; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", h, n)
		}
		seen[name] = true
		headers[i] = name
	}
	return headers
}

// typedCell converts a raw cell to a number when it looks numeric.
// Values with a leading zero such as "0401" stay strings so codes keep their digits.
func typedCell(raw string) Scalar {
	s := strings.TrimSpace(raw)
	if s == "" || !numericCell.MatchString(s) || hasLeadingZero(s) {
		return StringValue(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return StringValue(s)
	}
	return NumberValue(f)
}

func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

// detectDelimiter picks the candidate delimiter that occurs most often
// outside quotes on the first non-blank line.
func detectDelimiter(data []byte) rune {
	line := firstLine(data)

	counts := make(map[rune]int, len(candidateDelimiters))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best, bestCount := candidateDelimiters[0], 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func firstLine(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
