package importer

// parser.go turns raw comma-separated text into RawRows.
//
// The format is deliberately simple: one record per physical line, a
// double quote toggles "inside quotes" so commas inside quotes stay
// literal, and every value is trimmed. Quoted fields cannot span lines.

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Recognized column keys, in template order.
const (
	ColName          = "name"
	ColAssetID       = "asset_id"
	ColMake          = "make"
	ColModel         = "model"
	ColSerialNumber  = "serial_number"
	ColStatus        = "status"
	ColPurchaseDate  = "purchase_date"
	ColPurchasePrice = "purchase_price"
	ColSupplier      = "supplier"
	ColDescription   = "description"
)

// Columns lists the recognized column keys. Other columns are ignored and
// missing ones read as empty.
var Columns = []string{
	ColName, ColAssetID, ColMake, ColModel, ColSerialNumber,
	ColStatus, ColPurchaseDate, ColPurchasePrice, ColSupplier, ColDescription,
}

// maxLineBytes caps a single line; longer lines fail the parse.
const maxLineBytes = 1 << 20

// RawRow is one data line keyed by lower-cased header name.
type RawRow struct {
	Line   int               `json:"line"`
	Fields map[string]string `json:"fields"`
}

// Get returns the value for key, or "" when the column is absent.
func (r RawRow) Get(key string) string {
	return r.Fields[key]
}

// Parsed is the output of Parse.
type Parsed struct {
	Header []string `json:"header"`
	Rows   []RawRow `json:"rows"`

	// Unknown lists header keys that are not recognized columns.
	Unknown []string `json:"unknown,omitempty"`
}

// Parse reads CSV content with a header row. It returns *ParseError when the
// input has no header or no data rows.
func Parse(r io.Reader) (*Parsed, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		out     Parsed
		line    int
		hasHead bool
	)

	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		if !hasHead {
			out.Header = parseHeader(text)
			out.Unknown = unknownColumns(out.Header)
			hasHead = true
			continue
		}

		values := SplitLine(text)
		if isEmptyRow(values) {
			continue
		}

		fields := make(map[string]string, len(out.Header))
		for i, key := range out.Header {
			if key == "" {
				continue
			}
			if _, dup := fields[key]; dup {
				continue
			}
			if i < len(values) {
				fields[key] = values[i]
			} else {
				fields[key] = ""
			}
		}
		out.Rows = append(out.Rows, RawRow{Line: line, Fields: fields})
	}

	if err := sc.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, &ParseError{Reason: fmt.Sprintf("line longer than %d bytes", maxLineBytes), Line: line + 1}
		}
		return nil, fmt.Errorf("read csv: %w", err)
	}

	if !hasHead {
		return nil, &ParseError{Reason: "empty file"}
	}
	if len(out.Rows) == 0 {
		return nil, &ParseError{Reason: "no data rows after header"}
	}
	return &out, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s string) (*Parsed, error) {
	return Parse(strings.NewReader(s))
}

// SplitLine tokenizes one line. A double quote toggles the quoted state and
// is not kept; commas outside quotes separate values; values are trimmed.
func SplitLine(line string) []string {
	var (
		values   []string
		current  strings.Builder
		inQuotes bool
	)
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			values = append(values, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	return append(values, strings.TrimSpace(current.String()))
}

func parseHeader(line string) []string {
	cells := SplitLine(line)
	header := make([]string, len(cells))
	for i, c := range cells {
		header[i] = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(c, `"`, "")))
	}
	return header
}

func unknownColumns(header []string) []string {
	known := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		known[c] = true
	}
	var out []string
	for _, h := range header {
		if h != "" && !known[h] {
			out = append(out, h)
		}
	}
	return out
}

// isEmptyRow reports whether every value is blank.
func isEmptyRow(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
