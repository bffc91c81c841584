package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVParser reads a UTF-8 CSV sheet: one header row, then data rows
// addressed by header name.
type CSVParser struct {
	reader  *csv.Reader
	headers []string
	columns map[string]int
	line    int
}

// NewCSVParser wraps r, stripping a UTF-8 BOM and rejecting content
// that is empty or not valid UTF-8.
func NewCSVParser(r io.Reader) (*CSVParser, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(len(utf8BOM))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if bytes.HasPrefix(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	if err := checkUTF8(br); err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	return &CSVParser{reader: cr, columns: make(map[string]int)}, nil
}

// checkUTF8 validates the leading chunk of the stream without
// consuming it.
func checkUTF8(br *bufio.Reader) error {
	content, err := br.Peek(4096)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read input: %w", err)
	}
	if len(content) == 0 {
		return ErrEmptyFile
	}

	if utf8.Valid(content) {
		return nil
	}

	// tolerate a rune cut at the peek boundary, but only when the
	// stream continues past it
	if err == nil {
		trimmed := content
		for i := 0; i < utf8.UTFMax-1 && len(trimmed) > 0; i++ {
			trimmed = trimmed[:len(trimmed)-1]
			if utf8.Valid(trimmed) {
				return nil
			}
		}
	}
	return ErrInvalidEncoding
}

// ParseHeader consumes the header row and builds the column index
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		name := strings.TrimSpace(h)
		p.headers[i] = name
		p.columns[name] = i
	}
	p.line = 1

	return nil
}

// Headers returns the parsed header names in column order
func (p *CSVParser) Headers() []string {
	return p.headers
}

// ValidateHeaders returns the required header names missing from the
// sheet.
func (p *CSVParser) ValidateHeaders(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := p.columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Row is one data row keyed by header name
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns the value for a column by header name
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// GetOrDefault returns the column value, or defaultVal when the column
// is absent or empty.
func (r *Row) GetOrDefault(header, defaultVal string) string {
	if val := r.Data[header]; val != "" {
		return val
	}
	return defaultVal
}

// IsEmpty reports whether every column of the row is blank
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow reads the next data row. Rows shorter than the header get
// empty strings for the missing columns.
func (p *CSVParser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		p.line++
		return nil, fmt.Errorf("read row %d: %w", p.line, err)
	}

	p.line++
	row := &Row{
		LineNumber: p.line,
		Data:       make(map[string]string, len(p.headers)),
	}

	for i, header := range p.headers {
		if i < len(record) {
			row.Data[header] = strings.TrimSpace(record[i])
		} else {
			row.Data[header] = ""
		}
	}

	return row, nil
}

// ReadAllRows drains the sheet, skipping rows that are entirely blank
func (p *CSVParser) ReadAllRows() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.ReadRow()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
}
