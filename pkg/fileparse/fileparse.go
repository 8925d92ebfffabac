// Package fileparse turns submitted spreadsheet payloads into uniform rows.
//
// Uploads arrive as raw text, plain base64, or a browser data: URL; CSV and
// Excel workbooks both normalize to an ordered slice of header-keyed records
// so review and ingestion never care about the source format.
package fileparse

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedType reports a file_type outside csv/xlsx/xls.
var ErrUnsupportedType = fmt.Errorf("unsupported file type")

// DecodePayload unwraps an upload payload. A data: URL prefix is stripped
// first; payloads that decode as base64 are decoded, anything else is taken
// as raw content.
func DecodePayload(payload string) []byte {
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.IndexByte(payload, ','); idx >= 0 {
			payload = payload[idx+1:]
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return decoded
	}
	return []byte(payload)
}

// Parse decodes payload and parses it according to fileType.
func Parse(fileType, payload string) ([]map[string]any, error) {
	content := DecodePayload(payload)
	switch strings.ToLower(strings.TrimSpace(fileType)) {
	case "csv":
		return ParseCSV(content)
	case "xlsx", "xls":
		return ParseExcel(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
}

// ParseCSV reads a header row and returns the remaining lines as records
// keyed by header. Short rows are padded with empty strings, long rows are
// truncated to the header width.
func ParseCSV(content []byte) ([]map[string]any, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return []map[string]any{}, nil
	}
	header := records[0]
	return rowsFromTable(header, records[1:]), nil
}

// ParseExcel parses the first sheet of an xlsx/xls workbook the same way
// ParseCSV handles a CSV file.
func ParseExcel(content []byte) ([]map[string]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []map[string]any{}, nil
	}
	table, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(table) == 0 {
		return []map[string]any{}, nil
	}
	return rowsFromTable(table[0], table[1:]), nil
}

func rowsFromTable(header []string, lines [][]string) []map[string]any {
	rows := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		if isEmptyLine(line) {
			continue
		}
		row := make(map[string]any, len(header))
		for i, name := range header {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if i < len(line) {
				row[name] = line[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func isEmptyLine(line []string) bool {
	for _, cell := range line {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
