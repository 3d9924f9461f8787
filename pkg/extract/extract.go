package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
)

// Result holds the normalized content of one uploaded file: prose text,
// parsed tables, or both.
type Result struct {
	Text      string
	Tables    []models.Table
	PageCount int
}

// Detect resolves the declared type, falling back to the file extension when
// the caller did not declare one. Unknown formats fail with
// types.ErrUnsupportedType.
func Detect(declared, name string) (models.DocumentType, error) {
	switch models.DocumentType(declared) {
	case models.TypeText, models.TypePDF, models.TypeSpreadsheet:
		return models.DocumentType(declared), nil
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return models.TypeText, nil
	case ".pdf":
		return models.TypePDF, nil
	case ".xlsx", ".xls", ".csv", ".tsv":
		return models.TypeSpreadsheet, nil
	}

	return "", fmt.Errorf("%w: %q", types.ErrUnsupportedType, name)
}

// File extracts normalized content from raw bytes. The switch over typ is
// exhaustive; adding a format means adding a case here and a constant in
// models.
func File(content []byte, typ models.DocumentType, name string) (*Result, error) {
	switch typ {
	case models.TypeText:
		return extractText(content)
	case models.TypePDF:
		return extractPDF(content)
	case models.TypeSpreadsheet:
		return extractSpreadsheet(content, name)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedType, typ)
	}
}

func extractText(content []byte) (*Result, error) {
	text := decodeText(content)
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyDocument
	}
	return &Result{Text: text}, nil
}

// decodeText accepts UTF-8 and falls back to Latin-1, which maps every byte
// to a valid rune, so text uploads never fail on encoding.
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes)
}

func extractPDF(content []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable pdf: %v", types.ErrEmptyDocument, err)
	}

	pageCount := reader.NumPage()
	var parts []string

	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("=== Page %d/%d ===\n%s", i, pageCount, pageText))
	}

	if len(parts) == 0 {
		return nil, types.ErrEmptyDocument
	}

	return &Result{
		Text:      strings.Join(parts, "\n\n"),
		PageCount: pageCount,
	}, nil
}

func extractSpreadsheet(content []byte, name string) (*Result, error) {
	var tables []models.Table
	var err error

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		tables, err = parseDelimited(content, ',', name)
	case ".tsv":
		tables, err = parseDelimited(content, '\t', name)
	default:
		tables, err = parseWorkbook(content)
	}
	if err != nil {
		return nil, err
	}

	if len(tables) == 0 {
		return nil, types.ErrEmptyDocument
	}
	return &Result{Tables: tables}, nil
}

func parseWorkbook(content []byte) ([]models.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable workbook: %v", types.ErrEmptyDocument, err)
	}
	defer f.Close()

	var tables []models.Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if table, ok := buildTable(sheet, rows); ok {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

func parseDelimited(content []byte, comma rune, name string) ([]models.Table, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed delimited file: %v", types.ErrEmptyDocument, err)
		}
		rows = append(rows, record)
	}

	sheet := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if table, ok := buildTable(sheet, rows); ok {
		return []models.Table{table}, nil
	}
	return nil, nil
}

// buildTable takes the first non-empty row as headers and keeps the
// remaining non-empty rows, padded or cut to the header width.
func buildTable(sheet string, rows [][]string) (models.Table, bool) {
	var headers []string
	var data [][]string

	for _, row := range rows {
		if rowEmpty(row) {
			continue
		}
		if headers == nil {
			headers = trimRow(row)
			continue
		}
		data = append(data, fitRow(row, len(headers)))
	}

	if headers == nil || len(data) == 0 {
		return models.Table{}, false
	}
	return models.Table{Sheet: sheet, Headers: headers, Rows: data}, true
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	// drop trailing empty header cells
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func fitRow(row []string, width int) []string {
	out := make([]string, width)
	for i := 0; i < width; i++ {
		if i < len(row) {
			out[i] = strings.TrimSpace(row[i])
		}
	}
	return out
}
