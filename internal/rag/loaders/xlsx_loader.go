package loaders

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/schema"
)

// XlsxLoader reads Excel (.xlsx) files, rendering each sheet as a Markdown
// table. Every sheet becomes its own page so citations can name the sheet
// position within the workbook.
type XlsxLoader struct{}

// NewXlsxLoader creates a new XlsxLoader.
func NewXlsxLoader() *XlsxLoader {
	return &XlsxLoader{}
}

// Load converts each non-empty sheet into a Markdown table page. Sheets
// whose rows cannot be read are skipped.
func (l *XlsxLoader) Load(ctx context.Context, data []byte, filename string) ([]schema.Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", filename, err)
	}
	defer f.Close()

	var pages []schema.Page
	for i, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		var md strings.Builder
		md.WriteString("## " + sheetName + "\n\n")
		md.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
		md.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
		for _, row := range rows[1:] {
			md.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}

		pages = append(pages, schema.Page{Number: i + 1, Text: md.String()})
	}
	return pages, nil
}

// compile-time check to ensure XlsxLoader implements the Loader interface
var _ interfaces.Loader = (*XlsxLoader)(nil)
