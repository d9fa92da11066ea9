package loaders

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"Muninn/internal/rag/ragerr"
)

func TestForFilename(t *testing.T) {
	cases := []struct {
		filename string
		wantErr  bool
	}{
		{"report.pdf", false},
		{"notes.TXT", false},
		{"readme.md", false},
		{"contract.docx", false},
		{"figures.xlsx", false},
		{"page.html", false},
		{"page.htm", false},
		{"archive.zip", true},
		{"noextension", true},
	}
	for _, c := range cases {
		_, err := ForFilename(c.filename)
		if c.wantErr && err == nil {
			t.Errorf("ForFilename(%q): expected error, got nil", c.filename)
		}
		if !c.wantErr && err != nil {
			t.Errorf("ForFilename(%q): unexpected error: %v", c.filename, err)
		}
	}

	var ve *ragerr.ValidationError
	_, err := ForFilename("archive.zip")
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for unsupported extension, got %T", err)
	}
}

func TestTextLoaderNormalizesNewlines(t *testing.T) {
	l := NewTextLoader()
	pages, err := l.Load(context.Background(), []byte("line one\r\nline two\rline three"), "a.txt")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 {
		t.Errorf("expected page number 1, got %d", pages[0].Number)
	}
	want := "line one\nline two\nline three"
	if pages[0].Text != want {
		t.Errorf("expected %q, got %q", want, pages[0].Text)
	}
}

func TestTextLoaderRejectsInvalidUTF8(t *testing.T) {
	l := NewTextLoader()
	_, err := l.Load(context.Background(), []byte{0xff, 0xfe, 0x00}, "broken.txt")
	var ve *ragerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTextLoaderEmptyFile(t *testing.T) {
	l := NewTextLoader()
	pages, err := l.Load(context.Background(), []byte("   \n\t "), "blank.txt")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected no pages for whitespace-only file, got %d", len(pages))
	}
}

func TestHTMLLoaderStripsMarkup(t *testing.T) {
	l := NewHTMLLoader()
	src := `<html><head><script>var x = 1;</script></head>` +
		`<body><h1>Quarterly Report</h1><p>Revenue grew by twelve percent.</p></body></html>`
	pages, err := l.Load(context.Background(), []byte(src), "report.html")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	text := pages[0].Text
	if strings.Contains(text, "<h1>") || strings.Contains(text, "var x") {
		t.Errorf("markup leaked into extracted text: %q", text)
	}
	if !strings.Contains(text, "Quarterly Report") || !strings.Contains(text, "Revenue grew") {
		t.Errorf("expected body text preserved, got %q", text)
	}
}

func TestXlsxLoaderOnePagePerSheet(t *testing.T) {
	f := excelize.NewFile()
	// Default sheet becomes the first page.
	f.SetCellValue("Sheet1", "A1", "name")
	f.SetCellValue("Sheet1", "B1", "amount")
	f.SetCellValue("Sheet1", "A2", "widgets")
	f.SetCellValue("Sheet1", "B2", 42)
	if _, err := f.NewSheet("Costs"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	f.SetCellValue("Costs", "A1", "item")
	f.SetCellValue("Costs", "A2", "steel")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}

	l := NewXlsxLoader()
	pages, err := l.Load(context.Background(), buf.Bytes(), "book.xlsx")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("expected sheet pages numbered 1 and 2, got %d and %d", pages[0].Number, pages[1].Number)
	}
	if !strings.Contains(pages[0].Text, "widgets") || !strings.Contains(pages[0].Text, "| name | amount |") {
		t.Errorf("expected markdown table for first sheet, got %q", pages[0].Text)
	}
	if !strings.Contains(pages[1].Text, "steel") {
		t.Errorf("expected second sheet content, got %q", pages[1].Text)
	}
}
