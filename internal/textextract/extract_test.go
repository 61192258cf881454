package textextract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestExtractPlainTextFiles(t *testing.T) {
	files := []File{
		{Name: "notes.txt", Data: []byte("hello world")},
		{Name: "README.md", Data: []byte("# heading\nbody")},
	}
	out := Extract(files, 100000)
	if len(out) != 2 {
		t.Fatalf("expected 2 texts, got %d: %+v", len(out), out)
	}
	if out[0] != "hello world" {
		t.Fatalf("out[0] = %q", out[0])
	}
}

func TestExtractZeroBudgetYieldsEmpty(t *testing.T) {
	files := []File{{Name: "a.txt", Data: []byte("x")}}
	out := Extract(files, 0)
	if len(out) != 0 {
		t.Fatalf("expected empty list, got %+v", out)
	}
}

func TestExtractStopsAtBudget(t *testing.T) {
	files := []File{
		{Name: "a.txt", Data: []byte(strings.Repeat("a", 10))},
		{Name: "b.txt", Data: []byte(strings.Repeat("b", 10))},
		{Name: "c.txt", Data: []byte(strings.Repeat("c", 10))},
	}
	out := Extract(files, 15)
	total := 0
	for _, s := range out {
		total += len(s)
	}
	if total > 15 {
		t.Fatalf("cumulative output %d exceeds budget 15", total)
	}
}

func TestExtractEmptyTextsDropped(t *testing.T) {
	files := []File{
		{Name: "empty.txt", Data: []byte("")},
		{Name: "nonempty.txt", Data: []byte("x")},
	}
	out := Extract(files, 1000)
	if len(out) != 1 {
		t.Fatalf("expected 1 text, got %+v", out)
	}
}

func TestExtractUnknownExtensionFallsBackToText(t *testing.T) {
	files := []File{{Name: "data.bin", Data: []byte("plain content")}}
	out := Extract(files, 1000)
	if len(out) != 1 || out[0] != "plain content" {
		t.Fatalf("out = %+v", out)
	}
}

func TestExtractDOCXConcatenatesParagraphs(t *testing.T) {
	docx := buildMinimalDOCX(t, []string{"first paragraph", "second paragraph"})
	out := Extract([]File{{Name: "report.docx", Data: docx}}, 100000)
	if len(out) != 1 {
		t.Fatalf("expected 1 text, got %+v", out)
	}
	if !strings.Contains(out[0], "first paragraph") || !strings.Contains(out[0], "second paragraph") {
		t.Fatalf("out[0] = %q", out[0])
	}
}

func buildMinimalDOCX(t *testing.T, paragraphs []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(body.String())); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
