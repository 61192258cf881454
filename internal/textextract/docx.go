package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// docxParagraph mirrors the subset of WordprocessingML needed to recover
// paragraph text: <w:p> containing <w:r><w:t>text</w:t></w:r> runs.
type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Value string `xml:",chardata"`
}

type docxDocument struct {
	Paragraphs []docxParagraph `xml:"body>p"`
}

// readDOCX opens the OOXML zip container and concatenates the paragraph
// text of word/document.xml, joined by newlines -- matching python-docx's
// `"\n".join(p.text for p in doc.paragraphs)`.
func readDOCX(data []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return ""
	}

	rc, err := docFile.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return ""
	}

	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return ""
	}

	paragraphs := make([]string, 0, len(doc.Paragraphs))
	for _, p := range doc.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				sb.WriteString(t.Value)
			}
		}
		paragraphs = append(paragraphs, sb.String())
	}
	return strings.Join(paragraphs, "\n")
}
