// Package textextract provides best-effort plain-text extraction from
// common office document formats, bounded by a total character budget.
package textextract

import (
	"strings"
)

// File is one named byte payload to extract text from.
type File struct {
	Name string
	Data []byte
}

// handler extracts best-effort plain text from one file's bytes. Errors
// are swallowed by design: extraction is advisory, never fatal to the
// caller's pipeline.
type handler func(data []byte) string

var handlers = map[string]handler{
	".txt":  readPlainText,
	".md":   readPlainText,
	".pdf":  readPDF,
	".docx": readDOCX,
	".xlsx": readXLSXPreview,
}

// Extract dispatches each file by lowercased extension and returns one
// text per file with a non-empty result, in input order. Cumulative
// output length never exceeds maxTotalChars; extraction stops as soon as
// the budget is reached. maxTotalChars <= 0 yields an empty list.
func Extract(files []File, maxTotalChars int) []string {
	if maxTotalChars <= 0 {
		return []string{}
	}

	out := make([]string, 0, len(files))
	total := 0
	for _, f := range files {
		handle := handlers[extensionOf(f.Name)]
		if handle == nil {
			handle = readPlainText
		}

		text := handle(f.Data)
		if text == "" {
			continue
		}
		if total+len(text) > maxTotalChars {
			text = text[:maxTotalChars-total]
		}
		if text == "" {
			continue
		}
		out = append(out, text)
		total += len(text)
		if total >= maxTotalChars {
			break
		}
	}
	return out
}

func extensionOf(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i:])
}

func readPlainText(data []byte) string {
	return string(data)
}
