package textextract

import (
	"bytes"
	"regexp"
	"strings"
)

// maxPDFPages mirrors the 20-page cap on PDF extraction.
const maxPDFPages = 20

var (
	pageSplitRe = regexp.MustCompile(`(?s)/Type\s*/Page[^s]`)
	textShowRe  = regexp.MustCompile(`(?s)\((?:[^()\\]|\\.)*\)\s*Tj|(?s)\[(?:[^\[\]]*)\]\s*TJ`)
	parenRe     = regexp.MustCompile(`(?s)\((?:[^()\\]|\\.)*\)`)
)

// readPDF performs a best-effort scan of the raw PDF byte stream for text
// showing operators (Tj/TJ) inside BT...ET blocks, without a real PDF
// object-graph parser or decompression of Flate-encoded content streams.
// Pages that use compressed content streams yield no text; that is an
// accepted limitation of the heuristic, not a bug to chase (no PDF
// library exists in the retrieved example pack -- see DESIGN.md).
func readPDF(data []byte) string {
	pages := splitPages(data)
	if len(pages) > maxPDFPages {
		pages = pages[:maxPDFPages]
	}

	var out []string
	for _, page := range pages {
		text := extractPageText(page)
		if text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n")
}

func splitPages(data []byte) [][]byte {
	locs := pageSplitRe.FindAllIndex(data, -1)
	if len(locs) == 0 {
		return [][]byte{data}
	}
	var pages [][]byte
	for i, loc := range locs {
		start := loc[0]
		end := len(data)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		pages = append(pages, data[start:end])
	}
	return pages
}

func extractPageText(page []byte) string {
	start := bytes.Index(page, []byte("BT"))
	if start < 0 {
		return ""
	}
	end := bytes.LastIndex(page, []byte("ET"))
	if end < 0 || end < start {
		end = len(page)
	}
	block := page[start:end]

	var sb strings.Builder
	for _, match := range textShowRe.FindAll(block, -1) {
		for _, lit := range parenRe.FindAll(match, -1) {
			sb.WriteString(unescapePDFString(lit))
			sb.WriteByte(' ')
		}
	}
	return strings.TrimSpace(sb.String())
}

func unescapePDFString(lit []byte) string {
	s := string(lit)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	replacer := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")
	return replacer.Replace(s)
}
