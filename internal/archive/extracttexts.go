package archive

import (
	"github.com/keiri-audit/engine/internal/blockerr"
	"github.com/keiri-audit/engine/internal/textextract"
)

// ExtractedFile is one file's text-extraction result.
type ExtractedFile struct {
	Name        string `json:"name"`
	Ext         string `json:"ext"`
	Size        int    `json:"size"`
	TextExcerpt string `json:"text_excerpt"`
}

// ExtractTextsFromFiles runs the text extractor over each file independently
// (rather than the Python source's single batched call, whose zip() of a
// shorter texts list against the longer input list silently misaligns
// filenames with the wrong extracted text once any file extracts empty;
// per-file calls keep name/text_excerpt always correctly paired) and
// returns one ExtractedFile per input in order. An empty input list is an
// error, matching spec §4.I.
func ExtractTextsFromFiles(files []textextract.File, maxTotalCharsPerFile int) ([]ExtractedFile, error) {
	if len(files) == 0 {
		return nil, blockerr.NewInputError("files", "non-empty list[{name, bytes}]", files)
	}
	if maxTotalCharsPerFile <= 0 {
		maxTotalCharsPerFile = 100000
	}

	out := make([]ExtractedFile, 0, len(files))
	for _, f := range files {
		texts := textextract.Extract([]textextract.File{f}, maxTotalCharsPerFile)
		excerpt := ""
		if len(texts) > 0 {
			excerpt = texts[0]
		}
		out = append(out, ExtractedFile{
			Name:        f.Name,
			Ext:         extensionOf(f.Name),
			Size:        len(f.Data),
			TextExcerpt: excerpt,
		})
	}
	return out, nil
}
