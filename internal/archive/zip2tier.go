// Package archive implements zip-container and encoding blocks: two-tier
// zip inspection, text extraction over a file list, and base64 encoding.
package archive

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"path"
	"strings"

	"github.com/keiri-audit/engine/internal/textextract"
)

const textExcerptMaxChars = 2000

// FileEntry describes one non-directory zip entry at depth <= 2.
type FileEntry struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Size        int    `json:"size"`
	Ext         string `json:"ext"`
	SHA1        string `json:"sha1"`
	TextExcerpt string `json:"text_excerpt"`
	MimeType    string `json:"mime_type"`
	Base64      string `json:"base64,omitempty"`
}

// ZipEvidence is the structured output of ParseZip2Tier.
type ZipEvidence struct {
	RawSize    int                 `json:"raw_size"`
	TotalFiles int                 `json:"total_files"`
	Files      []FileEntry         `json:"files"`
	ByDir      map[string][]string `json:"by_dir"`
}

var base64MimeAllowlist = map[string]bool{
	"image/png":      true,
	"image/jpeg":      true,
	"application/pdf": true,
}

// ParseZip2Tier inspects a zip archive's entries at depth <= 2 (root
// files, and files one directory deep), grouping by top-level directory.
// A malformed archive yields an empty evidence payload carrying only the
// observed raw size rather than an error.
func ParseZip2Tier(zipBytes []byte) ZipEvidence {
	if len(zipBytes) == 0 {
		return ZipEvidence{Files: []FileEntry{}, ByDir: map[string][]string{}}
	}

	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return ZipEvidence{RawSize: len(zipBytes), Files: []FileEntry{}, ByDir: map[string][]string{}}
	}

	files := make([]FileEntry, 0, len(zr.File))
	byDir := map[string][]string{}

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			top := topLevelDir(zf.Name)
			if _, ok := byDir[top]; !ok {
				byDir[top] = []string{}
			}
			continue
		}

		if pathDepth(zf.Name) > 2 {
			continue
		}

		name := path.Base(strings.TrimSuffix(zf.Name, "/"))
		data := readZipEntry(zf)
		size := len(data)
		ext := extensionOf(name)
		sha1Hex := ""
		if len(data) > 0 {
			sum := sha1.Sum(data)
			sha1Hex = hex.EncodeToString(sum[:])
		}

		top := topLevelDir(zf.Name)
		relPath := name
		if top != "" {
			relPath = strings.TrimPrefix(zf.Name, top+"/")
		}
		byDir[top] = append(byDir[top], relPath)

		excerpt := ""
		if extracted := textextract.Extract([]textextract.File{{Name: name, Data: data}}, textExcerptMaxChars); len(extracted) > 0 {
			excerpt = extracted[0]
			if len(excerpt) > textExcerptMaxChars {
				excerpt = excerpt[:textExcerptMaxChars]
			}
		}

		mimeType := mimeTypeFor(name)

		entry := FileEntry{
			Path:        zf.Name,
			Name:        name,
			Size:        size,
			Ext:         ext,
			SHA1:        sha1Hex,
			TextExcerpt: excerpt,
			MimeType:    mimeType,
		}
		if base64MimeAllowlist[mimeType] && len(data) > 0 {
			entry.Base64 = encodeBase64String(data)
		}
		files = append(files, entry)
	}

	return ZipEvidence{
		RawSize:    len(zipBytes),
		TotalFiles: len(files),
		Files:      files,
		ByDir:      byDir,
	}
}

func readZipEntry(zf *zip.File) []byte {
	rc, err := zf.Open()
	if err != nil {
		return nil
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil
	}
	return data
}

func topLevelDir(name string) string {
	trimmed := strings.Trim(name, "/")
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		return trimmed[:idx]
	}
	return ""
}

// pathDepth counts path segments: "a.txt" -> 1, "dir/a.txt" -> 2,
// "dir/sub/a.txt" -> 3. Entries beyond depth 2 are ignored per the
// "2-tier" contract.
func pathDepth(name string) int {
	trimmed := strings.Trim(name, "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}

func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx:])
}
