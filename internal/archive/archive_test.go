package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/keiri-audit/engine/internal/textextract"
)

func buildTestZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestParseZip2TierGroupsByTopDir(t *testing.T) {
	data := buildTestZip(t, map[string]string{
		"root.txt":        "top level",
		"folder/nested.txt": "nested file",
	})

	ev := ParseZip2Tier(data)
	if ev.TotalFiles != 2 {
		t.Fatalf("total files = %d, want 2", ev.TotalFiles)
	}
	if len(ev.ByDir[""]) != 1 || ev.ByDir[""][0] != "root.txt" {
		t.Fatalf("by_dir[\"\"] = %+v", ev.ByDir[""])
	}
	if len(ev.ByDir["folder"]) != 1 || ev.ByDir["folder"][0] != "nested.txt" {
		t.Fatalf("by_dir[folder] = %+v", ev.ByDir["folder"])
	}
}

func TestParseZip2TierSkipsDeeperThanTwoLevels(t *testing.T) {
	data := buildTestZip(t, map[string]string{
		"a/b/c.txt": "too deep",
		"a/b2.txt":  "fine",
	})
	ev := ParseZip2Tier(data)
	if ev.TotalFiles != 1 {
		t.Fatalf("total files = %d, want 1 (deep entry excluded)", ev.TotalFiles)
	}
}

func TestParseZip2TierMalformedArchiveReturnsEmptyEvidence(t *testing.T) {
	garbage := []byte("not a zip file")
	ev := ParseZip2Tier(garbage)
	if ev.RawSize != len(garbage) {
		t.Fatalf("raw size = %d, want %d", ev.RawSize, len(garbage))
	}
	if ev.TotalFiles != 0 || len(ev.Files) != 0 {
		t.Fatalf("expected empty evidence, got %+v", ev)
	}
}

func TestExtractTextsFromFilesRequiresNonEmpty(t *testing.T) {
	if _, err := ExtractTextsFromFiles(nil, 0); err == nil {
		t.Fatalf("expected error for empty file list")
	}
}

func TestExtractTextsFromFilesPreservesOrderAndNames(t *testing.T) {
	files := []textextract.File{
		{Name: "a.txt", Data: []byte("alpha")},
		{Name: "b.txt", Data: []byte("beta")},
	}
	out, err := ExtractTextsFromFiles(files, 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out) != 2 || out[0].Name != "a.txt" || out[1].Name != "b.txt" {
		t.Fatalf("out = %+v", out)
	}
	if out[0].TextExcerpt != "alpha" {
		t.Fatalf("text excerpt = %q", out[0].TextExcerpt)
	}
}

func TestEncodeBase64DataURI(t *testing.T) {
	result := EncodeBase64("image.png", []byte{0x89, 0x50}, true)
	if result.MimeType != "image/png" {
		t.Fatalf("mime type = %q", result.MimeType)
	}
	if result.DataURI == "" {
		t.Fatalf("expected data uri to be populated")
	}
}
