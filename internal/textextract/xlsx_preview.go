package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

const (
	xlsxPreviewMaxSheets = 2
	xlsxPreviewMaxRows   = 50
)

type sheetEntry struct {
	name   string
	target string
}

type workbookXML struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"id,attr"`
	} `xml:"sheets>sheet"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type sstXML struct {
	Items []struct {
		Text  string    `xml:"t"`
		Runs  []sstRun  `xml:"r"`
	} `xml:"si"`
}

type sstRun struct {
	Text string `xml:"t"`
}

type sheetDataXML struct {
	Rows []sheetRowXML `xml:"sheetData>row"`
}

type sheetRowXML struct {
	Cells []sheetCellXML `xml:"c"`
}

type sheetCellXML struct {
	Type  string `xml:"t,attr"`
	Value string `xml:"v"`
}

// readXLSXPreview opens the OOXML zip container directly (no full
// workbook model, see internal/xlsx for that) and renders the first two
// sheets' first fifty rows as comma-joined, non-empty cell values -- a
// lightweight mirror of openpyxl's read_only preview used purely for text
// extraction.
func readXLSXPreview(data []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	files := indexZip(zr)

	sheets := resolveSheetOrder(files)
	if len(sheets) > xlsxPreviewMaxSheets {
		sheets = sheets[:xlsxPreviewMaxSheets]
	}

	sharedStrings := readSharedStrings(files)

	var lines []string
	for _, sheet := range sheets {
		f, ok := files[sheet.target]
		if !ok {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			continue
		}
		var sd sheetDataXML
		if err := xml.Unmarshal(raw, &sd); err != nil {
			continue
		}
		rows := sd.Rows
		if len(rows) > xlsxPreviewMaxRows {
			rows = rows[:xlsxPreviewMaxRows]
		}
		for _, row := range rows {
			var vals []string
			for _, c := range row.Cells {
				v := resolveCellValue(c, sharedStrings)
				if v != "" {
					vals = append(vals, v)
				}
			}
			if len(vals) > 0 {
				lines = append(lines, strings.Join(vals, ","))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func indexZip(zr *zip.Reader) map[string]*zip.File {
	m := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		m[f.Name] = f
	}
	return m
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func resolveSheetOrder(files map[string]*zip.File) []sheetEntry {
	wbFile, ok := files["xl/workbook.xml"]
	if !ok {
		return nil
	}
	raw, err := readZipFile(wbFile)
	if err != nil {
		return nil
	}
	var wb workbookXML
	if err := xml.Unmarshal(raw, &wb); err != nil {
		return nil
	}

	relTargets := map[string]string{}
	if relFile, ok := files["xl/_rels/workbook.xml.rels"]; ok {
		if raw, err := readZipFile(relFile); err == nil {
			var rels relationshipsXML
			if xml.Unmarshal(raw, &rels) == nil {
				for _, r := range rels.Relationships {
					relTargets[r.ID] = "xl/" + strings.TrimPrefix(r.Target, "/")
				}
			}
		}
	}

	entries := make([]sheetEntry, 0, len(wb.Sheets))
	for i, s := range wb.Sheets {
		target := relTargets[s.RID]
		if target == "" {
			target = "xl/worksheets/sheet" + strconv.Itoa(i+1) + ".xml"
		}
		entries = append(entries, sheetEntry{name: s.Name, target: target})
	}
	return entries
}

func readSharedStrings(files map[string]*zip.File) []string {
	f, ok := files["xl/sharedStrings.xml"]
	if !ok {
		return nil
	}
	raw, err := readZipFile(f)
	if err != nil {
		return nil
	}
	var sst sstXML
	if err := xml.Unmarshal(raw, &sst); err != nil {
		return nil
	}
	out := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		if item.Text != "" {
			out[i] = item.Text
			continue
		}
		var sb strings.Builder
		for _, r := range item.Runs {
			sb.WriteString(r.Text)
		}
		out[i] = sb.String()
	}
	return out
}

func resolveCellValue(c sheetCellXML, sharedStrings []string) string {
	if c.Value == "" {
		return ""
	}
	if c.Type == "s" {
		idx, err := strconv.Atoi(c.Value)
		if err != nil || idx < 0 || idx >= len(sharedStrings) {
			return ""
		}
		return sharedStrings[idx]
	}
	return c.Value
}
