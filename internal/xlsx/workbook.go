// Package xlsx ingests OOXML spreadsheet workbooks: direct computed-value
// reads, or recalculation via a headless LibreOffice two-pass convert or
// an in-process formula evaluator, followed by header-row/skip-empty-rows
// normalization into row mappings.
package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Workbook is a parsed OOXML workbook: sheet order plus each sheet's raw
// cell grid, shared strings already resolved, dates left as Excel serial
// numbers (resolved to time.Time by the caller per-cell, since only some
// numeric-formatted cells are dates).
type Workbook struct {
	SheetNames []string
	sheets     map[string]*rawSheet
}

type rawSheet struct {
	rows []rawRow
}

type rawRow struct {
	cells map[int]rawCell // 1-based column index
	maxCol int
}

type rawCell struct {
	value     string
	isDate    bool
	isBool    bool
	formula   string
	isFormula bool
}

// Load parses workbook bytes into a Workbook.
func Load(data []byte) (*Workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("xlsx: not a valid zip container: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	sharedStrings, err := loadSharedStrings(files)
	if err != nil {
		return nil, err
	}
	dateFormats, err := loadDateFormatNumFmtIDs(files)
	if err != nil {
		return nil, err
	}

	order, targets, err := loadSheetOrder(files)
	if err != nil {
		return nil, err
	}

	wb := &Workbook{SheetNames: order, sheets: make(map[string]*rawSheet, len(order))}
	for _, name := range order {
		target := targets[name]
		f, ok := files[target]
		if !ok {
			wb.sheets[name] = &rawSheet{}
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("xlsx: reading sheet %q: %w", name, err)
		}
		sheet, err := parseSheetXML(raw, sharedStrings, dateFormats)
		if err != nil {
			return nil, fmt.Errorf("xlsx: parsing sheet %q: %w", name, err)
		}
		wb.sheets[name] = sheet
	}
	return wb, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
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

func loadSheetOrder(files map[string]*zip.File) (order []string, targets map[string]string, err error) {
	wbFile, ok := files["xl/workbook.xml"]
	if !ok {
		return nil, nil, fmt.Errorf("xlsx: missing xl/workbook.xml")
	}
	raw, err := readZipFile(wbFile)
	if err != nil {
		return nil, nil, err
	}
	var wbx workbookXML
	if err := xml.Unmarshal(raw, &wbx); err != nil {
		return nil, nil, fmt.Errorf("xlsx: malformed workbook.xml: %w", err)
	}

	relTargets := map[string]string{}
	if relFile, ok := files["xl/_rels/workbook.xml.rels"]; ok {
		raw, err := readZipFile(relFile)
		if err == nil {
			var rels relationshipsXML
			if xml.Unmarshal(raw, &rels) == nil {
				for _, r := range rels.Relationships {
					relTargets[r.ID] = "xl/" + strings.TrimPrefix(r.Target, "/")
				}
			}
		}
	}

	targets = make(map[string]string, len(wbx.Sheets))
	order = make([]string, 0, len(wbx.Sheets))
	for i, s := range wbx.Sheets {
		target := relTargets[s.RID]
		if target == "" {
			target = "xl/worksheets/sheet" + strconv.Itoa(i+1) + ".xml"
		}
		order = append(order, s.Name)
		targets[s.Name] = target
	}
	return order, targets, nil
}

type sstXML struct {
	Items []sstItem `xml:"si"`
}

type sstItem struct {
	Text string   `xml:"t"`
	Runs []sstRun `xml:"r"`
}

type sstRun struct {
	Text string `xml:"t"`
}

func loadSharedStrings(files map[string]*zip.File) ([]string, error) {
	f, ok := files["xl/sharedStrings.xml"]
	if !ok {
		return nil, nil
	}
	raw, err := readZipFile(f)
	if err != nil {
		return nil, err
	}
	var sst sstXML
	if err := xml.Unmarshal(raw, &sst); err != nil {
		return nil, fmt.Errorf("xlsx: malformed sharedStrings.xml: %w", err)
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
	return out, nil
}

// builtinDateNumFmtIDs are the well-known Excel built-in numFmtIds that
// represent dates or datetimes.
var builtinDateNumFmtIDs = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	45: true, 46: true, 47: true,
}

type stylesXML struct {
	NumFmts []struct {
		ID   int    `xml:"numFmtId,attr"`
		Code string `xml:"formatCode,attr"`
	} `xml:"numFmts>numFmt"`
	CellXfs []struct {
		NumFmtID int `xml:"numFmtId,attr"`
	} `xml:"cellXfs>xf"`
}

// loadDateFormatNumFmtIDs returns the set of style indices (xf indices
// referenced by a cell's s attribute) whose number format denotes a date.
func loadDateFormatNumFmtIDs(files map[string]*zip.File) (map[int]bool, error) {
	f, ok := files["xl/styles.xml"]
	if !ok {
		return nil, nil
	}
	raw, err := readZipFile(f)
	if err != nil {
		return nil, err
	}
	var styles stylesXML
	if err := xml.Unmarshal(raw, &styles); err != nil {
		return nil, fmt.Errorf("xlsx: malformed styles.xml: %w", err)
	}

	customDateFmt := map[int]bool{}
	for _, nf := range styles.NumFmts {
		low := strings.ToLower(nf.Code)
		if strings.ContainsAny(low, "ymd") && !strings.Contains(low, "general") {
			customDateFmt[nf.ID] = true
		}
	}

	dateStyleIdx := map[int]bool{}
	for idx, xf := range styles.CellXfs {
		if builtinDateNumFmtIDs[xf.NumFmtID] || customDateFmt[xf.NumFmtID] {
			dateStyleIdx[idx] = true
		}
	}
	return dateStyleIdx, nil
}

type sheetXML struct {
	Rows []struct {
		Cells []struct {
			Ref   string `xml:"r,attr"`
			Type  string `xml:"t,attr"`
			Style int    `xml:"s,attr"`
			Value   string `xml:"v"`
			Formula string `xml:"f"`
			Inline struct {
				Text string `xml:"t"`
			} `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

func parseSheetXML(raw []byte, sharedStrings []string, dateStyles map[int]bool) (*rawSheet, error) {
	var sx sheetXML
	if err := xml.Unmarshal(raw, &sx); err != nil {
		return nil, err
	}

	sheet := &rawSheet{}
	for _, row := range sx.Rows {
		rr := rawRow{cells: make(map[int]rawCell, len(row.Cells))}
		for _, c := range row.Cells {
			col := columnIndexFromRef(c.Ref)
			if col <= 0 {
				col = rr.maxCol + 1
			}
			var rc rawCell
			if c.Formula != "" {
				rc.formula = c.Formula
				rc.isFormula = true
			}
			switch c.Type {
			case "s":
				idx, err := strconv.Atoi(c.Value)
				if err == nil && idx >= 0 && idx < len(sharedStrings) {
					rc.value = sharedStrings[idx]
				}
			case "inlineStr", "str":
				if c.Inline.Text != "" {
					rc.value = c.Inline.Text
				} else {
					rc.value = c.Value
				}
			case "b":
				rc.value = c.Value
				rc.isBool = true
			default:
				rc.value = c.Value
				if dateStyles[c.Style] {
					rc.isDate = true
				}
			}
			rr.cells[col] = rc
			if col > rr.maxCol {
				rr.maxCol = col
			}
		}
		sheet.rows = append(sheet.rows, rr)
	}
	return sheet, nil
}

// columnIndexFromRef parses a cell reference like "C7" into its 1-based
// column index (3 for "C"); returns 0 if ref is empty or malformed.
func columnIndexFromRef(ref string) int {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	if i == 0 {
		return 0
	}
	col := 0
	for _, ch := range ref[:i] {
		col = col*26 + int(ch-'A'+1)
	}
	return col
}

// rowsFor returns every parsed row of sheet; each row's cells map is keyed
// by 1-based column index, with formulas and dates not yet resolved into
// Go values -- see resolvedValue.
func (w *Workbook) rowsFor(sheet string) []rawRow {
	s, ok := w.sheets[sheet]
	if !ok {
		return nil
	}
	return s.rows
}

// grid returns sheet as a dense 0-based [row][col]rawCell slice, padded to
// the widest row, for formula evaluation and range iteration.
func (w *Workbook) grid(sheet string) [][]rawCell {
	rows := w.rowsFor(sheet)
	maxCol := 0
	for _, r := range rows {
		if r.maxCol > maxCol {
			maxCol = r.maxCol
		}
	}
	out := make([][]rawCell, len(rows))
	for i, r := range rows {
		row := make([]rawCell, maxCol)
		for col, cell := range r.cells {
			row[col-1] = cell
		}
		out[i] = row
	}
	return out
}
