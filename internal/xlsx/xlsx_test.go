package xlsx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
)

// buildWorkbook assembles a minimal single-sheet OOXML workbook with two
// shared strings ("vendor", "acme") around the caller's sheet XML, enough
// to exercise Load/Ingest without a real spreadsheet application.
func buildWorkbook(t *testing.T, sheetXMLBody string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0"?><workbook><sheets><sheet name="Sheet1" sheetId="1" r:id="rId1" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Target="worksheets/sheet1.xml"/></Relationships>`,
		"xl/sharedStrings.xml": `<?xml version="1.0"?><sst><si><t>vendor</t></si><si><t>acme</t></si></sst>`,
		"xl/worksheets/sheet1.xml": sheetXMLBody,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestLoadAndReadSheetWithHeaderAndData(t *testing.T) {
	sheetXML := `<?xml version="1.0"?><worksheet><sheetData>
		<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1"><v>amount</v></c></row>
		<row r="2"><c r="A2" t="s"><v>1</v></c><c r="B2"><v>100</v></c></row>
	</sheetData></worksheet>`
	data := buildWorkbook(t, sheetXML)

	wb, err := Load(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(wb.SheetNames) != 1 || wb.SheetNames[0] != "Sheet1" {
		t.Fatalf("sheet names = %+v", wb.SheetNames)
	}

	records, err := readSheet(wb, "Sheet1", 1, true, true, false)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %+v", records)
	}
	if records[0]["vendor"] != "acme" {
		t.Fatalf("vendor = %v", records[0]["vendor"])
	}
	if records[0]["amount"] != float64(100) {
		t.Fatalf("amount = %v (%T)", records[0]["amount"], records[0]["amount"])
	}
}

func TestIngestSingleModeExposesRows(t *testing.T) {
	sheetXML := `<?xml version="1.0"?><worksheet><sheetData>
		<row r="1"><c r="A1" t="s"><v>0</v></c></row>
		<row r="2"><c r="A2" t="s"><v>1</v></c></row>
	</sheetData></worksheet>`
	data := buildWorkbook(t, sheetXML)

	result, err := Ingest(context.Background(), WorkbookInput{Bytes: data}, NewReadConfig(), RecalcConfig{})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Summary.Sheets != 1 {
		t.Fatalf("summary sheets = %d", result.Summary.Sheets)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected single-mode rows populated, got %+v", result.Rows)
	}
}

func TestIngestEmptyInputReturnsEmptyResult(t *testing.T) {
	result, err := Ingest(context.Background(), WorkbookInput{}, NewReadConfig(), RecalcConfig{})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Summary.Sheets != 0 {
		t.Fatalf("expected zero sheets, got %+v", result.Summary)
	}
}

func TestFormulaEvaluatorSumAndArithmetic(t *testing.T) {
	sheetXML := `<?xml version="1.0"?><worksheet><sheetData>
		<row r="1"><c r="A1"><v>10</v></c><c r="B1"><v>20</v></c><c r="C1"><f>SUM(A1:B1)*2</f><v>0</v></c></row>
	</sheetData></worksheet>`
	data := buildWorkbook(t, sheetXML)
	wb, err := Load(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	grid := wb.grid("Sheet1")
	ev := newEvaluator("Sheet1", grid)
	v, err := ev.Resolve(0, 2)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, ok := v.(float64)
	if !ok || got != 60 {
		t.Fatalf("formula result = %v, want 60", v)
	}
}

func TestFormulaEvaluatorAbortsOnUnsupportedFunction(t *testing.T) {
	sheetXML := `<?xml version="1.0"?><worksheet><sheetData>
		<row r="1"><c r="A1"><f>VLOOKUP(A1,A1:A1,1)</f><v>0</v></c></row>
	</sheetData></worksheet>`
	data := buildWorkbook(t, sheetXML)
	wb, err := Load(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	grid := wb.grid("Sheet1")
	ev := newEvaluator("Sheet1", grid)
	_, err = ev.Resolve(0, 0)
	if err == nil {
		t.Fatalf("expected an error for unsupported function")
	}
	fe, ok := err.(*formulaError)
	if !ok {
		t.Fatalf("expected *formulaError, got %T", err)
	}
	if fe.Coordinate != "A1" {
		t.Fatalf("coordinate = %q", fe.Coordinate)
	}
}

func TestColumnIndexFromRef(t *testing.T) {
	cases := map[string]int{"A1": 1, "Z1": 26, "AA1": 27}
	for ref, want := range cases {
		got := columnIndexFromRef(ref)
		if got != want {
			t.Fatalf("columnIndexFromRef(%q) = %d, want %d", ref, got, want)
		}
	}
}

func TestColumnLettersRoundTrip(t *testing.T) {
	for i := 1; i <= 30; i++ {
		letters := columnLetters(i)
		back := columnIndexFromRef(letters + "1")
		if back != i {
			t.Fatalf("round trip failed for %d: letters=%q back=%d", i, letters, back)
		}
	}
}
