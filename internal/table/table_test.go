package table

import "testing"

func TestFromRowsBuildsUnionOfColumns(t *testing.T) {
	rows := []map[string]any{{"a": 1}, {"a": 2, "b": 3}}
	tbl := FromRows(rows)
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %+v", tbl.Rows)
	}
	found := map[string]bool{}
	for _, c := range tbl.Columns {
		found[c] = true
	}
	if !found["a"] || !found["b"] {
		t.Fatalf("columns = %+v", tbl.Columns)
	}
}

func TestFromPositionalRowsAssignsColNames(t *testing.T) {
	rows := [][]any{{1, 2}, {3, 4}}
	tbl := FromPositionalRows(rows)
	if len(tbl.Columns) != 2 || tbl.Columns[0] != "col1" || tbl.Columns[1] != "col2" {
		t.Fatalf("columns = %+v", tbl.Columns)
	}
	if tbl.Rows[0]["col1"] != 1 || tbl.Rows[1]["col2"] != 4 {
		t.Fatalf("rows = %+v", tbl.Rows)
	}
}

func TestPivotSumByDeptAndMonth(t *testing.T) {
	rows := []map[string]any{
		{"dept": "A", "month": "Jan", "amount": 10.0},
		{"dept": "A", "month": "Feb", "amount": 5.0},
		{"dept": "B", "month": "Jan", "amount": 3.0},
	}
	cfg := NewPivotConfig()
	cfg.Index = []string{"dept"}
	cfg.Columns = []string{"month"}
	cfg.Values = []string{"amount"}

	tbl, summary, err := Pivot(rows, cfg)
	if err != nil {
		t.Fatalf("pivot: %v", err)
	}
	if summary.Cols < 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(tbl.Rows) == 0 {
		t.Fatalf("expected rows, got none")
	}

	var rowA map[string]any
	for _, r := range tbl.Rows {
		if r["dept"] == "A" {
			rowA = r
		}
	}
	if rowA == nil {
		t.Fatalf("missing row for dept A in %+v", tbl.Rows)
	}
	if rowA["Jan"] != 10.0 {
		t.Fatalf("dept A Jan = %v, want 10.0", rowA["Jan"])
	}
	if rowA["Feb"] != 5.0 {
		t.Fatalf("dept A Feb = %v, want 5.0", rowA["Feb"])
	}
}

func TestPivotEmptyCompositeColumnFallsBackToColN(t *testing.T) {
	rows := []map[string]any{{"k": "x", "c": "", "v": 1.0}}
	cfg := NewPivotConfig()
	cfg.Index = []string{"k"}
	cfg.Columns = []string{"c"}
	cfg.Values = []string{"v"}

	tbl, _, err := Pivot(rows, cfg)
	if err != nil {
		t.Fatalf("pivot: %v", err)
	}
	found := false
	for _, c := range tbl.Columns {
		if c == "col_1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected col_1 fallback in %+v", tbl.Columns)
	}
}

func TestUnpivotMeltsValueVars(t *testing.T) {
	rows := []map[string]any{{"id": 1, "jan": 10.0, "feb": 5.0}}
	cfg := NewUnpivotConfig()
	cfg.IDVars = []string{"id"}
	cfg.ValueVars = []string{"jan", "feb"}

	tbl, summary := Unpivot(rows, cfg)
	if summary.Rows != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if tbl.Rows[0]["variable"] != "jan" || tbl.Rows[0]["value"] != 10.0 {
		t.Fatalf("row0 = %+v", tbl.Rows[0])
	}
	if tbl.Rows[1]["variable"] != "feb" || tbl.Rows[1]["value"] != 5.0 {
		t.Fatalf("row1 = %+v", tbl.Rows[1])
	}
}
