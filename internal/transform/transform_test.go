package transform

import "testing"

func TestRenameFieldsMoveAndDrop(t *testing.T) {
	items := []map[string]any{{"old": 1, "keep": 2}}
	out := RenameFields(items, map[string]string{"old": "new"}, []string{"keep"})
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if len(out[0]) != 1 || out[0]["new"] != 1 {
		t.Fatalf("row = %+v", out[0])
	}
}

func TestFilterNumericAndContains(t *testing.T) {
	items := []map[string]any{
		{"id": 1, "amount": 10, "text": "Alpha"},
		{"id": 2, "amount": 5, "text": "beta"},
	}
	conds := []Condition{
		{Field: "amount", Operator: "gte", Value: 6},
		{Field: "text", Operator: "contains", Value: "alp"},
	}
	out, err := Filter(items, conds)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(out) != 1 || out[0]["id"] != 1 {
		t.Fatalf("out = %+v", out)
	}
}

func TestGroupByAggSum(t *testing.T) {
	items := []map[string]any{
		{"dept": "A", "amount": 10},
		{"dept": "A", "amount": 5},
		{"dept": "B", "amount": 3},
	}
	out, err := GroupByAgg(items, []string{"dept"}, []Aggregation{{Field: "amount", Op: "sum"}})
	if err != nil {
		t.Fatalf("group_by_agg: %v", err)
	}
	got := map[string]float64{}
	for _, row := range out {
		got[row["dept"].(string)] = row["amount_sum"].(float64)
	}
	if got["A"] != 15.0 || got["B"] != 3.0 {
		t.Fatalf("got = %+v", got)
	}
}

func TestComputeFeaturesTextAndNumeric(t *testing.T) {
	items := []map[string]any{{"name": "Hello  World", "v": "12"}}
	textCfgs := []TextFeatureConfig{{Field: "name", Ops: []string{"normalize", "ngram"}, N: 2}}
	numericCfgs := []NumericFeatureConfig{{Field: "v", Ops: []string{"log", "zscore"}}}
	out := ComputeFeatures(items, textCfgs, numericCfgs)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	feats := out[0].Features
	if _, ok := feats["name_len"]; !ok {
		t.Fatalf("missing name_len in %+v", feats)
	}
	if _, ok := feats["v_raw"]; !ok {
		t.Fatalf("missing v_raw in %+v", feats)
	}
}

func TestComputeFiscalQuarterHappy(t *testing.T) {
	period, sheet, err := ComputeFiscalQuarter(2025, "Q2", 4)
	if err != nil {
		t.Fatalf("compute_fiscal_quarter: %v", err)
	}
	if period.Start != "2025-07-01" {
		t.Fatalf("start = %q, want 2025-07-01", period.Start)
	}
	if sheet != "2025_Q2" {
		t.Fatalf("sheet = %q, want 2025_Q2", sheet)
	}
}

func TestPickValueVariants(t *testing.T) {
	src := map[string]any{"a": map[string]any{"b": "123"}}
	v, err := Pick(src, "a.b", "string")
	if err != nil || v != "123" {
		t.Fatalf("string pick = %v, %v", v, err)
	}
	v, err = Pick(src, "a.b", "number")
	if err != nil || v != 123.0 {
		t.Fatalf("number pick = %v, %v", v, err)
	}

	src2 := map[string]any{"a": map[string]any{"b": "1"}}
	v, err = Pick(src2, "a.b", "boolean")
	if err != nil || v != true {
		t.Fatalf("boolean pick = %v, %v", v, err)
	}
}

func TestFlattenItems(t *testing.T) {
	src := []map[string]any{
		{"results": map[string]any{"items": []any{
			map[string]any{"x": 1},
			map[string]any{"x": 2},
		}}},
	}
	out := FlattenItems(src)
	if len(out) != 2 || out[0]["x"] != 1 || out[1]["x"] != 2 {
		t.Fatalf("out = %+v", out)
	}
}

func TestGroupEvidenceTopDirAndSecondDir(t *testing.T) {
	paths := []string{"top/a.txt", "top/b.txt", "other/c.txt"}

	topGroups, err := GroupEvidence(paths, "top_dir")
	if err != nil {
		t.Fatalf("group_evidence top_dir: %v", err)
	}
	keys := map[string]bool{}
	for _, g := range topGroups {
		keys[g.Key] = true
	}
	if !keys["top"] || !keys["other"] {
		t.Fatalf("top_dir keys = %+v", keys)
	}

	secondGroups, err := GroupEvidence(paths, "second_dir")
	if err != nil {
		t.Fatalf("group_evidence second_dir: %v", err)
	}
	secondKeys := map[string]bool{}
	for _, g := range secondGroups {
		secondKeys[g.Key] = true
	}
	for _, want := range []string{"a.txt", "b.txt", "c.txt"} {
		if !secondKeys[want] {
			t.Fatalf("second_dir keys = %+v, missing %q", secondKeys, want)
		}
	}
}

func TestFilterInOperator(t *testing.T) {
	items := []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}}
	out, err := Filter(items, []Condition{{Field: "id", Operator: "in", Value: []any{1, 3}}})
	if err != nil {
		t.Fatalf("filter in: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("out = %+v", out)
	}
}
