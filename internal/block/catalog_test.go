package block

import "testing"

func TestCatalogRegistersEveryBlock(t *testing.T) {
	ids := NewCatalog().IDs()
	want := []string{
		"transform.rename_fields", "transform.filter", "transform.group_by_agg",
		"transform.compute_features", "transform.compute_fiscal_quarter",
		"transform.pick", "transform.flatten_items", "transform.group_evidence",
		"control.approval", "control.sod_check", "control.sampling", "control.policy_enforce",
		"table.from_rows", "table.pivot", "table.unpivot",
		"excel.read_data",
		"file.parse_zip_2tier", "file.extract_texts", "file.encode_base64",
		"nlp.chunk_texts", "nlp.embed_texts",
		"matching.semantic_topk", "matching.record_linkage", "matching.similarity_cluster",
		"external.api.http", "notifier.notify", "security.attestation.sign_manifest",
	}

	have := make(map[string]bool, len(ids))
	for _, id := range ids {
		have[id] = true
	}
	for _, id := range want {
		if !have[id] {
			t.Errorf("catalog missing block id %q", id)
		}
	}
	if len(ids) != len(want) {
		t.Errorf("catalog has %d blocks, want %d", len(ids), len(want))
	}
}

func TestCatalogRenameFieldsRoundTrips(t *testing.T) {
	cat := NewCatalog()
	b, err := cat.Lookup("transform.rename_fields")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	out, err := b.Run(&Context{}, Inputs{
		"items":  []map[string]any{{"old_name": "alice"}},
		"rename": map[string]string{"old_name": "name"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	items, ok := out["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items = %v", out["items"])
	}
	row, ok := items[0].(map[string]any)
	if !ok || row["name"] != "alice" {
		t.Fatalf("row = %v", items[0])
	}
}

func TestCatalogPivotAppliesDefaultAggFunc(t *testing.T) {
	cat := NewCatalog()
	b, err := cat.Lookup("table.pivot")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	out, err := b.Run(&Context{}, Inputs{
		"rows": []map[string]any{
			{"dept": "eng", "month": "jan", "amount": 10.0},
			{"dept": "eng", "month": "jan", "amount": 5.0},
		},
		"config": map[string]any{
			"index":   []string{"dept"},
			"columns": []string{"month"},
			"values":  []string{"amount"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out["table"] == nil {
		t.Fatalf("expected a table in output, got %v", out)
	}
	tbl, _ := out["table"].(map[string]any)
	rows, _ := tbl["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %v", tbl["rows"])
	}
	row, _ := rows[0].(map[string]any)
	if row["jan"] != 15.0 {
		t.Fatalf("eng/jan = %v, want 15 (default aggfunc sum)", row["jan"])
	}
}

func TestCatalogEncodeBase64(t *testing.T) {
	cat := NewCatalog()
	b, err := cat.Lookup("file.encode_base64")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	out, err := b.Run(&Context{}, Inputs{"name": "a.txt", "bytes": []byte("hi")})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out["base64"] != "aGk=" {
		t.Fatalf("base64 = %v", out["base64"])
	}
}

func TestCatalogParseZip2TierEmptyBytesNoError(t *testing.T) {
	cat := NewCatalog()
	b, err := cat.Lookup("file.parse_zip_2tier")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	out, err := b.Run(&Context{}, Inputs{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	evidence, ok := out["evidence"].(map[string]any)
	if !ok || evidence["total_files"] != float64(0) {
		t.Fatalf("evidence = %v", out["evidence"])
	}
}

func TestCatalogEmbedTextsSurfacesConfigMissing(t *testing.T) {
	cat := NewCatalog()
	b, err := cat.Lookup("nlp.embed_texts")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	_, err = b.Run(&Context{}, Inputs{"texts": []string{"a"}})
	if err == nil {
		t.Fatal("expected CONFIG_MISSING since no embedding provider ships with this engine")
	}
}

func TestCatalogSignManifestSurfacesConfigMissing(t *testing.T) {
	cat := NewCatalog()
	b, err := cat.Lookup("security.attestation.sign_manifest")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	t.Setenv("SIGNING_KEY", "")
	_, err = b.Run(&Context{}, Inputs{"manifest": map[string]any{"a": 1}})
	if err == nil {
		t.Fatal("expected error when SIGNING_KEY is unset")
	}
}
