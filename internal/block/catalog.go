package block

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/keiri-audit/engine/internal/archive"
	"github.com/keiri-audit/engine/internal/blockerr"
	"github.com/keiri-audit/engine/internal/control"
	"github.com/keiri-audit/engine/internal/external"
	"github.com/keiri-audit/engine/internal/matching"
	"github.com/keiri-audit/engine/internal/nlp"
	"github.com/keiri-audit/engine/internal/table"
	"github.com/keiri-audit/engine/internal/textextract"
	"github.com/keiri-audit/engine/internal/transform"
	"github.com/keiri-audit/engine/internal/xlsx"
)

// NewCatalog returns a Registry with every standard block wired in:
// transform, control, table, excel, file, nlp, matching, and external.
// This is the uniform entry point the CLI's `block run` subcommand uses
// to resolve a block id to a callable.
func NewCatalog() *Registry {
	r := NewRegistry()
	for _, b := range []Block{
		renameFieldsBlock{}, filterBlock{}, groupByAggBlock{}, computeFeaturesBlock{},
		computeFiscalQuarterBlock{}, pickBlock{}, flattenItemsBlock{}, groupEvidenceBlock{},

		approvalBlock{}, sodCheckBlock{}, samplingBlock{}, policyEnforceBlock{},

		fromRowsBlock{}, pivotBlock{}, unpivotBlock{},

		excelReadDataBlock{},

		parseZip2TierBlock{}, extractTextsBlock{}, encodeBase64Block{},

		chunkTextsBlock{}, embedTextsBlock{},

		semanticTopKBlock{}, recordLinkageBlock{}, similarityClusterBlock{},

		httpCallBlock{}, notifyBlock{}, signManifestBlock{},
	} {
		r.Register(b)
	}
	return r
}

func decodeInputs(inputs any, out any) error {
	data, err := json.Marshal(inputs)
	if err != nil {
		return blockerr.NewInputError("inputs", "JSON-serializable map", inputs)
	}
	if err := json.Unmarshal(data, out); err != nil {
		snapshot, _ := inputs.(map[string]any)
		return blockerr.Wrap(err, blockerr.InputValidationFailed, snapshot)
	}
	return nil
}

func encodeOutputs(v any) (Outputs, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, blockerr.Wrap(err, blockerr.OutputGenerationFailed, nil)
	}
	var out Outputs
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, blockerr.Wrap(err, blockerr.OutputGenerationFailed, nil)
	}
	return out, nil
}

// storeEvidence persists payload under kind via ctx.Evidence when a sink is
// attached, logging (never failing) on error -- evidence persistence is an
// audit side effect, not a block precondition. Returns the evidence id, or
// "" when no sink is attached or the store failed.
func storeEvidence(ctx *Context, kind string, payload any) string {
	if ctx == nil || ctx.Evidence == nil {
		return ""
	}
	id, err := ctx.Evidence.Store(payload, kind, nil)
	if err != nil {
		if ctx.Logger != nil {
			ctx.Logger.Warn("storing block evidence failed", "kind", kind, "error", err)
		}
		return ""
	}
	return id
}

// --- transform ---

type renameFieldsBlock struct{}

func (renameFieldsBlock) ID() string      { return "transform.rename_fields" }
func (renameFieldsBlock) Version() string { return "0.1.0" }
func (renameFieldsBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Items  []map[string]any `json:"items"`
		Rename map[string]string `json:"rename"`
		Drop   []string         `json:"drop"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	out := transform.RenameFields(in.Items, in.Rename, in.Drop)
	return encodeOutputs(map[string]any{"items": out})
}

type filterBlock struct{}

func (filterBlock) ID() string      { return "transform.filter" }
func (filterBlock) Version() string { return "0.1.0" }
func (filterBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Items      []map[string]any     `json:"items"`
		Conditions []transform.Condition `json:"conditions"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	out, err := transform.Filter(in.Items, in.Conditions)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"items": out})
}

type groupByAggBlock struct{}

func (groupByAggBlock) ID() string      { return "transform.group_by_agg" }
func (groupByAggBlock) Version() string { return "0.1.0" }
func (groupByAggBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Items        []map[string]any       `json:"items"`
		By           []string               `json:"by"`
		Aggregations []transform.Aggregation `json:"aggregations"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	out, err := transform.GroupByAgg(in.Items, in.By, in.Aggregations)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"items": out})
}

type computeFeaturesBlock struct{}

func (computeFeaturesBlock) ID() string      { return "transform.compute_features" }
func (computeFeaturesBlock) Version() string { return "0.1.0" }
func (computeFeaturesBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Items   []map[string]any               `json:"items"`
		Text    []transform.TextFeatureConfig    `json:"text"`
		Numeric []transform.NumericFeatureConfig `json:"numeric"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	out := transform.ComputeFeatures(in.Items, in.Text, in.Numeric)
	return encodeOutputs(map[string]any{"rows": out})
}

type computeFiscalQuarterBlock struct{}

func (computeFiscalQuarterBlock) ID() string      { return "transform.compute_fiscal_quarter" }
func (computeFiscalQuarterBlock) Version() string { return "0.1.0" }
func (computeFiscalQuarterBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		FiscalYear int    `json:"fiscal_year"`
		Quarter    string `json:"quarter"`
		StartMonth int    `json:"start_month"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	period, sheet, err := transform.ComputeFiscalQuarter(in.FiscalYear, in.Quarter, in.StartMonth)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"period": period, "sheet_name": sheet})
}

type pickBlock struct{}

func (pickBlock) ID() string      { return "transform.pick" }
func (pickBlock) Version() string { return "0.1.0" }
func (pickBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Source map[string]any `json:"source"`
		Path   string         `json:"path"`
		Return string         `json:"return"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	val, err := transform.Pick(in.Source, in.Path, in.Return)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"value": val})
}

type flattenItemsBlock struct{}

func (flattenItemsBlock) ID() string      { return "transform.flatten_items" }
func (flattenItemsBlock) Version() string { return "0.1.0" }
func (flattenItemsBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		ResultsList []map[string]any `json:"results_list"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	out := transform.FlattenItems(in.ResultsList)
	return encodeOutputs(map[string]any{"items": out})
}

type groupEvidenceBlock struct{}

func (groupEvidenceBlock) ID() string      { return "transform.group_evidence" }
func (groupEvidenceBlock) Version() string { return "0.1.0" }
func (groupEvidenceBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Paths []string `json:"paths"`
		Level string   `json:"level"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	groups, err := transform.GroupEvidence(in.Paths, in.Level)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"groups": groups})
}

// --- control ---

type approvalBlock struct{}

func (approvalBlock) ID() string      { return "control.approval" }
func (approvalBlock) Version() string { return "0.1.0" }
func (approvalBlock) Run(ctx *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		RouteDefinition control.RouteDefinition `json:"route_definition"`
		Decisions       []control.Decision      `json:"decisions"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	result := control.EvaluateApproval(in.RouteDefinition, in.Decisions)
	storeEvidence(ctx, "approval_record", result)
	return encodeOutputs(result)
}

type sodCheckBlock struct{}

func (sodCheckBlock) ID() string      { return "control.sod_check" }
func (sodCheckBlock) Version() string { return "0.1.0" }
func (sodCheckBlock) Run(ctx *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Assignments []control.Assignment  `json:"assignments"`
		Conflicts   []control.SoDConflict `json:"conflicts"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	violations, summary := control.CheckSegregationOfDuties(in.Assignments, in.Conflicts)
	result := map[string]any{"violations": violations, "summary": summary}
	storeEvidence(ctx, "control_result", result)
	return encodeOutputs(result)
}

type samplingBlock struct{}

func (samplingBlock) ID() string      { return "control.sampling" }
func (samplingBlock) Version() string { return "0.1.0" }
func (samplingBlock) Run(ctx *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Population     []map[string]any            `json:"population"`
		Method         control.SamplingMethod       `json:"method"`
		Size           int                          `json:"size"`
		AttributeRules []control.AttributeRule      `json:"attribute_rules"`
		RiskWeights    map[string]float64           `json:"risk_weights"`
		Seed           int64                        `json:"seed"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	result := control.Sample(in.Population, in.Method, in.Size, in.AttributeRules, in.RiskWeights, in.Seed)
	storeEvidence(ctx, "control_result", result)
	return encodeOutputs(result)
}

type policyEnforceBlock struct{}

func (policyEnforceBlock) ID() string      { return "control.policy_enforce" }
func (policyEnforceBlock) Version() string { return "0.1.0" }
func (policyEnforceBlock) Run(ctx *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Items   []map[string]any `json:"items"`
		Policy  control.Policy   `json:"policy"`
		Options struct {
			Mode string `json:"mode"`
		} `json:"options"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	strict := in.Options.Mode != "lenient"
	result := control.EnforcePolicy(in.Items, in.Policy, strict)
	storeEvidence(ctx, "control_result", result)
	return encodeOutputs(result)
}

// --- table ---

type fromRowsBlock struct{}

func (fromRowsBlock) ID() string      { return "table.from_rows" }
func (fromRowsBlock) Version() string { return "0.1.0" }
func (fromRowsBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	t := table.FromRows(in.Rows)
	return encodeOutputs(t)
}

type pivotBlock struct{}

func (pivotBlock) ID() string      { return "table.pivot" }
func (pivotBlock) Version() string { return "0.1.0" }
func (pivotBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	cfg := table.NewPivotConfig()
	if raw, ok := inputs["config"]; ok {
		if err := decodeInputs(raw, &cfg); err != nil {
			return nil, err
		}
	}
	t, summary, err := table.Pivot(in.Rows, cfg)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"table": t, "summary": summary})
}

type unpivotBlock struct{}

func (unpivotBlock) ID() string      { return "table.unpivot" }
func (unpivotBlock) Version() string { return "0.1.0" }
func (unpivotBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Rows   []map[string]any    `json:"rows"`
		Config table.UnpivotConfig `json:"config"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	t, summary := table.Unpivot(in.Rows, in.Config)
	return encodeOutputs(map[string]any{"table": t, "summary": summary})
}

// --- excel ---

type excelReadDataBlock struct{}

func (excelReadDataBlock) ID() string      { return "excel.read_data" }
func (excelReadDataBlock) Version() string { return "0.1.0" }
func (excelReadDataBlock) Run(ctx *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Workbook xlsx.WorkbookInput `json:"workbook"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}

	readCfg := xlsx.NewReadConfig()
	if raw, ok := inputs["read_config"]; ok {
		if err := decodeInputs(raw, &readCfg); err != nil {
			return nil, err
		}
	}

	var recalcCfg xlsx.RecalcConfig
	switch raw := inputs["recalc"].(type) {
	case bool:
		recalcCfg.Enabled = raw
	case map[string]any:
		if err := decodeInputs(raw, &recalcCfg); err != nil {
			return nil, err
		}
	}

	result, err := xlsx.Ingest(contextOf(ctx), in.Workbook, readCfg, recalcCfg)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(result)
}

// --- archive/file ---

type parseZip2TierBlock struct{}

func (parseZip2TierBlock) ID() string      { return "file.parse_zip_2tier" }
func (parseZip2TierBlock) Version() string { return "0.1.0" }
func (parseZip2TierBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		ZipBytes []byte `json:"zip_bytes"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	evidence := archive.ParseZip2Tier(in.ZipBytes)
	return encodeOutputs(map[string]any{"evidence": evidence})
}

type extractTextsBlock struct{}

func (extractTextsBlock) ID() string      { return "file.extract_texts" }
func (extractTextsBlock) Version() string { return "0.1.0" }
func (extractTextsBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Files []struct {
			Name   string `json:"name"`
			Bytes  []byte `json:"bytes"`
			Path   string `json:"path"`
			Base64 string `json:"base64"`
		} `json:"files"`
		MaxTotalChars int `json:"max_total_chars_per_file"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}

	files := make([]textextract.File, 0, len(in.Files))
	for _, f := range in.Files {
		data := f.Bytes
		if len(data) == 0 && f.Base64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(f.Base64)
			if err != nil {
				return nil, blockerr.NewInputError("files[].base64", "base64-encoded string", f.Base64)
			}
			data = decoded
		}
		if len(data) == 0 && f.Path != "" {
			read, err := os.ReadFile(f.Path)
			if err != nil {
				continue // files that cannot be read are skipped, per spec §4.I
			}
			data = read
		}
		name := f.Name
		if name == "" {
			name = "document.txt"
		}
		files = append(files, textextract.File{Name: name, Data: data})
	}

	out, err := archive.ExtractTextsFromFiles(files, in.MaxTotalChars)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"evidence": out})
}

type encodeBase64Block struct{}

func (encodeBase64Block) ID() string      { return "file.encode_base64" }
func (encodeBase64Block) Version() string { return "0.1.0" }
func (encodeBase64Block) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Name      string `json:"name"`
		Bytes     []byte `json:"bytes"`
		AsDataURI bool   `json:"as_data_uri"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	return encodeOutputs(archive.EncodeBase64(in.Name, in.Bytes, in.AsDataURI))
}

// --- nlp ---

type chunkTextsBlock struct{}

func (chunkTextsBlock) ID() string      { return "nlp.chunk_texts" }
func (chunkTextsBlock) Version() string { return "0.1.0" }
func (chunkTextsBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Texts []nlp.NamedText `json:"texts"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	cfg := nlp.NewChunkConfig()
	if raw, ok := inputs["config"]; ok {
		if err := decodeInputs(raw, &cfg); err != nil {
			return nil, err
		}
	}
	chunks, err := nlp.ChunkTexts(in.Texts, cfg)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"chunks": chunks})
}

type embedTextsBlock struct{}

func (embedTextsBlock) ID() string      { return "nlp.embed_texts" }
func (embedTextsBlock) Version() string { return "0.1.0" }

// Run resolves texts from either `texts` or `chunks`, then looks up a
// configured embedding provider. None ships with this engine (concrete
// LLM/embedding providers are out of scope, per spec §5), so this always
// fails with CONFIG_MISSING -- mirroring the Python source's own
// build_text_embedder() factory, which raises before ever calling the
// embed function when no provider is configured. The block stays
// registered so callers get a documented failure instead of
// BLOCK_NOT_FOUND, and nlp.EmbedTexts remains the wiring point for a
// future concrete provider.
func (embedTextsBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Texts  []string `json:"texts"`
		Chunks []struct {
			Text string `json:"text"`
		} `json:"chunks"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}

	texts := in.Texts
	if len(texts) == 0 {
		for _, c := range in.Chunks {
			if c.Text != "" {
				texts = append(texts, c.Text)
			}
		}
	}
	if len(texts) == 0 {
		return nil, blockerr.NewInputError("texts|chunks", "texts: []string OR chunks: []{text}", inputs)
	}

	return nil, blockerr.New(blockerr.ConfigMissing, "no embedding provider configured").
		WithHint("nlp.Embedder has no concrete implementation in this engine; wire one and pass it to nlp.EmbedTexts")
}

// --- matching ---

type semanticTopKBlock struct{}

func (semanticTopKBlock) ID() string      { return "matching.semantic_topk" }
func (semanticTopKBlock) Version() string { return "0.1.0" }
func (semanticTopKBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Items             []matching.ScoredItem `json:"items"`
		QueryEmbedding    []float64             `json:"query_embedding"`
		QueryText         string                `json:"query_text"`
		Metric            matching.Metric       `json:"metric"`
		TopK              int                   `json:"top_k"`
		RequireEmbeddings bool                  `json:"require_embeddings"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	out, err := matching.SemanticTopK(in.Items, in.QueryEmbedding, in.QueryText, in.Metric, in.TopK, in.RequireEmbeddings)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(map[string]any{"results": out})
}

type recordLinkageBlock struct{}

func (recordLinkageBlock) ID() string      { return "matching.record_linkage" }
func (recordLinkageBlock) Version() string { return "0.1.0" }
func (recordLinkageBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Left     []map[string]any      `json:"left"`
		Right    []map[string]any      `json:"right"`
		Keys     []matching.LinkKey     `json:"keys"`
		Strategy matching.LinkStrategy  `json:"strategy"`
		Fuzzy    struct {
			Threshold float64 `json:"threshold"`
		} `json:"fuzzy"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	out, err := matching.RecordLinkage(in.Left, in.Right, in.Keys, in.Strategy, in.Fuzzy.Threshold)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(out)
}

type similarityClusterBlock struct{}

func (similarityClusterBlock) ID() string      { return "matching.similarity_cluster" }
func (similarityClusterBlock) Version() string { return "0.1.0" }
func (similarityClusterBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var in struct {
		Items     []map[string]any       `json:"items"`
		TextField string                  `json:"text_field"`
		Method    matching.ClusterMethod  `json:"method"`
		Threshold float64                 `json:"threshold"`
	}
	if err := decodeInputs(inputs, &in); err != nil {
		return nil, err
	}
	out, err := matching.SimilarityCluster(in.Items, in.TextField, in.Method, in.Threshold)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(out)
}

// --- external ---

type httpCallBlock struct{}

func (httpCallBlock) ID() string      { return "external.api.http" }
func (httpCallBlock) Version() string { return "0.1.0" }
func (httpCallBlock) Run(ctx *Context, inputs Inputs) (Outputs, error) {
	var req external.HTTPRequest
	if err := decodeInputs(inputs, &req); err != nil {
		return nil, err
	}
	out, err := external.Call(contextOf(ctx), req)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(out)
}

type notifyBlock struct{}

func (notifyBlock) ID() string      { return "notifier.notify" }
func (notifyBlock) Version() string { return "0.1.0" }
func (notifyBlock) Run(ctx *Context, inputs Inputs) (Outputs, error) {
	var req external.NotifyRequest
	if err := decodeInputs(inputs, &req); err != nil {
		return nil, err
	}
	out, err := external.Notify(contextOf(ctx), req)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(out)
}

type signManifestBlock struct{}

func (signManifestBlock) ID() string      { return "security.attestation.sign_manifest" }
func (signManifestBlock) Version() string { return "0.1.0" }
func (signManifestBlock) Run(_ *Context, inputs Inputs) (Outputs, error) {
	var req external.SignManifestRequest
	if err := decodeInputs(inputs, &req); err != nil {
		return nil, err
	}
	out, err := external.SignManifest(req)
	if err != nil {
		return nil, err
	}
	return encodeOutputs(out)
}

func contextOf(_ *Context) context.Context {
	return context.Background()
}
