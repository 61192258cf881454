package xlsx

import (
	"context"
	"fmt"
	"os"
	"time"
)

// WorkbookInput names the three ways a workbook may be supplied.
type WorkbookInput struct {
	Name  string `json:"name"`
	Bytes []byte `json:"bytes"`
	Path  string `json:"path"`
}

func (in WorkbookInput) resolveBytes() ([]byte, error) {
	if in.Bytes != nil {
		return in.Bytes, nil
	}
	if in.Path != "" {
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return nil, fmt.Errorf("xlsx: reading workbook path %s: %w", in.Path, err)
		}
		return data, nil
	}
	return nil, nil
}

// Mode selects whether Ingest also exposes a top-level flattened Rows for
// the single sheet read.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// SheetConfig overrides defaults for one named sheet.
type SheetConfig struct {
	Name          string `json:"name"`
	HeaderRow     int    `json:"header_row"`
	Range         string `json:"range"`
	SkipEmptyRows *bool  `json:"skip_empty_rows"`
}

// ReadConfig configures how sheets are selected and rows normalized.
// Zero-value callers should start from NewReadConfig to pick up the
// spec-mandated defaults rather than Go's zero values.
type ReadConfig struct {
	Mode          Mode          `json:"mode"`
	Sheets        []SheetConfig `json:"sheets"`
	HeaderRow     int           `json:"header_row"`     // default 1
	SkipEmptyRows bool          `json:"skip_empty_rows"` // default true
	DateAsISO     bool          `json:"date_as_iso"`     // default true
}

// NewReadConfig returns a ReadConfig with spec-mandated defaults: mode
// single, header_row=1, skip_empty_rows=true, date_as_iso=true.
func NewReadConfig() ReadConfig {
	return ReadConfig{Mode: ModeSingle, HeaderRow: 1, SkipEmptyRows: true, DateAsISO: true}
}

// RecalcStatus summarizes what recalculation (if any) occurred.
type RecalcStatus struct {
	Enabled bool
	Status  string
}

// IngestResult mirrors the Python source's `{data, rows?, summary}` shape.
type IngestResult struct {
	Data    map[string][]map[string]any
	Rows    []map[string]any // only populated in ModeSingle
	Summary Summary
}

// Summary reports per-sheet row counts and recalculation status.
type Summary struct {
	Sheets int
	Rows   map[string]int
	Recalc RecalcStatus
	Mode   Mode
}

// Ingest runs the full spreadsheet-ingestion pipeline: optional
// recalculation, sheet selection, header/skip-empty/date normalization.
func Ingest(ctx context.Context, input WorkbookInput, readCfg ReadConfig, recalcCfg RecalcConfig) (*IngestResult, error) {
	data, err := input.resolveBytes()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &IngestResult{Data: map[string][]map[string]any{}, Summary: Summary{Rows: map[string]int{}}}, nil
	}

	recalcStatus := RecalcStatus{Enabled: recalcCfg.Enabled, Status: "skipped"}
	var wb *Workbook
	var usesFormulaEval bool

	if recalcCfg.Enabled && recalcCfg.engine() == RecalcLibreOffice {
		recalced, err := recalcViaLibreOffice(ctx, data, input.Name, recalcCfg)
		if err != nil {
			return nil, err
		}
		recalcStatus.Status = "ok_2pass"
		wb, err = Load(recalced)
		if err != nil {
			return nil, err
		}
	} else if recalcCfg.Enabled && recalcCfg.engine() == RecalcFormula {
		wb, err = Load(data)
		if err != nil {
			return nil, err
		}
		usesFormulaEval = true
		recalcStatus.Status = "pycel_ok"
	} else {
		wb, err = Load(data)
		if err != nil {
			return nil, err
		}
	}

	sheetNames, perSheetCfg := resolveSheets(wb, readCfg)

	out := make(map[string][]map[string]any, len(sheetNames))
	rowCounts := make(map[string]int, len(sheetNames))

	for _, name := range sheetNames {
		scfg := perSheetCfg[name]
		headerRow := scfg.HeaderRow
		if headerRow <= 0 {
			headerRow = readCfg.HeaderRow
		}
		if headerRow <= 0 {
			headerRow = 1
		}
		skipEmpty := readCfg.SkipEmptyRows
		if scfg.SkipEmptyRows != nil {
			skipEmpty = *scfg.SkipEmptyRows
		}

		records, err := readSheet(wb, name, headerRow, skipEmpty, readCfg.DateAsISO, usesFormulaEval)
		if err != nil {
			return nil, err
		}
		out[name] = records
		rowCounts[name] = len(records)
	}

	result := &IngestResult{
		Data: out,
		Summary: Summary{
			Sheets: len(out),
			Rows:   rowCounts,
			Recalc: recalcStatus,
			Mode:   readCfg.Mode,
		},
	}

	if readCfg.Mode == "" || readCfg.Mode == ModeSingle {
		result.Rows = selectSingleModeRows(out, readCfg)
	}
	return result, nil
}

func resolveSheets(wb *Workbook, cfg ReadConfig) ([]string, map[string]SheetConfig) {
	perSheet := make(map[string]SheetConfig)
	if len(cfg.Sheets) == 0 {
		return wb.SheetNames, perSheet
	}

	known := make(map[string]bool, len(wb.SheetNames))
	for _, n := range wb.SheetNames {
		known[n] = true
	}

	var names []string
	for _, s := range cfg.Sheets {
		if !known[s.Name] {
			continue
		}
		names = append(names, s.Name)
		perSheet[s.Name] = s
	}
	return names, perSheet
}

func selectSingleModeRows(out map[string][]map[string]any, cfg ReadConfig) []map[string]any {
	if len(cfg.Sheets) == 1 {
		if rows, ok := out[cfg.Sheets[0].Name]; ok {
			return rows
		}
	}
	if len(out) == 1 {
		for _, rows := range out {
			return rows
		}
	}
	return nil
}

func readSheet(wb *Workbook, sheet string, headerRow int, skipEmpty, dateAsISO, useFormulaEval bool) ([]map[string]any, error) {
	grid := wb.grid(sheet)

	var ev *evaluator
	if useFormulaEval {
		ev = newEvaluator(sheet, grid)
	}

	resolveRow := func(rowIdx int) ([]any, error) {
		width := len(grid[rowIdx])
		vals := make([]any, width)
		for col := 0; col < width; col++ {
			if ev != nil {
				v, err := ev.Resolve(rowIdx, col)
				if err != nil {
					return nil, AsBlockError(err)
				}
				vals[col] = v
			} else {
				vals[col] = resolvedValue(grid[rowIdx][col])
			}
		}
		return vals, nil
	}

	var headers []string
	var records []map[string]any

	for rowIdx := range grid {
		currentRow := rowIdx + 1
		if currentRow < headerRow {
			continue
		}
		vals, err := resolveRow(rowIdx)
		if err != nil {
			return nil, err
		}
		if currentRow == headerRow {
			headers = make([]string, len(vals))
			for i, v := range vals {
				if v == nil {
					headers[i] = fmt.Sprintf("col%d", i+1)
					continue
				}
				headers[i] = fmt.Sprint(v)
			}
			continue
		}
		if len(headers) == 0 {
			continue
		}
		if skipEmpty && allBlank(vals) {
			continue
		}
		rec := make(map[string]any, len(headers))
		for i, h := range headers {
			var v any
			if i < len(vals) {
				v = vals[i]
			}
			if dateAsISO {
				if t, ok := v.(time.Time); ok {
					v = isoDate(t)
				}
			}
			rec[h] = v
		}
		records = append(records, rec)
	}
	return records, nil
}

func allBlank(vals []any) bool {
	for _, v := range vals {
		if !isBlank(v) {
			return false
		}
	}
	return true
}

