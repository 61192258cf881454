package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// PivotConfig mirrors the teacher-equivalent pivot_table call: group rows
// by Index, spread Columns values across the result's column axis, and
// aggregate Values into each cell.
type PivotConfig struct {
	Index         []string `json:"index"`
	Columns       []string `json:"columns"`
	Values        []string `json:"values"`
	AggFunc       any      `json:"aggfunc"` // string, []string (zipped with Values), or map[string]string
	FillValue     any      `json:"fill_value"`
	Dropna        bool     `json:"dropna"`
	Sort          bool     `json:"sort"`
	FlattenJoiner string   `json:"flatten_joiner"`
}

// NewPivotConfig returns a config with the spec's documented defaults:
// aggfunc "sum", dropna true, sort true, flatten_joiner "__".
func NewPivotConfig() PivotConfig {
	return PivotConfig{AggFunc: "sum", Dropna: true, Sort: true, FlattenJoiner: "__"}
}

// Pivot reshapes rows from long to wide, aggregating Values per
// Index×Columns cell. The pack carries no pandas-equivalent MultiIndex
// columns object, so composite column labels are always flattened (the
// spec's flatten_multiindex=false case has no meaningful analogue over a
// flat row-of-maps representation and is treated as always-on).
func Pivot(rows []map[string]any, cfg PivotConfig) (*Table, Summary, error) {
	if len(cfg.Index) == 0 || len(cfg.Columns) == 0 {
		return nil, Summary{}, blockerr.NewInputError("index|columns", "non-empty field name lists", cfg)
	}
	joiner := cfg.FlattenJoiner
	if joiner == "" {
		joiner = "__"
	}

	valueFields := cfg.Values
	if len(valueFields) == 0 {
		valueFields = inferValueFields(rows, cfg.Index, cfg.Columns)
	}
	ops := resolveAggFuncs(cfg.AggFunc, valueFields)

	type cell struct {
		idxKey string
		colKey string
	}
	groups := make(map[cell][]map[string]any)
	idxLabels := make(map[string][]string)
	colLabels := make(map[string][]string)

	for _, row := range rows {
		idxParts := fieldValues(row, cfg.Index)
		colParts := fieldValues(row, cfg.Columns)
		idxKey := strings.Join(idxParts, "\x1f")
		colKey := strings.Join(colParts, "\x1f")
		idxLabels[idxKey] = idxParts
		colLabels[colKey] = colParts
		c := cell{idxKey: idxKey, colKey: colKey}
		groups[c] = append(groups[c], row)
	}

	idxKeys := sortedKeys(idxLabels, cfg.Sort)
	colKeys := sortedKeys(colLabels, cfg.Sort)

	multipleValueFields := len(valueFields) > 1
	outColumns := append([]string{}, cfg.Index...)
	pivotColNames := make(map[[2]string]string) // (valueField, colKey) -> output column name
	colIdx := 0
	for _, vf := range valueFields {
		for _, ck := range colKeys {
			colIdx++
			label := pivotColumnLabel(vf, colLabels[ck], multipleValueFields, joiner, colIdx)
			pivotColNames[[2]string{vf, ck}] = label
			outColumns = append(outColumns, label)
		}
	}

	outRows := make([]map[string]any, 0, len(idxKeys))
	for _, ik := range idxKeys {
		out := make(map[string]any, len(cfg.Index)+len(outColumns))
		for i, field := range cfg.Index {
			out[field] = idxLabels[ik][i]
		}
		allNull := true
		for _, vf := range valueFields {
			for _, ck := range colKeys {
				c := cell{idxKey: ik, colKey: ck}
				colName := pivotColNames[[2]string{vf, ck}]
				group := groups[c]
				if len(group) == 0 {
					out[colName] = cfg.FillValue
					continue
				}
				value, err := reduce(group, vf, ops[vf])
				if err != nil {
					return nil, Summary{}, err
				}
				out[colName] = value
				allNull = false
			}
		}
		if cfg.Dropna && allNull {
			continue
		}
		outRows = append(outRows, out)
	}

	t := &Table{Columns: outColumns, Rows: outRows}
	return t, summaryOf(t), nil
}

func pivotColumnLabel(valueField string, colParts []string, multipleValueFields bool, joiner string, idx int) string {
	parts := make([]string, 0, len(colParts)+1)
	if multipleValueFields && valueField != "" {
		parts = append(parts, valueField)
	}
	for _, p := range colParts {
		if p != "" {
			parts = append(parts, p)
		}
	}
	label := strings.TrimSpace(strings.Join(parts, joiner))
	if label == "" {
		label = fmt.Sprintf("col_%d", idx)
	}
	return label
}

func inferValueFields(rows []map[string]any, index, columns []string) []string {
	exclude := map[string]bool{}
	for _, f := range index {
		exclude[f] = true
	}
	for _, f := range columns {
		exclude[f] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, row := range rows {
		for _, k := range orderedKeys(row) {
			if exclude[k] || seen[k] {
				continue
			}
			if _, ok := toFloatOrSkip(row[k]); !ok {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func resolveAggFuncs(aggFunc any, valueFields []string) map[string]string {
	ops := make(map[string]string, len(valueFields))
	switch v := aggFunc.(type) {
	case string:
		for _, vf := range valueFields {
			ops[vf] = v
		}
	case map[string]string:
		for _, vf := range valueFields {
			op, ok := v[vf]
			if !ok {
				op = "sum"
			}
			ops[vf] = op
		}
	case []string:
		for i, vf := range valueFields {
			if i < len(v) {
				ops[vf] = v[i]
			} else {
				ops[vf] = "sum"
			}
		}
	default:
		for _, vf := range valueFields {
			ops[vf] = "sum"
		}
	}
	return ops
}

func fieldValues(row map[string]any, fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = fmt.Sprint(row[f])
	}
	return out
}

func sortedKeys(labels map[string][]string, sortIt bool) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	if sortIt {
		sort.Strings(keys)
	}
	return keys
}

func reduce(rows []map[string]any, field string, op string) (any, error) {
	switch op {
	case "count":
		return float64(len(rows)), nil
	case "nunique":
		seen := map[string]bool{}
		for _, r := range rows {
			seen[fmt.Sprint(r[field])] = true
		}
		return float64(len(seen)), nil
	case "first":
		return rows[0][field], nil
	case "last":
		return rows[len(rows)-1][field], nil
	}

	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if f, ok := toFloatOrSkip(r[field]); ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	switch op {
	case "sum":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case "mean", "avg":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case "min":
		sort.Float64s(values)
		return values[0], nil
	case "max":
		sort.Float64s(values)
		return values[len(values)-1], nil
	default:
		return nil, blockerr.NewInputError("aggfunc", "one of sum, mean, count, min, max, nunique, first, last", op)
	}
}

func toFloatOrSkip(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
