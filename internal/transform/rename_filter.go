// Package transform implements the row-sequence transformation blocks:
// field renaming, filtering, grouped aggregation, feature computation,
// fiscal quarter resolution, dotted-path picking, item flattening, and
// evidence grouping.
package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// RenameFields applies rename to matching keys and removes keys in drop,
// returning a new map per row; key order is not preserved.
func RenameFields(items []map[string]any, rename map[string]string, drop []string) []map[string]any {
	dropSet := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row := make(map[string]any, len(item))
		for k, v := range item {
			if dropSet[k] {
				continue
			}
			newKey := k
			if renamed, ok := rename[k]; ok {
				newKey = renamed
			}
			row[newKey] = v
		}
		out = append(out, row)
	}
	return out
}

// Condition is one filter predicate: field OP value.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Filter keeps only the items that satisfy every condition (logical AND).
func Filter(items []map[string]any, conditions []Condition) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		keep := true
		for _, c := range conditions {
			ok, err := matchCondition(item[c.Field], c.Operator, c.Value)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, item)
		}
	}
	return out, nil
}

func matchCondition(actual any, operator string, want any) (bool, error) {
	switch operator {
	case "eq":
		return fmt.Sprint(actual) == fmt.Sprint(want), nil
	case "ne":
		return fmt.Sprint(actual) != fmt.Sprint(want), nil
	case "contains":
		return strings.Contains(strings.ToLower(fmt.Sprint(actual)), strings.ToLower(fmt.Sprint(want))), nil
	case "in":
		values, ok := want.([]any)
		if !ok {
			return false, blockerr.NewInputError("value", "list for operator \"in\"", want)
		}
		for _, v := range values {
			if fmt.Sprint(v) == fmt.Sprint(actual) {
				return true, nil
			}
		}
		return false, nil
	case "gt", "gte", "lt", "lte":
		a, err := toFloat(actual)
		if err != nil {
			return false, nil
		}
		b, err := toFloat(want)
		if err != nil {
			return false, err
		}
		switch operator {
		case "gt":
			return a > b, nil
		case "gte":
			return a >= b, nil
		case "lt":
			return a < b, nil
		case "lte":
			return a <= b, nil
		}
	}
	return false, blockerr.NewInputError("operator", "one of eq, ne, gt, gte, lt, lte, contains, in", operator)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, blockerr.NewInputError("value", "number", v)
		}
		return f, nil
	default:
		return 0, blockerr.NewInputError("value", "number", v)
	}
}

// Aggregation is one group_by_agg reduction: op applied to field.
type Aggregation struct {
	Field string `json:"field"`
	Op    string `json:"op"`
}

// GroupByAgg groups items by the values of the by keys (in first-seen
// order) and reduces each aggregation into a "<field>_<op>" column.
func GroupByAgg(items []map[string]any, by []string, aggregations []Aggregation) ([]map[string]any, error) {
	type group struct {
		key    string
		byVals map[string]any
		rows   []map[string]any
	}
	order := make([]string, 0)
	groups := make(map[string]*group)

	for _, item := range items {
		key := groupKey(item, by)
		g, ok := groups[key]
		if !ok {
			byVals := make(map[string]any, len(by))
			for _, k := range by {
				byVals[k] = item[k]
			}
			g = &group{key: key, byVals: byVals}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, item)
	}

	out := make([]map[string]any, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make(map[string]any, len(by)+len(aggregations))
		for k, v := range g.byVals {
			row[k] = v
		}
		for _, agg := range aggregations {
			value, err := reduceAggregation(g.rows, agg)
			if err != nil {
				return nil, err
			}
			row[fmt.Sprintf("%s_%s", agg.Field, agg.Op)] = value
		}
		out = append(out, row)
	}
	return out, nil
}

func groupKey(item map[string]any, by []string) string {
	parts := make([]string, len(by))
	for i, k := range by {
		parts[i] = fmt.Sprint(item[k])
	}
	return strings.Join(parts, "\x1f")
}

func reduceAggregation(rows []map[string]any, agg Aggregation) (any, error) {
	if agg.Op == "count" {
		return float64(len(rows)), nil
	}

	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		raw, ok := row[agg.Field]
		if !ok {
			continue
		}
		f, err := toFloat(raw)
		if err != nil {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return 0.0, nil
	}

	switch agg.Op {
	case "sum":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case "avg":
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
		return nil, blockerr.NewInputError("op", "one of sum, avg, min, max, count", agg.Op)
	}
}
