package control

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// SamplingMethod selects the selection strategy for Sample.
type SamplingMethod string

const (
	SamplingRandom       SamplingMethod = "random"
	SamplingSystematic    SamplingMethod = "systematic"
	SamplingAttribute     SamplingMethod = "attribute"
	SamplingRiskWeighted  SamplingMethod = "risk_weighted"
)

// AttributeRule is one population filter predicate for attribute
// sampling: field OP value.
type AttributeRule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// SamplingResult is the output of Sample.
type SamplingResult struct {
	Samples  []map[string]any `json:"samples"`
	Excluded []map[string]any `json:"excluded"`
	Summary  map[string]any   `json:"summary"`
}

// Sample draws size items from population using method, seeded explicitly
// (never the package-global rand source) so runs are reproducible given
// the same seed.
func Sample(population []map[string]any, method SamplingMethod, size int, attributeRules []AttributeRule, riskWeights map[string]float64, seed int64) SamplingResult {
	rng := rand.New(rand.NewSource(seed))

	n := size
	if n < 0 {
		n = 0
	}
	if n > len(population) {
		n = len(population)
	}

	var candidates []map[string]any
	switch method {
	case SamplingAttribute:
		if len(attributeRules) > 0 {
			for _, item := range population {
				if matchesAllRules(item, attributeRules) {
					candidates = append(candidates, item)
				}
			}
		} else {
			candidates = population
		}
	case SamplingRiskWeighted:
		if len(riskWeights) > 0 {
			candidates = sampleRiskWeighted(population, riskWeights, n, rng)
		} else {
			candidates = population
		}
	case SamplingSystematic:
		candidates = sampleSystematic(population, n, rng)
	default:
		candidates = sampleRandom(population, n, rng)
	}

	samples := candidates
	if len(samples) > n {
		samples = samples[:n]
	}

	excluded := excludeSelected(population, samples)

	return SamplingResult{
		Samples:  samples,
		Excluded: excluded,
		Summary: map[string]any{
			"population": len(population),
			"selected":   len(samples),
			"method":     string(method),
		},
	}
}

func sampleRandom(population []map[string]any, n int, rng *rand.Rand) []map[string]any {
	if n <= 0 || len(population) == 0 {
		return []map[string]any{}
	}
	idx := rng.Perm(len(population))[:n]
	out := make([]map[string]any, n)
	for i, p := range idx {
		out[i] = population[p]
	}
	return out
}

func sampleSystematic(population []map[string]any, n int, rng *rand.Rand) []map[string]any {
	if n <= 0 || len(population) == 0 {
		return []map[string]any{}
	}
	step := len(population) / n
	if step < 1 {
		step = 1
	}
	start := rng.Intn(step)
	out := make([]map[string]any, 0, n)
	for i := start; i < len(population) && len(out) < n; i += step {
		out = append(out, population[i])
	}
	return out
}

func sampleRiskWeighted(population []map[string]any, weights map[string]float64, n int, rng *rand.Rand) []map[string]any {
	if n <= 0 || len(population) == 0 {
		return []map[string]any{}
	}
	ws := make([]float64, len(population))
	total := 0.0
	for i, item := range population {
		w, ok := weights[itemKey(item)]
		if !ok || w < 0 {
			w = 1.0
		}
		ws[i] = w
		total += w
	}
	if total <= 0 {
		return population
	}

	picks := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		r := rng.Float64() * total
		acc := 0.0
		chosen := population[0]
		for j, item := range population {
			acc += ws[j]
			if r <= acc {
				chosen = item
				break
			}
		}
		picks = append(picks, chosen)
	}

	seen := make(map[int]bool)
	out := make([]map[string]any, 0, len(picks))
	for _, p := range picks {
		key := identityKey(population, p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func identityKey(population []map[string]any, target map[string]any) int {
	for i, item := range population {
		if sameMap(item, target) {
			return i
		}
	}
	return -1
}

func sameMap(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if fmt.Sprint(b[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func itemKey(item map[string]any) string {
	for _, k := range []string{"id", "_id", "key"} {
		if v, ok := item[k]; ok {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func matchesAllRules(item map[string]any, rules []AttributeRule) bool {
	for _, r := range rules {
		if !matchesRule(item, r) {
			return false
		}
	}
	return true
}

func matchesRule(item map[string]any, r AttributeRule) bool {
	var left any
	for k, v := range item {
		if strings.EqualFold(k, r.Field) {
			left = v
			break
		}
	}
	switch strings.ToLower(r.Operator) {
	case "eq", "":
		return fmt.Sprint(left) == fmt.Sprint(r.Value)
	case "ne":
		return fmt.Sprint(left) != fmt.Sprint(r.Value)
	case "gt", "gte", "lt", "lte":
		lf, err1 := toFloatLocal(left)
		rv, err2 := toFloatLocal(r.Value)
		if err1 != nil || err2 != nil {
			return false
		}
		switch strings.ToLower(r.Operator) {
		case "gt":
			return lf > rv
		case "gte":
			return lf >= rv
		case "lt":
			return lf < rv
		case "lte":
			return lf <= rv
		}
	case "contains":
		return strings.Contains(fmt.Sprint(left), fmt.Sprint(r.Value))
	case "in":
		values, ok := r.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if fmt.Sprint(v) == fmt.Sprint(left) {
				return true
			}
		}
	}
	return false
}

func toFloatLocal(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func excludeSelected(population, samples []map[string]any) []map[string]any {
	excluded := make([]map[string]any, 0, len(population))
	for _, item := range population {
		selected := false
		for _, s := range samples {
			if sameMap(item, s) {
				selected = true
				break
			}
		}
		if !selected {
			excluded = append(excluded, item)
		}
	}
	return excluded
}
