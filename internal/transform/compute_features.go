package transform

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// TextFeatureConfig configures text-feature extraction for one field.
// Ops is drawn from {normalize, ngram}; N sets the ngram size (default 2).
type TextFeatureConfig struct {
	Field string   `json:"field"`
	Ops   []string `json:"ops"`
	N     int      `json:"n"`
}

// NumericFeatureConfig configures numeric-feature extraction for one
// field. Ops is drawn from {raw, log, zscore}.
type NumericFeatureConfig struct {
	Field string   `json:"field"`
	Ops   []string `json:"ops"`
}

// FeatureRow is one item's computed feature set.
type FeatureRow struct {
	Features map[string]any `json:"features"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// ComputeFeatures emits a features mapping per item. Text fields always
// contribute a "<field>_len" feature; numeric fields always contribute
// "<field>_raw". zscore is computed against the population of the field's
// values across all items, so it requires the full item list up front.
func ComputeFeatures(items []map[string]any, textCfgs []TextFeatureConfig, numericCfgs []NumericFeatureConfig) []FeatureRow {
	numericStats := make(map[string]stats, len(numericCfgs))
	for _, cfg := range numericCfgs {
		values := make([]float64, 0, len(items))
		for _, item := range items {
			if f, ok := numericValue(item[cfg.Field]); ok {
				values = append(values, f)
			}
		}
		numericStats[cfg.Field] = computeStats(values)
	}

	out := make([]FeatureRow, 0, len(items))
	for _, item := range items {
		features := make(map[string]any)

		for _, cfg := range textCfgs {
			text := fmt.Sprint(item[cfg.Field])
			applyTextFeatures(features, cfg, text)
		}
		for _, cfg := range numericCfgs {
			raw, ok := numericValue(item[cfg.Field])
			applyNumericFeatures(features, cfg, raw, ok, numericStats[cfg.Field])
		}

		out = append(out, FeatureRow{Features: features})
	}
	return out
}

func applyTextFeatures(features map[string]any, cfg TextFeatureConfig, text string) {
	features[cfg.Field+"_len"] = len(text)

	normalized := normalizeText(text)
	hasNormalize := false
	hasNgram := false
	for _, op := range cfg.Ops {
		switch op {
		case "normalize":
			hasNormalize = true
		case "ngram":
			hasNgram = true
		}
	}
	if hasNormalize {
		features[cfg.Field+"_normalized"] = normalized
	}
	if hasNgram {
		n := cfg.N
		if n <= 0 {
			n = 2
		}
		features[cfg.Field+"_ngrams"] = charNgrams(normalized, n)
	}
}

func normalizeText(text string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}

func charNgrams(text string, n int) []string {
	runes := []rune(text)
	if len(runes) < n {
		return []string{}
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

func applyNumericFeatures(features map[string]any, cfg NumericFeatureConfig, raw float64, ok bool, s stats) {
	if !ok {
		raw = 0
	}
	for _, op := range cfg.Ops {
		switch op {
		case "raw":
			features[cfg.Field+"_raw"] = raw
		case "log":
			x := raw
			if x < 0 {
				x = 0
			}
			features[cfg.Field+"_log"] = math.Log1p(x)
		case "zscore":
			features[cfg.Field+"_zscore"] = s.zscore(raw)
		}
	}
	if _, present := features[cfg.Field+"_raw"]; !present {
		features[cfg.Field+"_raw"] = raw
	}
}

func numericValue(v any) (float64, bool) {
	f, err := toFloat(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

type stats struct {
	mean   float64
	stddev float64
}

func computeStats(values []float64) stats {
	if len(values) == 0 {
		return stats{}
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return stats{mean: mean, stddev: math.Sqrt(variance)}
}

func (s stats) zscore(v float64) float64 {
	if s.stddev == 0 {
		return 0
	}
	return (v - s.mean) / s.stddev
}
