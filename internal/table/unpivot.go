package table

// UnpivotConfig mirrors a wide-to-long melt call.
type UnpivotConfig struct {
	IDVars      []string `json:"id_vars"`
	ValueVars   []string `json:"value_vars"`
	VarName     string   `json:"var_name"`
	ValueName   string   `json:"value_name"`
	IgnoreIndex bool     `json:"ignore_index"`
}

// NewUnpivotConfig returns a config with the spec's documented defaults:
// var_name "variable", value_name "value", ignore_index true.
func NewUnpivotConfig() UnpivotConfig {
	return UnpivotConfig{VarName: "variable", ValueName: "value", IgnoreIndex: true}
}

// Unpivot reshapes rows from wide to long: each (row, value_var) pair
// becomes its own output row carrying the id vars plus a var/value pair.
// When ValueVars is empty, every field not in IDVars is melted.
func Unpivot(rows []map[string]any, cfg UnpivotConfig) (*Table, Summary) {
	varName := cfg.VarName
	if varName == "" {
		varName = "variable"
	}
	valueName := cfg.ValueName
	if valueName == "" {
		valueName = "value"
	}

	idSet := make(map[string]bool, len(cfg.IDVars))
	for _, f := range cfg.IDVars {
		idSet[f] = true
	}

	valueVars := cfg.ValueVars
	if len(valueVars) == 0 {
		seen := map[string]bool{}
		for _, row := range rows {
			for _, k := range orderedKeys(row) {
				if idSet[k] || seen[k] {
					continue
				}
				seen[k] = true
				valueVars = append(valueVars, k)
			}
		}
	}

	outRows := make([]map[string]any, 0, len(rows)*len(valueVars))
	for _, row := range rows {
		for _, vv := range valueVars {
			out := make(map[string]any, len(cfg.IDVars)+2)
			for _, idf := range cfg.IDVars {
				out[idf] = row[idf]
			}
			out[varName] = vv
			out[valueName] = row[vv]
			outRows = append(outRows, out)
		}
	}

	columns := append([]string{}, cfg.IDVars...)
	columns = append(columns, varName, valueName)

	t := &Table{Columns: columns, Rows: outRows}
	return t, summaryOf(t)
}
