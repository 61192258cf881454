// Package table implements a minimal column-typed table as the engine's
// tabular runtime: row-set construction, pivot (wide reshaping with
// aggregation), and unpivot (long reshaping). The retrieved example pack
// carries no dataframe library for Go, so this package is itself the
// "tabular runtime" the spec's error policy refers to — there is no
// external engine whose absence maps to DEPENDENCY_NOT_FOUND, because the
// minimal table built here never fails to load.
package table

import (
	"sort"
	"strconv"
)

// Table is a minimal column-typed row set: an ordered column list plus
// row mappings keyed by column name.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Summary reports shape for pivot/unpivot outputs.
type Summary struct {
	Rows    int      `json:"rows"`
	Cols    int      `json:"cols"`
	Columns []string `json:"columns"`
}

// FromRows builds a Table from mapping rows, keeping their keys as
// columns (union across all rows, in row order, each row's new keys
// sorted). List-of-lists rows go through FromPositionalRows instead.
func FromRows(rows []map[string]any) *Table {
	colSeen := map[string]bool{}
	columns := make([]string, 0)
	for _, row := range rows {
		for _, col := range orderedKeys(row) {
			if !colSeen[col] {
				colSeen[col] = true
				columns = append(columns, col)
			}
		}
	}
	return &Table{Columns: columns, Rows: rows}
}

// FromPositionalRows builds a Table from rows that are plain value lists
// rather than field mappings, assigning "col<k>" (1-based) column names.
func FromPositionalRows(rows [][]any) *Table {
	maxLen := 0
	for _, r := range rows {
		if len(r) > maxLen {
			maxLen = len(r)
		}
	}
	columns := make([]string, maxLen)
	for i := range columns {
		columns[i] = colName(i + 1)
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		row := make(map[string]any, maxLen)
		for i, v := range r {
			row[columns[i]] = v
		}
		out = append(out, row)
	}
	return &Table{Columns: columns, Rows: out}
}

func colName(n int) string {
	return "col" + strconv.Itoa(n)
}

// orderedKeys returns a row's keys sorted for deterministic column
// discovery order when a row's own insertion order isn't observable
// through a Go map.
func orderedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func summaryOf(t *Table) Summary {
	return Summary{Rows: len(t.Rows), Cols: len(t.Columns), Columns: t.Columns}
}
