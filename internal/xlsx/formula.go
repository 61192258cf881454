package xlsx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// formulaError identifies the exact cell a formula evaluation aborted on,
// per spec §4.H step 2 ("abort with EXTERNAL_API_ERROR carrying the cell
// coordinate").
type formulaError struct {
	Sheet      string
	Coordinate string
	Reason     string
}

func (e *formulaError) Error() string {
	return fmt.Sprintf("xlsx: formula at %s!%s: %s", e.Sheet, e.Coordinate, e.Reason)
}

// evaluator resolves formula cells on demand, memoizing results and
// detecting the unresolvable constructs this minimal grammar does not
// cover: cross-sheet references, most built-in functions beyond
// SUM/AVERAGE/MIN/MAX/COUNT, and circular references.
type evaluator struct {
	sheet   string
	grid    [][]rawCell
	cache   map[string]float64
	visited map[string]bool
}

func newEvaluator(sheet string, grid [][]rawCell) *evaluator {
	return &evaluator{sheet: sheet, grid: grid, cache: map[string]float64{}, visited: map[string]bool{}}
}

// Resolve returns the evaluated value of the cell at (row, col), 0-based,
// evaluating its formula if present.
func (ev *evaluator) Resolve(row, col int) (any, error) {
	if row < 0 || row >= len(ev.grid) || col < 0 || col >= len(ev.grid[row]) {
		return nil, nil
	}
	cell := ev.grid[row][col]
	if !cell.isFormula {
		return resolvedValue(cell), nil
	}
	v, err := ev.evalFormulaCell(row, col, cell.formula)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (ev *evaluator) evalFormulaCell(row, col int, formula string) (float64, error) {
	coord := cellRef(row, col)
	if ev.visited[coord] {
		return 0, &formulaError{Sheet: ev.sheet, Coordinate: coord, Reason: "circular reference"}
	}
	if v, ok := ev.cache[coord]; ok {
		return v, nil
	}
	ev.visited[coord] = true
	defer delete(ev.visited, coord)

	p := &formulaParser{tokens: tokenizeFormula(formula), ev: ev, coord: coord}
	val, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if !p.atEnd() {
		return 0, &formulaError{Sheet: ev.sheet, Coordinate: coord, Reason: "unexpected trailing tokens"}
	}
	ev.cache[coord] = val
	return val, nil
}

func (ev *evaluator) cellNumber(ref string) (float64, error) {
	row, col, err := parseCellRef(ref)
	if err != nil {
		return 0, &formulaError{Sheet: ev.sheet, Coordinate: ref, Reason: err.Error()}
	}
	if row < 0 || row >= len(ev.grid) || col < 0 || col >= len(ev.grid[row]) {
		return 0, nil
	}
	cell := ev.grid[row][col]
	if cell.isFormula {
		return ev.evalFormulaCell(row, col, cell.formula)
	}
	v := resolvedValue(cell)
	switch n := v.(type) {
	case float64:
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, &formulaError{Sheet: ev.sheet, Coordinate: ref, Reason: "referenced cell is not numeric"}
	}
}

func cellRef(row, col int) string {
	return columnLetters(col+1) + strconv.Itoa(row+1)
}

func columnLetters(col int) string {
	var sb strings.Builder
	for col > 0 {
		col--
		sb.WriteByte(byte('A' + col%26))
		col /= 26
	}
	s := sb.String()
	// digits were appended least-significant first; reverse.
	runes := []byte(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

func parseCellRef(ref string) (row, col int, err error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
	}
	colIdx := columnIndexFromRef(ref[:i])
	rowIdx, err := strconv.Atoi(ref[i:])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
	}
	return rowIdx - 1, colIdx - 1, nil
}

// rangeNumbers resolves a "A1:B3" range into a flat list of numeric
// values, skipping blanks.
func (ev *evaluator) rangeNumbers(rangeRef string) ([]float64, error) {
	parts := strings.SplitN(rangeRef, ":", 2)
	if len(parts) != 2 {
		v, err := ev.cellNumber(rangeRef)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	}
	r1, c1, err := parseCellRef(parts[0])
	if err != nil {
		return nil, &formulaError{Sheet: ev.sheet, Coordinate: rangeRef, Reason: err.Error()}
	}
	r2, c2, err := parseCellRef(parts[1])
	if err != nil {
		return nil, &formulaError{Sheet: ev.sheet, Coordinate: rangeRef, Reason: err.Error()}
	}
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	var out []float64
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			ref := cellRef(r, c)
			v, err := ev.cellNumber(ref)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// AsBlockError converts a formulaError into the canonical error shape
// expected by callers outside this package.
func AsBlockError(err error) error {
	fe, ok := err.(*formulaError)
	if !ok {
		return err
	}
	return blockerr.New(blockerr.ExternalAPIError, fe.Error()).
		WithDetails(map[string]any{"sheet": fe.Sheet, "cell": fe.Coordinate})
}
