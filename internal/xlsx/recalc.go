package xlsx

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// RecalcEngine selects how formula cells are resolved before reading.
type RecalcEngine string

const (
	RecalcNone        RecalcEngine = ""
	RecalcLibreOffice RecalcEngine = "libreoffice"
	RecalcFormula     RecalcEngine = "pycel" // in-process evaluator, naming kept for operator familiarity
)

// RecalcConfig configures recalculation before reading computed values.
type RecalcConfig struct {
	Enabled     bool         `json:"enabled"`
	Engine      RecalcEngine `json:"engine"` // defaults to RecalcLibreOffice when Enabled and unset
	SofficePath string       `json:"soffice_path"`
	TimeoutSec  int          `json:"timeout_sec"`
}

func (c RecalcConfig) timeout() time.Duration {
	sec := c.TimeoutSec
	if sec <= 0 {
		sec = 120
	}
	return time.Duration(sec) * time.Second
}

func (c RecalcConfig) engine() RecalcEngine {
	if c.Engine == "" {
		return RecalcLibreOffice
	}
	return c.Engine
}

// recalcViaLibreOffice copies data into a scratch directory and invokes
// soffice --headless twice (xlsx -> ods -> xlsx) to force a full
// recalculation, per spec §4.H step 1. The original input is never
// touched. Timeout maps to EXTERNAL_TIMEOUT; any other soffice failure
// maps to EXTERNAL_API_ERROR, while scratch-directory setup failures are
// returned as plain errors -- never a silent fallback to uncalculated values.
func recalcViaLibreOffice(ctx context.Context, data []byte, name string, cfg RecalcConfig) ([]byte, error) {
	soffice := resolveSoffice(cfg.SofficePath)
	if soffice == "" {
		return nil, blockerr.New(blockerr.ExternalAPIError, "LibreOffice headless recalc failed: soffice not found").
			WithHint("install LibreOffice and ensure `soffice` is on PATH, or set recalc.soffice_path / LIBREOFFICE_PATH")
	}

	scratch, err := os.MkdirTemp("", "xlsx-recalc-*")
	if err != nil {
		return nil, fmt.Errorf("xlsx: allocating recalc scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if name == "" {
		name = "input.xlsx"
	}
	inPath := filepath.Join(scratch, name)
	if err := os.WriteFile(inPath, data, 0o640); err != nil {
		return nil, fmt.Errorf("xlsx: writing recalc scratch input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	if err := runSoffice(ctx, soffice, "ods", scratch, inPath); err != nil {
		return nil, classifyRecalcError(ctx, err, "convert to ods")
	}
	odsPath := filepath.Join(scratch, stemOf(inPath)+".ods")
	if _, err := os.Stat(odsPath); err != nil {
		return nil, blockerr.New(blockerr.ExternalAPIError, "LibreOffice headless recalc failed: ods output missing")
	}

	if err := runSoffice(ctx, soffice, "xlsx:Calc MS Excel 2007 XML", scratch, odsPath); err != nil {
		return nil, classifyRecalcError(ctx, err, "convert to xlsx")
	}
	outPath := filepath.Join(scratch, stemOf(odsPath)+".xlsx")
	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, blockerr.New(blockerr.ExternalAPIError, "LibreOffice headless recalc failed: xlsx output missing")
	}
	return out, nil
}

func classifyRecalcError(ctx context.Context, err error, step string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return blockerr.New(blockerr.ExternalTimeout, "LibreOffice headless recalc timed out during "+step)
	}
	return blockerr.New(blockerr.ExternalAPIError, "LibreOffice headless recalc failed during "+step).
		WithDetails(map[string]any{"error": err.Error()})
}

func runSoffice(ctx context.Context, soffice, format, outDir, inPath string) error {
	cmd := exec.CommandContext(ctx, soffice, "--headless", "--convert-to", format, "--outdir", outDir, inPath)
	return cmd.Run()
}

func resolveSoffice(preferred string) string {
	candidates := []string{}
	if preferred != "" {
		candidates = append(candidates, preferred)
	}
	if env := os.Getenv("LIBREOFFICE_PATH"); env != "" {
		candidates = append(candidates, env)
	}
	candidates = append(candidates, "soffice")

	for _, c := range candidates {
		if filepath.IsAbs(c) {
			if _, err := os.Stat(c); err == nil {
				return c
			}
			continue
		}
		if resolved, err := exec.LookPath(c); err == nil {
			return resolved
		}
	}
	return ""
}

func stemOf(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
