package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Transaction runs fn with a fresh scratch directory under temp/,
// guaranteed to be removed on return whether or not fn succeeded.
func (v *Vault) Transaction(fn func(scratchDir string) error) error {
	dir := filepath.Join(v.root, "temp", uuid.NewString())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("vault: allocating transaction scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	return fn(dir)
}
