package shell

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
)

// LoadHistory reads the history file into state. A missing file is fine.
func LoadHistory(state *liner.State, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("shell: open history: %w", err)
	}
	defer f.Close()
	if _, err := state.ReadHistory(f); err != nil {
		return fmt.Errorf("shell: read history: %w", err)
	}
	return nil
}

// SaveHistory writes state's history to path.
func SaveHistory(state *liner.State, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("shell: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("shell: create history: %w", err)
	}
	if _, err := state.WriteHistory(f); err != nil {
		f.Close()
		return fmt.Errorf("shell: write history: %w", err)
	}
	return f.Close()
}
