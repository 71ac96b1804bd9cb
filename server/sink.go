package server

import (
	"fmt"
	"os"
	"path/filepath"
)

// CodeSink is where uploaded robot code goes. The dashboard does not decide
// the destination; the host wires one in.
type CodeSink interface {
	Store(data []byte) error
}

// FileSink writes every upload to one fixed path, overwriting the previous
// upload. The simulator picks the file up from there by convention.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Store overwrites the sink path with data, creating the parent directory on
// first use.
func (f *FileSink) Store(data []byte) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create upload directory: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write uploaded code: %w", err)
	}
	return nil
}
