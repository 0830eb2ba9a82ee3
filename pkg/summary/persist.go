package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the conventional file name for a persisted run summary.
const FileName = "summary.json"

// Encode renders the summary as indented JSON, the form it is
// persisted and uploaded in.
func (rs *RunSummary) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling summary: %w", err)
	}

	return data, nil
}

// WriteFile persists the summary as indented JSON at path, creating
// parent directories as needed.
func (rs *RunSummary) WriteFile(path string) error {
	data, err := rs.Encode()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	return nil
}

// ReadFile loads a previously persisted run summary.
func ReadFile(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}

	return Decode(data)
}

// Decode parses a run summary from its JSON representation.
func Decode(data []byte) (*RunSummary, error) {
	var rs RunSummary
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}

	return &rs, nil
}
