// Package report persists batch results as JSON artifacts and renders them.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/speedrun-hq/pairlauncher/pkg/models"
)

// timestampLayout is a UTC timestamp safe to use in file names
const timestampLayout = "20060102T150405.000Z"

// Build assembles a result from metadata and finalized outcomes
func Build(meta models.RunMetadata, outcomes []models.OperationOutcome) *models.BatchResult {
	result := models.NewBatchResult(meta)
	for _, o := range outcomes {
		result.Append(o)
	}
	return result
}

// FileName returns the artifact name of result
func FileName(result *models.BatchResult) string {
	return fmt.Sprintf("batch-%s-%s.json", sanitize(result.Network), result.Timestamp.UTC().Format(timestampLayout))
}

// EnsureWritable creates dir if needed and checks that files can be created in it
func EnsureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// Persist writes result to a new file in dir and returns its path. An
// existing artifact is never overwritten.
func Persist(dir string, result *models.BatchResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch result: %w", err)
	}

	path := filepath.Join(dir, FileName(result))
	err = createArtifact(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// createArtifact creates path exclusively and fills it with write. A partly
// written file is removed.
func createArtifact(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("artifact %s already exists", path)
		}
		return fmt.Errorf("failed to create artifact: %w", err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	return nil
}

// Load reads an artifact written by Persist
func Load(path string) (*models.BatchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	var result models.BatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("invalid artifact %s: %w", path, err)
	}
	return &result, nil
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, s)
}
