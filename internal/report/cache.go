package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/naka-gawa/repo-quality/internal/domain"
)

// SaveBatch persists a batch to disk as pretty-printed JSON. The file is
// the cache format consumed by LoadBatch.
func SaveBatch(batch *domain.Batch, filename string) error {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// LoadBatch reads a previously saved batch. A missing or malformed file is
// an error; the caller decides whether to fall back to a live fetch.
func LoadBatch(filename string) (*domain.Batch, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache %s: %w", filename, err)
	}
	var batch domain.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse cache %s: %w", filename, err)
	}
	if batch.RecordCount != len(batch.Repositories) {
		batch.RecordCount = len(batch.Repositories)
	}
	return &batch, nil
}
