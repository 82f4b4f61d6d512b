package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"cheaphours/internal/record"
)

// JSONFile reads a generic list of {"time","price","amount"} objects.
// null (or an absent key) leaves the field undefined.
type JSONFile struct {
	path   string
	logger zerolog.Logger
}

func NewJSONFile(path string, logger zerolog.Logger) *JSONFile {
	return &JSONFile{path: path, logger: logger.With().Str("component", "json_source").Logger()}
}

func (j *JSONFile) Name() string { return "json" }

func (j *JSONFile) Fetch(ctx context.Context) ([]record.Record, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		j.logger.Warn().Str("file", j.path).Msg("json file not found; skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []record.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", j.path, err)
	}
	return records, nil
}

var _ Source = (*JSONFile)(nil)
