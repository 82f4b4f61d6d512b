package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"cheaphours/internal/record"
)

const (
	datahubStartColumn  = "Alkuaika"
	datahubAmountColumn = "Määrä"
)

// Datahub reads consumption exported from oma.datahub.fi as ';'-separated CSV.
type Datahub struct {
	path   string
	logger zerolog.Logger
}

// NewDatahub constructs the consumption source for the file at path.
func NewDatahub(path string, logger zerolog.Logger) *Datahub {
	return &Datahub{path: path, logger: logger.With().Str("component", "datahub_source").Logger()}
}

func (d *Datahub) Name() string { return "datahub" }

// Fetch parses the export. A missing file is logged and yields no records.
func (d *Datahub) Fetch(ctx context.Context) ([]record.Record, error) {
	file, err := os.Open(d.path)
	if errors.Is(err, os.ErrNotExist) {
		d.logger.Warn().Str("file", d.path).Msg("consumption file not found; skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return d.parse(ctx, file)
}

func (d *Datahub) parse(ctx context.Context, r io.Reader) ([]record.Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read datahub header: %w", err)
	}
	startIdx, amountIdx := -1, -1
	for i, name := range header {
		switch strings.TrimPrefix(strings.TrimSpace(name), "\ufeff") {
		case datahubStartColumn:
			startIdx = i
		case datahubAmountColumn:
			amountIdx = i
		}
	}
	if startIdx < 0 || amountIdx < 0 {
		return nil, fmt.Errorf("datahub header must contain %s and %s", datahubStartColumn, datahubAmountColumn)
	}

	var records []record.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if len(row) <= startIdx || len(row) <= amountIdx {
			return nil, fmt.Errorf("datahub line %d: too few columns", line)
		}

		t, err := record.ParseTime(row[startIdx])
		if err != nil {
			return nil, fmt.Errorf("datahub line %d: %w", line, err)
		}
		amount, err := record.ParseValue(strings.ReplaceAll(row[amountIdx], ",", "."))
		if err != nil {
			return nil, fmt.Errorf("datahub line %d: %w", line, err)
		}
		records = append(records, record.New(t, record.Undefined, amount))
	}

	d.logger.Debug().Int("rows", len(records)).Msg("consumption parsed")
	return records, nil
}

var _ Source = (*Datahub)(nil)
