package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cheaphours/internal/record"
)

const (
	defaultSpotHintaURL = "https://api.spot-hinta.fi/TodayAndDayForward"
	defaultPriceField   = "PriceNoTax"
)

// SpotHintaOptions parameterise the spot-hinta.fi price source.
type SpotHintaOptions struct {
	URL        string
	PriceField string
	Timeout    time.Duration
	UserAgent  string
}

// SpotHinta fetches hourly spot prices from api.spot-hinta.fi.
type SpotHinta struct {
	opts   SpotHintaOptions
	logger zerolog.Logger
	client *http.Client
}

// NewSpotHinta constructs the price source.
func NewSpotHinta(opts SpotHintaOptions, logger zerolog.Logger) *SpotHinta {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.URL = strings.TrimSpace(opts.URL)
	if opts.URL == "" {
		opts.URL = defaultSpotHintaURL
	}
	if opts.PriceField == "" {
		opts.PriceField = defaultPriceField
	}

	return &SpotHinta{
		opts:   opts,
		logger: logger.With().Str("component", "spothinta_source").Logger(),
		client: &http.Client{Timeout: opts.Timeout},
	}
}

func (s *SpotHinta) Name() string { return "spot-hinta.fi" }

// Fetch downloads today's and tomorrow's prices.
func (s *SpotHinta) Fetch(ctx context.Context) ([]record.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "cheaphours/1.0")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("decode price rows: %w", err)
	}

	records := make([]record.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := s.toRecord(row)
		if err != nil {
			return nil, fmt.Errorf("price row %d: %w", i, err)
		}
		records = append(records, rec)
	}

	s.logger.Debug().Int("rows", len(records)).Msg("prices fetched")
	return records, nil
}

func (s *SpotHinta) toRecord(row map[string]json.RawMessage) (record.Record, error) {
	rawTime, ok := row["DateTime"]
	if !ok {
		return record.Record{}, errors.New("missing DateTime")
	}
	var ts string
	if err := json.Unmarshal(rawTime, &ts); err != nil {
		return record.Record{}, fmt.Errorf("decode DateTime: %w", err)
	}
	t, err := record.ParseTime(ts)
	if err != nil {
		return record.Record{}, err
	}

	rawPrice, ok := row[s.opts.PriceField]
	if !ok {
		return record.Record{}, fmt.Errorf("missing %s", s.opts.PriceField)
	}
	var price decimal.Decimal
	if err := json.Unmarshal(rawPrice, &price); err != nil {
		return record.Record{}, fmt.Errorf("decode %s: %w", s.opts.PriceField, err)
	}

	return record.New(t, decimal.NewNullDecimal(price), record.Undefined), nil
}

type errorResponse struct {
	Message string `json:"message"`
	Title   string `json:"title"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("spot-hinta api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Title != "" {
			return fmt.Errorf("spot-hinta api error (%d): %s", status, apiErr.Title)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("spot-hinta api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("spot-hinta api error (%d)", status)
}

var _ Source = (*SpotHinta)(nil)
