package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cheaphours/internal/record"
)

const listMeterReadingsSQL = `SELECT
        reading_ts,
        consumption_kwh::text
    FROM meter_readings
    WHERE reading_ts >= $1
    ORDER BY reading_ts;`

// PostgresOptions parameterise the meter reading source.
type PostgresOptions struct {
	Lookback time.Duration
	Timeout  time.Duration
}

// Postgres reads hourly consumption from a meter_readings table.
type Postgres struct {
	pool   *pgxpool.Pool
	opts   PostgresOptions
	logger zerolog.Logger
	now    func() time.Time
}

// NewPostgres wraps an already configured pool.
func NewPostgres(pool *pgxpool.Pool, opts PostgresOptions, logger zerolog.Logger) *Postgres {
	if opts.Lookback <= 0 {
		opts.Lookback = 7 * 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Postgres{
		pool:   pool,
		opts:   opts,
		logger: logger.With().Str("component", "postgres_source").Logger(),
		now:    time.Now,
	}
}

func (p *Postgres) Name() string { return "postgres" }

// Fetch lists readings newer than the lookback window.
func (p *Postgres) Fetch(ctx context.Context) ([]record.Record, error) {
	if p.pool == nil {
		return nil, errors.New("postgres pool not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	since := p.now().UTC().Add(-p.opts.Lookback)
	rows, err := p.pool.Query(ctx, listMeterReadingsSQL, since)
	if err != nil {
		return nil, fmt.Errorf("list meter readings: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanReading)
	if err != nil {
		return nil, fmt.Errorf("scan meter readings: %w", err)
	}

	p.logger.Debug().Time("since", since).Int("rows", len(records)).Msg("meter readings fetched")
	return records, nil
}

func scanReading(row pgx.CollectableRow) (record.Record, error) {
	var (
		ts     time.Time
		amount *string
	)
	if err := row.Scan(&ts, &amount); err != nil {
		return record.Record{}, err
	}

	value := record.Undefined
	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return record.Record{}, fmt.Errorf("parse consumption: %w", err)
		}
		value = decimal.NewNullDecimal(d)
	}
	return record.New(ts, record.Undefined, value), nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

var _ Source = (*Postgres)(nil)
