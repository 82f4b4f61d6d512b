package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"cheaphours/internal/fetcher"
	"cheaphours/internal/metrics"
	"cheaphours/internal/record"
	"cheaphours/internal/selection"
	"cheaphours/internal/storage"
)

// Order controls the order in which chosen hours are added to a selection.
type Order int

const (
	OrderByTime Order = iota
	OrderByPrice
)

// ParseOrder maps "time" and "price" to an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "time":
		return OrderByTime, nil
	case "price":
		return OrderByPrice, nil
	default:
		return OrderByTime, fmt.Errorf("unknown order %q (want time or price)", s)
	}
}

// Service answers scheduling questions over a record store. It owns no
// state of its own; the store is shared with the caller.
type Service struct {
	store   *storage.Store
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New constructs the scheduling service. metrics may be nil.
func New(store *storage.Store, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		metrics: m,
		logger:  logger.With().Str("component", "service").Logger(),
	}
}

// Store exposes the underlying record store.
func (s *Service) Store() *storage.Store {
	return s.store
}

// FuturePrices lists records at or after now that have a price.
func (s *Service) FuturePrices(now time.Time) []record.Record {
	var out []record.Record
	for _, r := range s.store.FilterByTime(now, nil).All() {
		if r.HasPrice() {
			out = append(out, r)
		}
	}
	return out
}

// Incomplete lists future records that still lack a price or an amount.
func (s *Service) Incomplete(now time.Time) []record.Record {
	var out []record.Record
	for _, r := range s.store.FilterByTime(now, nil).All() {
		if !r.HasPrice() || !r.HasAmount() {
			out = append(out, r)
		}
	}
	return out
}

// FindCheapestHours selects the count cheapest priced hours starting at or
// after now. Equal prices are broken by the earlier hour.
func (s *Service) FindCheapestHours(now time.Time, count int, order Order) *selection.Selection {
	sel := selection.New()
	if count <= 0 {
		return sel
	}

	candidates := s.FuturePrices(now)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Price().Decimal.LessThan(candidates[j].Price().Decimal)
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	if order == OrderByTime {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Time().Before(candidates[j].Time())
		})
	}

	for _, r := range candidates {
		sel.AddHour(r.Time())
	}
	sel.Pack()

	s.metrics.SetSelectedHours(sel.Hours())
	s.logger.Debug().Int("requested", count).Int("chosen", len(candidates)).Str("ranges", sel.String()).Msg("cheapest hours selected")
	return sel
}

// CheapestHour returns the single cheapest priced record at or after now.
func (s *Service) CheapestHour(now time.Time) (record.Record, bool) {
	var (
		best  record.Record
		found bool
	)
	for _, r := range s.FuturePrices(now) {
		if !found || r.Price().Decimal.LessThan(best.Price().Decimal) {
			best, found = r, true
		}
	}
	return best, found
}

// IngestResult counts what one source contributed.
type IngestResult struct {
	Source         string
	Records        int
	PricesChanged  int
	AmountsChanged int
}

// Ingest fetches every source and upserts the returned records. A failing
// source does not stop the others; all failures are joined in the error.
func (s *Service) Ingest(ctx context.Context, sources ...fetcher.Source) ([]IngestResult, error) {
	var (
		results []IngestResult
		errs    []error
	)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			s.metrics.SetStoreSize(s.store.Len())
			return results, errors.Join(append(errs, err)...)
		}

		records, err := src.Fetch(ctx)
		if err != nil {
			s.metrics.RecordFetchError(src.Name())
			s.logger.Error().Err(err).Str("source", src.Name()).Msg("fetch failed")
			errs = append(errs, &FetchError{Source: src.Name(), Err: err})
			continue
		}

		res := IngestResult{Source: src.Name(), Records: len(records)}
		for _, r := range records {
			priceChanged, amountChanged, err := s.store.Upsert(r)
			if err != nil {
				s.metrics.SetStoreSize(s.store.Len())
				return results, errors.Join(append(errs, fmt.Errorf("ingest %s: %w", src.Name(), err))...)
			}
			if priceChanged {
				res.PricesChanged++
			}
			if amountChanged {
				res.AmountsChanged++
			}
		}

		s.metrics.RecordIngest(res.Source, res.Records, res.PricesChanged, res.AmountsChanged)
		s.logger.Info().Str("source", res.Source).
			Int("records", res.Records).
			Int("prices_changed", res.PricesChanged).
			Int("amounts_changed", res.AmountsChanged).
			Msg("source ingested")
		results = append(results, res)
	}

	s.metrics.SetStoreSize(s.store.Len())
	return results, errors.Join(errs...)
}

// FetchError wraps a failure of the data-source layer.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
