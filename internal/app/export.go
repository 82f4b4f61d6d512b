package app

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"cheaphours/internal/record"
)

// Export renders stored records as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, err := a.openStore()
	if err != nil {
		return err
	}

	if store.Len() == 0 {
		a.Logger.Info().Msg("record store is empty")
		return nil
	}
	from := store.All()[0].Time()
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if opts.To != nil && opts.To.Before(from) {
		return errors.New("from must not be after to")
	}

	window := store.FilterByTime(from, opts.To)
	if window.Len() == 0 {
		a.Logger.Info().Msg("no records found for export window")
		return nil
	}

	if opts.CSVPath != "" {
		// The CSV is the store's own file format, so it can be loaded back.
		if err := window.SaveFile(opts.CSVPath); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		records := downsample(window.All(), opts.MaxPoints)
		a.Logger.Info().Int("total", window.Len()).Int("plotted", len(records)).Msg("rendering chart")
		if err := writeRecordsPNG(opts.PNGPath, records); err != nil {
			return err
		}
	}

	return nil
}

func downsample(records []record.Record, max int) []record.Record {
	if max <= 1 || len(records) <= max {
		return records
	}

	result := make([]record.Record, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsPNG(path string, records []record.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var (
		priceX, amountX []time.Time
		prices, amounts []float64
	)
	for _, r := range records {
		if r.HasPrice() {
			priceX = append(priceX, r.Time())
			prices = append(prices, r.Price().Decimal.Mul(hundred).InexactFloat64())
		}
		if r.HasAmount() {
			amountX = append(amountX, r.Time())
			amounts = append(amounts, r.Amount().Decimal.InexactFloat64())
		}
	}

	var series []chart.Series
	if len(prices) > 1 {
		series = append(series, chart.TimeSeries{
			Name:    "Price c/kWh",
			XValues: priceX,
			YValues: prices,
		})
	}
	if len(amounts) > 1 {
		usage := chart.TimeSeries{
			Name:    "Usage kWh",
			XValues: amountX,
			YValues: amounts,
		}
		if len(series) > 0 {
			usage.YAxis = chart.YAxisSecondary
		}
		series = append(series, usage)
	}
	if len(series) == 0 {
		return errors.New("not enough priced or metered records to draw a chart")
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (c/kWh)",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Usage (kWh)",
			ValueFormatter: valueFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
