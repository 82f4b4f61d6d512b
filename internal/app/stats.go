package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"text/tabwriter"
	"time"
)

// Stats prints price statistics and consumption cost. The window defaults
// to the last seven days.
func (a *App) Stats(ctx context.Context, opts StatsOptions) error {
	to := a.now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-7 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	sum := a.newService(store).Summarize(from, to)

	loc := a.Config.Location()
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Window\t%s - %s\n", from.In(loc).Format("2006-01-02 15:04"), to.In(loc).Format("2006-01-02 15:04"))
	fmt.Fprintf(writer, "Hours\t%d (%d priced)\n", sum.Hours, sum.PricedHours)
	if sum.PricedHours > 0 {
		fmt.Fprintf(writer, "Mean price\t%.2f c/kWh\n", sum.MeanPrice*100)
		fmt.Fprintf(writer, "Std dev\t%.2f c/kWh\n", sum.StdDevPrice*100)
		fmt.Fprintf(writer, "Min / max\t%s / %s c/kWh\n", centsPerKWh(sum.MinPrice), centsPerKWh(sum.MaxPrice))
	}
	fmt.Fprintf(writer, "Consumption\t%s kWh\n", sum.Consumption.StringFixed(2))
	fmt.Fprintf(writer, "Cost\t%s EUR\n", sum.Cost.StringFixed(2))
	if sum.PaidPrice.Valid {
		fmt.Fprintf(writer, "Paid price\t%s c/kWh\n", centsPerKWh(sum.PaidPrice))
	}
	if s := sum.Savings(); !math.IsNaN(s) {
		fmt.Fprintf(writer, "Below mean\t%.2f c/kWh\n", s*100)
	}
	return writer.Flush()
}
