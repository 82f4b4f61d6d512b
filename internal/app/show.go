package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"cheaphours/internal/record"
	"cheaphours/internal/selection"
	"cheaphours/internal/service"
)

var hundred = decimal.NewFromInt(100)

// Show prints future prices in the configured time zone. The cheapest hours
// are starred and a manual pick is ticked.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	svc := a.newService(store)
	now := a.now()

	cheapest := svc.FindCheapestHours(now, opts.Cheapest, service.OrderByTime)
	pick := selection.New()
	if opts.PickFrom != nil && opts.PickTo != nil {
		if err := pick.Add(*opts.PickFrom, *opts.PickTo); err != nil {
			return err
		}
	}

	// Past hours stay visible until the current one ends.
	from := now.Truncate(time.Hour)
	var rows []record.Record
	if opts.All {
		rows = store.All()
	} else {
		rows = store.FilterByTime(from, nil).All()
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.Out, "no records found")
		return nil
	}

	loc := a.Config.Location()
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Time (%s)\tPrice c/kWh\tUsage kWh\t\n", loc)
	for _, r := range rows {
		marks := ""
		if cheapest.IsSelected(r.Time()) {
			marks += "⭐"
		}
		if pick.IsSelected(r.Time()) {
			marks += "✅"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			r.Time().In(loc).Format("Mon 2006-01-02 15:04"),
			centsPerKWh(r.Price()),
			formatAmount(r.Amount()),
			marks,
		)
	}
	return writer.Flush()
}

func centsPerKWh(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return v.Decimal.Mul(hundred).StringFixed(2)
}

func formatAmount(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return v.Decimal.StringFixed(2)
}
