package app

import (
	"context"
	"errors"
	"fmt"

	"cheaphours/internal/selection"
	"cheaphours/internal/service"
)

// Cheapest prints the cheapest future hours and optionally sends them.
func (a *App) Cheapest(ctx context.Context, opts CheapestOptions) error {
	if opts.Hours <= 0 {
		opts.Hours = a.Config.Cheapest.Hours
	}
	if opts.Order == "" {
		opts.Order = a.Config.Cheapest.Order
	}
	order, err := service.ParseOrder(opts.Order)
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	svc := a.newService(store)

	sel := svc.FindCheapestHours(a.now(), opts.Hours, order)
	if sel.Len() == 0 {
		fmt.Fprintln(a.Out, "no future prices available")
		return nil
	}
	a.printSelection(sel)

	if len(opts.Targets) == 0 {
		return nil
	}
	return a.send(ctx, sel, opts.Targets)
}

// Schedule sends a manually chosen range.
func (a *App) Schedule(ctx context.Context, opts ScheduleOptions) error {
	if len(opts.Targets) == 0 {
		return errors.New("at least one --target is required")
	}
	sel := selection.New()
	if err := sel.Add(opts.From, opts.To); err != nil {
		return err
	}
	a.printSelection(sel)
	return a.send(ctx, sel, opts.Targets)
}

func (a *App) send(ctx context.Context, sel *selection.Selection, names []string) error {
	targets, err := a.newTargets()
	if err != nil {
		return err
	}
	statuses, err := targets.SendAll(ctx, sel, names...)
	for _, st := range statuses {
		fmt.Fprintf(a.Out, "%s: %d/%d delivered, ok=%t\n", st.Target, st.Delivered, st.Total, st.OK)
	}
	return err
}

func (a *App) printSelection(sel *selection.Selection) {
	loc := a.Config.Location()
	for r := range sel.All() {
		fmt.Fprintf(a.Out, "%s - %s (%s)\n",
			r.Start.In(loc).Format("Mon 2006-01-02 15:04"),
			r.End.In(loc).Format("15:04"),
			r.Duration())
	}
}
