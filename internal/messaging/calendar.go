package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cheaphours/internal/selection"
)

const calendarDateTime = "2006-01-02T15:04:05"

// CalendarEvent is the body of a Google Calendar v3 events.insert call.
type CalendarEvent struct {
	Summary   string            `json:"summary"`
	Start     CalendarTime      `json:"start"`
	End       CalendarTime      `json:"end"`
	Reminders CalendarReminders `json:"reminders"`
}

// CalendarTime is a wall clock time plus the zone it is read in.
type CalendarTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// CalendarReminders replaces the calendar defaults.
type CalendarReminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []CalendarReminder `json:"overrides"`
}

// CalendarReminder is one reminder override.
type CalendarReminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// CalendarEvents builds one event per range with a popup five minutes
// before it starts.
func CalendarEvents(sel *selection.Selection, summary string, loc *time.Location) []CalendarEvent {
	var events []CalendarEvent
	for r := range sel.All() {
		events = append(events, CalendarEvent{
			Summary: summary,
			Start:   CalendarTime{DateTime: r.Start.In(loc).Format(calendarDateTime), TimeZone: loc.String()},
			End:     CalendarTime{DateTime: r.End.In(loc).Format(calendarDateTime), TimeZone: loc.String()},
			Reminders: CalendarReminders{
				Overrides: []CalendarReminder{{Method: "popup", Minutes: 5}},
			},
		})
	}
	return events
}

// CalendarOptions configure the Google Calendar target.
type CalendarOptions struct {
	CalendarID string
	// Token is an OAuth2 access token with the calendar.events scope.
	Token    string
	APIBase  string
	Summary  string
	Location *time.Location
	Timeout  time.Duration
}

// Calendar inserts events through the Calendar v3 REST API.
type Calendar struct {
	opts   CalendarOptions
	client *http.Client
	logger zerolog.Logger
}

// NewCalendar constructs the calendar target.
func NewCalendar(opts CalendarOptions, logger zerolog.Logger) *Calendar {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.APIBase == "" {
		opts.APIBase = "https://www.googleapis.com/calendar/v3"
	}
	opts.APIBase = strings.TrimRight(opts.APIBase, "/")
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Summary == "" {
		opts.Summary = "Sähköhälytys!"
	}
	return &Calendar{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "calendar_target").Logger(),
	}
}

func (c *Calendar) Name() string { return "calendar" }

// Send inserts every event and stops at the first failure.
func (c *Calendar) Send(ctx context.Context, sel *selection.Selection) (Status, error) {
	events := CalendarEvents(sel, c.opts.Summary, c.opts.Location)
	status := Status{Target: c.Name(), Total: len(events)}
	if c.opts.CalendarID == "" || c.opts.Token == "" {
		return status, fmt.Errorf("calendar.id and calendar.token must be configured")
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.opts.APIBase, url.PathEscape(c.opts.CalendarID))
	for _, event := range events {
		body, err := json.Marshal(event)
		if err != nil {
			return status, fmt.Errorf("marshal calendar event: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return status, fmt.Errorf("create calendar request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)

		resp, err := c.client.Do(req)
		if err != nil {
			return status, fmt.Errorf("send calendar request: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return status, fmt.Errorf("%w: calendar status %d", ErrRejected, resp.StatusCode)
		}
		status.Delivered++
	}

	status.OK = true
	c.logger.Info().Int("events", status.Delivered).Msg("schedule sent (calendar)")
	return status, nil
}

var _ Target = (*Calendar)(nil)
