package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cheaphours/internal/selection"
)

// ScheduleJob is one Schedule.Create request for a Shelly Gen2 device.
type ScheduleJob struct {
	Enable   bool         `json:"enable"`
	Timespec string       `json:"timespec"`
	Calls    []SwitchCall `json:"calls"`
}

// SwitchCall toggles one relay.
type SwitchCall struct {
	Method string       `json:"method"`
	Params SwitchParams `json:"params"`
}

// SwitchParams are the Switch.Set arguments.
type SwitchParams struct {
	ID int  `json:"id"`
	On bool `json:"on"`
}

// Timespec renders t as the cron-like "S M H d m DOW" Shelly expects, in loc.
func Timespec(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	return fmt.Sprintf("%d %d %d %d %d %s",
		t.Second(), t.Minute(), t.Hour(), t.Day(), int(t.Month()),
		strings.ToUpper(t.Weekday().String()[:3]))
}

// ShellyJobs builds an on job at the start and an off job at the end of
// every range for every relay. With shift, relay n fires 10*n seconds late
// so that relays do not switch at the same instant.
func ShellyJobs(sel *selection.Selection, relays []int, shift bool, loc *time.Location) []ScheduleJob {
	var jobs []ScheduleJob
	for r := range sel.All() {
		for _, id := range relays {
			var offset time.Duration
			if shift {
				offset = time.Duration(id) * 10 * time.Second
			}
			jobs = append(jobs,
				switchJob(r.Start.Add(offset), id, true, loc),
				switchJob(r.End.Add(offset), id, false, loc),
			)
		}
	}
	return jobs
}

func switchJob(at time.Time, relay int, on bool, loc *time.Location) ScheduleJob {
	return ScheduleJob{
		Enable:   true,
		Timespec: Timespec(at, loc),
		Calls: []SwitchCall{{
			Method: "Switch.Set",
			Params: SwitchParams{ID: relay, On: on},
		}},
	}
}

// ShellyOptions configure an HTTP Shelly target.
type ShellyOptions struct {
	Host     string
	Relays   []int
	Shift    bool
	Location *time.Location
	Timeout  time.Duration
}

// Shelly posts schedule jobs to a device on the local network.
type Shelly struct {
	host     string
	relays   []int
	shift    bool
	location *time.Location
	client   *http.Client
	logger   zerolog.Logger
}

// NewShelly constructs the HTTP target. The relay list is copied.
func NewShelly(opts ShellyOptions, logger zerolog.Logger) *Shelly {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	host := strings.TrimRight(strings.TrimSpace(opts.Host), "/")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}

	return &Shelly{
		host:     host,
		relays:   append([]int(nil), opts.Relays...),
		shift:    opts.Shift,
		location: opts.Location,
		client:   &http.Client{Timeout: opts.Timeout},
		logger:   logger.With().Str("component", "shelly_target").Logger(),
	}
}

func (s *Shelly) Name() string { return "shelly" }

// Send creates the jobs one by one and stops at the first non-200 reply.
func (s *Shelly) Send(ctx context.Context, sel *selection.Selection) (Status, error) {
	jobs := ShellyJobs(sel, s.relays, s.shift, s.location)
	status := Status{Target: s.Name(), Total: len(jobs)}
	url := s.host + "/rpc/Schedule.Create"

	for _, job := range jobs {
		body, err := json.Marshal(job)
		if err != nil {
			return status, fmt.Errorf("marshal shelly job: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return status, fmt.Errorf("create shelly request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return status, fmt.Errorf("send shelly request: %w", err)
		}
		reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			s.logger.Warn().Int("status", resp.StatusCode).Str("timespec", job.Timespec).Msg("shelly rejected job")
			return status, fmt.Errorf("%w: shelly status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(reply)))
		}
		status.Delivered++
		s.logger.Debug().Str("timespec", job.Timespec).Int("relay", job.Calls[0].Params.ID).Bool("on", job.Calls[0].Params.On).Msg("job created")
	}

	status.OK = true
	s.logger.Info().Int("jobs", status.Delivered).Str("ranges", sel.String()).Msg("schedule sent (shelly)")
	return status, nil
}

var _ Target = (*Shelly)(nil)
