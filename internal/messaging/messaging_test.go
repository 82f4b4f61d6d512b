package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheaphours/internal/selection"
)

func helsinki(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)
	return loc
}

// christmasEve selects 18-19 and 20-21 local time on 2022-12-24.
func christmasEve(t *testing.T) *selection.Selection {
	t.Helper()
	loc := helsinki(t)
	sel := selection.New()
	require.NoError(t, sel.Add(time.Date(2022, 12, 24, 18, 0, 0, 0, loc), time.Date(2022, 12, 24, 19, 0, 0, 0, loc)))
	require.NoError(t, sel.Add(time.Date(2022, 12, 24, 20, 0, 0, 0, loc), time.Date(2022, 12, 24, 21, 0, 0, 0, loc)))
	return sel
}

func TestTimespec(t *testing.T) {
	at := time.Date(2022, 12, 24, 16, 0, 10, 0, time.UTC)
	assert.Equal(t, "10 0 18 24 12 SAT", Timespec(at, helsinki(t)))
	assert.Equal(t, "10 0 16 24 12 SAT", Timespec(at, time.UTC))
}

func TestShellyJobsShiftPerRelay(t *testing.T) {
	jobs := ShellyJobs(christmasEve(t), []int{1, 2}, true, helsinki(t))
	require.Len(t, jobs, 8)

	var specs []string
	for _, job := range jobs {
		specs = append(specs, job.Timespec)
	}
	assert.Equal(t, []string{
		"10 0 18 24 12 SAT", "10 0 19 24 12 SAT",
		"20 0 18 24 12 SAT", "20 0 19 24 12 SAT",
		"10 0 20 24 12 SAT", "10 0 21 24 12 SAT",
		"20 0 20 24 12 SAT", "20 0 21 24 12 SAT",
	}, specs)

	assert.Equal(t, SwitchParams{ID: 1, On: true}, jobs[0].Calls[0].Params)
	assert.Equal(t, SwitchParams{ID: 1, On: false}, jobs[1].Calls[0].Params)
	assert.Equal(t, "Switch.Set", jobs[0].Calls[0].Method)
	assert.True(t, jobs[0].Enable)
}

func TestShellyJobsWithoutShift(t *testing.T) {
	jobs := ShellyJobs(christmasEve(t), []int{3}, false, helsinki(t))
	require.Len(t, jobs, 4)
	assert.Equal(t, "0 0 18 24 12 SAT", jobs[0].Timespec)
}

func TestShellyJobJSON(t *testing.T) {
	job := switchJob(time.Date(2022, 12, 24, 16, 0, 0, 0, time.UTC), 0, true, time.UTC)
	data, err := json.Marshal(job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"enable":true,"timespec":"0 0 16 24 12 SAT","calls":[{"method":"Switch.Set","params":{"id":0,"on":true}}]}`, string(data))
}

func TestShellySendStopsAtFirstRejection(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc/Schedule.Create", r.URL.Path)
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("no free slots"))
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"rev":1}`))
	}))
	defer srv.Close()

	target := NewShelly(ShellyOptions{Host: srv.URL, Relays: []int{0}, Location: time.UTC}, zerolog.Nop())
	status, err := target.Send(context.Background(), christmasEve(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "no free slots")
	assert.Equal(t, Status{Target: "shelly", Delivered: 1, Total: 4}, status)
	assert.Equal(t, 2, calls)
}

func TestShellySendSuccess(t *testing.T) {
	var received []ScheduleJob
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var job ScheduleJob
		require.NoError(t, json.NewDecoder(r.Body).Decode(&job))
		received = append(received, job)
	}))
	defer srv.Close()

	// The host may be given without a scheme.
	host := strings.TrimPrefix(srv.URL, "http://")
	target := NewShelly(ShellyOptions{Host: host, Relays: []int{1}, Shift: true, Location: helsinki(t)}, zerolog.Nop())
	status, err := target.Send(context.Background(), christmasEve(t))
	require.NoError(t, err)
	assert.True(t, status.OK)
	assert.Equal(t, 4, status.Delivered)
	require.Len(t, received, 4)
	assert.Equal(t, "10 0 21 24 12 SAT", received[3].Timespec)
}

func TestShellyRelayListIsCopied(t *testing.T) {
	relays := []int{1}
	target := NewShelly(ShellyOptions{Host: "shelly.local", Relays: relays}, zerolog.Nop())
	relays[0] = 4
	assert.Equal(t, []int{1}, target.relays)
}

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                       { return true }
func (t *fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *fakeToken) Error() error                     { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMQTT struct {
	topics       []string
	payloads     [][]byte
	disconnected bool
	err          error
}

func (f *fakeMQTT) IsConnected() bool       { return true }
func (f *fakeMQTT) Disconnect(quiesce uint) { f.disconnected = true }
func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload.([]byte))
	return &fakeToken{err: f.err}
}

func withFakeMQTT(t *testing.T, fake *fakeMQTT) {
	t.Helper()
	original := newMQTTClient
	newMQTTClient = func(opts *mqtt.ClientOptions) (mqttClient, error) {
		return fake, nil
	}
	t.Cleanup(func() { newMQTTClient = original })
}

func TestShellyMQTTPublishesRPCFrames(t *testing.T) {
	fake := &fakeMQTT{}
	withFakeMQTT(t, fake)

	target := NewShellyMQTT(ShellyMQTTOptions{
		Broker:   "tcp://broker:1883",
		Topic:    "shellypro4pm-garage/",
		ClientID: "test",
		Relays:   []int{2},
		Shift:    true,
		Location: helsinki(t),
	}, zerolog.Nop())

	status, err := target.Send(context.Background(), christmasEve(t))
	require.NoError(t, err)
	assert.Equal(t, Status{Target: "shelly-mqtt", Delivered: 4, Total: 4, OK: true}, status)
	assert.True(t, fake.disconnected)
	require.Len(t, fake.topics, 4)
	assert.Equal(t, "shellypro4pm-garage/rpc", fake.topics[0])

	var frame rpcFrame
	require.NoError(t, json.Unmarshal(fake.payloads[0], &frame))
	assert.Equal(t, 1, frame.ID)
	assert.Equal(t, "test", frame.Src)
	assert.Equal(t, "Schedule.Create", frame.Method)
	assert.Equal(t, "20 0 18 24 12 SAT", frame.Params.Timespec)
}

func TestShellyMQTTPublishError(t *testing.T) {
	fake := &fakeMQTT{err: errors.New("not authorised")}
	withFakeMQTT(t, fake)

	target := NewShellyMQTT(ShellyMQTTOptions{Broker: "tcp://broker:1883", Topic: "shelly", Relays: []int{0}}, zerolog.Nop())
	status, err := target.Send(context.Background(), christmasEve(t))
	require.Error(t, err)
	assert.False(t, status.OK)
	assert.Equal(t, 0, status.Delivered)
}

func TestShellyMQTTRequiresBroker(t *testing.T) {
	target := NewShellyMQTT(ShellyMQTTOptions{Topic: "shelly"}, zerolog.Nop())
	_, err := target.Send(context.Background(), christmasEve(t))
	assert.Error(t, err)
}

func TestTelegramSendSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bottoken/sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	target := NewTelegram("token", "chat", srv.URL, helsinki(t), time.Second, zerolog.Nop())
	status, err := target.Send(context.Background(), christmasEve(t))
	if err != nil {
		t.Fatalf("telegram send should succeed: %v", err)
	}
	if !status.OK {
		t.Fatal("status should be OK")
	}
	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "Sat 24.12. 18:00 - 19:00") {
		t.Fatalf("text should list local ranges, got %q", received["text"])
	}
}

func TestTelegramSendNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	target := NewTelegram("token", "chat", srv.URL, time.UTC, time.Second, zerolog.Nop())
	if _, err := target.Send(context.Background(), selection.New()); !errors.Is(err, ErrRejected) {
		t.Fatalf("ok=false should be rejected, got %v", err)
	}
}

func TestCalendarEvents(t *testing.T) {
	events := CalendarEvents(christmasEve(t), "Sauna", helsinki(t))
	require.Len(t, events, 2)

	data, err := json.Marshal(events[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"summary": "Sauna",
		"start": {"dateTime": "2022-12-24T18:00:00", "timeZone": "Europe/Helsinki"},
		"end": {"dateTime": "2022-12-24T19:00:00", "timeZone": "Europe/Helsinki"},
		"reminders": {"useDefault": false, "overrides": [{"method": "popup", "minutes": 5}]}
	}`, string(data))
}

func TestCalendarSend(t *testing.T) {
	var (
		paths []string
		auth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		auth = r.Header.Get("Authorization")
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"status":"confirmed"}`))
	}))
	defer srv.Close()

	target := NewCalendar(CalendarOptions{
		CalendarID: "abc@group.calendar.google.com",
		Token:      "secret",
		APIBase:    srv.URL,
		Location:   helsinki(t),
	}, zerolog.Nop())

	status, err := target.Send(context.Background(), christmasEve(t))
	require.NoError(t, err)
	assert.Equal(t, 2, status.Delivered)
	assert.Equal(t, "Bearer secret", auth)
	require.Len(t, paths, 2)
	assert.Equal(t, "/calendars/abc@group.calendar.google.com/events", paths[0])
}

func TestCalendarRequiresCredentials(t *testing.T) {
	_, err := NewCalendar(CalendarOptions{}, zerolog.Nop()).Send(context.Background(), christmasEve(t))
	assert.Error(t, err)
}

type recordingTarget struct {
	name string
	err  error
	sent int
}

func (r *recordingTarget) Name() string { return r.name }

func (r *recordingTarget) Send(ctx context.Context, sel *selection.Selection) (Status, error) {
	r.sent++
	return Status{Target: r.name, OK: r.err == nil}, r.err
}

func TestRegistrySendAll(t *testing.T) {
	good := &recordingTarget{name: "good"}
	bad := &recordingTarget{name: "bad", err: ErrRejected}
	reg, err := NewRegistry(good, bad)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad", "good"}, reg.Names())

	statuses, err := reg.SendAll(context.Background(), selection.New(), "bad", "missing", "good")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "missing")
	assert.Len(t, statuses, 2)
	assert.Equal(t, 1, good.sent)
	assert.Equal(t, 1, bad.sent)

	assert.Error(t, reg.Register(&recordingTarget{name: "good"}))
}
