package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"cheaphours/internal/selection"
)

// mqttClient is the subset of the paho client used here.
type mqttClient interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// newMQTTClient is replaced in tests.
var newMQTTClient = func(opts *mqtt.ClientOptions) (mqttClient, error) {
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// rpcFrame is a Shelly Gen2 JSON-RPC request sent over MQTT.
type rpcFrame struct {
	ID     int         `json:"id"`
	Src    string      `json:"src"`
	Method string      `json:"method"`
	Params ScheduleJob `json:"params"`
}

// ShellyMQTTOptions configure the MQTT Shelly target.
type ShellyMQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Relays   []int
	Shift    bool
	Location *time.Location
	Timeout  time.Duration
}

// ShellyMQTT publishes the same schedule jobs as Shelly through a broker,
// for devices that are not reachable over HTTP.
type ShellyMQTT struct {
	opts   ShellyMQTTOptions
	logger zerolog.Logger
}

// NewShellyMQTT constructs the MQTT target. The relay list is copied.
func NewShellyMQTT(opts ShellyMQTTOptions, logger zerolog.Logger) *ShellyMQTT {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ClientID == "" {
		opts.ClientID = "cheaphours"
	}
	opts.Topic = strings.TrimRight(opts.Topic, "/")
	opts.Relays = append([]int(nil), opts.Relays...)
	return &ShellyMQTT{opts: opts, logger: logger.With().Str("component", "shelly_mqtt_target").Logger()}
}

func (s *ShellyMQTT) Name() string { return "shelly-mqtt" }

// Send connects, publishes one frame per job and disconnects.
func (s *ShellyMQTT) Send(ctx context.Context, sel *selection.Selection) (Status, error) {
	jobs := ShellyJobs(sel, s.opts.Relays, s.opts.Shift, s.opts.Location)
	status := Status{Target: s.Name(), Total: len(jobs)}
	if s.opts.Broker == "" {
		return status, fmt.Errorf("shelly.mqtt.broker is not configured")
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(s.opts.Broker).
		SetClientID(s.opts.ClientID).
		SetUsername(s.opts.Username).
		SetPassword(s.opts.Password).
		SetConnectTimeout(s.opts.Timeout).
		SetAutoReconnect(false)

	client, err := newMQTTClient(clientOpts)
	if err != nil {
		return status, fmt.Errorf("connect mqtt broker: %w", err)
	}
	defer func() {
		if client.IsConnected() {
			client.Disconnect(250)
		}
	}()

	topic := s.opts.Topic + "/rpc"
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return status, err
		}
		payload, err := json.Marshal(rpcFrame{
			ID:     i + 1,
			Src:    s.opts.ClientID,
			Method: "Schedule.Create",
			Params: job,
		})
		if err != nil {
			return status, fmt.Errorf("marshal rpc frame: %w", err)
		}

		token := client.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(s.opts.Timeout) {
			return status, fmt.Errorf("publish to %s: timed out", topic)
		}
		if err := token.Error(); err != nil {
			return status, fmt.Errorf("publish to %s: %w", topic, err)
		}
		status.Delivered++
	}

	status.OK = true
	s.logger.Info().Str("topic", topic).Int("jobs", status.Delivered).Msg("schedule sent (mqtt)")
	return status, nil
}

var _ Target = (*ShellyMQTT)(nil)
