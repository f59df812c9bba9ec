package influx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

type Config struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:8086"
	}
	if c.Measurement == "" {
		c.Measurement = "vitals"
	}
}

func (c *Config) Validate() error {
	if c.Org == "" {
		return errors.New("org is required")
	}
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// Transport writes one point per reading with a blocking write, so Send
// returns only once the server has stored it.
type Transport struct {
	cfg Config

	mu     sync.Mutex
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

func New(cfg Config) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{cfg: cfg}, nil
}

func (t *Transport) Name() string { return "influx" }

func (t *Transport) Connect(ctx context.Context) error {
	client := influxdb2.NewClient(t.cfg.URL, t.cfg.Token)
	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("influx ping %s: %w", t.cfg.URL, err)
	}
	if !ok {
		client.Close()
		return fmt.Errorf("influx ping %s: server not ready", t.cfg.URL)
	}

	t.mu.Lock()
	t.client = client
	t.writer = client.WriteAPIBlocking(t.cfg.Org, t.cfg.Bucket)
	t.mu.Unlock()
	return nil
}

func (t *Transport) Send(ctx context.Context, msg *domain.Message) error {
	t.mu.Lock()
	writer := t.writer
	t.mu.Unlock()
	if writer == nil {
		return errors.New("influx transport not connected")
	}
	if err := writer.WritePoint(ctx, Point(t.cfg.Measurement, msg)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.writer = nil
	t.mu.Unlock()
	if client != nil {
		client.Close()
	}
	return nil
}

// Point maps a message to a line-protocol point: identity and message
// properties as tags, the reading value(s) and alert flag as fields.
func Point(measurement string, msg *domain.Message) *write.Point {
	r := msg.Reading
	tags := map[string]string{
		"sensor":      r.SensorName,
		"sensor_type": string(r.SensorType),
		"unit":        r.Unit,
		"alert":       strconv.FormatBool(r.Alert),
	}
	for k, v := range msg.Properties {
		if _, taken := tags[k]; !taken {
			tags[k] = v
		}
	}

	fields := map[string]interface{}{"is_alert": r.Alert}
	for k, v := range r.Value.Fields() {
		fields[k] = v
	}
	if msg.ID != "" {
		fields["message_id"] = msg.ID
	}
	return write.NewPoint(measurement, tags, fields, r.Timestamp)
}

var _ ports.Transport = (*Transport)(nil)
