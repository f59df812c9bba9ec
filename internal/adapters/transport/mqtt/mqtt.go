package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

// Config describes a plain MQTT broker connection.
type Config struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	AlertQoS       byte          `yaml:"alert_qos"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "vitalflow-sim"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "vitals"
	}
	if c.AlertQoS == 0 {
		c.AlertQoS = 1
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.QoS > 2 || c.AlertQoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return nil
}

type Option func(*Transport)

// WithName overrides the transport name reported in logs and errors.
func WithName(name string) Option {
	return func(t *Transport) {
		if name != "" {
			t.name = name
		}
	}
}

// WithTopic overrides how a message is mapped to a topic.
func WithTopic(fn func(*domain.Message) string) Option {
	return func(t *Transport) {
		if fn != nil {
			t.topic = fn
		}
	}
}

// WithClientOptions lets callers adjust the paho options right before connecting.
func WithClientOptions(fn func(*paho.ClientOptions) error) Option {
	return func(t *Transport) {
		if fn != nil {
			t.configure = append(t.configure, fn)
		}
	}
}

// WithClientFactory swaps the paho client constructor.
func WithClientFactory(fn func(*paho.ClientOptions) paho.Client) Option {
	return func(t *Transport) {
		if fn != nil {
			t.newClient = fn
		}
	}
}

// WithSessionLifetime makes Send dial a fresh session once the current one is
// older than d, for brokers whose credentials expire.
func WithSessionLifetime(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.lifetime = d
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(t *Transport) {
		if fn != nil {
			t.now = fn
		}
	}
}

func WithObservability(obs ports.Observability) Option {
	return func(t *Transport) {
		t.obs = obs
	}
}

// Transport publishes each message to <prefix>/<sensor>; alert messages use
// AlertQoS so the broker acknowledges them.
type Transport struct {
	name      string
	cfg       Config
	topic     func(*domain.Message) string
	configure []func(*paho.ClientOptions) error
	newClient func(*paho.ClientOptions) paho.Client
	obs       ports.Observability
	lifetime  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	client      paho.Client
	connectedAt time.Time
}

func New(cfg Config, opts ...Option) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Transport{
		name:      "mqtt",
		cfg:       cfg,
		newClient: paho.NewClient,
		now:       time.Now,
	}
	t.topic = t.defaultTopic
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

func (t *Transport) Name() string { return t.name }

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return fmt.Errorf("%s transport already connected", t.name)
	}
	return t.dialLocked(ctx)
}

func (t *Transport) dialLocked(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(t.cfg.ClientID).
		SetKeepAlive(t.cfg.KeepAlive).
		SetConnectTimeout(t.cfg.ConnectTimeout).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetOrderMatters(true)
	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		if t.obs != nil {
			t.obs.LogError("mqtt_connection_lost", err, ports.Field{Key: "transport", Value: t.name})
		}
	})
	for _, fn := range t.configure {
		if err := fn(opts); err != nil {
			return fmt.Errorf("%s options: %w", t.name, err)
		}
	}

	client := t.newClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("%s connect %s: %w", t.name, t.cfg.Broker, err)
	}
	t.client = client
	t.connectedAt = t.now()
	return nil
}

// session returns a live client, dialing again when the broker dropped the
// connection or the session outlived its configured lifetime.
func (t *Transport) session(ctx context.Context) (paho.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, fmt.Errorf("%s transport not connected", t.name)
	}

	expired := t.lifetime > 0 && t.now().Sub(t.connectedAt) >= t.lifetime
	if t.client.IsConnected() && !expired {
		return t.client, nil
	}

	if t.client.IsConnected() {
		t.client.Disconnect(250)
	}
	if t.obs != nil {
		t.obs.LogInfo("mqtt_reconnect",
			ports.Field{Key: "transport", Value: t.name},
			ports.Field{Key: "expired", Value: expired})
	}
	if err := t.dialLocked(ctx); err != nil {
		return nil, err
	}
	return t.client, nil
}

func (t *Transport) Send(ctx context.Context, msg *domain.Message) error {
	client, err := t.session(ctx)
	if err != nil {
		return err
	}

	qos := t.cfg.QoS
	if msg.HighPriority() {
		qos = t.cfg.AlertQoS
	}
	return wait(ctx, client.Publish(t.topic(msg), qos, false, msg.Body))
}

func (t *Transport) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
	return nil
}

func (t *Transport) defaultTopic(msg *domain.Message) string {
	return strings.TrimSuffix(t.cfg.TopicPrefix, "/") + "/" + msg.SensorName
}

func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ ports.Transport = (*Transport)(nil)
