package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint        string       `yaml:"endpoint"`
	Username        string       `yaml:"username"`
	Password        string       `yaml:"password"`
	SecurityMode    string       `yaml:"security_mode"`
	SecurityPolicy  string       `yaml:"security_policy"`
	ApplicationName string       `yaml:"application_name"`
	Nodes           []NodeConfig `yaml:"nodes"`
}

// NodeConfig maps one reading field of a sensor onto a writable node.
type NodeConfig struct {
	NodeID string `yaml:"node_id"`
	Sensor string `yaml:"sensor"`
	Field  string `yaml:"field"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "VitalFlow Simulator"
	}
	for i := range c.Nodes {
		if c.Nodes[i].Field == "" {
			c.Nodes[i].Field = "value"
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	for _, n := range c.Nodes {
		if n.Sensor == "" {
			return fmt.Errorf("node %q has no sensor", n.NodeID)
		}
		if _, err := ua.ParseNodeID(n.NodeID); err != nil {
			return fmt.Errorf("parse node id %q: %w", n.NodeID, err)
		}
	}
	return nil
}

// Transport writes reading values into server nodes. Sensors without a
// mapped node are accepted without a round trip.
type Transport struct {
	cfg   Config
	nodes map[string][]NodeConfig

	mu     sync.Mutex
	client *opcua.Client
}

func New(cfg Config) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nodes := make(map[string][]NodeConfig)
	for _, n := range cfg.Nodes {
		nodes[n.Sensor] = append(nodes[n.Sensor], n)
	}
	return &Transport{cfg: cfg, nodes: nodes}, nil
}

func (t *Transport) Name() string { return "opcua" }

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return fmt.Errorf("opcua transport already connected")
	}

	client, err := opcua.NewClient(t.cfg.Endpoint, t.buildClientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	t.client = client
	return nil
}

func (t *Transport) Send(ctx context.Context, msg *domain.Message) error {
	req, err := WriteRequest(t.nodes[msg.SensorName], msg.Reading)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}

	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return errors.New("opcua transport not connected")
	}

	resp, err := client.Write(ctx, req)
	if err != nil {
		return fmt.Errorf("opcua write: %w", err)
	}
	for i, status := range resp.Results {
		if status != ua.StatusOK {
			return fmt.Errorf("opcua write %s: %s", req.NodesToWrite[i].NodeID, status)
		}
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// WriteRequest builds one value write per mapped node. It returns nil when no
// node is mapped for the reading's sensor.
func WriteRequest(nodes []NodeConfig, r domain.Reading) (*ua.WriteRequest, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	fields := r.Value.Fields()
	req := &ua.WriteRequest{}
	for _, n := range nodes {
		v, ok := fields[n.Field]
		if !ok {
			return nil, fmt.Errorf("sensor %s has no field %q for node %s", r.SensorName, n.Field, n.NodeID)
		}
		id, err := ua.ParseNodeID(n.NodeID)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", n.NodeID, err)
		}
		req.NodesToWrite = append(req.NodesToWrite, &ua.WriteValue{
			NodeID:      id,
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask:    ua.DataValueValue | ua.DataValueSourceTimestamp,
				Value:           ua.MustVariant(v),
				SourceTimestamp: r.Timestamp,
			},
		})
	}
	return req, nil
}

func (t *Transport) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(t.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(t.cfg.SecurityPolicy)),
		opcua.ApplicationName(t.cfg.ApplicationName),
		opcua.AutoReconnect(false),
	}

	if t.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(t.cfg.Username, t.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Transport = (*Transport)(nil)
