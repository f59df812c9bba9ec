package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

const (
	HeaderMessageID       = "Nats-Msg-Id"
	HeaderContentType     = "Content-Type"
	HeaderContentEncoding = "Content-Encoding"
)

type Config struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Name          string        `yaml:"name"`
	Token         string        `yaml:"token"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	FlushTimeout  time.Duration `yaml:"flush_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "vitals"
	}
	if c.Name == "" {
		c.Name = "vitalflow-sim"
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if strings.ContainsAny(c.SubjectPrefix, " *>") {
		return fmt.Errorf("subject_prefix %q is not a literal subject", c.SubjectPrefix)
	}
	if c.Token != "" && c.User != "" {
		return errors.New("token and user/password are mutually exclusive")
	}
	return nil
}

// Transport publishes each message on <prefix>.<sensor>. The flush round trip
// to the server stands in for an acknowledgement.
type Transport struct {
	cfg  Config
	dial func(url string, opts ...nats.Option) (*nats.Conn, error)

	mu   sync.Mutex
	conn *nats.Conn
}

func New(cfg Config) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{cfg: cfg, dial: nats.Connect}, nil
}

func (t *Transport) Name() string { return "nats" }

func (t *Transport) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(t.cfg.Name),
		nats.NoReconnect(),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}
	switch {
	case t.cfg.Token != "":
		opts = append(opts, nats.Token(t.cfg.Token))
	case t.cfg.User != "":
		opts = append(opts, nats.UserInfo(t.cfg.User, t.cfg.Password))
	}

	conn, err := t.dial(t.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", t.cfg.URL, err)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

func (t *Transport) Send(ctx context.Context, msg *domain.Message) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("nats transport not connected")
	}

	if err := conn.PublishMsg(BuildMsg(t.cfg.SubjectPrefix, msg)); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	// FlushWithContext refuses contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.FlushTimeout)
		defer cancel()
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		conn.Close()
		return err
	}
	return nil
}

// BuildMsg maps a message onto a NATS message with its properties as headers.
func BuildMsg(prefix string, m *domain.Message) *nats.Msg {
	out := nats.NewMsg(prefix + "." + Subject(m.SensorName))
	out.Data = m.Body
	if m.ID != "" {
		out.Header.Set(HeaderMessageID, m.ID)
	}
	if m.ContentType != "" {
		out.Header.Set(HeaderContentType, m.ContentType)
	}
	if m.ContentEncoding != "" {
		out.Header.Set(HeaderContentEncoding, m.ContentEncoding)
	}
	for k, v := range m.Properties {
		out.Header.Set(k, v)
	}
	return out
}

// Subject turns a sensor name into a single subject token.
func Subject(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '*', '>':
			return '_'
		}
		return r
	}, name)
}

var _ ports.Transport = (*Transport)(nil)
