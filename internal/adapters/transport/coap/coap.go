package coap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp"
	"github.com/plgd-dev/go-coap/v3/udp/client"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

type Config struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:5683"
	}
	if c.Path == "" {
		c.Path = "/vitals"
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
}

func (c *Config) Validate() error {
	if !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("addr %q must be host:port", c.Addr)
	}
	return nil
}

// conn is the part of *client.Conn the transport uses. Responses come from
// the connection's message pool and go back through ReleaseMessage.
type conn interface {
	Post(ctx context.Context, path string, contentFormat message.MediaType, payload io.ReadSeeker, opts ...message.Option) (*pool.Message, error)
	ReleaseMessage(m *pool.Message)
	Close() error
}

var _ conn = (*client.Conn)(nil)

// Transport POSTs each message as JSON to <path>/<sensor> over CoAP/UDP.
// Confirmable requests give the acknowledgement.
type Transport struct {
	cfg Config

	mu   sync.Mutex
	conn conn
}

func New(cfg Config) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{cfg: cfg}, nil
}

func (t *Transport) Name() string { return "coap" }

func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cc, err := udp.Dial(t.cfg.Addr)
	if err != nil {
		return fmt.Errorf("coap dial %s: %w", t.cfg.Addr, err)
	}
	t.mu.Lock()
	t.conn = cc
	t.mu.Unlock()
	return nil
}

func (t *Transport) Send(ctx context.Context, msg *domain.Message) error {
	t.mu.Lock()
	cc := t.conn
	t.mu.Unlock()
	if cc == nil {
		return errors.New("coap transport not connected")
	}

	resp, err := cc.Post(ctx, ResourcePath(t.cfg.Path, msg), message.AppJSON, bytes.NewReader(msg.Body), QueryOptions(msg)...)
	if err != nil {
		return fmt.Errorf("coap post: %w", err)
	}
	code := resp.Code()
	cc.ReleaseMessage(resp)
	if !Accepted(code) {
		return fmt.Errorf("coap post: server answered %v", code)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	cc := t.conn
	t.conn = nil
	t.mu.Unlock()
	if cc == nil {
		return nil
	}
	return cc.Close()
}

func ResourcePath(base string, msg *domain.Message) string {
	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(msg.SensorName)
}

// QueryOptions carries the message id and custom properties as URI-Query
// options, in key order.
func QueryOptions(msg *domain.Message) []message.Option {
	var opts []message.Option
	if msg.ID != "" {
		opts = append(opts, message.Option{ID: message.URIQuery, Value: []byte("mid=" + msg.ID)})
	}
	keys := make([]string, 0, len(msg.Properties))
	for k := range msg.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, message.Option{ID: message.URIQuery, Value: []byte(k + "=" + msg.Properties[k])})
	}
	return opts
}

func Accepted(code codes.Code) bool {
	switch code {
	case codes.Created, codes.Changed, codes.Content, codes.Valid:
		return true
	}
	return false
}

var _ ports.Transport = (*Transport)(nil)
