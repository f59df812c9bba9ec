package iothub

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ghalamif/VitalFlow/internal/adapters/transport/mqtt"
	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

const DefaultAPIVersion = "2021-04-12"

var now = time.Now

// Config selects the device identity. The connection string normally comes
// from IOTHUB_DEVICE_CONNECTION_STRING.
type Config struct {
	ConnectionString string        `yaml:"connection_string"`
	APIVersion       string        `yaml:"api_version"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	Port             int           `yaml:"port"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.Port == 0 {
		c.Port = 8883
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.ConnectionString == "" {
		return errors.New("connection_string is required (set IOTHUB_DEVICE_CONNECTION_STRING)")
	}
	_, err := ParseConnectionString(c.ConnectionString)
	return err
}

// New builds a device-to-cloud transport that publishes over MQTT to the hub's
// events topic. Every connect signs a fresh SAS token and the session is
// renewed after four fifths of the token lifetime.
func New(cfg Config, opts ...mqtt.Option) (*mqtt.Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cs, err := ParseConnectionString(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	base := mqtt.Config{
		Broker:         fmt.Sprintf("ssl://%s:%d", cs.Endpoint(), cfg.Port),
		ClientID:       cs.DeviceID,
		Username:       Username(cs, cfg.APIVersion),
		QoS:            1,
		AlertQoS:       1,
		ConnectTimeout: cfg.ConnectTimeout,
	}
	all := []mqtt.Option{
		mqtt.WithName("iothub"),
		mqtt.WithTopic(func(m *domain.Message) string { return Topic(cs.DeviceID, m) }),
		// the hub drops the session when the token expires; dial again before that
		mqtt.WithSessionLifetime(cfg.TokenTTL - cfg.TokenTTL/5),
		mqtt.WithClientOptions(func(o *paho.ClientOptions) error {
			o.SetCredentialsProvider(func() (string, string) {
				// key was decoded by ParseConnectionString, signing cannot fail
				token, _ := SASToken(cs.ResourceURI(), cs.SharedAccessKey, now().Add(cfg.TokenTTL))
				return base.Username, token
			})
			o.SetTLSConfig(&tls.Config{ServerName: cs.Endpoint(), MinVersion: tls.VersionTLS12})
			return nil
		}),
	}
	return mqtt.New(base, append(all, opts...)...)
}

func Username(cs ConnectionString, apiVersion string) string {
	return cs.HostName + "/" + cs.DeviceID + "/?api-version=" + apiVersion
}

// Topic is the device events topic followed by the message property bag:
// system properties ($.mid, $.ct, $.ce) then the custom ones in key order.
func Topic(deviceID string, m *domain.Message) string {
	var b strings.Builder
	b.WriteString("devices/")
	b.WriteString(deviceID)
	b.WriteString("/messages/events/")

	var bag []string
	add := func(k, v string) {
		if v != "" {
			bag = append(bag, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	sys := []string{"$.mid=" + url.QueryEscape(m.ID)}
	if m.ID == "" {
		sys = nil
	}
	if m.ContentType != "" {
		sys = append(sys, "$.ct="+url.QueryEscape(m.ContentType))
	}
	if m.ContentEncoding != "" {
		sys = append(sys, "$.ce="+url.QueryEscape(m.ContentEncoding))
	}

	keys := make([]string, 0, len(m.Properties))
	for k := range m.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, m.Properties[k])
	}

	b.WriteString(strings.Join(append(sys, bag...), "&"))
	return b.String()
}

var _ ports.Transport = (*mqtt.Transport)(nil)
