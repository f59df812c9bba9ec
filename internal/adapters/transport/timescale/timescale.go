package timescale

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"

	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

type Config struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

func (c *Config) ApplyDefaults() {
	if c.Table == "" {
		c.Table = "vital_readings"
	}
}

func (c *Config) Validate() error {
	if c.ConnString == "" {
		return errors.New("conn_string is required (set TIMESCALE_CONN_STRING)")
	}
	return nil
}

// Transport inserts one row per message. Message ids are unique, so a
// retried insert is a no-op.
type Transport struct {
	connString string
	query      string

	mu sync.Mutex
	db *sql.DB
}

func New(cfg Config) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{connString: cfg.ConnString, query: insertQuery(cfg.Table)}, nil
}

// NewWithDB uses an already opened handle; Close still closes it.
func NewWithDB(db *sql.DB, table string) *Transport {
	if table == "" {
		table = "vital_readings"
	}
	return &Transport{db: db, query: insertQuery(table)}
}

func (t *Transport) Name() string { return "timescaledb" }

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		db, err := sql.Open("postgres", t.connString)
		if err != nil {
			return fmt.Errorf("open timescale: %w", err)
		}
		t.db = db
	}
	if err := t.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping timescale: %w", err)
	}
	return nil
}

func (t *Transport) Send(ctx context.Context, msg *domain.Message) error {
	t.mu.Lock()
	db := t.db
	t.mu.Unlock()
	if db == nil {
		return errors.New("timescale transport not connected")
	}

	r := msg.Reading
	values, err := json.Marshal(r.Value.Fields())
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	props, err := json.Marshal(msg.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	_, err = db.ExecContext(ctx, t.query,
		msg.ID,
		r.SensorName,
		r.SensorType,
		r.Timestamp,
		values,
		r.Unit,
		r.Alert,
		props,
	)
	return err
}

func (t *Transport) Close() error {
	t.mu.Lock()
	db := t.db
	t.db = nil
	t.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

func insertQuery(table string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" (message_id, sensor_name, sensor_type, ts, values, unit, is_alert, properties)")
	b.WriteString(" VALUES ($1,$2,$3,$4,$5,$6,$7,$8)")
	b.WriteString(" ON CONFLICT (message_id) DO NOTHING")
	return b.String()
}

var _ ports.Transport = (*Transport)(nil)
