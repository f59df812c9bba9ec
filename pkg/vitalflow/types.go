package vitalflow

import (
	"github.com/ghalamif/VitalFlow/internal/app/sensors"
	"github.com/ghalamif/VitalFlow/internal/app/simulation"
	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

// Reading is one synthetic sensor measurement as it is sent on the wire.
type Reading = domain.Reading

// Value holds either a scalar reading or a blood pressure pair.
type Value = domain.Value

// BloodPressure is the systolic/diastolic pair carried by blood pressure readings.
type BloodPressure = domain.BloodPressure

// Message is the envelope handed to a Transport.
type Message = domain.Message

// SensorSpec describes one simulated sensor.
type SensorSpec = domain.SensorSpec

// Catalog is the ordered set of simulated sensors.
type Catalog = domain.Catalog

// Summary is the end-of-run report: latencies, counts and power per sensor.
type Summary = domain.Summary

// Transport delivers messages to an ingestion endpoint (IoT Hub, MQTT, NATS, databases, etc.).
type Transport = ports.Transport

// Observability receives structured logs and metrics from the runtime.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// RetryPolicy controls how failed sends are retried and what happens afterwards.
type RetryPolicy = ports.RetryPolicy

// ChartRenderer presents the end-of-run summary.
type ChartRenderer = ports.ChartRenderer

// Archiver ships the written summary file somewhere durable.
type Archiver = ports.Archiver

// ReadingListener is notified after every successful send.
type ReadingListener = ports.ReadingListener

// Spool durably keeps messages the transport could not deliver.
type Spool = ports.Spool

// SpoolStats reports the spool watermarks and size.
type SpoolStats = ports.SpoolStats

// Rand is the uniform source the reading generator draws from.
type Rand = sensors.Rand

// State is the lifecycle state of a Runtime.
type State = simulation.State

const (
	StateIdle         = simulation.Idle
	StateRunning      = simulation.Running
	StateShuttingDown = simulation.ShuttingDown
	StateTerminated   = simulation.Terminated
)

// DefaultCatalog returns the five simulated medical sensors.
func DefaultCatalog() Catalog {
	return domain.DefaultCatalog()
}

// NewRand returns a seeded generator; seed 0 seeds from the clock.
func NewRand(seed uint64) Rand {
	return sensors.NewRand(seed)
}
