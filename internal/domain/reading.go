package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the wire format for reading timestamps (UTC, second precision).
const TimestampLayout = "2006-01-02T15:04:05Z"

// BloodPressure is the systolic/diastolic pair reported by the cuff sensor.
type BloodPressure struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

// Value holds either a scalar measurement or a blood pressure pair.
type Value struct {
	Scalar   float64
	Pressure *BloodPressure
}

func ScalarValue(v float64) Value { return Value{Scalar: v} }

func PressureValue(systolic, diastolic float64) Value {
	return Value{Pressure: &BloodPressure{Systolic: systolic, Diastolic: diastolic}}
}

func (v Value) IsPressure() bool { return v.Pressure != nil }

// Fields flattens the value into named numeric components.
func (v Value) Fields() map[string]float64 {
	if v.Pressure != nil {
		return map[string]float64{
			"systolic":  v.Pressure.Systolic,
			"diastolic": v.Pressure.Diastolic,
		}
	}
	return map[string]float64{"value": v.Scalar}
}

func (v Value) String() string {
	if v.Pressure != nil {
		return formatFloat(v.Pressure.Systolic) + "/" + formatFloat(v.Pressure.Diastolic)
	}
	return formatFloat(v.Scalar)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Pressure != nil {
		return json.Marshal(v.Pressure)
	}
	return json.Marshal(v.Scalar)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var bp BloodPressure
		if err := json.Unmarshal(b, &bp); err != nil {
			return fmt.Errorf("decode blood pressure: %w", err)
		}
		*v = Value{Pressure: &bp}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decode scalar value: %w", err)
	}
	*v = Value{Scalar: f}
	return nil
}

// Reading is one synthetic observation. Readings are immutable once produced.
type Reading struct {
	SensorName string
	SensorType SensorKind
	Value      Value
	Unit       string
	Timestamp  time.Time
	Alert      bool
}

type wireReading struct {
	SensorName string     `json:"sensor_name"`
	SensorType SensorKind `json:"sensor_type"`
	Value      Value      `json:"value"`
	Unit       string     `json:"unit"`
	Timestamp  string     `json:"timestamp"`
	Alert      bool       `json:"is_alert"`
}

func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireReading{
		SensorName: r.SensorName,
		SensorType: r.SensorType,
		Value:      r.Value,
		Unit:       r.Unit,
		Timestamp:  r.Timestamp.UTC().Format(TimestampLayout),
		Alert:      r.Alert,
	})
}

func (r *Reading) UnmarshalJSON(b []byte) error {
	var w wireReading
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ts, err := time.Parse(TimestampLayout, w.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", w.Timestamp, err)
	}
	*r = Reading{
		SensorName: w.SensorName,
		SensorType: w.SensorType,
		Value:      w.Value,
		Unit:       w.Unit,
		Timestamp:  ts,
		Alert:      w.Alert,
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
