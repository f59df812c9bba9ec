package opcua

import (
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/VitalFlow/internal/domain"
)

func TestWriteRequestForPressure(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	nodes := []NodeConfig{
		{NodeID: "ns=2;s=BP.Sys", Sensor: "BloodPressure", Field: "systolic"},
		{NodeID: "ns=2;s=BP.Dia", Sensor: "BloodPressure", Field: "diastolic"},
	}
	r := domain.Reading{
		SensorName: "BloodPressure",
		Value:      domain.Value{Pressure: &domain.BloodPressure{Systolic: 141.5, Diastolic: 88}},
		Timestamp:  ts,
	}

	req, err := WriteRequest(nodes, r)
	if err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if len(req.NodesToWrite) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(req.NodesToWrite))
	}
	first := req.NodesToWrite[0]
	if first.NodeID.String() != "ns=2;s=BP.Sys" {
		t.Fatalf("unexpected node %s", first.NodeID)
	}
	if first.AttributeID != ua.AttributeIDValue {
		t.Fatalf("expected value attribute, got %v", first.AttributeID)
	}
	if got := first.Value.Value.Value(); got != 141.5 {
		t.Fatalf("expected 141.5, got %v", got)
	}
	if got := req.NodesToWrite[1].Value.Value.Value(); got != 88.0 {
		t.Fatalf("expected 88, got %v", got)
	}
	if !first.Value.SourceTimestamp.Equal(ts) {
		t.Fatalf("source timestamp not carried: %v", first.Value.SourceTimestamp)
	}
}

func TestWriteRequestUnmappedSensor(t *testing.T) {
	req, err := WriteRequest(nil, domain.Reading{SensorName: "ECG"})
	if err != nil || req != nil {
		t.Fatalf("expected no request for unmapped sensor, got %v %v", req, err)
	}
}

func TestWriteRequestUnknownField(t *testing.T) {
	nodes := []NodeConfig{{NodeID: "ns=2;s=ECG", Sensor: "ECG", Field: "systolic"}}
	if _, err := WriteRequest(nodes, domain.Reading{SensorName: "ECG", Value: domain.Value{Scalar: 1}}); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{Endpoint: "opc.tcp://localhost:4840", Nodes: []NodeConfig{{NodeID: "ns=2;s=HR", Sensor: "HeartRate"}}}
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.cfg.Nodes[0].Field != "value" || tr.cfg.SecurityMode != "None" {
		t.Fatalf("defaults not applied: %+v", tr.cfg)
	}
	if len(tr.nodes["HeartRate"]) != 1 {
		t.Fatalf("expected node index by sensor, got %v", tr.nodes)
	}

	bad := []Config{
		{Nodes: cfg.Nodes},
		{Endpoint: cfg.Endpoint},
		{Endpoint: cfg.Endpoint, Nodes: []NodeConfig{{NodeID: "ns=2;s=HR"}}},
		{Endpoint: cfg.Endpoint, Nodes: []NodeConfig{{NodeID: "not a node", Sensor: "HeartRate"}}},
	}
	for i, c := range bad {
		if _, err := New(c); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestNormalizeSecurityMode(t *testing.T) {
	cases := map[string]string{
		"sign":             "Sign",
		"SignAndEncrypt":   "SignAndEncrypt",
		"sign_and_encrypt": "SignAndEncrypt",
		"":                 "None",
	}
	for in, want := range cases {
		if got := normalizeSecurityMode(in); got != want {
			t.Fatalf("normalizeSecurityMode(%q)=%q, want %q", in, got, want)
		}
	}
}
