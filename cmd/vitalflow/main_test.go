package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestScanMetricsSumsLabelledSeries(t *testing.T) {
	body := strings.Join([]string{
		"# HELP vitalflow_readings_sent_total Readings delivered to the transport.",
		"# TYPE vitalflow_readings_sent_total counter",
		`vitalflow_readings_sent_total{sensor="ECG"} 3`,
		`vitalflow_readings_sent_total{sensor="HeartRate"} 4`,
		"vitalflow_ticks_total 4",
		"vitalflow_ticks_total_extra 99",
	}, "\n")

	got, err := scanMetrics(strings.NewReader(body), "vitalflow_readings_sent_total", "vitalflow_ticks_total", "vitalflow_alerts_total")
	if err != nil {
		t.Fatalf("scanMetrics: %v", err)
	}
	if got["vitalflow_readings_sent_total"] != 7 {
		t.Fatalf("expected sent=7, got %v", got["vitalflow_readings_sent_total"])
	}
	if got["vitalflow_ticks_total"] != 4 {
		t.Fatalf("expected ticks=4, got %v", got["vitalflow_ticks_total"])
	}
	if v, ok := got["vitalflow_alerts_total"]; !ok || v != 0 {
		t.Fatalf("expected alerts=0 present, got %v (%v)", v, ok)
	}
}

func TestCatalogCommandListsEverySensor(t *testing.T) {
	var buf bytes.Buffer
	if err := catalogCommand(&buf); err != nil {
		t.Fatalf("catalogCommand: %v", err)
	}
	out := buf.String()
	for _, name := range []string{"ECG", "HeartRate", "BloodPressure", "Oximeter", "Temperature"} {
		if !strings.Contains(out, name) {
			t.Fatalf("catalog output missing %s:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "mV_rms") || !strings.Contains(out, "95-100") {
		t.Fatalf("unexpected catalog output:\n%s", out)
	}
}
