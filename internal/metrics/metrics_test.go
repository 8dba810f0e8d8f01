package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNilCollectorsDiscardsUpdates(t *testing.T) {
	var c *Collectors
	c.CommandAccepted("ping")
	c.CommandRejected("bad_crc")
	c.TelemetrySent("ack")
	c.FragmentDropped()
	c.SessionOpened()
	c.SessionTimedOut()
}

func TestCommandAcceptedIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, "router")

	c.CommandAccepted("ping")
	c.CommandAccepted("ping")
	c.CommandAccepted("set_telemetry_rate")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	got := counterValue(t, mfs, "grips_commands_accepted_total", "ping")
	if got != 2 {
		t.Fatalf("commands_accepted_total{cmd_type=ping} = %v, want 2", got)
	}
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, labelValue string) float64 {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with label value %s not found", name, labelValue)
	return 0
}
