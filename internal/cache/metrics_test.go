package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestStatsCollectorExportsMemoryCounters(t *testing.T) {
	m, _ := newTestMemory(time.Minute, 10)
	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("v"))
	_, _, _ = m.Get(ctx, "k")
	_, _, _ = m.Get(ctx, "missing")

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewStatsCollector("profile", m))
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	ops := map[string]float64{}
	var entries, ttl float64
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			switch family.GetName() {
			case "tutorlix_cache_operations_total":
				for _, label := range metric.GetLabel() {
					if label.GetName() == "op" {
						ops[label.GetValue()] = metric.GetCounter().GetValue()
					}
				}
			case "tutorlix_cache_entries":
				entries = metric.GetGauge().GetValue()
			case "tutorlix_cache_ttl_seconds":
				ttl = metric.GetGauge().GetValue()
			}
		}
	}

	if ops["hit"] != 1 || ops["miss"] != 1 || ops["set"] != 1 {
		t.Fatalf("unexpected operation counts %v", ops)
	}
	if entries != 1 {
		t.Fatalf("expected one entry, got %v", entries)
	}
	if ttl != 60 {
		t.Fatalf("expected ttl 60s, got %v", ttl)
	}
}
