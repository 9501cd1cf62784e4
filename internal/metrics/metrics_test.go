package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestWritePrometheusIncludesCounters(t *testing.T) {
	registry := &Registry{}
	registry.IncServerStart()
	registry.IncServerRestart()
	registry.RecordExtraction(12, false)
	registry.RecordExtraction(0, true)
	registry.IncRefresh("players")
	registry.IncRefresh("players")
	registry.IncEventPublished("supervisor_status", "running")
	registry.SetEventSubscriberCounts("supervisor_status", 0, 2)

	var out bytes.Buffer
	if err := registry.WritePrometheus(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	text := out.String()

	for _, want := range []string{
		"serverdeck_server_starts_total 1",
		"serverdeck_server_restarts_total 1",
		"serverdeck_asset_extractions_total 2",
		"serverdeck_asset_extraction_failures_total 1",
		"serverdeck_asset_files_extracted_total 12",
		`serverdeck_refresh_total{category="players"} 2`,
		`serverdeck_events_published_total{bus="supervisor_status",type="running"} 1`,
		`serverdeck_event_subscribers{bus="supervisor_status",kind="unfiltered"} 2`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
	if registry.Refreshes("players") != 2 {
		t.Fatalf("expected 2 player refreshes, got %d", registry.Refreshes("players"))
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var registry *Registry
	registry.IncServerStart()
	registry.IncRefresh("mods")
	if err := registry.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("expected nil registry write to succeed: %v", err)
	}
}
