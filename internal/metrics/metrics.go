package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type Registry struct {
	serverStarts      atomic.Int64
	serverRestarts    atomic.Int64
	serverCrashes     atomic.Int64
	extractionRuns    atomic.Int64
	extractionFailed  atomic.Int64
	extractedFiles    atomic.Int64
	surfacesAttached  atomic.Int64
	refreshes         sync.Map
	eventsPublished   sync.Map
	eventsDropped     sync.Map
	subscriberCounts  sync.Map
	broadcastsDropped atomic.Int64
}

type subscriberCounts struct {
	filtered   atomic.Int64
	unfiltered atomic.Int64
}

var Default = &Registry{}

func (r *Registry) IncServerStart() {
	if r == nil {
		return
	}
	r.serverStarts.Add(1)
}

func (r *Registry) IncServerRestart() {
	if r == nil {
		return
	}
	r.serverRestarts.Add(1)
}

func (r *Registry) IncServerCrash() {
	if r == nil {
		return
	}
	r.serverCrashes.Add(1)
}

func (r *Registry) RecordExtraction(files int, failed bool) {
	if r == nil {
		return
	}
	r.extractionRuns.Add(1)
	if failed {
		r.extractionFailed.Add(1)
		return
	}
	r.extractedFiles.Add(int64(files))
}

func (r *Registry) IncRefresh(category string) {
	if r == nil {
		return
	}
	counter(&r.refreshes, normalizeName(category)).Add(1)
}

func (r *Registry) SetSurfaces(count int) {
	if r == nil {
		return
	}
	r.surfacesAttached.Store(int64(count))
}

func (r *Registry) IncBroadcastDropped() {
	if r == nil {
		return
	}
	r.broadcastsDropped.Add(1)
}

func (r *Registry) IncEventPublished(bus, eventType string) {
	if r == nil {
		return
	}
	counter(&r.eventsPublished, labelKey(bus, eventType)).Add(1)
}

func (r *Registry) IncEventDropped(bus, eventType string) {
	if r == nil {
		return
	}
	counter(&r.eventsDropped, labelKey(bus, eventType)).Add(1)
}

func (r *Registry) SetEventSubscriberCounts(bus string, filtered, unfiltered int) {
	if r == nil {
		return
	}
	value, _ := r.subscriberCounts.LoadOrStore(normalizeName(bus), &subscriberCounts{})
	counts := value.(*subscriberCounts)
	counts.filtered.Store(int64(filtered))
	counts.unfiltered.Store(int64(unfiltered))
}

// Refreshes reports how many refresh signals were emitted for a category.
func (r *Registry) Refreshes(category string) int64 {
	if r == nil {
		return 0
	}
	value, ok := r.refreshes.Load(normalizeName(category))
	if !ok {
		return 0
	}
	return value.(*atomic.Int64).Load()
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeCounter(writer, "serverdeck_server_starts_total", "Server process spawns", r.serverStarts.Load())
	writeCounter(writer, "serverdeck_server_restarts_total", "Automatic restarts requested by the server", r.serverRestarts.Load())
	writeCounter(writer, "serverdeck_server_crashes_total", "Unexpected non-zero server exits", r.serverCrashes.Load())
	writeCounter(writer, "serverdeck_asset_extractions_total", "Asset extraction passes", r.extractionRuns.Load())
	writeCounter(writer, "serverdeck_asset_extraction_failures_total", "Failed asset extraction passes", r.extractionFailed.Load())
	writeCounter(writer, "serverdeck_asset_files_extracted_total", "Image files written to the asset cache", r.extractedFiles.Load())
	writeCounter(writer, "serverdeck_broadcasts_dropped_total", "Broadcasts a surface failed to accept", r.broadcastsDropped.Load())

	writeHelp(writer, "serverdeck_surfaces", "Attached UI surfaces")
	fmt.Fprintln(writer, "# TYPE serverdeck_surfaces gauge")
	fmt.Fprintf(writer, "serverdeck_surfaces %d\n", r.surfacesAttached.Load())

	writeHelp(writer, "serverdeck_refresh_total", "Refresh signals per category")
	fmt.Fprintln(writer, "# TYPE serverdeck_refresh_total counter")
	for _, name := range sortedKeys(&r.refreshes) {
		value, _ := r.refreshes.Load(name)
		fmt.Fprintf(writer, "serverdeck_refresh_total{category=%s} %d\n", formatLabel(name), value.(*atomic.Int64).Load())
	}

	writeLabeledBusCounters(writer, "serverdeck_events_published_total", "Events published per bus", &r.eventsPublished)
	writeLabeledBusCounters(writer, "serverdeck_events_dropped_total", "Events dropped per bus", &r.eventsDropped)

	writeHelp(writer, "serverdeck_event_subscribers", "Event bus subscribers")
	fmt.Fprintln(writer, "# TYPE serverdeck_event_subscribers gauge")
	for _, bus := range sortedKeys(&r.subscriberCounts) {
		value, _ := r.subscriberCounts.Load(bus)
		counts := value.(*subscriberCounts)
		fmt.Fprintf(writer, "serverdeck_event_subscribers{bus=%s,kind=\"filtered\"} %d\n", formatLabel(bus), counts.filtered.Load())
		fmt.Fprintf(writer, "serverdeck_event_subscribers{bus=%s,kind=\"unfiltered\"} %d\n", formatLabel(bus), counts.unfiltered.Load())
	}

	return nil
}

func writeLabeledBusCounters(writer io.Writer, metric, help string, values *sync.Map) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	for _, key := range sortedKeys(values) {
		value, _ := values.Load(key)
		bus, eventType, _ := strings.Cut(key, "\x00")
		fmt.Fprintf(writer, "%s{bus=%s,type=%s} %d\n", metric, formatLabel(bus), formatLabel(eventType), value.(*atomic.Int64).Load())
	}
}

func counter(values *sync.Map, key string) *atomic.Int64 {
	value, _ := values.LoadOrStore(key, &atomic.Int64{})
	return value.(*atomic.Int64)
}

func labelKey(bus, eventType string) string {
	return normalizeName(bus) + "\x00" + normalizeName(eventType)
}

func normalizeName(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	return value
}

func sortedKeys(values *sync.Map) []string {
	var keys []string
	values.Range(func(key, _ any) bool {
		if name, ok := key.(string); ok {
			keys = append(keys, name)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
