package observability

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics on top of the Prometheus client
// library. Metric vectors are created lazily, one per metric name, with
// the label set fixed by the first observation. All names are prefixed
// with the service name and normalized to Prometheus conventions.
type PrometheusMetrics struct {
	state *promState
	tags  map[string]string
}

// promState is shared between a PrometheusMetrics instance and all the
// derived instances returned by WithTags.
type promState struct {
	prefix   string
	registry prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
	gauges     map[string]*gaugeEntry
}

type counterEntry struct {
	vec  *prometheus.CounterVec
	keys []string
}

type histogramEntry struct {
	vec  *prometheus.HistogramVec
	keys []string
}

type gaugeEntry struct {
	vec  *prometheus.GaugeVec
	keys []string
}

// NewPrometheusMetrics creates a Metrics implementation registering its
// vectors with reg. Pass nil to use the default Prometheus registerer.
func NewPrometheusMetrics(serviceName string, reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		state: &promState{
			prefix:     sanitizeMetricName(serviceName),
			registry:   reg,
			counters:   make(map[string]*counterEntry),
			histograms: make(map[string]*histogramEntry),
			gauges:     make(map[string]*gaugeEntry),
		},
		tags: make(map[string]string),
	}
}

// IncrementCounter increments the named counter by 1.
func (m *PrometheusMetrics) IncrementCounter(name string, tags map[string]string) {
	merged := m.mergeTags(tags)

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	fullName := m.state.fullName(name)
	entry, ok := m.state.counters[fullName]
	if !ok {
		keys := labelKeys(merged)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fullName,
			Help: "Counter " + name,
		}, keys)
		m.state.registry.MustRegister(vec)
		entry = &counterEntry{vec: vec, keys: keys}
		m.state.counters[fullName] = entry
	}

	if c, err := entry.vec.GetMetricWith(labelValues(entry.keys, merged)); err == nil {
		c.Inc()
	}
}

// RecordHistogram records value in the named histogram with the
// default Prometheus buckets.
func (m *PrometheusMetrics) RecordHistogram(name string, value float64, tags map[string]string) {
	merged := m.mergeTags(tags)

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	fullName := m.state.fullName(name)
	entry, ok := m.state.histograms[fullName]
	if !ok {
		keys := labelKeys(merged)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fullName,
			Help:    "Histogram " + name,
			Buckets: prometheus.DefBuckets,
		}, keys)
		m.state.registry.MustRegister(vec)
		entry = &histogramEntry{vec: vec, keys: keys}
		m.state.histograms[fullName] = entry
	}

	if h, err := entry.vec.GetMetricWith(labelValues(entry.keys, merged)); err == nil {
		h.Observe(value)
	}
}

// RecordGauge sets the named gauge to value.
func (m *PrometheusMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	merged := m.mergeTags(tags)

	m.state.mu.Lock()
	defer m.state.mu.Unlock()

	fullName := m.state.fullName(name)
	entry, ok := m.state.gauges[fullName]
	if !ok {
		keys := labelKeys(merged)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: fullName,
			Help: "Gauge " + name,
		}, keys)
		m.state.registry.MustRegister(vec)
		entry = &gaugeEntry{vec: vec, keys: keys}
		m.state.gauges[fullName] = entry
	}

	if g, err := entry.vec.GetMetricWith(labelValues(entry.keys, merged)); err == nil {
		g.Set(value)
	}
}

// WithTags returns a Metrics instance sharing the same registry and
// vectors but carrying additional default tags.
func (m *PrometheusMetrics) WithTags(tags map[string]string) Metrics {
	merged := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return &PrometheusMetrics{state: m.state, tags: merged}
}

func (m *PrometheusMetrics) mergeTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return m.tags
	}
	merged := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return merged
}

func (s *promState) fullName(name string) string {
	name = sanitizeMetricName(name)
	if s.prefix == "" {
		return name
	}
	return s.prefix + "_" + name
}

// sanitizeMetricName maps dotted metric names like "fetch.errors" to
// the underscore form Prometheus expects.
func sanitizeMetricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func labelKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, sanitizeMetricName(k))
	}
	sort.Strings(keys)
	return keys
}

// labelValues builds the exact label set a vector was created with.
// Tags added after the vector's first observation are dropped rather
// than tripping a label-cardinality panic.
func labelValues(keys []string, tags map[string]string) prometheus.Labels {
	sanitized := make(map[string]string, len(tags))
	for k, v := range tags {
		sanitized[sanitizeMetricName(k)] = v
	}
	labels := make(prometheus.Labels, len(keys))
	for _, k := range keys {
		labels[k] = sanitized[k]
	}
	return labels
}
