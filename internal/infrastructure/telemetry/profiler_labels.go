package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelRoute  = "route"
	ProfilingLabelMethod = "method"
	ProfilingLabelEntity = "entity"
	ProfilingLabelAction = "action"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// per-document identifiers would explode profile cardinality
var highCardinalityLabels = map[string]bool{
	"request_id":        true,
	"trace_id":          true,
	"span_id":           true,
	"purchase_order_id": true,
	"shipment_id":       true,
	"actor":             true,
}

// WithProfilingLabels runs fn with pprof labels attached so profiles can be
// sliced by route or lifecycle action.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// HTTPRequestLabels labels a request by its route template
func HTTPRequestLabels(route, method string) map[string]string {
	return map[string]string{ProfilingLabelRoute: route, ProfilingLabelMethod: method}
}

// LifecycleLabels labels a document operation such as an allocation run
func LifecycleLabels(entity, action string) map[string]string {
	return map[string]string{ProfilingLabelEntity: entity, ProfilingLabelAction: action}
}

// sanitizeLabels returns key/value pairs sorted by sanitized key, with empty,
// high-cardinality and malformed keys dropped and long values truncated. When
// two raw keys sanitize to the same key the lexically smaller raw key wins.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	raw := make([]string, 0, len(labels))
	for k := range labels {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	clean := make(map[string]string, len(labels))
	keys := make([]string, 0, len(labels))
	for _, k := range raw {
		v := labels[k]
		key := sanitizeLabelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if _, dup := clean[key]; dup {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		clean[key] = v
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, clean[k])
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(key))
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
