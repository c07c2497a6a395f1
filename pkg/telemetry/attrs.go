package telemetry

import "go.opentelemetry.io/otel/attribute"

// attrsFromTags pairs up a flat "key","value","key","value",... tag list
// into OTEL attributes, ignoring a trailing unpaired tag.
func attrsFromTags(tags []string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		out = append(out, attribute.String(tags[i], tags[i+1]))
	}
	return out
}
