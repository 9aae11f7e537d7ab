package reports

// HideableMetrics are the report metrics an account may hide
var HideableMetrics = []string{"outgoing_messages_count", "incoming_messages_count", "reply_time"}

// metricAliases maps presentation names onto their canonical metric
var metricAliases = map[string]string{
	"avg_reply_time": "reply_time",
}

const previousKey = "previous"

// MetricFilter removes hidden metrics from report payloads
type MetricFilter struct {
	hidden map[string]struct{}
}

// NewMetricFilter keeps only the configured metrics that are hideable
func NewMetricFilter(hiddenMetrics []string) *MetricFilter {
	hideable := make(map[string]struct{}, len(HideableMetrics))
	for _, metric := range HideableMetrics {
		hideable[metric] = struct{}{}
	}

	hidden := make(map[string]struct{})
	for _, metric := range hiddenMetrics {
		if _, ok := hideable[metric]; ok {
			hidden[metric] = struct{}{}
		}
	}

	return &MetricFilter{hidden: hidden}
}

// CanonicalMetric resolves an alias to its canonical metric name
func CanonicalMetric(key string) string {
	if canonical, ok := metricAliases[key]; ok {
		return canonical
	}
	return key
}

// HiddenMetrics lists the effective hidden metrics
func (f *MetricFilter) HiddenMetrics() []string {
	metrics := make([]string, 0, len(f.hidden))
	for _, metric := range HideableMetrics {
		if _, ok := f.hidden[metric]; ok {
			metrics = append(metrics, metric)
		}
	}
	return metrics
}

// IsHidden reports whether key, after alias resolution, is hidden
func (f *MetricFilter) IsHidden(key string) bool {
	_, hidden := f.hidden[CanonicalMetric(key)]
	return hidden
}

// FilterMap returns a copy of data without hidden keys
func (f *MetricFilter) FilterMap(data map[string]interface{}) map[string]interface{} {
	if len(f.hidden) == 0 || data == nil {
		return data
	}

	filtered := make(map[string]interface{}, len(data))
	for key, value := range data {
		if !f.IsHidden(key) {
			filtered[key] = value
		}
	}
	return filtered
}

// FilterRows applies FilterMap to every row
func (f *MetricFilter) FilterRows(rows []map[string]interface{}) []map[string]interface{} {
	if len(f.hidden) == 0 {
		return rows
	}

	filtered := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		filtered[i] = f.FilterMap(row)
	}
	return filtered
}

// FilterSummaryWithPrevious filters a summary and its nested "previous" period
func (f *MetricFilter) FilterSummaryWithPrevious(data map[string]interface{}) map[string]interface{} {
	if len(f.hidden) == 0 {
		return data
	}

	filtered := f.FilterMap(data)
	if previous, ok := filtered[previousKey].(map[string]interface{}); ok && len(previous) > 0 {
		filtered[previousKey] = f.FilterMap(previous)
	}
	return filtered
}

// FilterVisibleReportKeys drops entries whose metric value is hidden.
// Keys are presentation identifiers, values are metric names.
func (f *MetricFilter) FilterVisibleReportKeys(reportKeys map[string]string) map[string]string {
	visible := make(map[string]string, len(reportKeys))
	for key, metric := range reportKeys {
		if !f.IsHidden(metric) {
			visible[key] = metric
		}
	}
	return visible
}
