package main

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	listEventName   = "tasks.list.completed"
	listEventDomain = "task-manager.api"

	attrStatusCode = "http.status_code"
	attrReturned   = "tasks.returned"
	attrDropped    = "tasks.dropped"
	attrErrorStage = "tasks.error_stage"
)

// durationAttrs maps the summary key to the logged attribute.
var durationAttrs = map[string]string{
	"total":  "tasks.total_ms",
	"fetch":  "tasks.fetch_ms",
	"encode": "tasks.encode_ms",
}

// decoder keeps numbers as json.Number so integers survive unchanged.
var decoder = sonic.Config{UseNumber: true}.Froze()

type logRecord struct {
	EventName    string         `json:"event.name"`
	EventDomain  string         `json:"event.domain"`
	SeverityText string         `json:"severity_text"`
	Attributes   map[string]any `json:"attributes"`
}

type collector struct {
	eventName   string
	eventDomain string

	count       int
	skipped     int
	severities  map[string]int
	statuses    map[int]int
	durations   map[string]*numericStats
	returned    *numericStats
	dropped     *numericStats
	errorStages map[string]int
}

type numericStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

type numericSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

type summaryOutput struct {
	EventName      string                    `json:"event_name"`
	EventDomain    string                    `json:"event_domain"`
	TotalEvents    int                       `json:"total_events"`
	SeverityCounts map[string]int            `json:"severity_counts"`
	StatusCounts   map[string]int            `json:"status_counts"`
	DurationMs     map[string]numericSummary `json:"duration_ms"`
	TasksReturned  numericSummary            `json:"tasks_returned"`
	TasksDropped   numericSummary            `json:"tasks_dropped"`
	ErrorStages    map[string]int            `json:"error_stages,omitempty"`
	SkippedLines   int                       `json:"skipped_lines"`
}

func newCollector(eventName, eventDomain string) *collector {
	return &collector{
		eventName:   eventName,
		eventDomain: eventDomain,
		severities:  make(map[string]int),
		statuses:    make(map[int]int),
		durations:   make(map[string]*numericStats),
		returned:    newNumericStats(),
		dropped:     newNumericStats(),
		errorStages: make(map[string]int),
	}
}

// ingest consumes one log line. Lines prefixed by a container name
// ("api-1 | {...}") are accepted.
func (c *collector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}

	var rec logRecord
	if err := decoder.UnmarshalFromString(trimmed, &rec); err != nil {
		c.skipped++
		return
	}
	if rec.EventName != c.eventName {
		return
	}
	if c.eventDomain != "" && rec.EventDomain != c.eventDomain {
		return
	}
	c.add(rec)
}

func (c *collector) add(rec logRecord) {
	c.count++

	severity := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if severity == "" {
		severity = "UNSPECIFIED"
	}
	c.severities[severity]++

	attrs := rec.Attributes
	if status, ok := asFloat(attrs[attrStatusCode]); ok {
		c.statuses[int(status)]++
	}
	for key, attr := range durationAttrs {
		if v, ok := asFloat(attrs[attr]); ok {
			stat, exists := c.durations[key]
			if !exists {
				stat = newNumericStats()
				c.durations[key] = stat
			}
			stat.add(v)
		}
	}
	if v, ok := asFloat(attrs[attrReturned]); ok {
		c.returned.add(v)
	}
	if v, ok := asFloat(attrs[attrDropped]); ok {
		c.dropped.add(v)
	}
	if stage, ok := attrs[attrErrorStage].(string); ok && stage != "" {
		c.errorStages[stage]++
	}
}

func newNumericStats() *numericStats {
	return &numericStats{Min: math.MaxFloat64}
}

func (n *numericStats) add(v float64) {
	n.Count++
	n.Sum += v
	n.Min = math.Min(n.Min, v)
	n.Max = math.Max(n.Max, v)
}

func (n *numericStats) summary() numericSummary {
	if n == nil || n.Count == 0 {
		return numericSummary{}
	}
	return numericSummary{Count: n.Count, Min: n.Min, Max: n.Max, Avg: n.Sum / float64(n.Count)}
}

func (c *collector) summary() summaryOutput {
	durations := make(map[string]numericSummary, len(c.durations))
	for key, stat := range c.durations {
		durations[key] = stat.summary()
	}
	statuses := make(map[string]int, len(c.statuses))
	for status, count := range c.statuses {
		statuses[strconv.Itoa(status)] = count
	}
	var stages map[string]int
	if len(c.errorStages) > 0 {
		stages = c.errorStages
	}
	return summaryOutput{
		EventName:      c.eventName,
		EventDomain:    c.eventDomain,
		TotalEvents:    c.count,
		SeverityCounts: c.severities,
		StatusCounts:   statuses,
		DurationMs:     durations,
		TasksReturned:  c.returned.summary(),
		TasksDropped:   c.dropped.summary(),
		ErrorStages:    stages,
		SkippedLines:   c.skipped,
	}
}

// ShortString is a one line digest for CI output.
func (s summaryOutput) ShortString() string {
	total := s.DurationMs["total"]
	parts := []string{
		"event=" + s.EventName,
		"total=" + strconv.Itoa(s.TotalEvents),
		"avg_total_ms=" + formatFloat(total.Avg),
		"max_total_ms=" + formatFloat(total.Max),
	}
	severities := make([]string, 0, len(s.SeverityCounts))
	for k := range s.SeverityCounts {
		severities = append(severities, k)
	}
	sort.Strings(severities)
	for _, k := range severities {
		parts = append(parts, strings.ToLower(k)+"="+strconv.Itoa(s.SeverityCounts[k]))
	}
	return strings.Join(parts, " ")
}

func formatFloat(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
