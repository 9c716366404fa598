package engine

import (
	"sort"
	"sync"
	"time"
)

const (
	topOriginsLimit   = 10
	commonErrorsLimit = 20
)

// Observation is one evaluation as seen by the collector.
type Observation struct {
	Origin    string
	Method    string
	Allowed   bool
	ErrorKeys []string
	Score     *int
}

type CountEntry struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Statistics is a point-in-time copy of the collector.
type Statistics struct {
	TotalRequests        int64            `json:"totalRequests"`
	AllowedRequests      int64            `json:"allowedRequests"`
	BlockedRequests      int64            `json:"blockedRequests"`
	TopOrigins           []CountEntry     `json:"topOrigins"`
	TopBlockedOrigins    []CountEntry     `json:"topBlockedOrigins"`
	MethodDistribution   map[string]int64 `json:"methodDistribution"`
	CommonErrors         []CountEntry     `json:"commonErrors"`
	AverageSecurityScore float64          `json:"averageSecurityScore"`
	ScoredRequests       int64            `json:"scoredRequests"`
	TimeRange            TimeRange        `json:"timeRange"`
}

// CorsStatistics is the CORS engine's view of Statistics.
type CorsStatistics struct {
	TotalRequests      int64            `json:"totalRequests"`
	AllowedRequests    int64            `json:"allowedRequests"`
	BlockedRequests    int64            `json:"blockedRequests"`
	TopOrigins         []CountEntry     `json:"topOrigins"`
	TopBlockedOrigins  []CountEntry     `json:"topBlockedOrigins"`
	MethodDistribution map[string]int64 `json:"methodDistribution"`
	TimeRange          TimeRange        `json:"timeRange"`
}

// HeaderStatistics is the header engine's view of Statistics.
type HeaderStatistics struct {
	TotalRequests        int64            `json:"totalRequests"`
	ValidRequests        int64            `json:"validRequests"`
	InvalidRequests      int64            `json:"invalidRequests"`
	TopOrigins           []CountEntry     `json:"topOrigins"`
	MethodDistribution   map[string]int64 `json:"methodDistribution"`
	CommonErrors         []CountEntry     `json:"commonErrors"`
	AverageSecurityScore float64          `json:"averageSecurityScore"`
	TimeRange            TimeRange        `json:"timeRange"`
}

func (s Statistics) Cors() CorsStatistics {
	return CorsStatistics{
		TotalRequests:      s.TotalRequests,
		AllowedRequests:    s.AllowedRequests,
		BlockedRequests:    s.BlockedRequests,
		TopOrigins:         s.TopOrigins,
		TopBlockedOrigins:  s.TopBlockedOrigins,
		MethodDistribution: s.MethodDistribution,
		TimeRange:          s.TimeRange,
	}
}

func (s Statistics) Headers() HeaderStatistics {
	return HeaderStatistics{
		TotalRequests:        s.TotalRequests,
		ValidRequests:        s.AllowedRequests,
		InvalidRequests:      s.BlockedRequests,
		TopOrigins:           s.TopOrigins,
		MethodDistribution:   s.MethodDistribution,
		CommonErrors:         s.CommonErrors,
		AverageSecurityScore: s.AverageSecurityScore,
		TimeRange:            s.TimeRange,
	}
}

// StatisticsCollector aggregates observations in memory. Nothing survives a restart.
type StatisticsCollector struct {
	mu  sync.Mutex
	now func() time.Time

	total   int64
	allowed int64
	blocked int64

	topOrigins        []CountEntry
	topBlockedOrigins []CountEntry
	commonErrors      []CountEntry
	methods           map[string]int64

	scoreAvg float64
	scored   int64

	timeRange TimeRange
}

func NewStatisticsCollector(now func() time.Time) *StatisticsCollector {
	if now == nil {
		now = time.Now
	}
	c := &StatisticsCollector{now: now}
	c.resetLocked()
	return c
}

func (c *StatisticsCollector) Record(obs Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if obs.Allowed {
		c.allowed++
	} else {
		c.blocked++
	}

	if obs.Origin != "" {
		c.topOrigins = bumpTopN(c.topOrigins, obs.Origin, topOriginsLimit)
		if !obs.Allowed {
			c.topBlockedOrigins = bumpTopN(c.topBlockedOrigins, obs.Origin, topOriginsLimit)
		}
	}
	if obs.Method != "" {
		c.methods[obs.Method]++
	}
	for _, key := range obs.ErrorKeys {
		c.commonErrors = bumpTopN(c.commonErrors, key, commonErrorsLimit)
	}

	if obs.Score != nil {
		c.scored++
		c.scoreAvg += (float64(*obs.Score) - c.scoreAvg) / float64(c.scored)
	}

	c.timeRange.End = c.now()
}

func (c *StatisticsCollector) Snapshot() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	methods := make(map[string]int64, len(c.methods))
	for k, v := range c.methods {
		methods[k] = v
	}
	return Statistics{
		TotalRequests:        c.total,
		AllowedRequests:      c.allowed,
		BlockedRequests:      c.blocked,
		TopOrigins:           copyEntries(c.topOrigins),
		TopBlockedOrigins:    copyEntries(c.topBlockedOrigins),
		MethodDistribution:   methods,
		CommonErrors:         copyEntries(c.commonErrors),
		AverageSecurityScore: c.scoreAvg,
		ScoredRequests:       c.scored,
		TimeRange:            c.timeRange,
	}
}

func (c *StatisticsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *StatisticsCollector) resetLocked() {
	now := c.now()
	c.total, c.allowed, c.blocked = 0, 0, 0
	c.topOrigins = []CountEntry{}
	c.topBlockedOrigins = []CountEntry{}
	c.commonErrors = []CountEntry{}
	c.methods = make(map[string]int64)
	c.scoreAvg, c.scored = 0, 0
	c.timeRange = TimeRange{Start: now, End: now}
}

// bumpTopN increments key (appending it when absent), then sorts by count and truncates to n.
// Once the list holds n keys, keys outside it are counted once and dropped again.
func bumpTopN(list []CountEntry, key string, n int) []CountEntry {
	found := false
	for i := range list {
		if list[i].Key == key {
			list[i].Count++
			found = true
			break
		}
	}
	if !found {
		list = append(list, CountEntry{Key: key, Count: 1})
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Count > list[j].Count
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}

func copyEntries(in []CountEntry) []CountEntry {
	out := make([]CountEntry, len(in))
	copy(out, in)
	return out
}
