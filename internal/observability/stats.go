package observability

import (
	"sync"
	"sync/atomic"
)

type StatsSnapshot struct {
	Searches          uint64            `json:"searches"`
	PagesFetched      uint64            `json:"pages_fetched"`
	FetchErrors       uint64            `json:"fetch_errors"`
	Extractions       uint64            `json:"extractions"`
	CandidatesSeen    uint64            `json:"candidates_seen"`
	RowsImported      uint64            `json:"rows_imported"`
	TasksDispatched   uint64            `json:"tasks_dispatched"`
	ErrorsTotal       uint64            `json:"errors_total"`
	HarvestSecondsAvg float64           `json:"harvest_seconds_avg"`
	HarvestsByStatus  map[string]uint64 `json:"harvests_by_status,omitempty"`
	ParsesByStatus    map[string]uint64 `json:"parses_by_status,omitempty"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component,omitempty"`
}

var (
	searches        uint64
	pagesFetched    uint64
	fetchErrors     uint64
	extractions     uint64
	candidatesSeen  uint64
	rowsImported    uint64
	tasksDispatched uint64
	errorsTotal     uint64

	harvestCount uint64
	harvestNanos uint64

	statsMu           sync.Mutex
	harvestsByStatus  = map[string]uint64{}
	parsesByStatus    = map[string]uint64{}
	errorsByType      = map[string]uint64{}
	errorsByComponent = map[string]uint64{}
)

func IncSearch() {
	atomic.AddUint64(&searches, 1)
}

func IncPageFetched() {
	atomic.AddUint64(&pagesFetched, 1)
}

func IncFetchError() {
	atomic.AddUint64(&fetchErrors, 1)
}

func IncExtraction() {
	atomic.AddUint64(&extractions, 1)
}

func AddCandidatesSeen(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&candidatesSeen, uint64(n))
}

func AddRowsImported(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&rowsImported, uint64(n))
}

func IncTaskDispatched() {
	atomic.AddUint64(&tasksDispatched, 1)
}

func IncHarvestStatus(status string) {
	if status == "" {
		status = "unknown"
	}
	statsMu.Lock()
	harvestsByStatus[status]++
	statsMu.Unlock()
}

func IncParseStatus(status string) {
	if status == "" {
		status = "unknown"
	}
	statsMu.Lock()
	parsesByStatus[status]++
	statsMu.Unlock()
}

func ObserveHarvestDuration(seconds float64) {
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&harvestCount, 1)
	atomic.AddUint64(&harvestNanos, uint64(seconds*1e9))
}

func IncError(errType, component string) {
	if errType == "" {
		errType = "unknown"
	}
	if component == "" {
		component = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByComponent[component]++
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	harvestsCopy := copyMap(harvestsByStatus)
	parsesCopy := copyMap(parsesByStatus)
	errorsTypeCopy := copyMap(errorsByType)
	errorsComponentCopy := copyMap(errorsByComponent)
	statsMu.Unlock()

	count := atomic.LoadUint64(&harvestCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&harvestNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		Searches:          atomic.LoadUint64(&searches),
		PagesFetched:      atomic.LoadUint64(&pagesFetched),
		FetchErrors:       atomic.LoadUint64(&fetchErrors),
		Extractions:       atomic.LoadUint64(&extractions),
		CandidatesSeen:    atomic.LoadUint64(&candidatesSeen),
		RowsImported:      atomic.LoadUint64(&rowsImported),
		TasksDispatched:   atomic.LoadUint64(&tasksDispatched),
		ErrorsTotal:       atomic.LoadUint64(&errorsTotal),
		HarvestSecondsAvg: avg,
		HarvestsByStatus:  harvestsCopy,
		ParsesByStatus:    parsesCopy,
		ErrorsByType:      errorsTypeCopy,
		ErrorsByComponent: errorsComponentCopy,
	}
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
