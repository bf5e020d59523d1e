package core

import "sync"

// MetricsState accumulates residency counters for the lifetime of the
// process. All mutation happens on the single GPU-access thread, so the
// fields need no further guarding once initialized.
type MetricsState struct {
	LiveRegions    int64
	BytesResident  int64
	Allocations    int64
	AllocFailures  int64
	Repacks        int64
	Uploads        int64
	ReadBacks      int64
	BytesUploaded  int64
	BytesReadBack  int64
	DedupHits      int64
	VariantRecords int64
	PagesCreated   int64
	PageGrowths    int64
}

var onceMetrics sync.Once
var metricsState = &MetricsState{}

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		*metricsState = MetricsState{}
	})
	return nil
}

func MetricsAllocated(bytes int64) {
	metricsState.LiveRegions++
	metricsState.Allocations++
	metricsState.BytesResident += bytes
}

func MetricsFreed(bytes int64) {
	metricsState.LiveRegions--
	metricsState.BytesResident -= bytes
}

func MetricsAllocFailed() {
	metricsState.AllocFailures++
}

func MetricsRepacked() {
	metricsState.Repacks++
}

func MetricsUploaded(bytes int64) {
	metricsState.Uploads++
	metricsState.BytesUploaded += bytes
}

func MetricsReadBack(bytes int64) {
	metricsState.ReadBacks++
	metricsState.BytesReadBack += bytes
}

func MetricsDedupHit() {
	metricsState.DedupHits++
}

func MetricsVariantAdded() {
	metricsState.VariantRecords++
}

func MetricsVariantRemoved() {
	metricsState.VariantRecords--
}

func MetricsPageCreated() {
	metricsState.PagesCreated++
}

func MetricsPageGrown() {
	metricsState.PageGrowths++
}

// Metrics returns a copy of the current counters.
func Metrics() MetricsState {
	return *metricsState
}
