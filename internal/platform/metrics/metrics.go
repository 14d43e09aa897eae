// Package metrics registers the pipeline's Prometheus collectors
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FlowRuns counts finished flow runs by flow and terminal state
	FlowRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimetrends_flow_runs_total",
			Help: "Finished flow runs by flow and state",
		},
		[]string{"flow", "state"},
	)

	// FlowRunDuration observes wall time of flow runs
	FlowRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crimetrends_flow_run_duration_seconds",
			Help:    "Flow run wall time",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
		},
		[]string{"flow"},
	)

	// TaskRuns counts task attempts by task and state
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimetrends_task_runs_total",
			Help: "Task run attempts by task and state",
		},
		[]string{"task", "state"},
	)

	// TaskCacheHits counts task results served from the cache
	TaskCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimetrends_task_cache_hits_total",
			Help: "Task results returned from the cache",
		},
		[]string{"task"},
	)

	// DownloadedBytes counts bytes written by the web downloader per city
	DownloadedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimetrends_downloaded_bytes_total",
			Help: "Bytes downloaded from city open data portals",
		},
		[]string{"city"},
	)

	// LakeUploads counts lake uploads by outcome: uploaded, skipped, failed
	LakeUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crimetrends_lake_uploads_total",
			Help: "Data lake uploads by outcome",
		},
		[]string{"outcome"},
	)

	// ScheduledRuns tracks runs waiting in a work queue
	ScheduledRuns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crimetrends_scheduled_runs",
			Help: "Flow runs claimed from a work queue and executing",
		},
		[]string{"work_queue"},
	)
)

// Handler serves the default registry
func Handler() http.Handler { return promhttp.Handler() }
