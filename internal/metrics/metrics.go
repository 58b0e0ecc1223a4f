// Package metrics はPrometheus用のメトリクスを定義します。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal はジョブの終端状態ごとの件数です。
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumeforge_jobs_total",
			Help: "Total number of processed jobs by terminal status",
		},
		[]string{"status"},
	)

	// JobDuration はジョブ処理時間の分布です。
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resumeforge_job_duration_seconds",
			Help:    "Duration of resume processing jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms 〜 約27分
		},
	)

	// FilesTotal はファイル単位の処理結果ごとの件数です。
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumeforge_files_total",
			Help: "Total number of processed resume files by outcome",
		},
		[]string{"outcome"},
	)
)
