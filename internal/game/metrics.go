package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	answersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "answers_total",
		Help:      "Answer submissions by question kind and result.",
	}, []string{"kind", "result"})

	questionsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "questions_loaded_total",
		Help:      "Questions loaded by the host.",
	})

	timerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trivia",
		Name:      "timer_running",
		Help:      "1 while a question countdown is running.",
	})

	persistJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trivia",
		Name:      "persist_jobs_total",
		Help:      "Background persistence jobs by kind and status.",
	}, []string{"kind", "status"})

	persistDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trivia",
		Name:      "persist_duration_seconds",
		Help:      "Latency of background persistence jobs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)
