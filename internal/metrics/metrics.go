// Package metrics holds the import counters and pushes them to a Pushgateway
package metrics

import (
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// ItemsTotal counts processed feed items by result
var ItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "newsarticle_import_items_total",
	Help: "Feed items processed, by result (insert, update, skip, failed).",
}, []string{"result"})

// RunsTotal counts import runs by final status
var RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "newsarticle_import_runs_total",
	Help: "Import runs, by status.",
}, []string{"status"})

// Errors is error metrics
var Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "newsarticle_import_errors",
	Help: "Import errors, by kind.",
}, []string{"error"})

// LastRun is the unix time of the last finished import run
var LastRun = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "newsarticle_import_last_run_timestamp_seconds",
	Help: "Unix time the last import run finished.",
})

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
	pusher       *push.Pusher
)

// Registry returns the registry the import metrics are registered on
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(ItemsTotal, RunsTotal, Errors, LastRun)
	})
	return registry
}

// InitPusher enables PushMetrics, an empty url leaves pushing disabled
func InitPusher(url, job string) {
	if url == "" {
		pusher = nil
		return
	}
	pusher = push.New(url, job).Gatherer(Registry())
}

// PushMetrics pushes the registry to the Pushgateway if one is configured
func PushMetrics() {
	if pusher == nil {
		return
	}
	if err := pusher.Push(); err != nil {
		log.Printf("[ERROR] could not push to Pushgateway, %v", err)
	}
}

// Error counts an error of the given kind
func Error(kind string) {
	Errors.With(prometheus.Labels{"error": kind}).Inc()
}

// ObserveRun records the outcome of one import run
func ObserveRun(status string, inserted, updated, skipped, failed int) {
	RunsTotal.With(prometheus.Labels{"status": status}).Inc()
	ItemsTotal.With(prometheus.Labels{"result": "insert"}).Add(float64(inserted))
	ItemsTotal.With(prometheus.Labels{"result": "update"}).Add(float64(updated))
	ItemsTotal.With(prometheus.Labels{"result": "skip"}).Add(float64(skipped))
	ItemsTotal.With(prometheus.Labels{"result": "failed"}).Add(float64(failed))
	LastRun.Set(float64(time.Now().Unix()))
}
