package metrics

import (
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    sessionsOpened = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "docviewer",
            Name:      "sessions_opened_total",
            Help:      "Total viewing sessions started",
        },
    )

    sessionsActive = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "docviewer",
            Name:      "sessions_active",
            Help:      "Viewing sessions currently holding a document",
        },
    )

    materializeTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "docviewer",
            Name:      "materialize_total",
            Help:      "Document materializations by result",
        },
        []string{"result"},
    )

    loadTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "docviewer",
            Name:      "load_total",
            Help:      "Page-count loads by result",
        },
        []string{"result"},
    )

    renderLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "docviewer",
            Name:      "render_duration_seconds",
            Help:      "Duration of page renders by result",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"result"},
    )

    staleResults = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "docviewer",
            Name:      "stale_results_total",
            Help:      "Async results discarded because their session or request was superseded",
        },
        []string{"kind"},
    )

    navigationTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "docviewer",
            Name:      "navigation_total",
            Help:      "Page and zoom actions by action and whether they changed state",
        },
        []string{"action", "changed"},
    )

    exportTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "docviewer",
            Name:      "export_total",
            Help:      "Document exports by result",
        },
        []string{"result"},
    )

    registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
    registerOnce.Do(func() {
        prometheus.MustRegister(sessionsOpened, sessionsActive, materializeTotal, loadTotal, renderLatency, staleResults, navigationTotal, exportTotal)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func SessionOpened() { sessionsOpened.Inc(); sessionsActive.Inc() }
func SessionClosed() { sessionsActive.Dec() }

func IncMaterialize(result string) { materializeTotal.WithLabelValues(result).Inc() }
func IncLoad(result string)        { loadTotal.WithLabelValues(result).Inc() }
func IncStale(kind string)         { staleResults.WithLabelValues(kind).Inc() }
func IncExport(result string)      { exportTotal.WithLabelValues(result).Inc() }

func ObserveRender(result string, dur time.Duration) {
    renderLatency.WithLabelValues(result).Observe(dur.Seconds())
}

func IncNavigation(action string, changed bool) {
    navigationTotal.WithLabelValues(action, boolToStr(changed)).Inc()
}

func boolToStr(b bool) string { if b { return "true" }; return "false" }
