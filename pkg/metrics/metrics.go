package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seedharvest/pkg/logger"
)

const namespace = "seedharvest"

// Metrics holds the harvester's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ItemsTotal         *prometheus.CounterVec
	PagesTotal         prometheus.Counter
	PageFailuresTotal  prometheus.Counter
	DownloadRetries    prometheus.Counter
	InventoryRefreshes prometheus.Counter
	InventorySize      prometheus.Gauge
	LedgerSize         prometheus.Gauge
	ItemDuration       prometheus.Histogram
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Catalog items processed, by outcome",
		}, []string{"outcome"}),
		PagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Catalog pages fetched",
		}),
		PageFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_failures_total",
			Help:      "Failed catalog page fetches",
		}),
		DownloadRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_retries_total",
			Help:      "Artifact requests repeated after a rate-limit response",
		}),
		InventoryRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_refreshes_total",
			Help:      "Successful refreshes of the consumer inventory",
		}),
		InventorySize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inventory_hashes",
			Help:      "Info-hashes known to be held by the consumer",
		}),
		LedgerSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_processed_ids",
			Help:      "Item ids recorded in the ledger",
		}),
		ItemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent processing one item",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveItem records the outcome and duration of one item
func (m *Metrics) ObserveItem(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
	m.ItemDuration.Observe(d.Seconds())
}

// PageFetched counts a fetched page
func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// PageFailed counts a failed page fetch
func (m *Metrics) PageFailed() {
	if m == nil {
		return
	}
	m.PageFailuresTotal.Inc()
}

// Retry counts a rate-limited artifact request that will be repeated
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.DownloadRetries.Inc()
}

// InventoryRefreshed records a refresh and the resulting set size
func (m *Metrics) InventoryRefreshed(size int) {
	if m == nil {
		return
	}
	m.InventoryRefreshes.Inc()
	m.InventorySize.Set(float64(size))
}

// SetLedgerSize records the number of processed ids
func (m *Metrics) SetLedgerSize(n int) {
	if m == nil {
		return
	}
	m.LedgerSize.Set(float64(n))
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoWithFields("Metrics listener started", map[string]interface{}{"listen": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Debug("Metrics listener stopped")
		return nil
	}
}
