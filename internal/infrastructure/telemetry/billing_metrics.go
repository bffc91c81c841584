// Package telemetry exposes billing gauges to Prometheus. The
// collector reads the live resource overview on every scrape, so the
// exported values always reflect the current in-progress periods.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
)

// scrapeTimeout bounds the database work done per Prometheus scrape
const scrapeTimeout = 10 * time.Second

// OverviewSource supplies per-kind resource summaries
type OverviewSource interface {
	ByKind(ctx context.Context) ([]appbilling.KindOverview, error)
}

// BillingCollector implements prometheus.Collector over the resource
// overview
type BillingCollector struct {
	source OverviewSource
	logger *zap.Logger

	resourcesTotal  *prometheus.Desc
	resourcesActive *prometheus.Desc
	costTotal       *prometheus.Desc
	costCurrent     *prometheus.Desc
}

// NewBillingCollector creates the billing metrics collector
func NewBillingCollector(source OverviewSource, logger *zap.Logger) *BillingCollector {
	return &BillingCollector{
		source: source,
		logger: logger,
		resourcesTotal: prometheus.NewDesc(
			"billing_resources_total",
			"Number of usage components on in-progress invoices",
			[]string{"kind"}, nil,
		),
		resourcesActive: prometheus.NewDesc(
			"billing_resources_active",
			"Number of still accruing usage components on in-progress invoices",
			[]string{"kind"}, nil,
		),
		costTotal: prometheus.NewDesc(
			"billing_cost_total",
			"Finalized charges on in-progress invoices",
			[]string{"kind"}, nil,
		),
		costCurrent: prometheus.NewDesc(
			"billing_cost_current",
			"Finalized charges of still accruing components on in-progress invoices",
			[]string{"kind"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *BillingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.resourcesTotal
	ch <- c.resourcesActive
	ch <- c.costTotal
	ch <- c.costCurrent
}

// Collect implements prometheus.Collector
func (c *BillingCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	overviews, err := c.source.ByKind(ctx)
	if err != nil {
		c.logger.Error("Failed to collect billing metrics", zap.Error(err))
		return
	}

	for _, o := range overviews {
		kind := string(o.Kind)
		ch <- prometheus.MustNewConstMetric(c.resourcesTotal, prometheus.GaugeValue, float64(o.Total), kind)
		ch <- prometheus.MustNewConstMetric(c.resourcesActive, prometheus.GaugeValue, float64(o.Active), kind)
		ch <- prometheus.MustNewConstMetric(c.costTotal, prometheus.GaugeValue, o.TotalCost, kind)
		ch <- prometheus.MustNewConstMetric(c.costCurrent, prometheus.GaugeValue, o.CurrentCost, kind)
	}
}

// NewRegistry builds a Prometheus registry with the billing collector
// and the standard process and Go runtime collectors
func NewRegistry(collector *BillingCollector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	return registry
}

// Handler returns the /metrics HTTP handler for a registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
