package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg                 *prometheus.Registry
	Lookups             *prometheus.CounterVec
	Verifications       *prometheus.CounterVec
	Releases            prometheus.Counter
	ReleasesWithBalance prometheus.Counter
	OrdersIngested      prometheus.Counter
	IngestFailures      prometheus.Counter
	OpenSessions        prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merch_pickup_lookups_total",
		Help: "Order code lookups by outcome.",
	}, []string{"outcome"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merch_pickup_verifications_total",
		Help: "Identity checks by outcome.",
	}, []string{"outcome"})
	releases := prometheus.NewCounter(prometheus.CounterOpts{Name: "merch_pickup_releases_total"})
	withBalance := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "merch_pickup_releases_with_balance_total",
		Help: "Releases handed over while a balance was still owed.",
	})
	ingested := prometheus.NewCounter(prometheus.CounterOpts{Name: "merch_orders_ingested_total"})
	ingestFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "merch_orders_ingest_failures_total"})
	openSessions := prometheus.NewGauge(prometheus.GaugeOpts{Name: "merch_pickup_open_sessions"})

	r.MustRegister(
		lookups, verifications, releases, withBalance, ingested, ingestFailures, openSessions,
		collectors.NewGoCollector(),
	)
	return &Registry{
		reg:                 r,
		Lookups:             lookups,
		Verifications:       verifications,
		Releases:            releases,
		ReleasesWithBalance: withBalance,
		OrdersIngested:      ingested,
		IngestFailures:      ingestFailures,
		OpenSessions:        openSessions,
	}
}

func (r *Registry) ObserveLookup(outcome string) { r.Lookups.WithLabelValues(outcome).Inc() }

func (r *Registry) ObserveVerify(outcome string) { r.Verifications.WithLabelValues(outcome).Inc() }

func (r *Registry) ObserveRelease(withBalance bool) {
	r.Releases.Inc()
	if withBalance {
		r.ReleasesWithBalance.Inc()
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) Ingested() { r.OrdersIngested.Inc() }

func (r *Registry) Failed() { r.IngestFailures.Inc() }
