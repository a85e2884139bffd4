package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentSessionTotal counts payment session initialisation outcomes.
	PaymentSessionTotal *prometheus.CounterVec
	// PaymentCallbackTotal counts gateway callbacks (success/fail/cancel/ipn) by outcome.
	PaymentCallbackTotal *prometheus.CounterVec
	// RefundTotal counts refund requests by outcome.
	RefundTotal *prometheus.CounterVec
	// CourierWebhookTotal counts inbound courier webhooks by provider and outcome.
	CourierWebhookTotal *prometheus.CounterVec
	// UpstreamLatency records provider call latency in milliseconds.
	UpstreamLatency *prometheus.HistogramVec
	// CacheGateTotal counts cache gate lookups by route key and result.
	CacheGateTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentSessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_session_total",
			Help:      "Count of payment session initialisation outcomes.",
		}, []string{"payment_type", "result"})
		PaymentCallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_callback_total",
			Help:      "Count of processed payment gateway callbacks by outcome.",
		}, []string{"callback", "result"})
		RefundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_refund_total",
			Help:      "Count of refund requests by outcome.",
		}, []string{"result"})
		CourierWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "courier_webhook_total",
			Help:      "Count of processed courier webhooks by outcome.",
		}, []string{"provider", "result"})
		UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Latency of calls to payment and courier providers in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"upstream", "status"})
		CacheGateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_gate_total",
			Help:      "Count of cache gate lookups by key and result.",
		}, []string{"key", "result"})

		for _, pair := range []struct {
			c     prometheus.Collector
			reuse func(prometheus.Collector)
		}{
			{PaymentSessionTotal, func(e prometheus.Collector) { reuseCounterVec(e, &PaymentSessionTotal) }},
			{PaymentCallbackTotal, func(e prometheus.Collector) { reuseCounterVec(e, &PaymentCallbackTotal) }},
			{RefundTotal, func(e prometheus.Collector) { reuseCounterVec(e, &RefundTotal) }},
			{CourierWebhookTotal, func(e prometheus.Collector) { reuseCounterVec(e, &CourierWebhookTotal) }},
			{UpstreamLatency, func(e prometheus.Collector) {
				if v, ok := e.(*prometheus.HistogramVec); ok {
					UpstreamLatency = v
				}
			}},
			{CacheGateTotal, func(e prometheus.Collector) { reuseCounterVec(e, &CacheGateTotal) }},
		} {
			mustRegisterCollector(reg, pair.c, pair.reuse)
		}
	})
}

// Inc increments vec when metrics are enabled.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

func reuseCounterVec(existing prometheus.Collector, dst **prometheus.CounterVec) {
	if v, ok := existing.(*prometheus.CounterVec); ok {
		*dst = v
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
