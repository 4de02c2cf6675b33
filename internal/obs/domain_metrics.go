package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentDecisionTotal counts decisions returned to the browser by flow and outcome.
	PaymentDecisionTotal *prometheus.CounterVec
	// GatewayCallTotal counts payment gateway calls by operation and result.
	GatewayCallTotal *prometheus.CounterVec
	// GatewayCallLatency records gateway call latency in milliseconds.
	GatewayCallLatency *prometheus.HistogramVec
	// WebhookEventTotal counts inbound gateway webhooks by event type and outcome.
	WebhookEventTotal *prometheus.CounterVec
	// CaptureTotal counts capture attempts by trigger source and result.
	CaptureTotal *prometheus.CounterVec
	// FulfillmentTotal counts fulfillment task processing outcomes.
	FulfillmentTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentDecisionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_decision_total",
			Help:      "Count of payment decisions returned to clients.",
		}, []string{"flow", "outcome"})
		GatewayCallTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_call_total",
			Help:      "Count of payment gateway calls by operation and result.",
		}, []string{"operation", "result"})
		GatewayCallLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_ms",
			Help:      "Latency of payment gateway calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"operation"})
		WebhookEventTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_event_total",
			Help:      "Count of processed gateway webhooks by type and outcome.",
		}, []string{"type", "result"})
		CaptureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_total",
			Help:      "Count of capture attempts by source and result.",
		}, []string{"source", "result"})
		FulfillmentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulfillment_total",
			Help:      "Count of fulfillment task outcomes.",
		}, []string{"result"})

		mustRegisterCounterVec(reg, &PaymentDecisionTotal)
		mustRegisterCounterVec(reg, &GatewayCallTotal)
		mustRegisterCollector(reg, GatewayCallLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				GatewayCallLatency = v
			}
		})
		mustRegisterCounterVec(reg, &WebhookEventTotal)
		mustRegisterCounterVec(reg, &CaptureTotal)
		mustRegisterCounterVec(reg, &FulfillmentTotal)
	})
}

func mustRegisterCounterVec(reg prometheus.Registerer, vec **prometheus.CounterVec) {
	mustRegisterCollector(reg, *vec, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			*vec = v
		}
	})
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

// CountDecision increments PaymentDecisionTotal when domain metrics are registered.
func CountDecision(flow, outcome string) {
	if PaymentDecisionTotal != nil {
		PaymentDecisionTotal.WithLabelValues(flow, outcome).Inc()
	}
}

// CountWebhook increments WebhookEventTotal when domain metrics are registered.
func CountWebhook(eventType, result string) {
	if WebhookEventTotal != nil {
		WebhookEventTotal.WithLabelValues(eventType, result).Inc()
	}
}

// CountCapture increments CaptureTotal when domain metrics are registered.
func CountCapture(source, result string) {
	if CaptureTotal != nil {
		CaptureTotal.WithLabelValues(source, result).Inc()
	}
}

// CountFulfillment increments FulfillmentTotal when domain metrics are registered.
func CountFulfillment(result string) {
	if FulfillmentTotal != nil {
		FulfillmentTotal.WithLabelValues(result).Inc()
	}
}
