package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the reservation and payment flows.
type BookingMetrics struct {
	reservationsTotal *prometheus.CounterVec
	holdsExpiredTotal prometheus.Counter
	webhookTotal      *prometheus.CounterVec
	meetingsTotal     *prometheus.CounterVec
	checkoutLatency   prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reservation",
			Name:      "attempts_total",
			Help:      "Total reservation attempts by outcome",
		}, []string{"result"}),
		holdsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "reservation",
			Name:      "holds_expired_total",
			Help:      "Total holds released after the TTL lapsed",
		}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Total Stripe webhook events by type and disposition",
		}, []string{"event_type", "status"}),
		meetingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "meeting",
			Name:      "creations_total",
			Help:      "Total Zoom meeting creation attempts",
		}, []string{"status"}),
		checkoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "payments",
			Name:      "checkout_latency_seconds",
			Help:      "Latency of Stripe checkout session creation",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservationsTotal, m.holdsExpiredTotal, m.webhookTotal, m.meetingsTotal, m.checkoutLatency)
	return m
}

func (m *BookingMetrics) ObserveReservation(result string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveHoldsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsExpiredTotal.Add(float64(n))
}

func (m *BookingMetrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *BookingMetrics) ObserveMeeting(status string) {
	if m == nil {
		return
	}
	m.meetingsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveCheckoutLatency(seconds float64) {
	if m == nil {
		return
	}
	m.checkoutLatency.Observe(seconds)
}
