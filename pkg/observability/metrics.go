package observability

import (
	"context"
	"errors"
	"strconv"

	"github.com/aretw0/courier/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "courier"

// Metrics holds the dispatcher collectors.
type Metrics struct {
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	inflight         *prometheus.GaugeVec
	lockWait         *prometheus.HistogramVec
	lockTimeouts     *prometheus.CounterVec
	emitted          *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace. They are not registered yet.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by channel and response status.",
		}, []string{"channel", "platform", "status"}),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent handling a webhook delivery.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Events dispatched to the action chain.",
		}, []string{"channel", "platform", "kind", "result"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching a single event, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel", "kind"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatches_in_flight",
			Help:      "Events currently being dispatched.",
		}, []string{"channel"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_lock_wait_seconds",
			Help:      "Time spent waiting for a session lock.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"channel"}),
		lockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_lock_timeouts_total",
			Help:      "Events whose session stayed locked past the lock timeout.",
		}, []string{"channel"}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emitted_events_total",
			Help:      "Named events emitted by handlers.",
		}, []string{"name"}),
	}
}

// Register adds every collector to reg. Collectors already registered are reused.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.deliveries, m.deliveryDuration, m.dispatches, m.dispatchDuration,
		m.inflight, m.lockWait, m.lockTimeouts, m.emitted,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDelivery: func(_ context.Context, e *domain.DeliveryEvent) {
			m.deliveries.WithLabelValues(e.Channel, e.Platform.String(), strconv.Itoa(e.Status)).Inc()
			m.deliveryDuration.WithLabelValues(e.Channel).Observe(e.Duration.Seconds())
		},
		OnDispatchStart: func(_ context.Context, e *domain.DispatchEvent) {
			m.inflight.WithLabelValues(e.Channel).Inc()
		},
		OnDispatchFinish: func(_ context.Context, e *domain.DispatchEvent) {
			m.inflight.WithLabelValues(e.Channel).Dec()
			m.dispatches.WithLabelValues(e.Channel, e.Platform.String(), string(e.Kind), result(e.Err)).Inc()
			m.dispatchDuration.WithLabelValues(e.Channel, string(e.Kind)).Observe(e.Duration.Seconds())
			if !e.Ephemeral && e.LockWait > 0 {
				m.lockWait.WithLabelValues(e.Channel).Observe(e.LockWait.Seconds())
			}
		},
		OnLockTimeout: func(_ context.Context, e *domain.DispatchEvent) {
			m.lockTimeouts.WithLabelValues(e.Channel).Inc()
		},
	}
}

// Emitter returns a handler.Emitter counting emitted events by name.
func (m *Metrics) Emitter() *Emitter {
	return &Emitter{counter: m.emitted}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	default:
		return "error"
	}
}
