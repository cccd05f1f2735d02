package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy module.
type Metrics struct {
	// Status changes by from/to pair
	Transitions *prometheus.CounterVec

	// Rejected transitions by target and error code
	TransitionRejections *prometheus.CounterVec

	// Invitation deliveries by result: "delivered", "failed"
	Invitations *prometheus.CounterVec

	// Gateway events by kind and result: "applied", "noop", "duplicate"
	GatewayEvents *prometheus.CounterVec

	PoliciesFullyPaid prometheus.Counter
	PoliciesExpired   prometheus.Counter

	// Unit-of-work latency by operation
	OperationLatency *prometheus.HistogramVec
}

// New creates the policy metrics in the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leasecover_policy_transitions_total",
			Help: "Policy status transitions by source and target status",
		}, []string{"from", "to"}),

		TransitionRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leasecover_policy_transition_rejections_total",
			Help: "Rejected policy transitions by target status and error code",
		}, []string{"to", "code"}),

		Invitations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leasecover_policy_invitations_total",
			Help: "Actor invitation deliveries by result",
		}, []string{"result"}),

		GatewayEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leasecover_policy_gateway_events_total",
			Help: "Payment gateway events by kind and result",
		}, []string{"kind", "result"}),

		PoliciesFullyPaid: factory.NewCounter(prometheus.CounterOpts{
			Name: "leasecover_policy_fully_paid_total",
			Help: "Policies that became fully paid",
		}),

		PoliciesExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "leasecover_policy_expired_total",
			Help: "Policies expired by the sweeper",
		}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leasecover_policy_operation_duration_seconds",
			Help:    "Duration of policy operations including the unit of work",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncrementTransitionRejected(to, code string) {
	if m != nil {
		m.TransitionRejections.WithLabelValues(to, code).Inc()
	}
}

func (m *Metrics) IncrementInvitation(result string) {
	if m != nil {
		m.Invitations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementGatewayEvent(kind, result string) {
	if m != nil {
		m.GatewayEvents.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) IncrementFullyPaid() {
	if m != nil {
		m.PoliciesFullyPaid.Inc()
	}
}

func (m *Metrics) IncrementExpired() {
	if m != nil {
		m.PoliciesExpired.Inc()
	}
}

// ObserveOperation records how long op took.
func (m *Metrics) ObserveOperation(op string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}
