package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Swap lifecycle
	// ============================================
	SwapsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xchain_swap_swaps_created_total",
		Help: "Total number of swaps created",
	})

	SwapTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_swap_transitions_total",
			Help: "Total number of swap status transitions by target status",
		},
		[]string{"status"},
	)

	// ============================================
	// Correlation layer
	// ============================================
	StepDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_swap_step_dispatches_total",
			Help: "Total number of step requests handed to the transport",
		},
		[]string{"result"},
	)

	Responses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_swap_responses_total",
			Help: "Total number of inbound responses by outcome",
		},
		[]string{"result"},
	)

	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xchain_swap_pending_requests",
		Help: "Number of step requests awaiting a response",
	})

	// ============================================
	// Payments
	// ============================================
	PaymentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xchain_swap_payments_total",
			Help: "Total number of payments by settlement kind",
		},
		[]string{"kind"},
	)

	MerchantsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xchain_swap_merchant_registrations_total",
		Help: "Total number of merchant registrations",
	})
)

// Result label values
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultStale    = "stale"
	ResultInvalid  = "invalid"
)
