package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(phaseTransitionsTotal, suspensionsTotal, routerDecisionsTotal, budgetExceededTotal, staleThreads)
}

var phaseTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "workflow_phase_transitions_total",
		Help: "Phase transitions, labeled by source and destination phase.",
	},
	[]string{"from", "to"},
)

var suspensionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "workflow_suspensions_total",
		Help: "Suspension points reached, labeled by phase.",
	},
	[]string{"phase"},
)

var routerDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "workflow_router_decisions_total",
		Help: "Router decisions, labeled by kind (email/resume/gather/general).",
	},
	[]string{"kind"},
)

var budgetExceededTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "workflow_iteration_budget_exceeded_total",
		Help: "Phase invocations that exhausted their tool-call budget.",
	},
	[]string{"phase"},
)

var staleThreads = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "workflow_stale_threads",
		Help: "Non-terminal threads idle past the retention window.",
	},
)

func IncPhaseTransition(from, to string) {
	phaseTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncSuspension(phase string) {
	suspensionsTotal.WithLabelValues(norm(phase)).Inc()
}

func IncRouterDecision(kind string) {
	routerDecisionsTotal.WithLabelValues(norm(kind)).Inc()
}

func IncBudgetExceeded(phase string) {
	budgetExceededTotal.WithLabelValues(norm(phase)).Inc()
}

func SetStaleThreads(n int) {
	staleThreads.Set(float64(n))
}
