package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesync_reconciliations_total",
		Help: "Catalog reconciliation runs by outcome.",
	}, []string{"outcome"})

	reconciledRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesync_reconciled_rows_total",
		Help: "Catalog rows written or deleted by reconciliation.",
	}, []string{"op"})

	cleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricesync_cleanup_failures_total",
		Help: "Deletion batches that failed and were skipped.",
	})

	priceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesync_price_lookups_total",
		Help: "Price resolutions by backend path and outcome.",
	}, []string{"path", "outcome"})

	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesync_gateway_requests_total",
		Help: "Payment gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})
)

// ReconcileFinished records one reconciliation run.
func ReconcileFinished(upserted, deleted int, cleanupFailed bool, err error) {
	if err != nil {
		reconciliations.WithLabelValues("error").Inc()
		return
	}
	reconciliations.WithLabelValues("ok").Inc()
	reconciledRows.WithLabelValues("upsert").Add(float64(upserted))
	reconciledRows.WithLabelValues("delete").Add(float64(deleted))
	if cleanupFailed {
		cleanupFailures.Inc()
	}
}

// PriceLookup records a lookup on one path; outcome is hit, miss or error.
func PriceLookup(path, outcome string) {
	priceLookups.WithLabelValues(path, outcome).Inc()
}

func GatewayRequest(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequests.WithLabelValues(operation, outcome).Inc()
}
