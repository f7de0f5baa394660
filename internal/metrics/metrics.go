package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring kiosk health and scan behavior
var (
	DetectionSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_detection_samples_total",
			Help: "Total number of detector samples by outcome",
		},
		[]string{"outcome"}, // detected, none, error
	)

	ItemsConfirmedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_items_confirmed_total",
			Help: "Total number of confirmed items by scan mode",
		},
		[]string{"mode"}, // auto, manual
	)

	CountdownAbortsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_countdown_aborts_total",
			Help: "Total number of countdowns cancelled because the item disappeared or changed",
		},
	)

	ManualScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_manual_scans_total",
			Help: "Total number of manual scan requests by result",
		},
		[]string{"result"}, // confirmed, not_found, not_ready
	)

	SessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_sessions_started_total",
			Help: "Total number of scan sessions started",
		},
	)

	SessionsFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_sessions_finalized_total",
			Help: "Total number of scan sessions finalized by reason",
		},
		[]string{"reason"}, // finished, idle_timeout
	)

	AccountCreditFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_account_credit_failures_total",
			Help: "Total number of failed account credit attempts",
		},
	)

	ReceiptEncodeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_receipt_encode_failures_total",
			Help: "Total number of receipts whose QR representation failed",
		},
	)
)

// Register registers all kiosk metrics with the given registerer
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		DetectionSamplesTotal,
		ItemsConfirmedTotal,
		CountdownAbortsTotal,
		ManualScansTotal,
		SessionsStartedTotal,
		SessionsFinalizedTotal,
		AccountCreditFailuresTotal,
		ReceiptEncodeFailuresTotal,
	)
}
