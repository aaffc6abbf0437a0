package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vivekcuts_otp_requests_total",
			Help: "Verification code requests by outcome.",
		},
		[]string{"result"},
	)

	otpVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vivekcuts_otp_verifications_total",
			Help: "Verification attempts by outcome.",
		},
		[]string{"result"},
	)

	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vivekcuts_emails_total",
			Help: "Outbound emails by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)

	paymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vivekcuts_payments_total",
			Help: "Payment operations by outcome.",
		},
		[]string{"result"},
	)

	rateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vivekcuts_rate_limit_rejections_total",
			Help: "Requests rejected by the sliding-window limiter.",
		},
		[]string{"endpoint"},
	)
)

func emailStatusLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "sent"
}
