package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operation names recorded by the auth service.
const (
	OpRegister = "register"
	OpVerify   = "verify_registration"
	OpLogin    = "login"
	OpRefresh  = "refresh"
)

// Outcome constants for auth operation metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// AuthOperations counts auth operations by outcome. Failed operations carry the error code.
// Use RegisterMetrics to register this with a Prometheus registry.
var AuthOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bookshelf_auth_operations_total",
		Help: "Total number of authentication operations",
	},
	[]string{"operation", "outcome", "code"},
)

// OTPIssued counts verification codes generated, by reason.
var OTPIssued = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bookshelf_auth_otp_issued_total",
		Help: "Total number of verification codes issued",
	},
	[]string{"purpose"},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthOperations)
	reg.MustRegister(OTPIssued)
}

// RecordOperation increments the operation counter. code is empty on success.
func RecordOperation(operation, code string) {
	outcome := OutcomeSuccess
	if code != "" {
		outcome = OutcomeError
	}
	AuthOperations.WithLabelValues(operation, outcome, code).Inc()
}

// RecordOTPIssued increments the issued-code counter.
func RecordOTPIssued(purpose string) {
	OTPIssued.WithLabelValues(purpose).Inc()
}
