package internaldefs

import (
	"github.com/recluta/authgate"
)

// CounterDef binds a core metric ID to its stable exported name.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef binds a core histogram ID to its stable exported name.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a fixed order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricCredentialValidateSuccess, Name: "authgate_credential_validate_success_total", Help: "Identifiers accepted by the identity service."},
	{ID: authgate.MetricCredentialValidateFailure, Name: "authgate_credential_validate_failure_total", Help: "Rejected or malformed identifiers."},
	{ID: authgate.MetricDispatchSuccess, Name: "authgate_code_dispatch_success_total", Help: "Delivered one-time codes."},
	{ID: authgate.MetricDispatchFailure, Name: "authgate_code_dispatch_failure_total", Help: "Failed one-time code deliveries."},
	{ID: authgate.MetricDispatchRateLimited, Name: "authgate_code_dispatch_rate_limited_total", Help: "Throttled dispatch attempts."},
	{ID: authgate.MetricVerifySuccess, Name: "authgate_code_verify_success_total", Help: "Confirmed one-time codes."},
	{ID: authgate.MetricVerifyFailure, Name: "authgate_code_verify_failure_total", Help: "Rejected verification attempts."},
	{ID: authgate.MetricSSOSuccess, Name: "authgate_sso_success_total", Help: "Completed SSO authorizations."},
	{ID: authgate.MetricSSOFailure, Name: "authgate_sso_failure_total", Help: "SSO attempts that fell back to manual login."},
	{ID: authgate.MetricTrustRejected, Name: "authgate_trust_rejected_total", Help: "Referrers rejected by the trust gate."},
	{ID: authgate.MetricGuardPass, Name: "authgate_guard_pass_total", Help: "Guard evaluations that admitted the request."},
	{ID: authgate.MetricGuardRedirect, Name: "authgate_guard_redirect_total", Help: "Guard evaluations that redirected to login."},
	{ID: authgate.MetricSessionMaterialized, Name: "authgate_session_materialized_total", Help: "Completed dual-store session writes."},
	{ID: authgate.MetricSessionCleared, Name: "authgate_session_cleared_total", Help: "Logout operations."},
}

// HistogramDefs lists every exported histogram in a fixed order.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricGuardLatency, Name: "authgate_guard_latency_seconds", Help: "Guard evaluation latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix maps bucket bounds to attribute-safe suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
