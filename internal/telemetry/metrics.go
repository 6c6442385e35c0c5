package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/civir-gex/sgextools"
)

// Metrics holds the OpenTelemetry instruments recorded by the handlers.
type Metrics struct {
	// Session token metrics
	TokensIssued    metric.Int64Counter
	TokensRefreshed metric.Int64Counter
	TokensRejected  metric.Int64Counter

	// Directory metrics
	LoginFailures metric.Int64Counter

	// Certificate registry metrics
	CertificatesRegistered metric.Int64Counter
	CertificatesRejected   metric.Int64Counter

	// Database bootstrap metrics
	DatabaseOperations metric.Int64Counter

	// HTTP metrics
	RequestDuration metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the Metrics bound to the global meter provider, creating
// the instruments on first use.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = NewMetrics(otel.GetMeterProvider())
	})
	return metrics
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(provider metric.MeterProvider) *Metrics {
	meter := provider.Meter(meterName)

	m := &Metrics{}

	m.TokensIssued, _ = meter.Int64Counter(
		"sgextools.tokens.issued.total",
		metric.WithDescription("Total number of session tokens issued at login"),
		metric.WithUnit("{token}"),
	)

	m.TokensRefreshed, _ = meter.Int64Counter(
		"sgextools.tokens.refreshed.total",
		metric.WithDescription("Total number of session tokens refreshed"),
		metric.WithUnit("{token}"),
	)

	m.TokensRejected, _ = meter.Int64Counter(
		"sgextools.tokens.rejected.total",
		metric.WithDescription("Total number of requests with a missing, expired or invalid token"),
		metric.WithUnit("{token}"),
	)

	m.LoginFailures, _ = meter.Int64Counter(
		"sgextools.login.failures.total",
		metric.WithDescription("Total number of failed directory logins"),
		metric.WithUnit("{attempt}"),
	)

	m.CertificatesRegistered, _ = meter.Int64Counter(
		"sgextools.certificates.registered.total",
		metric.WithDescription("Total number of certificates registered"),
		metric.WithUnit("{certificate}"),
	)

	m.CertificatesRejected, _ = meter.Int64Counter(
		"sgextools.certificates.rejected.total",
		metric.WithDescription("Total number of certificate uploads rejected"),
		metric.WithUnit("{certificate}"),
	)

	m.DatabaseOperations, _ = meter.Int64Counter(
		"sgextools.dbm.operations.total",
		metric.WithDescription("Total number of database bootstrap operations"),
		metric.WithUnit("{operation}"),
	)

	m.RequestDuration, _ = meter.Float64Histogram(
		"sgextools.http.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("ms"),
	)

	return m
}
