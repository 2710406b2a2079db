package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solosso_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solosso_logins_failure_total",
		Help: "Total number of logins rejected for bad credentials.",
	})
	LoginConflictTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solosso_logins_conflict_total",
		Help: "Total number of logins rejected because the account already had a session.",
	})
	LogoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solosso_logouts_total",
		Help: "Total number of logout requests.",
	})
	DirectoryUpdateFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solosso_directory_update_failures_total",
		Help: "Total number of best-effort user updates that failed after login.",
	})
	ActiveSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solosso_active_sessions",
		Help: "Current number of active sessions in the registry.",
	})
)

// InitCustomMetrics registers the custom Prometheus metrics with reg.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	collectors := map[string]prometheus.Collector{
		"LoginSuccessTotal":           LoginSuccessTotal,
		"LoginFailureTotal":           LoginFailureTotal,
		"LoginConflictTotal":          LoginConflictTotal,
		"LogoutTotal":                 LogoutTotal,
		"DirectoryUpdateFailureTotal": DirectoryUpdateFailureTotal,
		"ActiveSessionsGauge":         ActiveSessionsGauge,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
