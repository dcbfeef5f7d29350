package seminar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	seminarRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seminar_runs_total",
		Help: "Daily selection runs attempted.",
	})
	seminarSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seminar_selections_total",
		Help: "Presenters selected, by class year.",
	}, []string{"class_year"})
	seminarFines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seminar_fines_created_total",
		Help: "No-booking fines created.",
	})
)
