package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/event"
)

// Metrics counts quiz activity from the event bus.
type Metrics struct {
	started     prometheus.Counter
	finished    *prometheus.CounterVec
	scores      prometheus.Histogram
	leaderboard prometheus.Gauge
	theme       *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "triviaquiz",
			Name:      "sessions_started_total",
			Help:      "Number of quiz sessions started.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triviaquiz",
			Name:      "sessions_finished_total",
			Help:      "Number of quiz sessions finished, by reason.",
		}, []string{"reason"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "triviaquiz",
			Name:      "score",
			Help:      "Final scores of finished sessions.",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		}),
		leaderboard: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "triviaquiz",
			Name:      "leaderboard_top_score",
			Help:      "Best score currently on the leaderboard.",
		}),
		theme: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triviaquiz",
			Name:      "theme_changes_total",
			Help:      "Number of theme toggles, by resulting theme.",
		}, []string{"theme"}),
	}

	reg.MustRegister(m.started, m.finished, m.scores, m.leaderboard, m.theme)
	return m
}

// Subscribe feeds the metrics from quiz events.
func (m *Metrics) Subscribe(eb *event.Bus) {
	eb.Subscribe(domain.EventNameQuizStarted, func(context.Context, event.Event) error {
		m.started.Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameQuizFinished, func(_ context.Context, e event.Event) error {
		r := e.(domain.EventQuizFinished).Result
		m.finished.WithLabelValues(string(r.Reason)).Inc()
		m.scores.Observe(float64(r.Score))
		return nil
	})

	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(_ context.Context, e event.Event) error {
		entries := e.(domain.EventLeaderboardUpdated).Entries
		if len(entries) > 0 {
			m.leaderboard.Set(float64(entries[0].Score))
		}
		return nil
	})

	eb.Subscribe(domain.EventNameThemeChanged, func(_ context.Context, e event.Event) error {
		m.theme.WithLabelValues(string(e.(domain.EventThemeChanged).Theme)).Inc()
		return nil
	})
}
