package telemetry_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/victornm/triviaquiz/internal/domain"
	"github.com/victornm/triviaquiz/internal/event"
	"github.com/victornm/triviaquiz/internal/telemetry"
)

func TestMetrics_Subscribe(t *testing.T) {
	reg := prometheus.NewRegistry()
	eb := event.NewBus()

	telemetry.NewMetrics(reg).Subscribe(eb)

	ctx := context.Background()
	eb.Publish(ctx, domain.EventQuizStarted{SessionID: "s1"})
	eb.Publish(ctx, domain.EventQuizFinished{Result: domain.Result{Score: 12, Reason: domain.FinishTimeout}})
	eb.Publish(ctx, domain.EventLeaderboardUpdated{Entries: []domain.ScoreEntry{{Name: "Alice", Score: 18}}})
	eb.Publish(ctx, domain.EventThemeChanged{Theme: domain.ThemeDark})
	eb.Stop()

	n, err := testutil.GatherAndCount(reg,
		"triviaquiz_sessions_started_total",
		"triviaquiz_sessions_finished_total",
		"triviaquiz_score",
		"triviaquiz_leaderboard_top_score",
		"triviaquiz_theme_changes_total",
	)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range mfs {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			values[mf.GetName()] = m.GetHistogram().GetSampleSum()
		}
	}

	require.Equal(t, map[string]float64{
		"triviaquiz_sessions_started_total":  1,
		"triviaquiz_sessions_finished_total": 1,
		"triviaquiz_score":                   12,
		"triviaquiz_leaderboard_top_score":   18,
		"triviaquiz_theme_changes_total":     1,
	}, values)
}
