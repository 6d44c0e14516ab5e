package datastore

import (
	"context"
	"slices"
	"time"

	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

// AggregateByLabel returns count and mean confidence per label, in
// canonical label order. Labels without records are omitted. A nil email
// aggregates over all users.
func (ds *DataStore) AggregateByLabel(ctx context.Context, email *string) (stats []LabelStats, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpAggregateByLabel, start, err) }()

	if _, err := ds.db(ctx); err != nil {
		return nil, err
	}
	if email != nil {
		normalized := NormalizeEmail(*email)
		email = &normalized
	}

	return ds.cache.get(ctx, aggregateKey(email), func(ctx context.Context) ([]LabelStats, error) {
		return ds.queryAggregate(ctx, email)
	})
}

func (ds *DataStore) queryAggregate(ctx context.Context, email *string) ([]LabelStats, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	var rows []LabelStats
	q := db.Model(&Detection{}).
		Select("label, COUNT(*) AS count, AVG(confidence) AS mean_confidence").
		Group("label")
	if email != nil {
		q = q.Where("email = ?", *email)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, dbError(err, "aggregate_by_label", errors.PriorityMedium)
	}

	out := make([]LabelStats, 0, len(rows))
	for _, r := range rows {
		if r.Label.Valid() && r.Count > 0 {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b LabelStats) int {
		return a.Label.Index() - b.Label.Index()
	})
	return out, nil
}

// UserSummary returns totals for email. MostCommon is empty when the user
// has no detections; ties go to the more severe label.
func (ds *DataStore) UserSummary(ctx context.Context, email string) (summary Summary, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpUserSummary, start, err) }()

	email = NormalizeEmail(email)
	stats, err := ds.AggregateByLabel(ctx, &email)
	if err != nil {
		return Summary{}, err
	}
	return summarize(email, stats), nil
}

// summarize folds per-label stats, which must be in canonical order.
func summarize(email string, stats []LabelStats) Summary {
	s := Summary{Email: email, Labels: stats}

	var weighted float64
	var best int64
	for _, st := range stats {
		s.Total += st.Count
		weighted += st.MeanConfidence * float64(st.Count)
		if st.Count > best {
			best = st.Count
			s.MostCommon = st.Label
		}
	}
	if s.Total > 0 {
		s.MeanConfidence = weighted / float64(s.Total)
	}
	if s.Labels == nil {
		s.Labels = []LabelStats{}
	}
	return s
}
