package datastore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixfix/brixfix-go/internal/detection"
)

func record(t *testing.T, store Interface, email string, label detection.Label, confidence float64) {
	t.Helper()
	_, err := store.RecordDetection(context.Background(), NewDetection{Email: email, Label: label, Confidence: confidence})
	require.NoError(t, err)
}

func TestAggregateByLabelMean(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	for _, c := range []float64{80, 90, 100} {
		record(t, store, "a@example.com", detection.LightDamage, c)
	}

	email := "a@example.com"
	stats, err := store.AggregateByLabel(context.Background(), &email)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, detection.LightDamage, stats[0].Label)
	assert.Equal(t, int64(3), stats[0].Count)
	assert.InDelta(t, 90.0, stats[0].MeanConfidence, 1e-9)
}

func TestAggregateByLabelOrderAndScope(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	record(t, store, "a@example.com", detection.LightDamage, 40)
	record(t, store, "a@example.com", detection.SevereDamage, 60)
	record(t, store, "b@example.com", detection.ModerateDamage, 70)
	record(t, store, "b@example.com", detection.SevereDamage, 80)

	global, err := store.AggregateByLabel(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, global, 3)
	assert.Equal(t, []detection.Label{detection.SevereDamage, detection.ModerateDamage, detection.LightDamage},
		[]detection.Label{global[0].Label, global[1].Label, global[2].Label})
	assert.Equal(t, int64(2), global[0].Count)
	assert.InDelta(t, 70.0, global[0].MeanConfidence, 1e-9)

	email := "a@example.com"
	scoped, err := store.AggregateByLabel(context.Background(), &email)
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, detection.SevereDamage, scoped[0].Label)
	assert.Equal(t, detection.LightDamage, scoped[1].Label)

	nobody := "nobody@example.com"
	empty, err := store.AggregateByLabel(context.Background(), &nobody)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAggregateCacheInvalidatedOnWrite(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	record(t, store, "c@example.com", detection.LightDamage, 10)

	first, err := store.AggregateByLabel(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// mutating a returned slice must not corrupt the cache
	first[0].Count = 999

	again, err := store.AggregateByLabel(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again[0].Count)

	record(t, store, "c@example.com", detection.LightDamage, 30)

	after, err := store.AggregateByLabel(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after[0].Count)
	assert.InDelta(t, 20.0, after[0].MeanConfidence, 1e-9)
}

func TestAggregateConcurrentMisses(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	record(t, store, "d@example.com", detection.ModerateDamage, 55)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			stats, err := store.AggregateByLabel(context.Background(), nil)
			if assert.NoError(t, err) && assert.Len(t, stats, 1) {
				assert.Equal(t, int64(1), stats[0].Count)
			}
		})
	}
	wg.Wait()
}

func TestUserSummary(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	record(t, store, "s@example.com", detection.LightDamage, 60)
	record(t, store, "s@example.com", detection.LightDamage, 80)
	record(t, store, "s@example.com", detection.SevereDamage, 90)
	record(t, store, "s@example.com", detection.SevereDamage, 100)
	record(t, store, "s@example.com", detection.ModerateDamage, 70)

	summary, err := store.UserSummary(context.Background(), "s@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.Total)
	assert.InDelta(t, 80.0, summary.MeanConfidence, 1e-9)
	// Severe and Light tie at two; the more severe label wins
	assert.Equal(t, detection.SevereDamage, summary.MostCommon)
	assert.Len(t, summary.Labels, 3)

	empty, err := store.UserSummary(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.MostCommon)
	assert.NotNil(t, empty.Labels)
}

func TestDetectionIdentityCaseFolded(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	record(t, store, "Owner@Example.com", detection.SevereDamage, 90)
	record(t, store, "owner@example.com ", detection.LightDamage, 70)

	list, err := store.ListDetections(ctx, "OWNER@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, d := range list {
		assert.Equal(t, "owner@example.com", d.Email)
	}

	mixed := "Owner@EXAMPLE.com"
	stats, err := store.AggregateByLabel(ctx, &mixed)
	require.NoError(t, err)
	assert.Len(t, stats, 2)

	summary, err := store.UserSummary(ctx, "OWNER@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Total)
	assert.Equal(t, "owner@example.com", summary.Email)
}
