package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndSnapshot(t *testing.T) {
	m := NewQueryMetrics(10, 10)

	m.Record(QueryEvent{Query: "data residency rules", ResultCount: 5, Latency: 12 * time.Millisecond})
	m.Record(QueryEvent{Query: "data retention", ResultCount: 0, Latency: 3 * time.Millisecond})
	m.Record(QueryEvent{Query: "broken", Failed: true, Latency: time.Second})

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.FailedQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"data retention"}, snap.ZeroResultQueries)

	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP1000])
}

func TestTopTermsSortedByFrequency(t *testing.T) {
	m := NewQueryMetrics(10, 10)

	m.Record(QueryEvent{Query: "encryption standards", ResultCount: 1})
	m.Record(QueryEvent{Query: "encryption rotation", ResultCount: 1})
	m.Record(QueryEvent{Query: "audit logs", ResultCount: 1})

	snap := m.Snapshot()
	require.NotEmpty(t, snap.TopTerms)
	assert.Equal(t, "encryption", snap.TopTerms[0].Term)
	assert.Equal(t, int64(2), snap.TopTerms[0].Count)
}

func TestZeroResultBufferEvictsOldest(t *testing.T) {
	m := NewQueryMetrics(2, 10)

	m.Record(QueryEvent{Query: "first miss"})
	m.Record(QueryEvent{Query: "second miss"})
	m.Record(QueryEvent{Query: "third miss"})

	snap := m.Snapshot()
	assert.Equal(t, []string{"second miss", "third miss"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(3), snap.ZeroResultCount)
}

func TestZeroResultPercentage(t *testing.T) {
	m := NewQueryMetrics(10, 10)
	assert.Zero(t, m.Snapshot().ZeroResultPercentage())

	m.Record(QueryEvent{Query: "hit", ResultCount: 3})
	m.Record(QueryEvent{Query: "miss", ResultCount: 0})

	assert.InDelta(t, 50.0, m.Snapshot().ZeroResultPercentage(), 1e-9)
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"data", "residency"}, ExtractTerms("  Data residency to "))
	assert.Nil(t, ExtractTerms(""))
	assert.Nil(t, ExtractTerms("a an"))
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{20 * time.Millisecond, BucketP50},
		{70 * time.Millisecond, BucketP100},
		{200 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.d), tt.d.String())
	}
}
