package report_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/report"
)

func sampleRecord(id string) *report.InvocationRecord {
	return &report.InvocationRecord{
		ID:                  id,
		CorrelationID:       "550e8400-e29b-41d4-a716-446655440000",
		Source:              "webhooks",
		Status:              report.StatusPartial,
		StartedAt:           time.Now().UTC().Truncate(time.Millisecond),
		DurationMs:          128,
		EventsDetectedCount: 2,
		Events: []report.EventRecord{
			{Name: "user.created", Detected: true, Status: report.StatusCompleted, DurationMs: 90, JobCount: 2},
			{Name: "user.deleted", Detected: false, Status: report.StatusCompleted},
		},
		Jobs: []report.JobRecord{
			{
				ID: "je-1", Event: "user.created", Name: "welcome-email",
				Status: report.StatusCompleted, DurationMs: 40,
				Result:        `{"sent":true}`,
				TrackingToken: "api|550e8400-e29b-41d4-a716-446655440000|je-1",
			},
			{
				ID: "je-2", Event: "user.created", Name: "provision-account",
				Status: report.StatusFailed, DurationMs: 50,
				ErrorKind: "TimeoutError", ErrorMessage: "job timed out after 50ms",
				TrackingToken: "api|550e8400-e29b-41d4-a716-446655440000|je-2",
			},
		},
	}
}

func TestMemorySink(t *testing.T) {
	sink := report.NewMemorySink()
	defer sink.Close()

	require.NoError(t, sink.Record(sampleRecord("inv-1")))
	require.NoError(t, sink.Record(sampleRecord("inv-2")))

	assert.Equal(t, 2, sink.Len())

	got, err := sink.Get("inv-1")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", got.ID)

	_, err = sink.Get("missing")
	assert.ErrorIs(t, err, report.ErrNotFound)

	all := sink.Invocations()
	require.Len(t, all, 2)
	assert.Equal(t, "inv-1", all[0].ID)
	assert.Equal(t, "inv-2", all[1].ID)
}

func TestMemorySinkClosed(t *testing.T) {
	sink := report.NewMemorySink()
	require.NoError(t, sink.Close())

	assert.ErrorIs(t, sink.Record(sampleRecord("inv-1")), report.ErrSinkClosed)
	_, err := sink.Get("inv-1")
	assert.ErrorIs(t, err, report.ErrSinkClosed)
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	sink, err := report.NewSQLiteSink(":memory:")
	require.NoError(t, err)
	defer sink.Close()

	want := sampleRecord("inv-1")
	require.NoError(t, sink.Record(want))

	got, err := sink.Get("inv-1")
	require.NoError(t, err)

	assert.Equal(t, want.CorrelationID, got.CorrelationID)
	assert.Equal(t, want.Source, got.Source)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.DurationMs, got.DurationMs)
	assert.Equal(t, want.EventsDetectedCount, got.EventsDetectedCount)
	assert.Equal(t, want.Events, got.Events)
	require.Len(t, got.Jobs, 2)
	assert.Equal(t, want.Jobs[0], got.Jobs[0])
	assert.Equal(t, want.Jobs[1], got.Jobs[1])
	assert.WithinDuration(t, want.StartedAt, got.StartedAt, time.Millisecond)
}

func TestSQLiteSinkGetMissing(t *testing.T) {
	sink, err := report.NewSQLiteSink(":memory:")
	require.NoError(t, err)
	defer sink.Close()

	_, err = sink.Get("missing")
	assert.ErrorIs(t, err, report.ErrNotFound)
}

func TestSQLiteSinkListByCorrelation(t *testing.T) {
	sink, err := report.NewSQLiteSink(":memory:")
	require.NoError(t, err)
	defer sink.Close()

	first := sampleRecord("inv-1")
	first.StartedAt = time.Now().UTC().Add(-time.Minute)
	second := sampleRecord("inv-2")

	other := sampleRecord("inv-3")
	other.CorrelationID = "660e8400-e29b-41d4-a716-446655440000"

	require.NoError(t, sink.Record(first))
	require.NoError(t, sink.Record(second))
	require.NoError(t, sink.Record(other))

	chain, err := sink.ListByCorrelation(first.CorrelationID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "inv-1", chain[0].ID)
	assert.Equal(t, "inv-2", chain[1].ID)
}

func TestSQLiteSinkClosed(t *testing.T) {
	sink, err := report.NewSQLiteSink(":memory:")
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close(), "double close is a no-op")

	assert.ErrorIs(t, sink.Record(sampleRecord("inv-1")), report.ErrSinkClosed)
	_, err = sink.Get("inv-1")
	assert.ErrorIs(t, err, report.ErrSinkClosed)
}
