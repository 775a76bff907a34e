package triggerflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayloadOptions(t *testing.T) {
	p := NewPayload(order{ID: "o-1"},
		WithPayloadSource("checkout"),
		WithTrackingToken("checkout|550e8400-e29b-41d4-a716-446655440000|job-1"),
		WithMetaValue("tenant", "acme"),
	)

	assert.Equal(t, "o-1", p.Data.ID)
	assert.Equal(t, "checkout", p.Meta.Source)
	assert.Equal(t, "checkout|550e8400-e29b-41d4-a716-446655440000|job-1", p.Meta.TrackingToken)
	assert.Equal(t, "acme", p.Meta.Extra["tenant"])
	assert.False(t, p.Meta.ReceivedAt.IsZero())
}

func TestFromJSON(t *testing.T) {
	p, err := FromJSON[order]([]byte(`{"ID":"o-2","Total":99.5}`), WithPayloadSource("api"))
	require.NoError(t, err)
	assert.Equal(t, "o-2", p.Data.ID)
	assert.Equal(t, 99.5, p.Data.Total)
	assert.Equal(t, "api", p.Meta.Source)
}

func TestFromJSONRejectsMalformed(t *testing.T) {
	_, err := FromJSON[order]([]byte(`{"ID":`))
	require.Error(t, err)
}
