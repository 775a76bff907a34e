package tracking_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/triggerflow/pkg/triggerflow/tracking"
)

const corrID = "550e8400-e29b-41d4-a716-446655440000"

func TestCreateAndParseRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		source string
		jobID  string
	}{
		{"with job id", "user@example.com", "job-1"},
		{"without job id", "scheduler", ""},
		{"dotted source", "svc.billing.prod", "je-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tracking.Create(tt.source, corrID, tt.jobID)
			require.NoError(t, err)

			c := tracking.Parse(token)
			require.NotNil(t, c)
			assert.Equal(t, tt.source, c.Source)
			assert.Equal(t, corrID, c.CorrelationID)
			assert.Equal(t, tt.jobID, c.JobExecutionID)
		})
	}
}

func TestCreateWireFormat(t *testing.T) {
	token, err := tracking.Create("user@example.com", corrID, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com|"+corrID+"|job-1", token)
}

func TestCreateSanitizesDelimiter(t *testing.T) {
	token, err := tracking.Create("a|b", corrID, "j|1")
	require.NoError(t, err)

	c := tracking.Parse(token)
	require.NotNil(t, c)
	assert.Equal(t, "a_b", c.Source)
	assert.Equal(t, "j_1", c.JobExecutionID)
}

func TestCreateRejectsEmptyFields(t *testing.T) {
	_, err := tracking.Create("", corrID, "j")
	assert.ErrorIs(t, err, tracking.ErrEmptySource)

	_, err = tracking.Create("src", "", "j")
	assert.ErrorIs(t, err, tracking.ErrEmptyCorrelationID)

	_, err = tracking.Create("src", "not-a-uuid", "j")
	assert.ErrorIs(t, err, tracking.ErrInvalidCorrelationID)
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"only-one-segment",
		"a|" + corrID + "|b|c",        // four segments
		"a|not-a-uuid|b",              // bad correlation segment
		"|" + corrID,                  // empty source
		"a||b",                        // empty correlation
		"a|" + corrID + "|",           // empty job id
		"a." + corrID + ".b",          // legacy dot format
		strings.ToUpper("a|zzze8400-e29b-41d4-a716-446655440000"),
	}
	for _, token := range bad {
		assert.Nil(t, tracking.Parse(token), "token %q should not parse", token)
		assert.False(t, tracking.IsValid(token))
	}
}

func TestParseAcceptsUppercaseUUID(t *testing.T) {
	c := tracking.Parse("src|" + strings.ToUpper(corrID))
	require.NotNil(t, c)
	assert.Equal(t, strings.ToUpper(corrID), c.CorrelationID)
}

func TestWithJobExecutionID(t *testing.T) {
	token, err := tracking.Create("src", corrID, "old")
	require.NoError(t, err)

	next, err := tracking.WithJobExecutionID(token, "new")
	require.NoError(t, err)

	c := tracking.Parse(next)
	require.NotNil(t, c)
	assert.Equal(t, "src", c.Source)
	assert.Equal(t, corrID, c.CorrelationID)
	assert.Equal(t, "new", c.JobExecutionID)

	// Original token is untouched.
	assert.Equal(t, "old", tracking.Parse(token).JobExecutionID)
}

func TestWithSource(t *testing.T) {
	token, err := tracking.Create("src", corrID, "j")
	require.NoError(t, err)

	next, err := tracking.WithSource(token, "other")
	require.NoError(t, err)

	c := tracking.Parse(next)
	require.NotNil(t, c)
	assert.Equal(t, "other", c.Source)
	assert.Equal(t, "j", c.JobExecutionID)
}

func TestWithOnInvalidToken(t *testing.T) {
	_, err := tracking.WithJobExecutionID("garbage", "j")
	assert.ErrorIs(t, err, tracking.ErrInvalidToken)

	_, err = tracking.WithSource("garbage", "src")
	assert.ErrorIs(t, err, tracking.ErrInvalidToken)
}

func TestForJobReusesValidInbound(t *testing.T) {
	inbound, err := tracking.Create("root-actor", corrID, "job-1")
	require.NoError(t, err)

	otherCorr := uuid.NewString()
	token, err := tracking.ForJob(inbound, "fallback", otherCorr, "job-2")
	require.NoError(t, err)

	c := tracking.Parse(token)
	require.NotNil(t, c)
	assert.Equal(t, "root-actor", c.Source, "source survives the hop")
	assert.Equal(t, corrID, c.CorrelationID, "correlation survives the hop")
	assert.Equal(t, "job-2", c.JobExecutionID, "job execution id is restamped")
}

func TestForJobMintsOnMissingOrInvalidInbound(t *testing.T) {
	for _, inbound := range []string{"", "not|a-uuid|x", "mangled"} {
		token, err := tracking.ForJob(inbound, "fallback", corrID, "job-9")
		require.NoError(t, err)

		c := tracking.Parse(token)
		require.NotNil(t, c)
		assert.Equal(t, "fallback", c.Source)
		assert.Equal(t, corrID, c.CorrelationID)
		assert.Equal(t, "job-9", c.JobExecutionID)
	}
}

func TestForJobMultiHopChain(t *testing.T) {
	// Simulate three recursive hops: each hop's job triggers the next
	// invocation and forwards its token.
	token, err := tracking.ForJob("", "origin", corrID, "hop-1")
	require.NoError(t, err)

	for i, jobID := range []string{"hop-2", "hop-3", "hop-4"} {
		token, err = tracking.ForJob(token, "intermediate", uuid.NewString(), jobID)
		require.NoError(t, err, "hop %d", i+2)

		c := tracking.Parse(token)
		require.NotNil(t, c)
		assert.Equal(t, "origin", c.Source)
		assert.Equal(t, corrID, c.CorrelationID)
		assert.Equal(t, jobID, c.JobExecutionID)
	}
}
