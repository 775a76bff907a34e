// Package tracking encodes causal lineage as a flat token string.
//
// A token carries the source that started an invocation chain, the
// correlation id shared by every invocation in the chain, and optionally
// the job execution id of the job that triggered the current hop:
//
//	source|correlationId|jobExecutionId
//
// The format is a single delimited string so it survives storage in one
// text column and transport in one header. Tokens are immutable values;
// every "modification" returns a new token.
package tracking

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Delimiter separates token segments. Sources and job execution ids are
// sanitized so the delimiter never appears inside a segment.
const Delimiter = "|"

var uuidPattern = regexp.MustCompile(
	`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Sentinel errors for token operations.
var (
	// ErrEmptySource indicates Create was called without a source.
	ErrEmptySource = errors.New("tracking: source is empty")

	// ErrEmptyCorrelationID indicates Create was called without a correlation id.
	ErrEmptyCorrelationID = errors.New("tracking: correlation id is empty")

	// ErrInvalidCorrelationID indicates the correlation id is not a UUID.
	ErrInvalidCorrelationID = errors.New("tracking: correlation id is not a UUID")

	// ErrInvalidToken indicates a token does not parse.
	ErrInvalidToken = errors.New("tracking: invalid token")
)

// Components are the decoded fields of a token.
type Components struct {
	// Source identifies the actor that started the invocation chain.
	Source string
	// CorrelationID groups every invocation in the chain. Always a UUID.
	CorrelationID string
	// JobExecutionID identifies the job execution that produced this hop.
	// Empty for tokens minted at the root of a chain.
	JobExecutionID string
}

// String re-encodes the components as a token.
func (c Components) String() string {
	if c.JobExecutionID == "" {
		return c.Source + Delimiter + c.CorrelationID
	}
	return c.Source + Delimiter + c.CorrelationID + Delimiter + c.JobExecutionID
}

// sanitize strips the delimiter out of free-form segments so the encoded
// form stays unambiguous.
func sanitize(s string) string {
	return strings.ReplaceAll(s, Delimiter, "_")
}

// Create encodes a new token. The source and correlation id are required;
// the job execution id is optional and may be empty. The delimiter is
// sanitized out of source and jobExecutionID.
func Create(source, correlationID, jobExecutionID string) (string, error) {
	if source == "" {
		return "", ErrEmptySource
	}
	if correlationID == "" {
		return "", ErrEmptyCorrelationID
	}
	if !uuidPattern.MatchString(correlationID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCorrelationID, correlationID)
	}
	c := Components{
		Source:         sanitize(source),
		CorrelationID:  correlationID,
		JobExecutionID: sanitize(jobExecutionID),
	}
	return c.String(), nil
}

// Parse decodes a token. It returns nil for any malformed input and never
// panics: the wire may carry tokens from older deployments or from callers
// that never set one.
func Parse(token string) *Components {
	if token == "" {
		return nil
	}
	parts := strings.Split(token, Delimiter)
	if len(parts) < 2 || len(parts) > 3 {
		return nil
	}
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	if !uuidPattern.MatchString(parts[1]) {
		return nil
	}
	c := &Components{
		Source:        parts[0],
		CorrelationID: parts[1],
	}
	if len(parts) == 3 {
		c.JobExecutionID = parts[2]
	}
	return c
}

// IsValid reports whether a value parses as a token.
func IsValid(token string) bool {
	return Parse(token) != nil
}

// WithJobExecutionID returns a new token with the job execution id replaced.
// The input token must be valid.
func WithJobExecutionID(token, jobExecutionID string) (string, error) {
	c := Parse(token)
	if c == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	c.JobExecutionID = sanitize(jobExecutionID)
	return c.String(), nil
}

// WithSource returns a new token with the source replaced.
// The input token must be valid.
func WithSource(token, source string) (string, error) {
	c := Parse(token)
	if c == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	c.Source = sanitize(source)
	return c.String(), nil
}

// ForJob computes the token attached to a job execution.
//
// When the inbound token is valid its source and correlation id are reused
// and only the job execution id is restamped, so a chain of job-triggered
// invocations stays attributable to the actor that started it no matter how
// deep the recursion goes. When the inbound token is missing or malformed a
// fresh token is minted from the fallback source and correlation id.
func ForJob(inbound, fallbackSource, correlationID, jobExecutionID string) (string, error) {
	if c := Parse(inbound); c != nil {
		c.JobExecutionID = sanitize(jobExecutionID)
		return c.String(), nil
	}
	return Create(fallbackSource, correlationID, jobExecutionID)
}
