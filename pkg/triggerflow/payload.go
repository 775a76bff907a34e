package triggerflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata carries source-agnostic payload context.
type Metadata struct {
	// Source labels where the payload came from ("api", "scheduler",
	// a user id). Used as the fallback tracking-token source.
	Source string `json:"source,omitempty"`

	// TrackingToken is the inbound lineage token when this payload was
	// produced by a job of an earlier invocation. Empty at chain roots.
	TrackingToken string `json:"tracking_token,omitempty"`

	// ReceivedAt is when the payload entered the engine.
	ReceivedAt time.Time `json:"received_at,omitempty"`

	// Extra holds free-form metadata (tenant, region, delivery id).
	Extra map[string]string `json:"extra,omitempty"`
}

// Payload is the normalized, source-agnostic unit the engine operates on.
// T is the payload data type for type-safe detectors and handlers.
// A Payload is immutable after normalization.
type Payload[T any] struct {
	Data T        `json:"data"`
	Meta Metadata `json:"metadata,omitempty"`
}

// PayloadOption configures payload metadata during normalization.
type PayloadOption func(*Metadata)

// WithPayloadSource sets the payload source label.
func WithPayloadSource(source string) PayloadOption {
	return func(m *Metadata) {
		m.Source = source
	}
}

// WithTrackingToken attaches the inbound lineage token. Jobs triggered by
// this payload inherit the token's source and correlation id.
func WithTrackingToken(token string) PayloadOption {
	return func(m *Metadata) {
		m.TrackingToken = token
	}
}

// WithMetaValue adds one free-form metadata entry.
func WithMetaValue(key, value string) PayloadOption {
	return func(m *Metadata) {
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[key] = value
	}
}

// NewPayload normalizes data into a Payload.
func NewPayload[T any](data T, opts ...PayloadOption) Payload[T] {
	p := Payload[T]{
		Data: data,
		Meta: Metadata{ReceivedAt: time.Now().UTC()},
	}
	for _, opt := range opts {
		opt(&p.Meta)
	}
	return p
}

// FromJSON normalizes a raw JSON document into a Payload. A decode failure
// is a normalization failure: the only case the engine reports as an error
// instead of a structured result.
func FromJSON[T any](raw []byte, opts ...PayloadOption) (Payload[T], error) {
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return Payload[T]{}, fmt.Errorf("normalize payload: %w", err)
	}
	return NewPayload(data, opts...), nil
}
