package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Routing keys carried by the shared exchange. Dot-separated, one topic per
// key on the broker side.
const (
	PostCreated = "post.created"
	PostDeleted = "post.deleted"
)

// Envelope is what actually travels over the bus. Payload is kept as raw
// JSON produced by the originating service; consumers decode it against the
// typed payload for the routing key. The ID is envelope metadata only:
// delivery is at-least-once and consumers must tolerate redelivery without
// relying on it.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Producer   string          `json:"producer"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// PostCreatedPayload is published by the post service after a post is stored.
type PostCreatedPayload struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostDeletedPayload is published after an owner deletes a post. MediaIDs
// lets the media service clean up the attachments.
type PostDeletedPayload struct {
	PostID   string   `json:"postId"`
	UserID   string   `json:"userId"`
	MediaIDs []string `json:"mediaIds"`
}

// NewEnvelope wraps payload in an envelope for the given routing key.
func NewEnvelope(routingKey, producer string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", routingKey, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		Producer:   producer,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Encode serializes the envelope to the UTF-8 JSON wire format.
func (e Envelope) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", e.Type, err)
	}
	return b, nil
}

// Decode parses an envelope off the wire.
func Decode(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

// DecodePayload unmarshals the envelope payload into v.
func (e Envelope) DecodePayload(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
