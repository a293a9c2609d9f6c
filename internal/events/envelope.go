package events

import "encoding/json"

// Envelope is the frame every realtime event travels in, both
// directions: a type tag plus an opaque payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds an outbound envelope. Marshal failures collapse to an
// empty payload rather than dropping the event.
func New(eventType string, payload any) Envelope {
	if payload == nil {
		return Envelope{Type: eventType}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Type: eventType}
	}
	return Envelope{Type: eventType, Payload: data}
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() []byte {
	data, _ := json.Marshal(e)
	return data
}
