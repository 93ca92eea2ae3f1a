package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written into every new row. Readers accept it and
// anything older; rows written before versioning carry 0.
const EnvelopeVersion = 1

var ErrUnsupportedEnvelope = errors.New("unsupported envelope version")

// ActorRef is the operator whose request produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope wraps event data in outbox_events.payload and in the
// published Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// OpenEnvelope decodes raw and rejects envelopes from a newer writer.
// EventID and Data are left for the caller to check since each consumer has
// its own fallback.
func OpenEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 0 || env.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("%w: %d", ErrUnsupportedEnvelope, env.Version)
	}
	env.EventID = strings.TrimSpace(env.EventID)
	return env, nil
}
