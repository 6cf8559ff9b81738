package events

import "context"

// Event types
const (
	EventCommitmentPrepared  = "commitment_prepared"
	EventCommitmentConfirmed = "commitment_confirmed"
	EventCommitmentReady     = "commitment_ready"
	EventCommitmentExpired   = "commitment_expired"
	EventCommitmentRevealed  = "commitment_revealed"
	EventInboxUpdated        = "inbox_updated"
	EventPrimaryUpdated      = "primary_updated"
	EventNameRenewed         = "name_renewed"
)

// Streams
const (
	StreamCommitments = "events:commitments"
	StreamRegistry    = "events:registry"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Address returns the account the event concerns, if any.
func (e Event) Address() string {
	for _, k := range []string{"address", "caller", "user"} {
		if v, ok := e.Payload[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

// Subscriber delivers events from the given streams until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(stream string, event Event), streams ...string) error
}
