package domain

// EventKind distinguishes the inbound event types the intake pipeline handles.
type EventKind string

const (
	EventKindMessage EventKind = "message"
	EventKindMention EventKind = "app_mention"
)

// Event is a transient inbound messaging event. It is consumed by the intake
// pipeline to produce reports and alerts and is never persisted itself.
type Event struct {
	ID          string    `json:"event_id"`
	Kind        EventKind `json:"kind"`
	OrgID       string    `json:"org_id"`
	Channel     string    `json:"channel"`
	TS          string    `json:"ts"`
	ThreadTS    string    `json:"thread_ts,omitempty"`
	User        string    `json:"user"`
	Text        string    `json:"text"`
	ClientMsgID string    `json:"client_msg_id,omitempty"`
}

// DedupKey returns the best available stable identity for the event:
// the upstream event ID if present, else the client message ID, else the
// channel-qualified message timestamp.
func (e *Event) DedupKey() string {
	if e.ID != "" {
		return e.ID
	}
	if e.ClientMsgID != "" {
		return e.ClientMsgID
	}
	return e.Channel + ":" + e.TS
}
