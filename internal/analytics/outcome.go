// Package analytics turns interaction events into entity state transitions.
package analytics

// Status classifies the result of recording one event.
type Status string

const (
	// StatusRecorded means the event's writes committed.
	StatusRecorded Status = "recorded"
	// StatusSkippedNoActiveConversation means the event required an active
	// conversation and none existed; nothing was written.
	StatusSkippedNoActiveConversation Status = "skipped_no_active_conversation"
	// StatusFailed means the transaction rolled back.
	StatusFailed Status = "failed"
)

// Outcome is the result of recording one event. Recording failures are
// reported here, never as errors to the conversational caller.
type Outcome struct {
	Status Status
	// ConversationID is the conversation the event resolved to, when the
	// event kind touches one.
	ConversationID string
	// Err carries the cause for StatusFailed outcomes.
	Err error
}

// Recorded reports whether the event committed.
func (o Outcome) Recorded() bool { return o.Status == StatusRecorded }
