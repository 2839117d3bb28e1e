package events

// Event type constants, format: domain.action

// Poll events
const (
	EventTypePollCreated       = "poll.created"
	EventTypePollDeleted       = "poll.deleted"
	EventTypePollVoted         = "poll.voted"
	EventTypePollVoteRetracted = "poll.vote_retracted"
)

// User events
const (
	EventTypeUserRegistered      = "user.registered"
	EventTypeUserPasswordChanged = "user.password_changed"
	EventTypeUserLoggedOutAll    = "user.logged_out_all"
)

// Aggregate type constants
const (
	AggregateTypePoll = "poll"
	AggregateTypeUser = "user"
)

// Redis channel names. channel:polls is the table-level feed every
// list view follows; channel:poll:<id> narrows to one poll;
// channel:user:<id> carries a user's own account events.
const (
	ChannelPolls        = "channel:polls"
	ChannelPrefixPoll   = "channel:poll:"
	ChannelPrefixUser   = "channel:user:"
	ChannelSystemOutbox = "channel:system:outbox"
)

// Payload shapes serialized into outbox rows and envelope payloads.

type PollCreatedPayload struct {
	PollID  string `json:"poll_id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
}

type PollDeletedPayload struct {
	PollID  string `json:"poll_id"`
	OwnerID string `json:"owner_id"`
}

type PollVotedPayload struct {
	PollID   string `json:"poll_id"`
	OptionID string `json:"option_id"`
	UserID   string `json:"user_id"`
	Revote   bool   `json:"revote"`
}

type PollVoteRetractedPayload struct {
	PollID string `json:"poll_id"`
	UserID string `json:"user_id"`
}

type UserEventPayload struct {
	UserID string `json:"user_id"`
}
