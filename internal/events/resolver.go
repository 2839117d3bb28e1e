package events

// ChannelResolver determines which Redis channels to publish to
type ChannelResolver interface {
	ResolveChannels(env Envelope) []string
}

// PollChannelResolver routes envelopes to appropriate channels.
// Poll lifecycle and vote events fan out to the table-level feed so
// list views can refresh tallies, and to the per-poll channel so
// detail views get a narrow stream.
type PollChannelResolver struct{}

func NewPollChannelResolver() *PollChannelResolver {
	return &PollChannelResolver{}
}

func (r *PollChannelResolver) ResolveChannels(env Envelope) []string {
	var channels []string

	switch env.AggregateType {
	case AggregateTypePoll:
		switch env.EventType {
		case EventTypePollCreated:
			channels = append(channels, ChannelPolls)
		case EventTypePollDeleted, EventTypePollVoted, EventTypePollVoteRetracted:
			channels = append(channels, ChannelPolls, ChannelPrefixPoll+env.AggregateID)
		default:
			channels = append(channels, ChannelPrefixPoll+env.AggregateID)
		}
	case AggregateTypeUser:
		channels = append(channels, ChannelPrefixUser+env.AggregateID)
	default:
		channels = append(channels, ChannelSystemOutbox)
	}

	return channels
}
