package websocket

import (
	"context"
	"testing"

	"livepoll/internal/domain/poll"
	"livepoll/internal/events"
	"livepoll/internal/proxy"
	"livepoll/internal/repository"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
)

// stubPollRepo answers GetPollByID from a fixed set; the authorizer
// never touches the rest of the repository surface.
type stubPollRepo struct {
	repository.PollRepository
	polls map[uuid.UUID]poll.Poll
}

func (s *stubPollRepo) GetPollByID(ctx context.Context, id uuid.UUID) (poll.Poll, error) {
	p, ok := s.polls[id]
	if !ok {
		return poll.Poll{}, livepoll_errors.ErrNotFound
	}
	return p, nil
}

func TestCanSubscribe(t *testing.T) {
	userID := uuid.New()
	otherID := uuid.New()
	pollID := uuid.New()

	repo := &stubPollRepo{polls: map[uuid.UUID]poll.Poll{
		pollID: {ID: pollID, OwnerID: otherID, Title: "lunch"},
	}}
	authorizer := NewChannelAuthorizer(proxy.NewAccessControl(repo), repo)

	tests := []struct {
		name    string
		userID  string
		channel string
		want    bool
	}{
		{"poll listing feed", userID.String(), events.ChannelPolls, true},
		{"existing poll feed", userID.String(), events.ChannelPrefixPoll + pollID.String(), true},
		{"unknown poll feed", userID.String(), events.ChannelPrefixPoll + uuid.New().String(), false},
		{"malformed poll feed", userID.String(), events.ChannelPrefixPoll + "not-a-uuid", false},
		{"own user feed", userID.String(), events.ChannelPrefixUser + userID.String(), true},
		{"someone else's user feed", userID.String(), events.ChannelPrefixUser + otherID.String(), false},
		{"system channel", userID.String(), "channel:system:outbox", false},
		{"arbitrary channel", userID.String(), "channel:admin", false},
		{"malformed user id", "not-a-uuid", events.ChannelPolls, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := authorizer.CanSubscribe(context.Background(), tt.userID, tt.channel)
			if err != nil {
				t.Fatalf("CanSubscribe: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanSubscribe(%q, %q) = %v, want %v", tt.userID, tt.channel, got, tt.want)
			}
		})
	}
}
