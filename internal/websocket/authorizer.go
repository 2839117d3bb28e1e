package websocket

import (
	"context"
	"errors"
	"strings"

	"livepoll/internal/events"
	"livepoll/internal/proxy"
	"livepoll/internal/repository"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
)

// ChannelAuthorizer applies the read policy to live-feed
// subscriptions: the poll listing and per-poll channels are open to any
// authenticated client, user channels belong to their owner alone, and
// internal channels are never client-facing.
type ChannelAuthorizer struct {
	access   *proxy.AccessControl
	pollRepo repository.PollRepository
}

// NewChannelAuthorizer creates an authorizer backed by the central
// access-control proxy.
func NewChannelAuthorizer(access *proxy.AccessControl, pollRepo repository.PollRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{access: access, pollRepo: pollRepo}
}

// CanSubscribe checks whether userID may observe channel. A false
// verdict with nil error means "denied"; a non-nil error means the
// check itself failed.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID string, channel string) (bool, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}

	// Poll listing feed - any authenticated client.
	if channel == events.ChannelPolls {
		return true, nil
	}

	// Per-poll feeds - any authenticated client, but the poll must
	// exist so clients cannot squat on arbitrary channel names.
	if strings.HasPrefix(channel, events.ChannelPrefixPoll) {
		pollID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixPoll))
		if err != nil {
			return false, nil
		}
		if _, err := a.pollRepo.GetPollByID(ctx, pollID); err != nil {
			if errors.Is(err, livepoll_errors.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	// User feeds - owner only.
	if strings.HasPrefix(channel, events.ChannelPrefixUser) {
		ownerID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixUser))
		if err != nil {
			return false, nil
		}
		if err := a.access.CanSubscribeChannel(ctx, userUUID, ownerID); err != nil {
			if errors.Is(err, livepoll_errors.ErrForbidden) || errors.Is(err, livepoll_errors.ErrUnauthorized) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	// System channels carry outbox plumbing, not client traffic.
	if strings.HasPrefix(channel, "channel:system:") {
		return false, nil
	}

	return false, nil
}
