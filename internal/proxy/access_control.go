package proxy

import (
	"context"

	"livepoll/internal/repository"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl centralizes the row-level access rules declared on the
// schema: anyone may read polls, options, and votes; only the owner may
// delete a poll; only the matching user may write their own vote row.
type AccessControl struct {
	pollRepo repository.PollRepository
}

func NewAccessControl(pollRepo repository.PollRepository) *AccessControl {
	return &AccessControl{pollRepo: pollRepo}
}

// CanReadPolls allows any caller, authenticated or not.
func (a *AccessControl) CanReadPolls(ctx context.Context) error {
	return nil
}

// CanCreatePoll requires an authenticated caller.
func (a *AccessControl) CanCreatePoll(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return livepoll_errors.ErrUnauthorized
	}
	return nil
}

// CanManagePoll allows only the poll's owner to delete or modify it.
func (a *AccessControl) CanManagePoll(ctx context.Context, userID, pollID uuid.UUID) error {
	if a.pollRepo == nil {
		return livepoll_errors.ErrForbidden
	}
	p, err := a.pollRepo.GetPollByID(ctx, pollID)
	if err != nil {
		return err
	}
	if p.OwnerID != userID {
		return livepoll_errors.ErrForbidden
	}
	return nil
}

// CanVote allows an authenticated user to write their own vote row in
// an existing poll. The actorID/voterID match mirrors the declared
// matching-user policy; acting on another user's vote row is forbidden.
func (a *AccessControl) CanVote(ctx context.Context, actorID, voterID, pollID uuid.UUID) error {
	if actorID == uuid.Nil {
		return livepoll_errors.ErrUnauthorized
	}
	if actorID != voterID {
		return livepoll_errors.ErrForbidden
	}
	if a.pollRepo == nil {
		return livepoll_errors.ErrForbidden
	}
	if _, err := a.pollRepo.GetPollByID(ctx, pollID); err != nil {
		return err
	}
	return nil
}

// CanSubscribeChannel gates live-feed channel subscriptions: poll
// channels are open to any authenticated client, user channels only to
// their owner.
func (a *AccessControl) CanSubscribeChannel(ctx context.Context, userID uuid.UUID, channelOwnerID uuid.UUID) error {
	if userID == uuid.Nil {
		return livepoll_errors.ErrUnauthorized
	}
	if channelOwnerID != uuid.Nil && channelOwnerID != userID {
		return livepoll_errors.ErrForbidden
	}
	return nil
}
