package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"livepoll/internal/events"
	"livepoll/internal/proxy"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
)

type voteFixture struct {
	votes   *VoteService
	repo    *fakePollRepo
	events  *fakeEventRepo
	userID  uuid.UUID
	pollID  uuid.UUID
	optionA uuid.UUID
	optionB uuid.UUID
}

func newVoteFixture(t *testing.T) voteFixture {
	t.Helper()
	repo := newFakePollRepo()
	eventRepo := newFakeEventRepo()
	access := proxy.NewAccessControl(repo)
	publisher := NewEventPublisher(eventRepo)

	polls := NewPollService(nil, repo, access, publisher)
	ownerID := uuid.New()
	view := createPoll(t, polls, ownerID, "tabs or spaces?", "tabs", "spaces")

	// The poll-create event is the fixture's own noise; start the vote
	// assertions from a clean outbox.
	eventRepo.mu.Lock()
	eventRepo.events = nil
	eventRepo.mu.Unlock()

	return voteFixture{
		votes:   NewVoteService(nil, repo, access, publisher),
		repo:    repo,
		events:  eventRepo,
		userID:  uuid.New(),
		pollID:  mustUUID(t, view.ID),
		optionA: mustUUID(t, view.Options[0].ID),
		optionB: mustUUID(t, view.Options[1].ID),
	}
}

func votedPayloads(t *testing.T, eventRepo *fakeEventRepo) []events.PollVotedPayload {
	t.Helper()
	eventRepo.mu.Lock()
	defer eventRepo.mu.Unlock()
	var payloads []events.PollVotedPayload
	for _, e := range eventRepo.events {
		if e.EventType != events.EventTypePollVoted {
			continue
		}
		var p events.PollVotedPayload
		if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
			t.Fatalf("unmarshal %s payload: %v", e.EventType, err)
		}
		payloads = append(payloads, p)
	}
	return payloads
}

func TestCastVoteInsertsFirstVote(t *testing.T) {
	fx := newVoteFixture(t)

	if err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, fx.optionA); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	v, ok := fx.repo.voteFor(fx.pollID, fx.userID)
	if !ok {
		t.Fatal("vote row missing after cast")
	}
	if v.OptionID != fx.optionA {
		t.Errorf("vote option = %s, want %s", v.OptionID, fx.optionA)
	}

	payloads := votedPayloads(t, fx.events)
	if len(payloads) != 1 {
		t.Fatalf("poll.voted events = %d, want 1", len(payloads))
	}
	if payloads[0].Revote {
		t.Error("first vote announced as revote")
	}
	if payloads[0].OptionID != fx.optionA.String() {
		t.Errorf("event option = %s, want %s", payloads[0].OptionID, fx.optionA)
	}
}

func TestCastVoteUpdatesInPlace(t *testing.T) {
	fx := newVoteFixture(t)

	if err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, fx.optionA); err != nil {
		t.Fatalf("first cast: %v", err)
	}
	if err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, fx.optionB); err != nil {
		t.Fatalf("revote: %v", err)
	}

	// Still one row, now pointing at the new option.
	if n := fx.repo.voteCount(); n != 1 {
		t.Fatalf("vote rows = %d, want 1", n)
	}
	v, _ := fx.repo.voteFor(fx.pollID, fx.userID)
	if v.OptionID != fx.optionB {
		t.Errorf("vote option = %s, want %s after revote", v.OptionID, fx.optionB)
	}

	payloads := votedPayloads(t, fx.events)
	if len(payloads) != 2 {
		t.Fatalf("poll.voted events = %d, want 2", len(payloads))
	}
	if payloads[0].Revote || !payloads[1].Revote {
		t.Errorf("revote flags = [%v, %v], want [false, true]", payloads[0].Revote, payloads[1].Revote)
	}
}

func TestCastVoteSameOptionIsNoOp(t *testing.T) {
	fx := newVoteFixture(t)

	if err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, fx.optionA); err != nil {
		t.Fatalf("first cast: %v", err)
	}
	if err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, fx.optionA); err != nil {
		t.Fatalf("repeat cast: %v", err)
	}

	if n := fx.repo.voteCount(); n != 1 {
		t.Errorf("vote rows = %d, want 1", n)
	}
	// The repeat changes nothing, so nothing is announced.
	if payloads := votedPayloads(t, fx.events); len(payloads) != 1 {
		t.Errorf("poll.voted events = %d, want 1", len(payloads))
	}
}

func TestCastVoteLostRaceRetriesAsUpdate(t *testing.T) {
	fx := newVoteFixture(t)

	// Simulate losing the first-vote race: the insert hits the unique
	// constraint because a concurrent cast for optionA landed first.
	fx.repo.mu.Lock()
	fx.repo.raceWinnerOption = fx.optionA
	fx.repo.mu.Unlock()

	if err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, fx.optionB); err != nil {
		t.Fatalf("CastVote after lost race: %v", err)
	}

	// One row survives and it carries the loser's later choice.
	if n := fx.repo.voteCount(); n != 1 {
		t.Fatalf("vote rows = %d, want 1", n)
	}
	v, _ := fx.repo.voteFor(fx.pollID, fx.userID)
	if v.OptionID != fx.optionB {
		t.Errorf("vote option = %s, want %s", v.OptionID, fx.optionB)
	}

	// The first attempt rolled back, so only the update announces.
	payloads := votedPayloads(t, fx.events)
	if len(payloads) != 1 {
		t.Fatalf("poll.voted events = %d, want 1", len(payloads))
	}
	if !payloads[0].Revote {
		t.Error("retried cast must announce as revote")
	}
}

func TestCastVotePersistentConflict(t *testing.T) {
	fx := newVoteFixture(t)

	// Both attempts hit the constraint and neither finds a row to
	// update; the cast gives up rather than spinning.
	fx.repo.mu.Lock()
	fx.repo.alwaysConflict = true
	fx.repo.mu.Unlock()

	err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, fx.optionA)
	if !errors.Is(err, livepoll_errors.ErrConflict) {
		t.Errorf("CastVote = %v, want ErrConflict", err)
	}
}

func TestCastVoteConcurrentFirstVotes(t *testing.T) {
	fx := newVoteFixture(t)

	// Two first-time casts race for the same (poll, user). Whichever
	// insert lands second hits the uniqueness guard and must settle as
	// an update, leaving a single row.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, optionID := range []uuid.UUID{fx.optionA, fx.optionB} {
		wg.Add(1)
		go func(slot int, opt uuid.UUID) {
			defer wg.Done()
			errs[slot] = fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, opt)
		}(i, optionID)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("concurrent CastVote[%d]: %v", i, err)
		}
	}
	if n := fx.repo.voteCount(); n != 1 {
		t.Fatalf("vote rows after concurrent casts = %d, want 1", n)
	}
	v, _ := fx.repo.voteFor(fx.pollID, fx.userID)
	if v.OptionID != fx.optionA && v.OptionID != fx.optionB {
		t.Errorf("surviving vote references %s, want one of the cast options", v.OptionID)
	}
}

func TestCastVoteRejectsForeignOption(t *testing.T) {
	fx := newVoteFixture(t)

	// An option belonging to another poll must not count here.
	repo := fx.repo
	access := proxy.NewAccessControl(repo)
	polls := NewPollService(nil, repo, access, nil)
	other := createPoll(t, polls, uuid.New(), "other poll", "x", "y")
	foreignOption := mustUUID(t, other.Options[0].ID)

	err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, foreignOption)
	if !errors.Is(err, livepoll_errors.ErrInvalidInput) {
		t.Errorf("CastVote(foreign option) = %v, want ErrInvalidInput", err)
	}

	err = fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, uuid.New())
	if !errors.Is(err, livepoll_errors.ErrInvalidInput) {
		t.Errorf("CastVote(unknown option) = %v, want ErrInvalidInput", err)
	}

	if n := fx.repo.voteCount(); n != 0 {
		t.Errorf("vote rows after rejected casts = %d, want 0", n)
	}
}

func TestCastVoteGates(t *testing.T) {
	fx := newVoteFixture(t)

	err := fx.votes.CastVote(context.Background(), uuid.Nil, fx.pollID, fx.optionA)
	if !errors.Is(err, livepoll_errors.ErrUnauthorized) {
		t.Errorf("CastVote(anonymous) = %v, want ErrUnauthorized", err)
	}

	err = fx.votes.CastVote(context.Background(), fx.userID, uuid.New(), fx.optionA)
	if !errors.Is(err, livepoll_errors.ErrNotFound) {
		t.Errorf("CastVote(unknown poll) = %v, want ErrNotFound", err)
	}
}

func TestRetractVoteDeletesRow(t *testing.T) {
	fx := newVoteFixture(t)

	if err := fx.votes.CastVote(context.Background(), fx.userID, fx.pollID, fx.optionA); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if err := fx.votes.RetractVote(context.Background(), fx.userID, fx.pollID); err != nil {
		t.Fatalf("RetractVote: %v", err)
	}

	if n := fx.repo.voteCount(); n != 0 {
		t.Errorf("vote rows = %d, want 0 after retract", n)
	}

	fx.events.mu.Lock()
	var retracted bool
	for _, e := range fx.events.events {
		if e.EventType == events.EventTypePollVoteRetracted {
			retracted = true
		}
	}
	fx.events.mu.Unlock()
	if !retracted {
		t.Errorf("outbox missing %s", events.EventTypePollVoteRetracted)
	}
}

func TestRetractVoteWithoutVote(t *testing.T) {
	fx := newVoteFixture(t)

	err := fx.votes.RetractVote(context.Background(), fx.userID, fx.pollID)
	if !errors.Is(err, livepoll_errors.ErrNotFound) {
		t.Errorf("RetractVote(no vote) = %v, want ErrNotFound", err)
	}
}
