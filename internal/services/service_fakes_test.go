package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"livepoll/internal/domain/event"
	"livepoll/internal/domain/poll"
	"livepoll/internal/domain/user"
	livepoll_errors "livepoll/pkg/errors"

	"github.com/google/uuid"
)

// In-memory repository fakes mirroring the postgres implementations'
// error contracts: not-found lookups return ErrNotFound, duplicate
// inserts return ErrAlreadyExists, and the recovery-token consume is
// guarded the same way the SQL update is.

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]user.User
	sessions map[uuid.UUID]user.UserSession
	recovery map[uuid.UUID]user.RecoveryToken
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[uuid.UUID]user.User),
		sessions: make(map[uuid.UUID]user.UserSession),
		recovery: make(map[uuid.UUID]user.RecoveryToken),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
			return livepoll_errors.ErrAlreadyExists
		}
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return user.User{}, livepoll_errors.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, livepoll_errors.ErrNotFound
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, livepoll_errors.ErrNotFound
}

func (f *fakeUserRepo) UpdateUser(ctx context.Context, u user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return livepoll_errors.ErrNotFound
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return livepoll_errors.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.users[userID] = u
	return nil
}

func (f *fakeUserRepo) CreateSession(ctx context.Context, s *user.UserSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.RefreshTokenHash == s.RefreshTokenHash {
			return livepoll_errors.ErrAlreadyExists
		}
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeUserRepo) GetSessionByID(ctx context.Context, sessionID uuid.UUID) (user.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return user.UserSession{}, livepoll_errors.ErrNotFound
	}
	return s, nil
}

func (f *fakeUserRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (user.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.RefreshTokenHash == tokenHash {
			return s, nil
		}
	}
	return user.UserSession{}, livepoll_errors.ErrNotFound
}

func (f *fakeUserRepo) GetUserSessions(ctx context.Context, userID uuid.UUID) ([]user.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []user.UserSession
	for _, s := range f.sessions {
		if s.UserID == userID && !s.IsRevoked && s.ExpiresAt.After(time.Now()) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return livepoll_errors.ErrNotFound
	}
	s.IsRevoked = true
	f.sessions[sessionID] = s
	return nil
}

func (f *fakeUserRepo) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.UserID == userID {
			s.IsRevoked = true
			f.sessions[id] = s
		}
	}
	return nil
}

func (f *fakeUserRepo) RevokeOtherUserSessions(ctx context.Context, userID, keepSessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.UserID == userID && s.ID != keepSessionID {
			s.IsRevoked = true
			f.sessions[id] = s
		}
	}
	return nil
}

func (f *fakeUserRepo) CleanExpiredSessions(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.ExpiresAt.Before(time.Now()) {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeUserRepo) CreateRecoveryToken(ctx context.Context, t *user.RecoveryToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recovery[t.ID] = *t
	return nil
}

func (f *fakeUserRepo) GetRecoveryTokenByHash(ctx context.Context, tokenHash string) (user.RecoveryToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.recovery {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return user.RecoveryToken{}, livepoll_errors.ErrNotFound
}

func (f *fakeUserRepo) ConsumeRecoveryToken(ctx context.Context, id uuid.UUID, consumedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.recovery[id]
	if !ok || t.ConsumedAt.Valid {
		return livepoll_errors.ErrRecoveryExpired
	}
	t.ConsumedAt.Time = consumedAt
	t.ConsumedAt.Valid = true
	f.recovery[id] = t
	return nil
}

func (f *fakeUserRepo) InvalidateUserRecoveryTokens(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.recovery {
		if t.UserID == userID && !t.ConsumedAt.Valid {
			t.ConsumedAt.Time = time.Now()
			t.ConsumedAt.Valid = true
			f.recovery[id] = t
		}
	}
	return nil
}

type voteKey struct {
	pollID uuid.UUID
	userID uuid.UUID
}

type fakePollRepo struct {
	mu      sync.Mutex
	polls   map[uuid.UUID]poll.Poll
	options map[uuid.UUID]poll.Option
	votes   map[voteKey]poll.Vote

	// raceWinnerOption, when set, makes the next CreateVote behave as
	// if a concurrent caller already inserted a row for that option:
	// the winner's row appears and the insert fails with
	// ErrAlreadyExists, the way the unique constraint reports it.
	raceWinnerOption uuid.UUID

	// alwaysConflict makes every CreateVote fail with ErrAlreadyExists
	// without materializing a row.
	alwaysConflict bool
}

func newFakePollRepo() *fakePollRepo {
	return &fakePollRepo{
		polls:   make(map[uuid.UUID]poll.Poll),
		options: make(map[uuid.UUID]poll.Option),
		votes:   make(map[voteKey]poll.Vote),
	}
}

func (f *fakePollRepo) CreatePoll(ctx context.Context, p *poll.Poll) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.polls[p.ID]; ok {
		return livepoll_errors.ErrAlreadyExists
	}
	stored := *p
	stored.Options = nil
	f.polls[p.ID] = stored
	return nil
}

func (f *fakePollRepo) CreateOptions(ctx context.Context, opts []poll.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range opts {
		f.options[o.ID] = o
	}
	return nil
}

func (f *fakePollRepo) GetPollByID(ctx context.Context, id uuid.UUID) (poll.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[id]
	if !ok {
		return poll.Poll{}, livepoll_errors.ErrNotFound
	}
	p.Options = f.optionsOf(id)
	return p, nil
}

func (f *fakePollRepo) ListPolls(ctx context.Context, page, limit int) ([]poll.Poll, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]poll.Poll, 0, len(f.polls))
	for id, p := range f.polls {
		p.Options = f.optionsOf(id)
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakePollRepo) DeletePoll(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.polls[id]; !ok {
		return livepoll_errors.ErrNotFound
	}
	delete(f.polls, id)
	return nil
}

func (f *fakePollRepo) GetOptionByID(ctx context.Context, id uuid.UUID) (poll.Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.options[id]
	if !ok {
		return poll.Option{}, livepoll_errors.ErrNotFound
	}
	return o, nil
}

func (f *fakePollRepo) GetVote(ctx context.Context, pollID, userID uuid.UUID) (poll.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.votes[voteKey{pollID, userID}]
	if !ok {
		return poll.Vote{}, livepoll_errors.ErrNotFound
	}
	return v, nil
}

func (f *fakePollRepo) CreateVote(ctx context.Context, v *poll.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alwaysConflict {
		return livepoll_errors.ErrAlreadyExists
	}
	key := voteKey{v.PollID, v.UserID}
	if f.raceWinnerOption != uuid.Nil {
		winner := *v
		winner.ID = uuid.New()
		winner.OptionID = f.raceWinnerOption
		f.votes[key] = winner
		f.raceWinnerOption = uuid.Nil
		return livepoll_errors.ErrAlreadyExists
	}
	if _, ok := f.votes[key]; ok {
		return livepoll_errors.ErrAlreadyExists
	}
	f.votes[key] = *v
	return nil
}

func (f *fakePollRepo) UpdateVoteOption(ctx context.Context, voteID, optionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, v := range f.votes {
		if v.ID == voteID {
			v.OptionID = optionID
			v.UpdatedAt = time.Now()
			f.votes[key] = v
			return nil
		}
	}
	return livepoll_errors.ErrNotFound
}

func (f *fakePollRepo) DeleteVote(ctx context.Context, pollID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := voteKey{pollID, userID}
	if _, ok := f.votes[key]; !ok {
		return livepoll_errors.ErrNotFound
	}
	delete(f.votes, key)
	return nil
}

func (f *fakePollRepo) DeleteVotesByPoll(ctx context.Context, pollID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.votes {
		if key.pollID == pollID {
			delete(f.votes, key)
		}
	}
	return nil
}

func (f *fakePollRepo) DeleteOptionsByPoll(ctx context.Context, pollID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, o := range f.options {
		if o.PollID == pollID {
			delete(f.options, id)
		}
	}
	return nil
}

func (f *fakePollRepo) CountVotes(ctx context.Context, pollIDs []uuid.UUID) ([]poll.VoteCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(pollIDs))
	for _, id := range pollIDs {
		wanted[id] = true
	}
	grouped := make(map[uuid.UUID]map[uuid.UUID]int64)
	for _, v := range f.votes {
		if !wanted[v.PollID] {
			continue
		}
		if grouped[v.PollID] == nil {
			grouped[v.PollID] = make(map[uuid.UUID]int64)
		}
		grouped[v.PollID][v.OptionID]++
	}
	var counts []poll.VoteCount
	for pollID, byOption := range grouped {
		for optionID, n := range byOption {
			counts = append(counts, poll.VoteCount{PollID: pollID, OptionID: optionID, Count: n})
		}
	}
	return counts, nil
}

func (f *fakePollRepo) optionsOf(pollID uuid.UUID) []poll.Option {
	var opts []poll.Option
	for _, o := range f.options {
		if o.PollID == pollID {
			opts = append(opts, o)
		}
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Position < opts[j].Position })
	return opts
}

func (f *fakePollRepo) voteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.votes)
}

func (f *fakePollRepo) voteFor(pollID, userID uuid.UUID) (poll.Vote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.votes[voteKey{pollID, userID}]
	return v, ok
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []event.OutboxEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{}
}

func (f *fakeEventRepo) CreateOutboxEvent(ctx context.Context, e *event.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeEventRepo) GetOutboxEventByID(ctx context.Context, id uuid.UUID) (event.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return event.OutboxEvent{}, livepoll_errors.ErrNotFound
}

func (f *fakeEventRepo) GetPendingOutboxEvents(ctx context.Context, limit int) ([]event.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []event.OutboxEvent
	for _, e := range f.events {
		if !e.ProcessedAt.Valid {
			pending = append(pending, e)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (f *fakeEventRepo) MarkOutboxEventProcessed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ID == id {
			f.events[i].ProcessedAt.Time = time.Now()
			f.events[i].ProcessedAt.Valid = true
			return nil
		}
	}
	return livepoll_errors.ErrNotFound
}

func (f *fakeEventRepo) MarkOutboxEventFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ID == id {
			f.events[i].RetryCount++
			f.events[i].NextRetryAt.Time = nextRetryAt
			f.events[i].NextRetryAt.Valid = true
			f.events[i].ErrorMessage.String = errorMessage
			f.events[i].ErrorMessage.Valid = true
			return nil
		}
	}
	return livepoll_errors.ErrNotFound
}

func (f *fakeEventRepo) typesSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.EventType)
	}
	return types
}
