package retention

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aiox-platform/governor/internal/users"
)

type storedConversation struct {
	candidate Candidate
	members   []uuid.UUID
	archived  []uuid.UUID
	messages  int
}

// memStore implements PolicyStore and ConversationStore over maps.
type memStore struct {
	mu            sync.Mutex
	policies      map[uuid.UUID]*users.Policy
	conversations map[uuid.UUID]*storedConversation

	findCalls   int
	failMembers map[uuid.UUID]error
	failDelete  map[uuid.UUID]error
	failPolicy  map[uuid.UUID]error
	panicPolicy map[uuid.UUID]bool
	stampErr    error
	stamps      map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		policies:      map[uuid.UUID]*users.Policy{},
		conversations: map[uuid.UUID]*storedConversation{},
		failMembers:   map[uuid.UUID]error{},
		failDelete:    map[uuid.UUID]error{},
		failPolicy:    map[uuid.UUID]error{},
		panicPolicy:   map[uuid.UUID]bool{},
		stamps:        map[uuid.UUID]int{},
	}
}

func (m *memStore) addUser(p users.Policy) uuid.UUID {
	if p.UserID == uuid.Nil {
		p.UserID = uuid.New()
	}
	m.policies[p.UserID] = &p
	return p.UserID
}

func (m *memStore) addConversation(members []uuid.UUID, lastMessageAt time.Time, tags ...uuid.UUID) uuid.UUID {
	id := uuid.New()
	m.conversations[id] = &storedConversation{
		candidate: Candidate{ID: id, Name: "conv-" + id.String()[:8], LastMessageAt: lastMessageAt, Tags: tags},
		members:   members,
		messages:  3,
	}
	return id
}

func (m *memStore) archive(convID, userID uuid.UUID) {
	c := m.conversations[convID]
	c.archived = append(c.archived, userID)
}

func (m *memStore) exists(convID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conversations[convID]
	return ok
}

func (m *memStore) GetPolicy(_ context.Context, id uuid.UUID) (*users.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicPolicy[id] {
		panic("corrupt policy row")
	}
	if err := m.failPolicy[id]; err != nil {
		return nil, err
	}
	p, ok := m.policies[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) StampLastAutoDeleteRun(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stampErr != nil {
		return m.stampErr
	}
	m.policies[id].LastAutoDeleteRun = &at
	m.stamps[id]++
	return nil
}

func (m *memStore) ListAutoDeleteEnabled(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range m.policies {
		if p.AutoDeleteEnabled {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids, nil
}

// FindIdle mirrors the SQL filter in Repository.FindIdle.
func (m *memStore) FindIdle(_ context.Context, userID uuid.UUID, policy *users.Policy, cutoff time.Time) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++

	var out []Candidate
	for _, c := range m.conversations {
		if !slices.Contains(c.members, userID) || !c.candidate.LastMessageAt.Before(cutoff) {
			continue
		}
		archived := slices.Contains(c.archived, userID)
		if archived && !policy.AutoDeleteArchived {
			continue
		}
		if slices.ContainsFunc(c.candidate.Tags, policy.Excludes) {
			continue
		}
		cand := c.candidate
		cand.IsArchivedByUser = archived
		cand.MessageCount = int64(c.messages)
		out = append(out, cand)
	}
	slices.SortFunc(out, func(a, b Candidate) int { return a.LastMessageAt.Compare(b.LastMessageAt) })
	return out, nil
}

func (m *memStore) ListMembers(_ context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failMembers[conversationID]; err != nil {
		return nil, err
	}
	c, ok := m.conversations[conversationID]
	if !ok {
		return nil, ErrConversationGone
	}
	return slices.Clone(c.members), nil
}

func (m *memStore) DeleteConversation(_ context.Context, conversationID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failDelete[conversationID]; err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	if _, ok := m.conversations[conversationID]; !ok {
		return ErrConversationGone
	}
	delete(m.conversations, conversationID)
	return nil
}

// slowPolicies delays policy reads and records how many ran at once.
type slowPolicies struct {
	*memStore
	delay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (p *slowPolicies) GetPolicy(ctx context.Context, id uuid.UUID) (*users.Policy, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		cur := p.maxInFlight.Load()
		if n <= cur || p.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(p.delay)
	return p.memStore.GetPolicy(ctx, id)
}

type sentNotification struct {
	channel string
	event   string
	payload autoDeletePayload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, channel, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	p, ok := payload.(autoDeletePayload)
	if !ok {
		return errors.New("unexpected payload type")
	}
	n.sent = append(n.sent, sentNotification{channel: channel, event: event, payload: p})
	return nil
}
