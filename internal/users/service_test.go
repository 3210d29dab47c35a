package users

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	policies map[uuid.UUID]*Policy
	updates  int
}

func newMemRepo() *memRepo {
	return &memRepo{policies: map[uuid.UUID]*Policy{}}
}

func (m *memRepo) GetPolicy(_ context.Context, id uuid.UUID) (*Policy, error) {
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return p, nil
}

func (m *memRepo) UpdatePolicy(_ context.Context, id uuid.UUID, req *UpdatePolicyRequest) (*Policy, error) {
	p, ok := m.policies[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	m.updates++
	p.AutoDeleteEnabled = req.AutoDeleteEnabled
	p.AutoDeleteAfterDays = req.AutoDeleteAfterDays
	p.AutoDeleteArchived = req.AutoDeleteArchived
	p.AutoDeleteExcludeTagIDs = req.AutoDeleteExcludeTagIDs
	return p, nil
}

func (m *memRepo) StampLastAutoDeleteRun(_ context.Context, id uuid.UUID, at time.Time) error {
	p, ok := m.policies[id]
	if !ok {
		return ErrUserNotFound
	}
	p.LastAutoDeleteRun = &at
	return nil
}

func (m *memRepo) ListAutoDeleteEnabled(_ context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, p := range m.policies {
		if p.AutoDeleteEnabled {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func TestService_UpdatePolicy_AcceptsEveryPeriod(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	id := uuid.New()
	repo.policies[id] = &Policy{UserID: id, AutoDeleteAfterDays: 30}

	for _, days := range RetentionPeriods {
		p, err := svc.UpdatePolicy(context.Background(), id, &UpdatePolicyRequest{
			AutoDeleteEnabled:   true,
			AutoDeleteAfterDays: days,
		})
		require.NoError(t, err, "days=%d", days)
		assert.Equal(t, days, p.AutoDeleteAfterDays)
	}
}

func TestService_UpdatePolicy_RejectsOutOfRangePeriod(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	id := uuid.New()
	repo.policies[id] = &Policy{UserID: id, AutoDeleteAfterDays: 30}

	for _, days := range []int{0, 1, 31, 366, -7} {
		_, err := svc.UpdatePolicy(context.Background(), id, &UpdatePolicyRequest{AutoDeleteAfterDays: days})
		require.Error(t, err, "days=%d", days)

		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	}
	assert.Equal(t, 0, repo.updates)
	assert.Equal(t, 30, repo.policies[id].AutoDeleteAfterDays)
}

func TestService_UpdatePolicy_UnknownUser(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.UpdatePolicy(context.Background(), uuid.New(), &UpdatePolicyRequest{AutoDeleteAfterDays: 7})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPolicy_Excludes(t *testing.T) {
	tag := uuid.New()
	p := &Policy{AutoDeleteExcludeTagIDs: []uuid.UUID{tag}}

	assert.True(t, p.Excludes(tag))
	assert.False(t, p.Excludes(uuid.New()))
}
