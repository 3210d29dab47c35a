package users

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) GetPolicy(ctx context.Context, id uuid.UUID) (*Policy, error) {
	return s.repo.GetPolicy(ctx, id)
}

// UpdatePolicy rejects retention periods outside RetentionPeriods before
// anything reaches the store.
func (s *Service) UpdatePolicy(ctx context.Context, id uuid.UUID, req *UpdatePolicyRequest) (*Policy, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid retention policy: %w", err)
	}
	return s.repo.UpdatePolicy(ctx, id, req)
}

func (s *Service) StampLastAutoDeleteRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.repo.StampLastAutoDeleteRun(ctx, id, at)
}

func (s *Service) ListAutoDeleteEnabled(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListAutoDeleteEnabled(ctx)
}
