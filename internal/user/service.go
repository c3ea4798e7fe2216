package user

import (
	"context"
	"strings"

	"github.com/Kyz7/authserver/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// CacheInvalidator drops cached renderings of a user record.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, id uint) error
}

type Service struct {
	repo   *Repository
	cache  CacheInvalidator
	policy *bluemonday.Policy
}

func NewService(repo *Repository, cache CacheInvalidator) *Service {
	return &Service{repo: repo, cache: cache, policy: bluemonday.StrictPolicy()}
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.repo.FindByIDOrEmail(ctx, Lookup{ID: id})
}

// UpdateProfile stores sanitized display names and drops every cached
// rendering of the user before returning.
func (s *Service) UpdateProfile(ctx context.Context, id uint, firstName, lastName string) (*models.User, error) {
	u, err := s.repo.UpdateProfile(ctx, id, s.clean(firstName), s.clean(lastName))
	if err != nil {
		return nil, err
	}
	if err := s.cache.InvalidateUser(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.InvalidateUser(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) clean(name string) string {
	return strings.TrimSpace(s.policy.Sanitize(name))
}
