package services

import (
	"context"
	"strings"

	"github.com/eventhub/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdateInterests(ctx context.Context, userID int, interests []string) error
	ListByInterest(ctx context.Context, category string) ([]types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Email = normalizeEmail(user.Email)
	user.Interests = normalizeInterests(user.Interests)
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	user.Email = normalizeEmail(user.Email)
	return s.repo.Update(ctx, user)
}

// UpdateInterests replaces the user's interest subscriptions.
func (s *UserService) UpdateInterests(ctx context.Context, userID int, interests []string) ([]string, error) {
	normalized := normalizeInterests(interests)
	if err := s.repo.UpdateInterests(ctx, userID, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// ListByInterest returns every user subscribed to the given category.
func (s *UserService) ListByInterest(ctx context.Context, category string) ([]types.User, error) {
	return s.repo.ListByInterest(ctx, normalizeCategory(category))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// normalizeInterests lowercases, trims, and deduplicates while keeping the
// caller's order.
func normalizeInterests(interests []string) []string {
	normalized := make([]string, 0, len(interests))
	seen := make(map[string]bool, len(interests))
	for _, interest := range interests {
		interest = normalizeCategory(interest)
		if interest == "" || seen[interest] {
			continue
		}
		seen[interest] = true
		normalized = append(normalized, interest)
	}
	return normalized
}
