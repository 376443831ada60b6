package services

import (
	"context"
	"reflect"
	"testing"

	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
)

type stubUserRepo struct {
	interests map[int][]string
	users     map[string]types.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		interests: make(map[int][]string),
		users:     make(map[string]types.User),
	}
}

func (r *stubUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	return types.User{}, store.ErrNotFound
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, ok := r.users[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *stubUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.users[user.Email] = user
	return user, nil
}

func (r *stubUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	return user, nil
}

func (r *stubUserRepo) UpdateInterests(ctx context.Context, userID int, interests []string) error {
	r.interests[userID] = interests
	return nil
}

func (r *stubUserRepo) ListByInterest(ctx context.Context, category string) ([]types.User, error) {
	return nil, nil
}

func TestUpdateInterestsNormalizes(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewUserService(repo)

	stored, err := svc.UpdateInterests(context.Background(), 1, []string{" Music ", "music", "TECH", "", "tech"})
	if err != nil {
		t.Fatalf("update interests: %v", err)
	}

	want := []string{"music", "tech"}
	if !reflect.DeepEqual(stored, want) {
		t.Fatalf("stored = %v, want %v", stored, want)
	}
	if !reflect.DeepEqual(repo.interests[1], want) {
		t.Fatalf("repo got %v, want %v", repo.interests[1], want)
	}
}

func TestCreateNormalizesEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewUserService(repo)

	user, err := svc.Create(context.Background(), types.User{
		Name:  "Ada",
		Email: "  Ada@Example.COM  ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email = %q", user.Email)
	}

	// Lookups normalize the same way, so mixed case finds the user.
	if _, err := svc.GetByEmail(context.Background(), "ADA@example.com"); err != nil {
		t.Fatalf("get by email: %v", err)
	}
}
