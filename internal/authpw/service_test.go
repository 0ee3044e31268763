package authpw

import (
	"context"
	"errors"
	"testing"

	"demonboard/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
	nameIndex  map[string]string // name -> userID
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
		nameIndex:  make(map[string]string),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByName(ctx context.Context, name string) (store.User, error) {
	if userID, ok := m.nameIndex[name]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	m.nameIndex[user.Name] = user.ID
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:    "riot@example.com",
		Password: "hunter2hunter2",
		Name:     "Riot",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if user.Role != "member" {
		t.Errorf("expected default role member, got %s", user.Role)
	}
	if user.PasswordHash == "hunter2hunter2" {
		t.Error("password stored in plain text")
	}

	got, err := svc.SignIn(ctx, SignInRequest{Email: "riot@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, got.ID)
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(newMockUserStore())
	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    "riot@example.com",
		Password: "short",
		Name:     "Riot",
	})
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "riot@example.com", Password: "hunter2hunter2", Name: "Riot"}); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "riot@example.com", Password: "hunter2hunter2", Name: "OtherName"}); err == nil {
		t.Fatal("expected error for duplicate email")
	}
}

func TestSignUpRejectsDuplicateName(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "riot@example.com", Password: "hunter2hunter2", Name: "Riot"}); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "other@example.com", Password: "hunter2hunter2", Name: "Riot"}); err == nil {
		t.Fatal("expected error for duplicate name")
	}
}

func TestSignInRejectsWrongPassword(t *testing.T) {
	svc := NewService(newMockUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "riot@example.com", Password: "hunter2hunter2", Name: "Riot"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "riot@example.com", Password: "wrong-password"}); err == nil {
		t.Fatal("expected error for wrong password")
	}
}
