package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	req := RegisterRequest{
		Email:    "mika@example.com",
		Password: "supersafe",
		FullName: "Mika Retoucher",
		Role:     RoleSeller,
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, user.Email)
	}
	if user.Role != RoleSeller {
		t.Fatalf("register: expected role %s got %s", RoleSeller, user.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}

	actor, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if actor.ID != user.ID {
		t.Fatalf("verify token: expected %q got %q", user.ID, actor.ID)
	}
	if actor.Role != RoleSeller {
		t.Fatalf("verify token: expected role %s got %s", RoleSeller, actor.Role)
	}
}

func TestService_RegisterDefaultsToBuyer(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "ann@example.com",
		Password: "longenough",
		FullName: "Ann Buyer",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleBuyer {
		t.Fatalf("expected default role %s got %s", RoleBuyer, user.Role)
	}
}

func TestService_RegisterRejectsSupportRole(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "admin@example.com",
		Password: "longenough",
		FullName: "Not Really Support",
		Role:     RoleSupport,
	})
	if err == nil {
		t.Fatal("expected self-registration as support to fail")
	}
}

func TestService_RegisterWeakPassword(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret", time.Hour)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "weak@example.com",
		Password: "short",
		FullName: "Weak",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword got %v", err)
	}
}

func TestService_LoginWrongPassword(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{
		Email:    "bob@example.com",
		Password: "rightpass",
		FullName: "Bob",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "wrongpass"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials got %v", err)
	}
}

func TestService_VerifyTokenWrongSecret(t *testing.T) {
	repo := newFakeRepository()
	issuer := NewService(repo, "secret-one", time.Hour)
	verifier := NewService(repo, "secret-two", time.Hour)

	ctx := context.Background()
	if _, err := issuer.Register(ctx, RegisterRequest{
		Email:    "eve@example.com",
		Password: "longenough",
		FullName: "Eve",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := issuer.Login(ctx, LoginRequest{Email: "eve@example.com", Password: "longenough"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := verifier.VerifyToken(resp.Token); err == nil {
		t.Fatal("expected verification with wrong secret to fail")
	}
}

type fakeRepository struct {
	byEmail map[string]User
	byID    map[string]User
	nextID  int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byEmail: make(map[string]User),
		byID:    make(map[string]User),
	}
}

func (f *fakeRepository) CreateUser(_ context.Context, params CreateUserParams) (User, error) {
	if _, exists := f.byEmail[params.Email]; exists {
		return User{}, ErrDuplicateEmail
	}
	f.nextID++
	user := User{
		ID:           fmt.Sprintf("user-%d", f.nextID),
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeRepository) GetUserByEmail(_ context.Context, email string) (User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetUserByID(_ context.Context, userID string) (User, error) {
	user, ok := f.byID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}
