package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dealerlink/internal/domain"
	"dealerlink/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	byEmail map[string]*domain.User
	byID    map[uuid.UUID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[uuid.UUID]*domain.User),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if _, ok := f.byEmail[user.Email]; ok {
		return repository.ErrUserAlreadyExists
	}
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if user, ok := f.byEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if user, ok := f.byID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) FindDealerByPhone(ctx context.Context, phone string) (*domain.User, error) {
	for _, user := range f.byID {
		if user.Role == domain.RoleDealer && user.Phone == phone {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) FindDealerByKey(ctx context.Context, key string) (*domain.User, error) {
	for _, user := range f.byID {
		if user.Role == domain.RoleDealer && user.DealerKey == key {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	if user, ok := f.byID[id]; ok {
		user.LastSeen = at
	}
	return nil
}

// fakeTokenRepo is an in-memory RefreshTokenRepository.
type fakeTokenRepo struct {
	tokens map[string]*domain.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (f *fakeTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeTokenRepo) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	stored, ok := f.tokens[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if stored.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return stored, nil
}

func (f *fakeTokenRepo) Revoke(ctx context.Context, token string) error {
	stored, ok := f.tokens[token]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	stored.Revoked = true
	return nil
}

func newTestUserService() (UserService, *fakeUserRepo, *fakeTokenRepo) {
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	return NewUserService(users, tokens, "test-secret"), users, tokens
}

func dealerInput() RegisterInput {
	return RegisterInput{
		Email:    "dealer@example.com",
		Password: "password123",
		Name:     "Ace Supply",
		Role:     domain.RoleDealer,
		Phone:    "5550001111",
		Address:  "1 Warehouse Way",
	}
}

func TestRegisterDealerGetsConnectKey(t *testing.T) {
	svc, _, _ := newTestUserService()

	user, err := svc.Register(context.Background(), dealerInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Role != domain.RoleDealer {
		t.Errorf("role = %s, want dealer", user.Role)
	}
	if len(user.DealerKey) != 7 {
		t.Errorf("dealer key = %q, want 7 characters", user.DealerKey)
	}
	if user.Status != "active" {
		t.Errorf("status = %q, want active", user.Status)
	}
	if user.PasswordHash == "password123" || user.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
}

func TestRegisterRetailerHasNoConnectKey(t *testing.T) {
	svc, _, _ := newTestUserService()

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "shop@example.com",
		Password: "password123",
		Name:     "Corner Shop",
		Role:     domain.RoleRetailer,
		Phone:    "5552223333",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.DealerKey != "" {
		t.Errorf("retailer must not get a dealer key, got %q", user.DealerKey)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	bad := dealerInput()
	bad.Role = "admin"
	if _, err := svc.Register(ctx, bad); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad role: got %v, want ErrValidation", err)
	}

	for _, phone := range []string{"", "12345", "555000111a", "555-0001111"} {
		bad = dealerInput()
		bad.Phone = phone
		if _, err := svc.Register(ctx, bad); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("phone %q: got %v, want ErrValidation", phone, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, dealerInput()); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := svc.Register(ctx, dealerInput()); !errors.Is(err, repository.ErrUserAlreadyExists) {
		t.Fatalf("got %v, want ErrUserAlreadyExists", err)
	}
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, dealerInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	accessToken, refreshToken, user, err := svc.Login(ctx, "dealer@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("login returned wrong user")
	}
	if accessToken == "" || refreshToken == "" {
		t.Fatal("tokens missing")
	}

	claims, err := svc.ValidateToken(accessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != registered.ID || claims.Role != domain.RoleDealer {
		t.Errorf("claims = %+v", claims)
	}
	// Name and phone ride in the claims so handlers can stamp order fields.
	if claims.Name != "Ace Supply" || claims.Phone != "5550001111" {
		t.Errorf("claims missing identity fields: %+v", claims)
	}

	newAccess, err := svc.RefreshToken(ctx, refreshToken)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if newAccess == "" {
		t.Fatal("refreshed access token missing")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, dealerInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, _, _, err := svc.Login(ctx, "dealer@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, _, _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, dealerInput()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, refreshToken, _, err := svc.Login(ctx, "dealer@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := svc.Logout(ctx, refreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := svc.RefreshToken(ctx, refreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked token: got %v, want ErrInvalidToken", err)
	}

	// Logging out an unknown token is treated as already logged out.
	if err := svc.Logout(ctx, "no-such-token"); err != nil {
		t.Errorf("Logout of unknown token: %v", err)
	}
}

// Feature: order-ledger, Property 3: Dealer keys come from a fixed alphabet
func TestProperty_DealerKeysAreWellFormed(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("generated keys are 7 characters of A-Z0-9", prop.ForAll(
		func(int) bool {
			key, err := GenerateDealerKey()
			if err != nil {
				return false
			}
			if len(key) != 7 {
				return false
			}
			for _, r := range key {
				if !strings.ContainsRune(dealerKeyAlphabet, r) {
					return false
				}
			}
			return true
		},
		gen.Int(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
