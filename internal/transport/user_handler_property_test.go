package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealerlink/internal/domain"
	"dealerlink/internal/repository"
	"dealerlink/internal/service"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	for _, existing := range m.users {
		if existing.Phone == user.Phone {
			return repository.ErrPhoneAlreadyUsed
		}
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindDealerByPhone(ctx context.Context, phone string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Role == domain.RoleDealer && user.Phone == phone {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindDealerByKey(ctx context.Context, key string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Role == domain.RoleDealer && user.DealerKey == key {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	for _, user := range m.users {
		if user.ID == id {
			user.LastSeen = at
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func newTestUserHandler() (*UserHandler, service.UserService) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	userService := service.NewUserService(userRepo, refreshTokenRepo, "test-secret")
	logger, _ := zap.NewDevelopment()
	return NewUserHandler(userService, logger), userService
}

// Feature: order-ledger, Property 5: Invalid registration data is rejected
func TestProperty_InvalidRegistrationDataIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("registration with invalid data returns validation errors", prop.ForAll(
		func(invalidCase int) bool {
			handler, _ := newTestUserHandler()

			var reqBody RegisterRequest

			// Generate different invalid cases
			switch invalidCase % 6 {
			case 0:
				// Empty email
				reqBody = RegisterRequest{
					Email:    "",
					Password: "ValidPass123",
					Name:     "John Doe",
					Role:     domain.RoleDealer,
					Phone:    "5550001111",
				}
			case 1:
				// Invalid email format
				reqBody = RegisterRequest{
					Email:    "not-an-email",
					Password: "ValidPass123",
					Name:     "John Doe",
					Role:     domain.RoleDealer,
					Phone:    "5550001111",
				}
			case 2:
				// Short password (less than 8 characters)
				reqBody = RegisterRequest{
					Email:    "test@example.com",
					Password: "short",
					Name:     "John Doe",
					Role:     domain.RoleRetailer,
					Phone:    "5550001111",
				}
			case 3:
				// Unknown role
				reqBody = RegisterRequest{
					Email:    "test@example.com",
					Password: "ValidPass123",
					Name:     "John Doe",
					Role:     "admin",
					Phone:    "5550001111",
				}
			case 4:
				// Phone too short
				reqBody = RegisterRequest{
					Email:    "test@example.com",
					Password: "ValidPass123",
					Name:     "John Doe",
					Role:     domain.RoleRetailer,
					Phone:    "12345",
				}
			case 5:
				// Missing name
				reqBody = RegisterRequest{
					Email:    "test@example.com",
					Password: "ValidPass123",
					Role:     domain.RoleRetailer,
					Phone:    "5550001111",
				}
			}

			body, _ := json.Marshal(reqBody)
			req := httptest.NewRequest(http.MethodPost, "/api/users/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Register(w, req)

			if w.Code != http.StatusBadRequest && w.Code != http.StatusConflict {
				t.Logf("FAIL: Expected 400 or 409 status code, got %d", w.Code)
				return false
			}

			var response map[string]interface{}
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Logf("FAIL: Could not decode error response: %v", err)
				return false
			}

			if _, exists := response["error"]; !exists {
				t.Logf("FAIL: Response missing 'error' field")
				return false
			}

			return true
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: order-ledger, Property 6: Successful registration returns profile data
func TestProperty_SuccessfulRegistrationReturnsProfileData(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("successful registration returns a profile with all fields", prop.ForAll(
		func(email string, password string, name string, roleIdx int, phone string) bool {
			handler, _ := newTestUserHandler()

			role := domain.RoleDealer
			if roleIdx%2 == 1 {
				role = domain.RoleRetailer
			}

			reqBody := RegisterRequest{
				Email:    email,
				Password: password,
				Name:     name,
				Role:     role,
				Phone:    phone,
			}
			body, _ := json.Marshal(reqBody)
			req := httptest.NewRequest(http.MethodPost, "/api/users/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Register(w, req)

			if w.Code != http.StatusCreated {
				t.Logf("FAIL: Expected 201 status code, got %d", w.Code)
				return false
			}

			var profile UserProfile
			if err := json.NewDecoder(w.Body).Decode(&profile); err != nil {
				t.Logf("FAIL: Could not decode response: %v", err)
				return false
			}

			if profile.Email != email || profile.Name != name || profile.Role != role || profile.Phone != phone {
				t.Logf("FAIL: Profile fields mismatch: %+v", profile)
				return false
			}

			// Dealers get a connect key; retailers never do.
			if role == domain.RoleDealer && len(profile.DealerKey) != 7 {
				t.Logf("FAIL: Dealer key missing or malformed: %q", profile.DealerKey)
				return false
			}
			if role == domain.RoleRetailer && profile.DealerKey != "" {
				t.Logf("FAIL: Retailer must not get a dealer key")
				return false
			}

			if _, err := uuid.Parse(profile.ID); err != nil {
				t.Logf("FAIL: Profile ID is not a valid UUID: %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.IntRange(0, 100),
		gen.RegexMatch(`[0-9]{10}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: order-ledger, Property 7: Valid login returns both tokens
func TestProperty_ValidLoginReturnsBothTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid login returns access token and refresh token", prop.ForAll(
		func(email string, password string, name string, phone string) bool {
			handler, userService := newTestUserHandler()

			_, err := userService.Register(context.Background(), service.RegisterInput{
				Email:    email,
				Password: password,
				Name:     name,
				Role:     domain.RoleRetailer,
				Phone:    phone,
			})
			if err != nil {
				t.Logf("FAIL: Registration failed: %v", err)
				return false
			}

			loginReq := LoginRequest{Email: email, Password: password}
			body, _ := json.Marshal(loginReq)
			req := httptest.NewRequest(http.MethodPost, "/api/users/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Login(w, req)

			if w.Code != http.StatusOK {
				t.Logf("FAIL: Expected 200 status code, got %d", w.Code)
				return false
			}

			var loginResp LoginResponse
			if err := json.NewDecoder(w.Body).Decode(&loginResp); err != nil {
				t.Logf("FAIL: Could not decode login response: %v", err)
				return false
			}

			if loginResp.AccessToken == "" || loginResp.RefreshToken == "" {
				t.Logf("FAIL: Tokens missing")
				return false
			}
			if loginResp.User.Email != email {
				t.Logf("FAIL: User email mismatch")
				return false
			}

			claims, err := userService.ValidateToken(loginResp.AccessToken)
			if err != nil {
				t.Logf("FAIL: Access token validation failed: %v", err)
				return false
			}
			if claims.UserID.String() != loginResp.User.ID {
				t.Logf("FAIL: Token user ID doesn't match profile ID")
				return false
			}
			if claims.Name != name || claims.Phone != phone {
				t.Logf("FAIL: Claims missing identity fields")
				return false
			}

			newAccessToken, err := userService.RefreshToken(context.Background(), loginResp.RefreshToken)
			if err != nil || newAccessToken == "" {
				t.Logf("FAIL: Refresh token is not usable: %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.RegexMatch(`[0-9]{10}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
