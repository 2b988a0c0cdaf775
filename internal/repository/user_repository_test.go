package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"dealerlink/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	// Create the users table
	_, err = testDB.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL CHECK (role IN ('dealer', 'retailer')),
			phone VARCHAR(20) UNIQUE NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			dealer_key VARCHAR(10) UNIQUE,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			last_seen TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func testUser(role string) *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &domain.User{
		ID:           uuid.New(),
		Email:        uuid.New().String() + "@example.com",
		PasswordHash: "$2a$10$notarealhashnotarealhashnotarealhash",
		Name:         "Test User",
		Role:         role,
		Phone:        fmt.Sprintf("%010d", time.Now().UnixNano()%10000000000),
		Address:      "1 Test Street",
		Status:       "active",
		LastSeen:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if role == domain.RoleDealer {
		user.DealerKey = uuid.New().String()[:7]
	}
	return user
}

func TestCreateAndFindUser(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := testUser(domain.RoleDealer)
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	byEmail, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.DealerKey != user.DealerKey {
		t.Errorf("got %+v", byEmail)
	}

	byID, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if byID.Email != user.Email || byID.Phone != user.Phone {
		t.Errorf("got %+v", byID)
	}

	if _, err := repo.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("got %v, want ErrUserNotFound", err)
	}
	// The repository sentinel also matches the domain family.
	if _, err := repo.FindByID(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want domain.ErrNotFound", err)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := testUser(domain.RoleRetailer)
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := testUser(domain.RoleRetailer)
	dup.Email = user.Email
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("got %v, want ErrUserAlreadyExists", err)
	}
}

func TestCreateDuplicatePhone(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := testUser(domain.RoleRetailer)
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := testUser(domain.RoleRetailer)
	dup.Phone = user.Phone
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrPhoneAlreadyUsed) {
		t.Fatalf("got %v, want ErrPhoneAlreadyUsed", err)
	}
}

func TestDealerLookupsAreRoleScoped(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	dealer := testUser(domain.RoleDealer)
	if err := repo.Create(ctx, dealer); err != nil {
		t.Fatalf("Create dealer failed: %v", err)
	}
	retailer := testUser(domain.RoleRetailer)
	if err := repo.Create(ctx, retailer); err != nil {
		t.Fatalf("Create retailer failed: %v", err)
	}

	found, err := repo.FindDealerByPhone(ctx, dealer.Phone)
	if err != nil {
		t.Fatalf("FindDealerByPhone failed: %v", err)
	}
	if found.ID != dealer.ID {
		t.Errorf("got %s, want %s", found.ID, dealer.ID)
	}

	// A retailer's phone never resolves through the dealer lookup.
	if _, err := repo.FindDealerByPhone(ctx, retailer.Phone); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("got %v, want ErrUserNotFound", err)
	}

	byKey, err := repo.FindDealerByKey(ctx, dealer.DealerKey)
	if err != nil {
		t.Fatalf("FindDealerByKey failed: %v", err)
	}
	if byKey.ID != dealer.ID {
		t.Errorf("got %s, want %s", byKey.ID, dealer.ID)
	}
	if _, err := repo.FindDealerByKey(ctx, "ZZZZZZZ"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("got %v, want ErrUserNotFound", err)
	}
}

func TestUpdateLastSeen(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := testUser(domain.RoleRetailer)
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond).Add(time.Hour)
	if err := repo.UpdateLastSeen(ctx, user.ID, at); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}

	got, _ := repo.FindByID(ctx, user.ID)
	if !got.LastSeen.Equal(at) {
		t.Errorf("last seen = %v, want %v", got.LastSeen, at)
	}

	if err := repo.UpdateLastSeen(ctx, uuid.New(), at); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("got %v, want ErrUserNotFound", err)
	}
}

// Feature: order-ledger, Property 4: Registration creates hashed passwords
func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(password string) bool {
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				t.Logf("Failed to hash password: %v", err)
				return false
			}

			user := testUser(domain.RoleRetailer)
			user.PasswordHash = string(hashedPassword)

			if err := repo.Create(ctx, user); err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}
			defer testDB.Exec("DELETE FROM users WHERE id = $1", user.ID)

			retrieved, err := repo.FindByEmail(ctx, user.Email)
			if err != nil {
				t.Logf("Failed to find user: %v", err)
				return false
			}

			if retrieved.PasswordHash == password {
				t.Logf("Password was stored as plaintext!")
				return false
			}

			return bcrypt.CompareHashAndPassword([]byte(retrieved.PasswordHash), []byte(password)) == nil
		},
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
