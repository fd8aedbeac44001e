package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/testutil"
	"github.com/google/uuid"
)

func TestAuthenticateUser_NewUser(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	service := NewAuthService(userRepo)

	auth0ID := "auth0|12345"
	email := "test@example.com"
	name := "Test User"

	result, err := service.AuthenticateUser(context.Background(), auth0ID, email, &name, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !result.IsNewUser {
		t.Error("Expected IsNewUser to be true for new user")
	}

	if result.User.Auth0ID != auth0ID {
		t.Errorf("Expected auth0ID %s, got %s", auth0ID, result.User.Auth0ID)
	}

	if result.User.Email != email {
		t.Errorf("Expected email %s, got %s", email, result.User.Email)
	}
}

func TestAuthenticateUser_ExistingUser(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	service := NewAuthService(userRepo)

	existing := &domain.User{ID: uuid.New(), Auth0ID: "auth0|existing", Email: "existing@example.com"}
	userRepo.AddUser(existing)

	result, err := service.AuthenticateUser(context.Background(), existing.Auth0ID, existing.Email, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.IsNewUser {
		t.Error("Expected IsNewUser to be false for existing user")
	}

	if result.User.ID != existing.ID {
		t.Errorf("Expected user ID %s, got %s", existing.ID, result.User.ID)
	}
}

func TestAuthenticateUser_RepositoryError(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	userRepo.CreateFn = func(auth0ID, email string, name, pictureURL *string) (*domain.User, error) {
		return nil, errors.New("database down")
	}
	service := NewAuthService(userRepo)

	if _, err := service.AuthenticateUser(context.Background(), "auth0|x", "x@example.com", nil, nil); err == nil {
		t.Fatal("Expected error, got nil")
	}

	if _, err := service.AuthenticateUser(context.Background(), "", "x@example.com", nil, nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated for empty subject, got %v", err)
	}
}

func TestGetUserByID(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	service := NewAuthService(userRepo)

	userID := uuid.New()
	userRepo.AddUser(&domain.User{ID: userID, Auth0ID: "auth0|test", Email: "test@example.com"})

	found, err := service.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if found.ID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, found.ID)
	}

	_, err = service.GetUserByID(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserIDByAuth0ID(t *testing.T) {
	userRepo := testutil.NewMockUserRepository()
	service := NewAuthService(userRepo)

	userID := uuid.New()
	userRepo.AddUser(&domain.User{ID: userID, Auth0ID: "auth0|findme", Email: "findme@example.com"})

	got, err := service.GetUserIDByAuth0ID(context.Background(), "auth0|findme")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != userID {
		t.Errorf("Expected user ID %s, got %s", userID, got)
	}

	if _, err := service.GetUserIDByAuth0ID(context.Background(), "auth0|missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
