package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// CategoryService handles category business logic
type CategoryService struct {
	store     domain.Store
	publisher websocket.EventPublisher
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(store domain.Store, publisher websocket.EventPublisher) *CategoryService {
	return &CategoryService{store: store, publisher: publisher}
}

// List returns the user's categories ordered by name
func (s *CategoryService) List(ctx context.Context, userID uuid.UUID) ([]*domain.Category, error) {
	return s.store.Categories().GetAllByUser(ctx, userID)
}

// Create creates a new category
func (s *CategoryService) Create(ctx context.Context, userID uuid.UUID, name string, color *string) (*domain.Category, error) {
	name, err := validateCategory(name, color)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Categories().Create(ctx, &domain.Category{UserID: userID, Name: name, Color: color})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(userID, websocket.CategoryCreated(created))
	return created, nil
}

// Update renames or recolors a category
func (s *CategoryService) Update(ctx context.Context, userID, id uuid.UUID, name string, color *string) (*domain.Category, error) {
	name, err := validateCategory(name, color)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Categories().Update(ctx, &domain.Category{ID: id, UserID: userID, Name: name, Color: color})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(userID, websocket.CategoryUpdated(updated))
	return updated, nil
}

// Delete removes a category. Transactions keep existing without one.
func (s *CategoryService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.Categories().Delete(ctx, userID, id); err != nil {
		return err
	}

	s.publisher.Publish(userID, websocket.CategoryDeleted(map[string]interface{}{"id": id}))
	return nil
}

// Resolve returns the ID of the user's category with exactly this name,
// creating the category without a color when it does not exist
func (s *CategoryService) Resolve(ctx context.Context, userID uuid.UUID, name string) (uuid.UUID, error) {
	return resolveCategory(ctx, s.store, userID, name)
}

// resolveCategory is the lookup-or-create shared by every writer. It runs on
// whatever store it is given so callers can keep it inside their transaction.
func resolveCategory(ctx context.Context, store domain.Store, userID uuid.UUID, name string) (uuid.UUID, error) {
	name, err := validateCategory(name, nil)
	if err != nil {
		return uuid.Nil, err
	}

	existing, err := store.Categories().GetByName(ctx, userID, name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, err
	}

	created, err := store.Categories().Create(ctx, &domain.Category{UserID: userID, Name: name})
	if err != nil {
		return uuid.Nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("category_id", created.ID.String()).
		Str("name", name).
		Msg("Created category on demand")
	return created.ID, nil
}

func validateCategory(name string, color *string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewFieldError("name", "is required")
	}
	if len(name) > domain.MaxCategoryNameLength {
		return "", domain.NewFieldError("name", "exceeds maximum length")
	}
	if color != nil && !colorPattern.MatchString(*color) {
		return "", domain.NewFieldError("color", "must be a hex color like #1a2b3c")
	}
	return name, nil
}
