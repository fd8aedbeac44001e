package postgres

import (
	"context"
	"errors"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const categoryColumns = `id, user_id, name, color, created_at, updated_at`

// CategoryRepository implements domain.CategoryRepository using PostgreSQL
type CategoryRepository struct {
	q querier
}

// NewCategoryRepository creates a new CategoryRepository
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{q: pool}
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO categories (user_id, name, color) VALUES ($1, $2, $3)
		 RETURNING `+categoryColumns,
		uuidToPg(category.UserID), category.Name, stringPtrToPgText(category.Color),
	)
	created, err := scanCategory(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrCategoryExists
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a category owned by the user
func (r *CategoryRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Category, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND user_id = $2`,
		uuidToPg(id), uuidToPg(userID),
	)
	return notFoundCategory(scanCategory(row))
}

// GetByName retrieves a category by its exact name
func (r *CategoryRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (*domain.Category, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 AND name = $2`,
		uuidToPg(userID), name,
	)
	return notFoundCategory(scanCategory(row))
}

// GetAllByUser lists the user's categories ordered by name
func (r *CategoryRepository) GetAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Category, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 ORDER BY name`,
		uuidToPg(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Update renames or recolors a category
func (r *CategoryRepository) Update(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	row := r.q.QueryRow(ctx,
		`UPDATE categories SET name = $3, color = $4, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+categoryColumns,
		uuidToPg(category.ID), uuidToPg(category.UserID), category.Name, stringPtrToPgText(category.Color),
	)
	updated, err := scanCategory(row)
	if err != nil && isUniqueViolation(err) {
		return nil, domain.ErrCategoryExists
	}
	return notFoundCategory(updated, err)
}

// Delete removes a category; transactions referencing it keep no category
func (r *CategoryRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM categories WHERE id = $1 AND user_id = $2`,
		uuidToPg(id), uuidToPg(userID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func notFoundCategory(c *domain.Category, err error) (*domain.Category, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var (
		id, userID         pgtype.UUID
		name               string
		color              pgtype.Text
		createdAt, updated pgtype.Timestamptz
	)
	if err := row.Scan(&id, &userID, &name, &color, &createdAt, &updated); err != nil {
		return nil, err
	}
	return &domain.Category{
		ID:        uuid.UUID(id.Bytes),
		UserID:    uuid.UUID(userID.Bytes),
		Name:      name,
		Color:     pgTextToStringPtr(color),
		CreatedAt: createdAt.Time,
		UpdatedAt: updated.Time,
	}, nil
}
