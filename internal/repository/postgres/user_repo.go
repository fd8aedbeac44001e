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

const userColumns = `id, auth0_id, email, name, picture_url, created_at, updated_at`

// UserRepository implements domain.UserRepository using PostgreSQL
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a user by their UUID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uuidToPg(id))
	return notFoundUser(scanUser(row))
}

// GetByAuth0ID retrieves a user by their Auth0 ID
func (r *UserRepository) GetByAuth0ID(ctx context.Context, auth0ID string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE auth0_id = $1`, auth0ID)
	return notFoundUser(scanUser(row))
}

// CreateOrGetByAuth0ID creates a new user or refreshes the profile of an existing one (upsert on login)
func (r *UserRepository) CreateOrGetByAuth0ID(ctx context.Context, auth0ID, email string, name, pictureURL *string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (auth0_id, email, name, picture_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (auth0_id) DO UPDATE
		 SET email = EXCLUDED.email,
		     name = COALESCE(users.name, EXCLUDED.name),
		     picture_url = EXCLUDED.picture_url,
		     updated_at = NOW()
		 RETURNING `+userColumns,
		auth0ID, email, stringPtrToPgText(name), stringPtrToPgText(pictureURL),
	)
	return scanUser(row)
}

func notFoundUser(u *domain.User, err error) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		id                 pgtype.UUID
		auth0ID, email     string
		name, picture      pgtype.Text
		createdAt, updated pgtype.Timestamptz
	)
	if err := row.Scan(&id, &auth0ID, &email, &name, &picture, &createdAt, &updated); err != nil {
		return nil, err
	}
	return &domain.User{
		ID:         uuid.UUID(id.Bytes),
		Auth0ID:    auth0ID,
		Email:      email,
		Name:       pgTextToStringPtr(name),
		PictureURL: pgTextToStringPtr(picture),
		CreatedAt:  createdAt.Time,
		UpdatedAt:  updated.Time,
	}, nil
}
