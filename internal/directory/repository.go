package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the referenced record does not exist.
var ErrNotFound = errors.New("directory: not found")

// Repository provides PostgreSQL backed lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProperty loads a property reference.
func (r *Repository) GetProperty(ctx context.Context, id string) (*PropertyRef, error) {
	var p PropertyRef
	err := r.pool.QueryRow(ctx, `SELECT id, title, published FROM properties WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.Published)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetCustomer loads a customer reference.
func (r *Repository) GetCustomer(ctx context.Context, id string) (*CustomerRef, error) {
	var c CustomerRef
	err := r.pool.QueryRow(ctx, `SELECT id, name, active FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetUser loads a staff user reference.
func (r *Repository) GetUser(ctx context.Context, id string) (*UserRef, error) {
	var u UserRef
	err := r.pool.QueryRow(ctx, `SELECT id, name, role, active FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Role, &u.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
