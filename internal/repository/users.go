package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinemateca/internal/domain"
)

// UsersRepository provides persistence helpers for user accounts.
type UsersRepository struct {
	pool *pgxpool.Pool
}

// UserCreateParams bundles the fields required to register an account.
type UserCreateParams struct {
	Username     string
	Email        string
	PasswordHash string
	RoleName     string
}

const userSelect = `
    SELECT u.id, u.username, u.email, u.password_hash, r.name, u.registered_at, u.active
    FROM users u
    JOIN roles r ON r.id = u.role_id
`

// Create inserts a user with the role looked up by name.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
        INSERT INTO users (username, email, password_hash, role_id)
        SELECT $1, $2, $3, id FROM roles WHERE name = $4
        RETURNING id
    `, params.Username, params.Email, params.PasswordHash, params.RoleName).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidReference, params.RoleName)
		}
		return domain.User{}, classify(err)
	}
	return r.GetByID(ctx, id)
}

// ExistsByUsernameOrEmail reports whether either identifier is already taken.
func (r *UsersRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&exists)
	return exists, err
}

// FindByLogin resolves a login identifier against username or e-mail.
func (r *UsersRepository) FindByLogin(ctx context.Context, identifier string) (domain.User, error) {
	row := r.pool.QueryRow(ctx, userSelect+` WHERE u.username = $1 OR u.email = $1 ORDER BY u.id LIMIT 1`, identifier)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, classify(err)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
	if err != nil {
		return domain.User{}, classify(err)
	}
	return u, nil
}

// List returns every user, newest registration first.
func (r *UsersRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, userSelect+` ORDER BY u.registered_at DESC, u.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

// ToggleActive flips the active flag and returns the updated account.
func (r *UsersRepository) ToggleActive(ctx context.Context, id int64) (domain.User, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET active = NOT active WHERE id = $1`, id)
	if err != nil {
		return domain.User{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.User{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// EnsureAdmin creates the administrator account unless the username or e-mail exists.
// It reports whether a row was inserted.
func (r *UsersRepository) EnsureAdmin(ctx context.Context, username, email, passwordHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
        INSERT INTO users (username, email, password_hash, role_id)
        SELECT $1, $2, $3, id FROM roles WHERE name = $4
        ON CONFLICT DO NOTHING
    `, username, email, passwordHash, domain.RoleAdmin)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleName, &u.RegisteredAt, &u.Active)
	return u, err
}
