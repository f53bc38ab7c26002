package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinemateca/internal/domain"
)

// GenresRepository provides persistence helpers for genres.
type GenresRepository struct {
	pool *pgxpool.Pool
}

// List returns every genre ordered by name.
func (r *GenresRepository) List(ctx context.Context) ([]domain.Genre, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM genres ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return collectGenres(rows)
}

// GetByID fetches a genre by its identifier.
func (r *GenresRepository) GetByID(ctx context.Context, id int64) (domain.Genre, error) {
	var g domain.Genre
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM genres WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	if err != nil {
		return domain.Genre{}, classify(err)
	}
	return g, nil
}

// Create inserts a genre; a duplicate name yields ErrConflict.
func (r *GenresRepository) Create(ctx context.Context, name string) (domain.Genre, error) {
	var g domain.Genre
	err := r.pool.QueryRow(ctx, `INSERT INTO genres (name) VALUES ($1) RETURNING id, name`, name).Scan(&g.ID, &g.Name)
	if err != nil {
		return domain.Genre{}, classify(err)
	}
	return g, nil
}

// Rename changes a genre's name.
func (r *GenresRepository) Rename(ctx context.Context, id int64, name string) (domain.Genre, error) {
	var g domain.Genre
	err := r.pool.QueryRow(ctx, `UPDATE genres SET name = $2 WHERE id = $1 RETURNING id, name`, id, name).Scan(&g.ID, &g.Name)
	if err != nil {
		return domain.Genre{}, classify(err)
	}
	return g, nil
}

// Delete removes a genre and, through the cascade, its movie associations.
func (r *GenresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM genres WHERE id = $1`, id)
	if err != nil {
		return classifyDelete(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectGenres(rows pgx.Rows) ([]domain.Genre, error) {
	defer rows.Close()
	items := make([]domain.Genre, 0)
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}
