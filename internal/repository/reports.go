package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportsRepository runs the reporting functions and passes their rows through untouched.
type ReportsRepository struct {
	pool *pgxpool.Pool
}

// TopRated lists rated movies by descending average.
func (r *ReportsRepository) TopRated(ctx context.Context) ([]map[string]any, error) {
	return r.collect(ctx, `SELECT * FROM report_top_rated_movies()`)
}

// ByGenre lists the movies of one genre.
func (r *ReportsRepository) ByGenre(ctx context.Context, genreID int64) ([]map[string]any, error) {
	return r.collect(ctx, `SELECT * FROM report_movies_by_genre($1)`, genreID)
}

func (r *ReportsRepository) collect(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	return orEmpty(items), nil
}
