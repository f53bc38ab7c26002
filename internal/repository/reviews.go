package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinemateca/internal/domain"
)

// ReviewsRepository persists reviews and keeps movies.average_rating in step with them.
type ReviewsRepository struct {
	pool *pgxpool.Pool
}

// ReviewCreateParams bundles the fields required to create a review.
type ReviewCreateParams struct {
	MovieID int64
	UserID  int64
	Title   string
	Body    string
	Score   int
}

// ReviewPatch holds optional replacements; nil fields keep the stored value.
type ReviewPatch struct {
	Title *string
	Body  *string
	Score *int
}

const reviewSelect = `
    SELECT rv.id, rv.movie_id, rv.user_id, rv.title, rv.body, rv.score, rv.created_at, rv.status,
        u.username, u.email,
        m.title, m.synopsis, m.release_year
    FROM reviews rv
    JOIN users u ON u.id = rv.user_id
    JOIN movies m ON m.id = rv.movie_id
`

// Create inserts a review and recomputes the movie average in the same transaction.
func (r *ReviewsRepository) Create(ctx context.Context, params ReviewCreateParams) (domain.Review, domain.RatingSummary, error) {
	var (
		review  domain.Review
		summary domain.RatingSummary
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `
            INSERT INTO reviews (movie_id, user_id, title, body, score)
            VALUES ($1,$2,$3,$4,$5)
            RETURNING id
        `, params.MovieID, params.UserID, params.Title, params.Body, params.Score).Scan(&id)
		if err != nil {
			return err
		}
		if summary, err = refreshAverage(ctx, tx, params.MovieID); err != nil {
			return err
		}
		review, err = scanReview(tx.QueryRow(ctx, reviewSelect+` WHERE rv.id = $1`, id))
		return err
	})
	if err != nil {
		return domain.Review{}, domain.RatingSummary{}, classify(err)
	}
	return review, summary, nil
}

// GetByID fetches a review with its author and movie.
func (r *ReviewsRepository) GetByID(ctx context.Context, id int64) (domain.Review, error) {
	review, err := scanReview(r.pool.QueryRow(ctx, reviewSelect+` WHERE rv.id = $1`, id))
	if err != nil {
		return domain.Review{}, classify(err)
	}
	return review, nil
}

// ListByMovie returns every review of a movie, newest first. An empty slice is not an error.
func (r *ReviewsRepository) ListByMovie(ctx context.Context, movieID int64) ([]domain.Review, error) {
	return listReviews(ctx, r.pool, `rv.movie_id = $1`, movieID)
}

// ListByUser returns every review written by a user, newest first.
func (r *ReviewsRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Review, error) {
	return listReviews(ctx, r.pool, `rv.user_id = $1`, userID)
}

// Update applies a partial update and recomputes the movie average.
func (r *ReviewsRepository) Update(ctx context.Context, id int64, patch ReviewPatch) (domain.Review, domain.RatingSummary, error) {
	var (
		review  domain.Review
		summary domain.RatingSummary
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var movieID int64
		err := tx.QueryRow(ctx, `
            UPDATE reviews
            SET title = COALESCE($2, title),
                body = COALESCE($3, body),
                score = COALESCE($4, score)
            WHERE id = $1
            RETURNING movie_id
        `, id, patch.Title, patch.Body, patch.Score).Scan(&movieID)
		if err != nil {
			return err
		}
		if summary, err = refreshAverage(ctx, tx, movieID); err != nil {
			return err
		}
		review, err = scanReview(tx.QueryRow(ctx, reviewSelect+` WHERE rv.id = $1`, id))
		return err
	})
	if err != nil {
		return domain.Review{}, domain.RatingSummary{}, classify(err)
	}
	return review, summary, nil
}

// Delete removes a review and recomputes the movie average.
func (r *ReviewsRepository) Delete(ctx context.Context, id int64) (domain.RatingSummary, error) {
	var summary domain.RatingSummary
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var movieID int64
		if err := tx.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING movie_id`, id).Scan(&movieID); err != nil {
			return err
		}
		var err error
		summary, err = refreshAverage(ctx, tx, movieID)
		return err
	})
	if err != nil {
		return domain.RatingSummary{}, classify(err)
	}
	return summary, nil
}

// SetStatus moderates a review and recomputes the movie average, which skips rejected reviews.
func (r *ReviewsRepository) SetStatus(ctx context.Context, id int64, status domain.ReviewStatus) (domain.Review, domain.RatingSummary, error) {
	if !status.Valid() {
		return domain.Review{}, domain.RatingSummary{}, fmt.Errorf("%w: status %q", ErrInvalidReference, status)
	}
	var (
		review  domain.Review
		summary domain.RatingSummary
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var movieID int64
		err := tx.QueryRow(ctx, `UPDATE reviews SET status = $2 WHERE id = $1 RETURNING movie_id`, id, string(status)).Scan(&movieID)
		if err != nil {
			return err
		}
		if summary, err = refreshAverage(ctx, tx, movieID); err != nil {
			return err
		}
		review, err = scanReview(tx.QueryRow(ctx, reviewSelect+` WHERE rv.id = $1`, id))
		return err
	})
	if err != nil {
		return domain.Review{}, domain.RatingSummary{}, classify(err)
	}
	return review, summary, nil
}

// RefreshAverage recomputes a movie's average on demand.
func (r *ReviewsRepository) RefreshAverage(ctx context.Context, movieID int64) (domain.RatingSummary, error) {
	return refreshAverage(ctx, r.pool, movieID)
}

func refreshAverage(ctx context.Context, q querier, movieID int64) (domain.RatingSummary, error) {
	var s domain.RatingSummary
	err := q.QueryRow(ctx,
		`SELECT movie_id, average_rating::float8, review_count FROM refresh_movie_average($1)`, movieID,
	).Scan(&s.MovieID, &s.Average, &s.Count)
	if err != nil {
		return domain.RatingSummary{}, classify(err)
	}
	return s, nil
}

func listReviews(ctx context.Context, q querier, where string, args ...any) ([]domain.Review, error) {
	rows, err := q.Query(ctx, reviewSelect+` WHERE `+where+` ORDER BY rv.created_at DESC, rv.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, review)
	}
	return items, rows.Err()
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var (
		rv     domain.Review
		status string
		author domain.UserRef
		movie  domain.MovieRef
	)
	err := row.Scan(
		&rv.ID, &rv.MovieID, &rv.UserID, &rv.Title, &rv.Body, &rv.Score, &rv.CreatedAt, &status,
		&author.Username, &author.Email,
		&movie.Title, &movie.Synopsis, &movie.ReleaseYear,
	)
	if err != nil {
		return domain.Review{}, err
	}
	rv.Status = domain.ReviewStatus(status)
	author.ID = rv.UserID
	movie.ID = rv.MovieID
	rv.Author = &author
	rv.Movie = &movie
	return rv, nil
}
