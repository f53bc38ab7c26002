package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinemateca/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    m.id,
    m.title,
    m.synopsis,
    m.release_year,
    m.director_id,
    m.poster_url,
    m.trailer_url,
    m.published_at,
    m.status,
    m.average_rating::float8
`

const movieDetailSelect = `
    SELECT ` + movieColumns + `,
        d.id, d.first_name, d.last_name, d.birth_date
    FROM movies m
    LEFT JOIN directors d ON d.id = m.director_id
`

// MovieCreateParams bundles the fields required to create a movie and its associations.
type MovieCreateParams struct {
	Title       string
	Synopsis    *string
	ReleaseYear int
	DirectorID  *int64
	PosterURL   *string
	TrailerURL  *string
	Status      domain.MovieStatus
	Cast        []domain.CastAssignment
	GenreIDs    []int64
}

// MoviePatch holds optional replacements; nil fields keep the stored value.
type MoviePatch struct {
	Title       *string
	Synopsis    *string
	ReleaseYear *int
	DirectorID  *int64
	PosterURL   *string
	TrailerURL  *string
	Status      *domain.MovieStatus
}

// MovieListFilters narrows a listing; a nil Status lists every movie.
type MovieListFilters struct {
	Status *domain.MovieStatus
}

// Create inserts the movie row, its cast and its genres in one transaction.
// Any failing association rolls the movie back.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.MovieDetail, error) {
	status := params.Status
	if status == "" {
		status = domain.MoviePublished
	}
	if !status.Valid() {
		return domain.MovieDetail{}, fmt.Errorf("%w: status %q", ErrInvalidReference, status)
	}

	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO movies (title, synopsis, release_year, director_id, poster_url, trailer_url, status, published_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7::varchar, CASE WHEN $7::varchar = 'Publicado' THEN now() END)
            RETURNING id
        `, params.Title, params.Synopsis, params.ReleaseYear, params.DirectorID, params.PosterURL, params.TrailerURL, string(status)).Scan(&id)
		if err != nil {
			return err
		}
		if err := insertCast(ctx, tx, id, params.Cast); err != nil {
			return err
		}
		return insertGenres(ctx, tx, id, params.GenreIDs)
	})
	if err != nil {
		return domain.MovieDetail{}, classify(err)
	}
	return r.GetDetail(ctx, id, false)
}

// GetByID fetches a movie row without associations.
func (r *MoviesRepository) GetByID(ctx context.Context, id int64) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies m WHERE m.id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Movie{}, classify(err)
	}
	return movie, nil
}

// GetDetail fetches a movie with director, genres and cast. When withReviews is set, the
// published reviews are attached too, newest first.
func (r *MoviesRepository) GetDetail(ctx context.Context, id int64, withReviews bool) (domain.MovieDetail, error) {
	detail, err := scanMovieDetail(r.pool.QueryRow(ctx, movieDetailSelect+` WHERE m.id = $1`, id))
	if err != nil {
		return domain.MovieDetail{}, classify(err)
	}

	ids := []int64{id}
	genres, err := loadGenres(ctx, r.pool, ids)
	if err != nil {
		return domain.MovieDetail{}, err
	}
	cast, err := loadCast(ctx, r.pool, ids)
	if err != nil {
		return domain.MovieDetail{}, err
	}
	detail.Genres = orEmpty(genres[id])
	detail.Cast = orEmpty(cast[id])

	if withReviews {
		reviews, err := listReviews(ctx, r.pool, `rv.movie_id = $1 AND rv.status = $2`, id, string(domain.ReviewPublished))
		if err != nil {
			return domain.MovieDetail{}, err
		}
		detail.Reviews = reviews
	}
	return detail, nil
}

// List returns movies ordered by id with director, genres and cast batch-loaded.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) ([]domain.MovieDetail, error) {
	query := movieDetailSelect
	args := make([]any, 0, 1)
	if filters.Status != nil {
		query += ` WHERE m.status = $1`
		args = append(args, string(*filters.Status))
	}
	query += ` ORDER BY m.id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MovieDetail, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		detail, err := scanMovieDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, detail)
		ids = append(ids, detail.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	genres, err := loadGenres(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	cast, err := loadCast(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Genres = orEmpty(genres[items[i].ID])
		items[i].Cast = orEmpty(cast[items[i].ID])
	}
	return items, nil
}

// Update applies a partial update. Switching to Publicado stamps published_at when unset.
func (r *MoviesRepository) Update(ctx context.Context, id int64, patch MoviePatch) (domain.Movie, error) {
	var status *string
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return domain.Movie{}, fmt.Errorf("%w: status %q", ErrInvalidReference, *patch.Status)
		}
		s := string(*patch.Status)
		status = &s
	}

	query := fmt.Sprintf(`
        UPDATE movies AS m
        SET title = COALESCE($2, m.title),
            synopsis = COALESCE($3, m.synopsis),
            release_year = COALESCE($4, m.release_year),
            director_id = COALESCE($5, m.director_id),
            poster_url = COALESCE($6, m.poster_url),
            trailer_url = COALESCE($7, m.trailer_url),
            status = COALESCE($8, m.status),
            published_at = CASE
                WHEN COALESCE($8, m.status) = 'Publicado' AND m.published_at IS NULL THEN now()
                ELSE m.published_at
            END
        WHERE m.id = $1
        RETURNING %s
    `, movieColumns)

	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id,
		patch.Title, patch.Synopsis, patch.ReleaseYear, patch.DirectorID,
		patch.PosterURL, patch.TrailerURL, status,
	))
	if err != nil {
		return domain.Movie{}, classify(err)
	}
	return movie, nil
}

// Delete removes a movie; cast, genre links and reviews cascade.
func (r *MoviesRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return classifyDelete(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Cast lists the actors of a movie with the characters they play.
func (r *MoviesRepository) Cast(ctx context.Context, id int64) ([]domain.CastMember, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	cast, err := loadCast(ctx, r.pool, []int64{id})
	if err != nil {
		return nil, err
	}
	return orEmpty(cast[id]), nil
}

// ReplaceCast swaps the full cast of a movie inside one transaction.
func (r *MoviesRepository) ReplaceCast(ctx context.Context, id int64, cast []domain.CastAssignment) ([]domain.CastMember, error) {
	var out []domain.CastMember
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "movies", id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM movie_actors WHERE movie_id = $1`, id); err != nil {
			return err
		}
		if err := insertCast(ctx, tx, id, cast); err != nil {
			return err
		}
		loaded, err := loadCast(ctx, tx, []int64{id})
		if err != nil {
			return err
		}
		out = orEmpty(loaded[id])
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Genres lists the genres of a movie.
func (r *MoviesRepository) Genres(ctx context.Context, id int64) ([]domain.Genre, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	genres, err := loadGenres(ctx, r.pool, []int64{id})
	if err != nil {
		return nil, err
	}
	return orEmpty(genres[id]), nil
}

// ReplaceGenres swaps the genre set of a movie inside one transaction.
func (r *MoviesRepository) ReplaceGenres(ctx context.Context, id int64, genreIDs []int64) ([]domain.Genre, error) {
	var out []domain.Genre
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "movies", id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM movie_genres WHERE movie_id = $1`, id); err != nil {
			return err
		}
		if err := insertGenres(ctx, tx, id, genreIDs); err != nil {
			return err
		}
		loaded, err := loadGenres(ctx, tx, []int64{id})
		if err != nil {
			return err
		}
		out = orEmpty(loaded[id])
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (r *MoviesRepository) exists(ctx context.Context, id int64) error {
	var found bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM movies WHERE id = $1)`, id).Scan(&found); err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func insertCast(ctx context.Context, q querier, movieID int64, cast []domain.CastAssignment) error {
	if len(cast) == 0 {
		return nil
	}
	actorIDs := make([]int64, len(cast))
	names := make([]*string, len(cast))
	for i, c := range cast {
		actorIDs[i] = c.ActorID
		names[i] = c.CharacterName
	}
	_, err := q.Exec(ctx, `
        INSERT INTO movie_actors (movie_id, actor_id, character_name)
        SELECT $1, a, c FROM unnest($2::bigint[], $3::text[]) AS t(a, c)
    `, movieID, actorIDs, names)
	return err
}

// insertGenres ignores repeated ids in the input.
func insertGenres(ctx context.Context, q querier, movieID int64, genreIDs []int64) error {
	if len(genreIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
        INSERT INTO movie_genres (movie_id, genre_id)
        SELECT DISTINCT $1::bigint, g FROM unnest($2::bigint[]) AS t(g)
    `, movieID, genreIDs)
	return err
}

func loadGenres(ctx context.Context, q querier, movieIDs []int64) (map[int64][]domain.Genre, error) {
	rows, err := q.Query(ctx, `
        SELECT mg.movie_id, g.id, g.name
        FROM movie_genres mg
        JOIN genres g ON g.id = mg.genre_id
        WHERE mg.movie_id = ANY($1)
        ORDER BY g.name ASC
    `, movieIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.Genre, len(movieIDs))
	for rows.Next() {
		var (
			movieID int64
			g       domain.Genre
		)
		if err := rows.Scan(&movieID, &g.ID, &g.Name); err != nil {
			return nil, err
		}
		out[movieID] = append(out[movieID], g)
	}
	return out, rows.Err()
}

func loadCast(ctx context.Context, q querier, movieIDs []int64) (map[int64][]domain.CastMember, error) {
	rows, err := q.Query(ctx, `
        SELECT ma.movie_id, a.id, a.first_name, a.last_name, ma.character_name
        FROM movie_actors ma
        JOIN actors a ON a.id = ma.actor_id
        WHERE ma.movie_id = ANY($1)
        ORDER BY a.last_name ASC, a.first_name ASC
    `, movieIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.CastMember, len(movieIDs))
	for rows.Next() {
		var (
			movieID int64
			c       domain.CastMember
		)
		if err := rows.Scan(&movieID, &c.ActorID, &c.FirstName, &c.LastName, &c.CharacterName); err != nil {
			return nil, err
		}
		out[movieID] = append(out[movieID], c)
	}
	return out, rows.Err()
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var (
		movie  domain.Movie
		status string
	)
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Synopsis,
		&movie.ReleaseYear,
		&movie.DirectorID,
		&movie.PosterURL,
		&movie.TrailerURL,
		&movie.PublishedAt,
		&status,
		&movie.AverageRating,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	movie.Status = domain.MovieStatus(status)
	return movie, nil
}

func scanMovieDetail(row pgx.Row) (domain.MovieDetail, error) {
	var (
		detail     domain.MovieDetail
		status     string
		dirID      *int64
		dirFirst   *string
		dirLast    *string
		dirBirthAt *time.Time
	)
	err := row.Scan(
		&detail.ID,
		&detail.Title,
		&detail.Synopsis,
		&detail.ReleaseYear,
		&detail.DirectorID,
		&detail.PosterURL,
		&detail.TrailerURL,
		&detail.PublishedAt,
		&status,
		&detail.AverageRating,
		&dirID,
		&dirFirst,
		&dirLast,
		&dirBirthAt,
	)
	if err != nil {
		return domain.MovieDetail{}, err
	}
	detail.Status = domain.MovieStatus(status)
	if dirID != nil {
		detail.Director = &domain.Director{ID: *dirID, FirstName: deref(dirFirst), LastName: deref(dirLast), BirthDate: dirBirthAt}
	}
	return detail, nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
