package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinemateca/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a unique constraint would be violated.
	ErrConflict = errors.New("repository: conflict")
	// ErrInvalidReference indicates a foreign key or check constraint rejected the write.
	ErrInvalidReference = errors.New("repository: invalid reference")
	// ErrInUse indicates the entity is still referenced and cannot be deleted.
	ErrInUse = errors.New("repository: entity in use")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Users     *UsersRepository
	Directors *DirectorsRepository
	Actors    *ActorsRepository
	Genres    *GenresRepository
	Movies    *MoviesRepository
	Reviews   *ReviewsRepository
	Reports   *ReportsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Users:     &UsersRepository{pool: pool},
		Directors: &DirectorsRepository{people: peopleTable{pool: pool, table: "directors", usage: "SELECT COUNT(*) FROM movies WHERE director_id = $1"}},
		Actors:    &ActorsRepository{people: peopleTable{pool: pool, table: "actors", usage: "SELECT COUNT(*) FROM movie_actors WHERE actor_id = $1"}},
		Genres:    &GenresRepository{pool: pool},
		Movies:    &MoviesRepository{pool: pool},
		Reviews:   &ReviewsRepository{pool: pool},
		Reports:   &ReportsRepository{pool: pool},
	}
}

// classify maps driver errors onto the repository sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case pgForeignKeyViolation, pgCheckViolation:
			return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.ConstraintName)
		case pgStringTooLong:
			return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.Message)
		}
	}
	return err
}

// classifyDelete treats a foreign key violation raised by DELETE as "still referenced".
func classifyDelete(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%w: %s", ErrInUse, pgErr.ConstraintName)
	}
	return classify(err)
}

// lockRow takes a row lock on table.id inside tx, returning ErrNotFound when absent.
func lockRow(ctx context.Context, tx pgx.Tx, table string, id int64) error {
	var found int64
	err := tx.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, table), id).Scan(&found)
	return classify(err)
}
