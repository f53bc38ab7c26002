package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinemateca/internal/domain"
)

// PersonParams bundles the fields required to create a director or actor.
type PersonParams struct {
	FirstName string
	LastName  string
	BirthDate *time.Time
}

// PersonPatch holds optional replacements; nil fields keep the stored value.
type PersonPatch struct {
	FirstName *string
	LastName  *string
	BirthDate *time.Time
}

type personRow struct {
	ID        int64
	FirstName string
	LastName  string
	BirthDate *time.Time
}

const personColumns = `id, first_name, last_name, birth_date`

// peopleTable implements the shared CRUD for directors and actors, which have the same shape
// and differ only in how movies reference them.
type peopleTable struct {
	pool  *pgxpool.Pool
	table string
	usage string
}

func (t peopleTable) list(ctx context.Context) ([]personRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY last_name ASC, first_name ASC, id ASC`, personColumns, t.table)
	rows, err := t.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]personRow, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (t peopleTable) get(ctx context.Context, id int64) (personRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, personColumns, t.table)
	p, err := scanPerson(t.pool.QueryRow(ctx, query, id))
	if err != nil {
		return personRow{}, classify(err)
	}
	return p, nil
}

func (t peopleTable) create(ctx context.Context, params PersonParams) (personRow, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (first_name, last_name, birth_date)
        VALUES ($1,$2,$3)
        RETURNING %s
    `, t.table, personColumns)
	p, err := scanPerson(t.pool.QueryRow(ctx, query, params.FirstName, params.LastName, params.BirthDate))
	if err != nil {
		return personRow{}, classify(err)
	}
	return p, nil
}

func (t peopleTable) update(ctx context.Context, id int64, patch PersonPatch) (personRow, error) {
	query := fmt.Sprintf(`
        UPDATE %s
        SET first_name = COALESCE($2, first_name),
            last_name = COALESCE($3, last_name),
            birth_date = COALESCE($4, birth_date)
        WHERE id = $1
        RETURNING %s
    `, t.table, personColumns)
	p, err := scanPerson(t.pool.QueryRow(ctx, query, id, patch.FirstName, patch.LastName, patch.BirthDate))
	if err != nil {
		return personRow{}, classify(err)
	}
	return p, nil
}

// delete refuses with ErrInUse while any movie still references the person.
func (t peopleTable) delete(ctx context.Context, id int64) error {
	err := pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, t.table, id); err != nil {
			return err
		}
		var refs int64
		if err := tx.QueryRow(ctx, t.usage, id).Scan(&refs); err != nil {
			return err
		}
		if refs > 0 {
			return ErrInUse
		}
		_, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.table), id)
		return err
	})
	return classifyDelete(err)
}

func scanPerson(row pgx.Row) (personRow, error) {
	var p personRow
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.BirthDate)
	return p, err
}

// DirectorsRepository provides persistence helpers for directors.
type DirectorsRepository struct {
	people peopleTable
}

// List returns every director ordered by last name.
func (r *DirectorsRepository) List(ctx context.Context) ([]domain.Director, error) {
	rows, err := r.people.list(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Director, 0, len(rows))
	for _, p := range rows {
		out = append(out, toDirector(p))
	}
	return out, nil
}

// GetByID fetches a director with the movies they directed.
func (r *DirectorsRepository) GetByID(ctx context.Context, id int64) (domain.Director, error) {
	p, err := r.people.get(ctx, id)
	if err != nil {
		return domain.Director{}, err
	}
	director := toDirector(p)

	rows, err := r.people.pool.Query(ctx, `
        SELECT id, title, synopsis, release_year
        FROM movies
        WHERE director_id = $1
        ORDER BY release_year ASC, title ASC
    `, id)
	if err != nil {
		return domain.Director{}, err
	}
	defer rows.Close()

	director.Movies = make([]domain.MovieRef, 0)
	for rows.Next() {
		var m domain.MovieRef
		if err := rows.Scan(&m.ID, &m.Title, &m.Synopsis, &m.ReleaseYear); err != nil {
			return domain.Director{}, err
		}
		director.Movies = append(director.Movies, m)
	}
	return director, rows.Err()
}

// Create inserts a new director.
func (r *DirectorsRepository) Create(ctx context.Context, params PersonParams) (domain.Director, error) {
	p, err := r.people.create(ctx, params)
	if err != nil {
		return domain.Director{}, err
	}
	return toDirector(p), nil
}

// Update applies a partial update.
func (r *DirectorsRepository) Update(ctx context.Context, id int64, patch PersonPatch) (domain.Director, error) {
	p, err := r.people.update(ctx, id, patch)
	if err != nil {
		return domain.Director{}, err
	}
	return toDirector(p), nil
}

// Delete removes a director with no movies; ErrInUse otherwise.
func (r *DirectorsRepository) Delete(ctx context.Context, id int64) error {
	return r.people.delete(ctx, id)
}

func toDirector(p personRow) domain.Director {
	return domain.Director{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, BirthDate: p.BirthDate}
}

// ActorsRepository provides persistence helpers for actors.
type ActorsRepository struct {
	people peopleTable
}

// List returns every actor ordered by last name.
func (r *ActorsRepository) List(ctx context.Context) ([]domain.Actor, error) {
	rows, err := r.people.list(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Actor, 0, len(rows))
	for _, p := range rows {
		out = append(out, toActor(p))
	}
	return out, nil
}

// GetByID fetches an actor with their filmography and character names.
func (r *ActorsRepository) GetByID(ctx context.Context, id int64) (domain.Actor, error) {
	p, err := r.people.get(ctx, id)
	if err != nil {
		return domain.Actor{}, err
	}
	actor := toActor(p)

	rows, err := r.people.pool.Query(ctx, `
        SELECT m.id, m.title, m.synopsis, m.release_year, ma.character_name
        FROM movie_actors ma
        JOIN movies m ON m.id = ma.movie_id
        WHERE ma.actor_id = $1
        ORDER BY m.release_year ASC, m.title ASC
    `, id)
	if err != nil {
		return domain.Actor{}, err
	}
	defer rows.Close()

	actor.Movies = make([]domain.MovieRef, 0)
	for rows.Next() {
		var m domain.MovieRef
		if err := rows.Scan(&m.ID, &m.Title, &m.Synopsis, &m.ReleaseYear, &m.CharacterName); err != nil {
			return domain.Actor{}, err
		}
		actor.Movies = append(actor.Movies, m)
	}
	return actor, rows.Err()
}

// Create inserts a new actor.
func (r *ActorsRepository) Create(ctx context.Context, params PersonParams) (domain.Actor, error) {
	p, err := r.people.create(ctx, params)
	if err != nil {
		return domain.Actor{}, err
	}
	return toActor(p), nil
}

// Update applies a partial update.
func (r *ActorsRepository) Update(ctx context.Context, id int64, patch PersonPatch) (domain.Actor, error) {
	p, err := r.people.update(ctx, id, patch)
	if err != nil {
		return domain.Actor{}, err
	}
	return toActor(p), nil
}

// Delete removes an actor cast in no movie; ErrInUse otherwise.
func (r *ActorsRepository) Delete(ctx context.Context, id int64) error {
	return r.people.delete(ctx, id)
}

func toActor(p personRow) domain.Actor {
	return domain.Actor{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, BirthDate: p.BirthDate}
}
