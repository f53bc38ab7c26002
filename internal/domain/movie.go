package domain

import "time"

// MovieStatus is the publication state of a movie.
type MovieStatus string

const (
	MovieDraft     MovieStatus = "Borrador"
	MoviePublished MovieStatus = "Publicado"
)

// Valid reports whether s is a known movie status.
func (s MovieStatus) Valid() bool {
	return s == MovieDraft || s == MoviePublished
}

// Movie represents the canonical movie entity in the database/service.
type Movie struct {
	ID            int64
	Title         string
	Synopsis      *string
	ReleaseYear   int
	DirectorID    *int64
	PosterURL     *string
	TrailerURL    *string
	PublishedAt   *time.Time
	Status        MovieStatus
	AverageRating *float64
}

// CastMember is an actor appearing in a movie, with the character played.
type CastMember struct {
	ActorID       int64
	FirstName     string
	LastName      string
	CharacterName *string
}

// CastAssignment links an actor to a movie when creating or replacing a cast.
type CastAssignment struct {
	ActorID       int64
	CharacterName *string
}

// MovieDetail is a movie with its related entities eagerly loaded.
type MovieDetail struct {
	Movie
	Director *Director
	Genres   []Genre
	Cast     []CastMember
	Reviews  []Review
}

// MovieRef is the short form of a movie used inside other aggregates.
type MovieRef struct {
	ID            int64
	Title         string
	Synopsis      *string
	ReleaseYear   int
	CharacterName *string
}

// RatingSummary is the result of recomputing a movie's average score.
type RatingSummary struct {
	MovieID int64
	Average *float64
	Count   int64
}
