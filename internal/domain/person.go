package domain

import "time"

// Director is a person who directs movies.
type Director struct {
	ID        int64
	FirstName string
	LastName  string
	BirthDate *time.Time
	Movies    []MovieRef
}

// FullName joins first and last name.
func (d Director) FullName() string {
	return d.FirstName + " " + d.LastName
}

// Actor is a person appearing in movies.
type Actor struct {
	ID        int64
	FirstName string
	LastName  string
	BirthDate *time.Time
	Movies    []MovieRef
}

// Genre classifies movies.
type Genre struct {
	ID   int64
	Name string
}
