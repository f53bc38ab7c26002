package domain

import "time"

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "Pendiente"
	ReviewPublished ReviewStatus = "Publicado"
	ReviewRejected  ReviewStatus = "Rechazado"
)

// Valid reports whether s is a known review status.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewPublished, ReviewRejected:
		return true
	}
	return false
}

// Review is a user's scored opinion about a movie. Score ranges 1..10.
type Review struct {
	ID        int64
	MovieID   int64
	UserID    int64
	Title     string
	Body      string
	Score     int
	CreatedAt time.Time
	Status    ReviewStatus
	Author    *UserRef
	Movie     *MovieRef
}
