package domain

import (
	"math"
	"time"
)

const (
	MinRating           = 1
	MaxRating           = 10
	MaxReviewTitleLen   = 100
	MaxReviewContentLen = 2000
	MaxReplyContentLen  = 1000
)

// ReviewState is the lifecycle of a review. Active moves to Edited on the
// first owner edit and never back; Deleted is terminal.
type ReviewState string

const (
	ReviewActive  ReviewState = "active"
	ReviewEdited  ReviewState = "edited"
	ReviewDeleted ReviewState = "deleted"
)

type Vote struct {
	UserID    string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

type Reply struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Review struct {
	ID         string      `json:"id"`
	UserID     string      `json:"userId"`
	MovieID    string      `json:"movieId"`
	Rating     int         `json:"rating"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Spoiler    bool        `json:"spoiler"`
	State      ReviewState `json:"state"`
	EditedAt   *time.Time  `json:"editedAt,omitempty"`
	DeletedAt  *time.Time  `json:"-"`
	Helpful    []Vote      `json:"helpful"`
	NotHelpful []Vote      `json:"notHelpful"`
	Replies    []Reply     `json:"replies"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Live reports whether the review is visible to normal reads.
func (r Review) Live() bool {
	return r.State != ReviewDeleted
}

func (r Review) IsEdited() bool {
	return r.EditedAt != nil
}

// Reactions are derived on read and never stored.
type Reactions struct {
	HelpfulCount    int `json:"helpfulCount"`
	NotHelpfulCount int `json:"notHelpfulCount"`
	TotalReactions  int `json:"totalReactions"`
}

func (r Review) Reactions() Reactions {
	h, n := len(r.Helpful), len(r.NotHelpful)
	return Reactions{HelpfulCount: h, NotHelpfulCount: n, TotalReactions: h + n}
}

// ReviewPatch carries an owner's partial edit. Nil fields are unchanged.
type ReviewPatch struct {
	Rating  *int
	Title   *string
	Content *string
	Spoiler *bool
}

func (p ReviewPatch) Empty() bool {
	return p.Rating == nil && p.Title == nil && p.Content == nil && p.Spoiler == nil
}

// ApplyEdit applies p and moves the review to Edited. It reports false when
// the review is deleted.
func (r *Review) ApplyEdit(p ReviewPatch, at time.Time) bool {
	if !r.Live() {
		return false
	}
	if p.Rating != nil {
		r.Rating = *p.Rating
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Content != nil {
		r.Content = *p.Content
	}
	if p.Spoiler != nil {
		r.Spoiler = *p.Spoiler
	}
	r.State = ReviewEdited
	r.EditedAt = &at
	r.UpdatedAt = at
	return true
}

// FindReply returns the index of replyID or -1.
func (r Review) FindReply(replyID string) int {
	for i, reply := range r.Replies {
		if reply.ID == replyID {
			return i
		}
	}
	return -1
}

// RatingStats is the read-side aggregate over a movie's live reviews.
type RatingStats struct {
	AverageRating      float64 `json:"averageRating"`
	TotalReviews       int     `json:"totalReviews"`
	RatingDistribution []int   `json:"ratingDistribution"`
}

// AggregateRatings averages ratings and rounds half-up to one decimal.
// An empty input yields a zero average.
func AggregateRatings(ratings []int) RatingStats {
	stats := RatingStats{RatingDistribution: ratings}
	if stats.RatingDistribution == nil {
		stats.RatingDistribution = []int{}
	}
	if len(ratings) == 0 {
		return stats
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	stats.TotalReviews = len(ratings)
	stats.AverageRating = RoundRating(float64(sum) / float64(len(ratings)))
	return stats
}

// RoundRating rounds v half-up to one decimal place.
func RoundRating(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// ReviewSortField names the orderings offered for review lists.
type ReviewSortField string

const (
	ReviewSortCreated ReviewSortField = "createdAt"
	ReviewSortHelpful ReviewSortField = "helpful"
	ReviewSortRating  ReviewSortField = "rating"
)

func ParseReviewSortField(raw string) (ReviewSortField, bool) {
	switch raw {
	case "", "createdAt", "created_at":
		return ReviewSortCreated, true
	case "helpful":
		return ReviewSortHelpful, true
	case "rating":
		return ReviewSortRating, true
	}
	return "", false
}
