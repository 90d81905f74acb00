package store

import (
	"context"
	"errors"
	"time"

	"cinelog/pkg/domain"
)

var (
	// ErrNotFound is returned by mutations whose target row or document is
	// missing (or, for reviews, soft-deleted).
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness rule would be broken.
	ErrConflict = errors.New("conflict")
)

// ReviewQuery selects live reviews by movie or by author.
type ReviewQuery struct {
	MovieID string
	UserID  string
	Sort    domain.ReviewSortField
	Order   domain.SortOrder
	Page    domain.Page
}

// Store defines persistence for movies, users and reviews. Every operation
// that touches more than one record runs as a single transaction.
type Store interface {
	// movies
	SaveMovies(ctx context.Context, movies []domain.Movie) error
	DeleteAllMovies(ctx context.Context) error
	SetMovieLinks(ctx context.Context, movieID string, similar, recommendations []string) error
	GetMovie(ctx context.Context, id string) (domain.Movie, bool, error)
	GetMoviesByIDs(ctx context.Context, ids []string) ([]domain.Movie, error)
	ListMovies(ctx context.Context, filter domain.MovieFilter, sort domain.MovieSortField, order domain.SortOrder, page domain.Page) ([]domain.Movie, int64, error)
	DistinctGenres(ctx context.Context) ([]string, error)
	SimilarMovies(ctx context.Context, movie domain.Movie, limit int) ([]domain.Movie, error)

	// users
	CreateUser(ctx context.Context, user domain.User) error
	UpdateUser(ctx context.Context, user domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	UserCount(ctx context.Context) (int64, error)

	// lists and follow graph
	GetUserLists(ctx context.Context, userID string) (domain.UserLists, error)
	ListFollowing(ctx context.Context, userID string, page domain.Page) ([]domain.User, int64, error)
	ListFollowers(ctx context.Context, userID string, page domain.Page) ([]domain.User, int64, error)
	ToggleFollow(ctx context.Context, followerID, followeeID string, at time.Time) (bool, error)
	ToggleMovieList(ctx context.Context, userID string, list domain.MovieList, movieID string, at time.Time) (bool, error)
	UpsertWatched(ctx context.Context, userID string, entry domain.WatchedEntry) (bool, error)
	ReconcileUserStats(ctx context.Context, userID string) (domain.UserStats, error)

	// reviews
	CreateReview(ctx context.Context, review domain.Review) error
	GetReview(ctx context.Context, id string) (domain.Review, bool, error)
	UpdateReview(ctx context.Context, review domain.Review) error
	DeleteReview(ctx context.Context, id string, at time.Time) error
	ListReviews(ctx context.Context, q ReviewQuery) ([]domain.Review, int64, error)
	MovieRatings(ctx context.Context, movieID string) ([]int, error)
	SetVote(ctx context.Context, reviewID, userID string, helpful bool, at time.Time) (domain.Reactions, error)
	RetractVote(ctx context.Context, reviewID, userID string) (domain.Reactions, error)
	AddReply(ctx context.Context, reviewID string, reply domain.Reply) error
	UpdateReply(ctx context.Context, reviewID, replyID, content string, at time.Time) error
	DeleteReply(ctx context.Context, reviewID, replyID string) error

	Close() error
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MongoStore)(nil)
)
