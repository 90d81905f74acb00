package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cinelog/internal/usertoken"
	"cinelog/pkg/domain"
	"cinelog/pkg/store"
)

const (
	movieA   = "0b8f2c9e-4d1a-4c7b-9e3f-1a2b3c4d5e01"
	movieB   = "0b8f2c9e-4d1a-4c7b-9e3f-1a2b3c4d5e02"
	movieC   = "0b8f2c9e-4d1a-4c7b-9e3f-1a2b3c4d5e03"
	absentID = "00000000-0000-4000-8000-000000000000"
)

type testEnv struct {
	app   *App
	store *store.GormStore
}

func newTestApp(t *testing.T, opts ...func(*Config)) testEnv {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	tokens, err := usertoken.NewManager(usertoken.Config{Secret: strings.Repeat("k", 32)})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	cfg := Config{Store: st, Tokens: tokens, PasswordCost: bcrypt.MinCost}
	for _, opt := range opts {
		opt(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return testEnv{app: a, store: st}
}

func (e testEnv) movie(t *testing.T, id, title string, year int, genres ...string) domain.Movie {
	t.Helper()
	m := domain.Movie{
		ID:          id,
		Title:       title,
		ReleaseDate: time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC),
		VoteAverage: 7.5,
		Popularity:  10,
	}
	for i, g := range genres {
		m.Genres = append(m.Genres, domain.Genre{ID: i + 1, Name: g})
	}
	m.Normalize()
	if err := e.store.SaveMovies(context.Background(), []domain.Movie{m}); err != nil {
		t.Fatalf("save movie: %v", err)
	}
	return m
}

func (e testEnv) user(t *testing.T, username string) domain.User {
	t.Helper()
	sess, err := e.app.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-pass",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	u, ok, err := e.store.GetUserByID(context.Background(), sess.User.ID)
	if err != nil || !ok {
		t.Fatalf("load %s: ok=%v err=%v", username, ok, err)
	}
	return u
}

func TestNewRequiresTokenManager(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without token manager")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	tokens, err := usertoken.NewManager(usertoken.Config{Secret: strings.Repeat("k", 32)})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	_, err = New(Config{Tokens: tokens, StoreDriver: "cassandra"})
	if err == nil || !strings.Contains(err.Error(), "unknown store driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestNewOpensSQLiteStore(t *testing.T) {
	tokens, err := usertoken.NewManager(usertoken.Config{Secret: strings.Repeat("k", 32)})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	a, err := New(Config{Tokens: tokens, StoreDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()
	if a.Store() == nil {
		t.Fatalf("expected store")
	}
}

func TestListMoviesDefaultsAndValidation(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.movie(t, movieA, "Inception", 2010, "Action")
	env.movie(t, movieB, "Amelie", 2001, "Comedy")

	list, err := env.app.ListMovies(ctx, MovieQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Movies) != 2 || list.Pagination.CurrentPage != 1 || list.Pagination.Total != 2 {
		t.Fatalf("unexpected list: %+v", list.Pagination)
	}
	if list.Pagination.HasNext || list.Pagination.HasPrev {
		t.Fatalf("single page should have no neighbours: %+v", list.Pagination)
	}

	list, err = env.app.ListMovies(ctx, MovieQuery{Year: 2010})
	if err != nil {
		t.Fatalf("list by year: %v", err)
	}
	if len(list.Movies) != 1 || list.Movies[0].ID != movieA {
		t.Fatalf("year filter returned %+v", list.Movies)
	}

	if _, err := env.app.ListMovies(ctx, MovieQuery{SortBy: "budget"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for sort field, got %v", err)
	}
	if _, err := env.app.ListMovies(ctx, MovieQuery{Order: "sideways"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for order, got %v", err)
	}
}

func TestPaginationClampsLimit(t *testing.T) {
	page := pageOf(0, 500, maxPageLimit)
	if page.Number != 1 || page.Limit != maxPageLimit {
		t.Fatalf("unexpected page %+v", page)
	}
	p := newPagination(domain.Page{Number: 2, Limit: 10}, 25)
	if p.TotalPages != 3 || !p.HasNext || !p.HasPrev {
		t.Fatalf("unexpected pagination %+v", p)
	}
}

func TestMovieDetailAssemblesReviewsStatsAndSimilar(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.movie(t, movieA, "Inception", 2010, "Action")
	env.movie(t, movieB, "Dunkirk", 2017, "Action")
	if err := env.store.SetMovieLinks(ctx, movieA, []string{movieB, "gone"}, nil); err != nil {
		t.Fatalf("links: %v", err)
	}
	alice := env.user(t, "alice")
	if _, err := env.app.CreateReview(ctx, alice, movieA, ReviewInput{Rating: 8, Content: "Layered."}); err != nil {
		t.Fatalf("review: %v", err)
	}

	detail, err := env.app.MovieDetail(ctx, movieA)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.Reviews) != 1 || detail.Reviews[0].User == nil || detail.Reviews[0].User.Username != "alice" {
		t.Fatalf("expected populated review, got %+v", detail.Reviews)
	}
	if detail.RatingStats.TotalReviews != 1 || detail.RatingStats.AverageRating != 8 {
		t.Fatalf("unexpected stats %+v", detail.RatingStats)
	}
	if len(detail.SimilarMovies) != 1 || detail.SimilarMovies[0].ID != movieB {
		t.Fatalf("expected dangling similar id to be dropped, got %+v", detail.SimilarMovies)
	}

	if _, err := env.app.MovieDetail(ctx, absentID); !errors.Is(err, ErrMovieNotFound) {
		t.Fatalf("expected movie not found, got %v", err)
	}
}

func TestRatingStatsAggregation(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.movie(t, movieA, "Inception", 2010, "Action")

	stats, err := env.app.RatingStats(ctx, movieA)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AverageRating != 0 || stats.TotalReviews != 0 || len(stats.RatingDistribution) != 0 {
		t.Fatalf("expected empty aggregate, got %+v", stats)
	}

	for i, rating := range []int{8, 9, 10} {
		u := env.user(t, "rater"+string(rune('a'+i)))
		if _, err := env.app.CreateReview(ctx, u, movieA, ReviewInput{Rating: rating, Content: "ok"}); err != nil {
			t.Fatalf("review %d: %v", rating, err)
		}
	}
	stats, err = env.app.RatingStats(ctx, movieA)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AverageRating != 9.0 || stats.TotalReviews != 3 {
		t.Fatalf("expected {9.0, 3}, got %+v", stats)
	}
}

func TestSimilarMoviesLimitAndMissingSource(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.movie(t, movieA, "Inception", 2010, "Action")
	env.movie(t, movieB, "Dunkirk", 2017, "Action")
	env.movie(t, movieC, "Amelie", 2001, "Comedy")

	similar, err := env.app.SimilarMovies(ctx, movieA, 0)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(similar) != 1 || similar[0].ID != movieB {
		t.Fatalf("unexpected similar %+v", similar)
	}
	if _, err := env.app.SimilarMovies(ctx, absentID, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMalformedIDsAreValidationErrors(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.movie(t, movieA, "Inception", 2010, "Action")
	alice := env.user(t, "alice")
	review, err := env.app.CreateReview(ctx, alice, movieA, ReviewInput{Rating: 7, Content: "good"})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}

	cases := []struct {
		name string
		call func() error
	}{
		{"movie detail", func() error { _, err := env.app.MovieDetail(ctx, "m1"); return err }},
		{"rating stats", func() error { _, err := env.app.RatingStats(ctx, "m1"); return err }},
		{"create review", func() error {
			_, err := env.app.CreateReview(ctx, alice, "m1", ReviewInput{Rating: 5, Content: "x"})
			return err
		}},
		{"get review", func() error { _, err := env.app.GetReview(ctx, "not-an-id"); return err }},
		{"vote", func() error { _, err := env.app.Vote(ctx, alice, "not-an-id", true); return err }},
		{"retract vote", func() error { _, err := env.app.RetractVote(ctx, alice, "not-an-id"); return err }},
		{"add reply", func() error { _, err := env.app.AddReply(ctx, alice, "not-an-id", "hi"); return err }},
		{"update reply", func() error {
			_, err := env.app.UpdateReply(ctx, alice, review.ID, "not-an-id", "hi")
			return err
		}},
		{"follow", func() error { _, err := env.app.ToggleFollow(ctx, alice, "xyz"); return err }},
		{"favorite", func() error { _, err := env.app.ToggleFavorite(ctx, alice, "xyz"); return err }},
		{"profile", func() error { _, err := env.app.GetProfile(ctx, "xyz"); return err }},
		{"followers", func() error { _, err := env.app.ListFollowers(ctx, "xyz", 1, 20); return err }},
		{"user reviews", func() error {
			_, err := env.app.ListUserReviews(ctx, "xyz", ReviewListQuery{})
			return err
		}},
		{"job", func() error {
			_, err := env.app.GetJob(ctx, "xyz")
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), "invalid") {
				t.Fatalf("unexpected message %q", err.Error())
			}
		})
	}
}
