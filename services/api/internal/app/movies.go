package app

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"cinelog/pkg/domain"
	"cinelog/pkg/store"
)

const detailReviewLimit = 10

// MovieQuery is the raw catalog listing input.
type MovieQuery struct {
	Genre  string
	Year   int
	Search string
	SortBy string
	Order  string
	Page   int
	Limit  int
}

type MovieList struct {
	Movies     []domain.Movie
	Pagination Pagination
}

// ListMovies filters, sorts and pages the catalog. Defaults to popularity
// descending, 20 per page.
func (a *App) ListMovies(ctx context.Context, q MovieQuery) (MovieList, error) {
	sortField, ok := domain.ParseMovieSortField(q.SortBy)
	if !ok {
		return MovieList{}, invalid("sortBy must be one of: popularity, voteAverage, voteCount, releaseDate, title")
	}
	order, ok := domain.ParseSortOrder(q.Order)
	if !ok {
		return MovieList{}, invalid("order must be asc or desc")
	}
	if q.Year < 0 {
		return MovieList{}, invalid("year must be positive")
	}
	page := pageOf(q.Page, q.Limit, maxPageLimit)
	filter := domain.MovieFilter{
		Genre:  strings.TrimSpace(q.Genre),
		Year:   q.Year,
		Search: strings.TrimSpace(q.Search),
	}
	movies, total, err := a.store.ListMovies(ctx, filter, sortField, order, page)
	if err != nil {
		return MovieList{}, fmt.Errorf("list movies: %w", err)
	}
	return MovieList{Movies: movies, Pagination: newPagination(page, total)}, nil
}

// Genres returns the sorted distinct genre names in the catalog.
func (a *App) Genres(ctx context.Context) ([]string, error) {
	genres, err := a.store.DistinctGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

// MovieDetail is a movie with its recent reviews, rating aggregate and
// populated similar movies. SimilarMovies shadows the embedded id list.
type MovieDetail struct {
	domain.Movie
	SimilarMovies []domain.MovieSummary `json:"similar_movies"`
	Reviews       []ReviewView          `json:"reviews"`
	RatingStats   domain.RatingStats    `json:"ratingStats"`
}

func (a *App) MovieDetail(ctx context.Context, id string) (MovieDetail, error) {
	movie, err := a.requireMovie(ctx, id)
	if err != nil {
		return MovieDetail{}, err
	}

	detail := MovieDetail{Movie: movie}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reviews, _, err := a.store.ListReviews(gctx, store.ReviewQuery{
			MovieID: movie.ID,
			Sort:    domain.ReviewSortCreated,
			Order:   domain.Desc,
			Page:    domain.Page{Number: 1, Limit: detailReviewLimit},
		})
		if err != nil {
			return fmt.Errorf("recent reviews: %w", err)
		}
		views, err := a.reviewViews(gctx, reviews, false)
		if err != nil {
			return err
		}
		detail.Reviews = views
		return nil
	})
	g.Go(func() error {
		stats, err := a.RatingStats(gctx, movie.ID)
		if err != nil {
			return err
		}
		detail.RatingStats = stats
		return nil
	})
	g.Go(func() error {
		similar, err := a.store.GetMoviesByIDs(gctx, movie.SimilarMovies)
		if err != nil {
			return fmt.Errorf("similar movies: %w", err)
		}
		detail.SimilarMovies = summaries(similar)
		return nil
	})
	if err := g.Wait(); err != nil {
		return MovieDetail{}, err
	}
	return detail, nil
}

// RatingStats aggregates the live reviews of a movie. It is recomputed on
// every call.
func (a *App) RatingStats(ctx context.Context, movieID string) (domain.RatingStats, error) {
	if err := checkID("movie", movieID); err != nil {
		return domain.RatingStats{}, err
	}
	ratings, err := a.store.MovieRatings(ctx, movieID)
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("movie ratings: %w", err)
	}
	return domain.AggregateRatings(ratings), nil
}

// SimilarMovies returns movies sharing a genre or director with id, best
// rated first.
func (a *App) SimilarMovies(ctx context.Context, id string, limit int) ([]domain.Movie, error) {
	movie, err := a.requireMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultSimilarLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}
	similar, err := a.store.SimilarMovies(ctx, movie, limit)
	if err != nil {
		return nil, fmt.Errorf("similar movies: %w", err)
	}
	return similar, nil
}

func summaries(movies []domain.Movie) []domain.MovieSummary {
	out := make([]domain.MovieSummary, 0, len(movies))
	for _, m := range movies {
		out = append(out, m.Summary())
	}
	return out
}
