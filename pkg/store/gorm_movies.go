package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cinelog/pkg/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var movieSortColumns = map[domain.MovieSortField]string{
	domain.SortPopularity:  "popularity",
	domain.SortVoteAverage: "vote_average",
	domain.SortVoteCount:   "vote_count",
	domain.SortReleaseDate: "release_date",
	domain.SortTitle:       "title",
}

// SaveMovies upserts movies with their genre and director rows.
func (s *GormStore) SaveMovies(ctx context.Context, movies []domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	return s.transaction(ctx, func(tx *gorm.DB) error {
		for _, movie := range movies {
			movie.Normalize()
			model := movieToModel(movie)
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error; err != nil {
				return fmt.Errorf("save movie %s: %w", movie.ID, err)
			}
			if err := replaceMovieKeys(tx, movie); err != nil {
				return err
			}
		}
		return nil
	})
}

func replaceMovieKeys(tx *gorm.DB, movie domain.Movie) error {
	if err := tx.Where("movie_id = ?", movie.ID).Delete(&MovieGenreModel{}).Error; err != nil {
		return err
	}
	if err := tx.Where("movie_id = ?", movie.ID).Delete(&MovieDirectorModel{}).Error; err != nil {
		return err
	}
	genres := make([]MovieGenreModel, 0, len(movie.Genres))
	seen := make(map[string]struct{})
	for _, name := range movie.GenreNames() {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		genres = append(genres, MovieGenreModel{MovieID: movie.ID, Name: name})
	}
	if len(genres) > 0 {
		if err := tx.Create(&genres).Error; err != nil {
			return err
		}
	}
	directors := make([]MovieDirectorModel, 0)
	for _, name := range movie.Directors() {
		directors = append(directors, MovieDirectorModel{MovieID: movie.ID, Name: name})
	}
	if len(directors) > 0 {
		if err := tx.Create(&directors).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteAllMovies clears the catalog. Only the seed command calls it.
func (s *GormStore) DeleteAllMovies(ctx context.Context) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		for _, model := range []any{&MovieLinkModel{}, &MovieGenreModel{}, &MovieDirectorModel{}, &MovieModel{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SetMovieLinks replaces the similar and recommendation references of a movie.
func (s *GormStore) SetMovieLinks(ctx context.Context, movieID string, similar, recommendations []string) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&MovieModel{}).Where("id = ?", movieID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		if err := tx.Where("movie_id = ?", movieID).Delete(&MovieLinkModel{}).Error; err != nil {
			return err
		}
		var links []MovieLinkModel
		for i, id := range similar {
			links = append(links, MovieLinkModel{MovieID: movieID, Kind: linkSimilar, TargetID: id, Position: i})
		}
		for i, id := range recommendations {
			links = append(links, MovieLinkModel{MovieID: movieID, Kind: linkRecommendation, TargetID: id, Position: i})
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	})
}

func (s *GormStore) GetMovie(ctx context.Context, id string) (domain.Movie, bool, error) {
	var model MovieModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Movie{}, false, nil
		}
		return domain.Movie{}, false, err
	}
	movies, err := s.withLinks(ctx, []MovieModel{model})
	if err != nil {
		return domain.Movie{}, false, err
	}
	return movies[0], true, nil
}

// GetMoviesByIDs returns the movies that still exist, in the order of ids.
// Missing ids are skipped.
func (s *GormStore) GetMoviesByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	if len(ids) == 0 {
		return []domain.Movie{}, nil
	}
	var models []MovieModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	movies, err := s.withLinks(ctx, models)
	if err != nil {
		return nil, err
	}
	return orderByIDs(movies, ids, func(m domain.Movie) string { return m.ID }), nil
}

func (s *GormStore) ListMovies(ctx context.Context, filter domain.MovieFilter, sortField domain.MovieSortField, order domain.SortOrder, page domain.Page) ([]domain.Movie, int64, error) {
	q := s.db.WithContext(ctx).Model(&MovieModel{})
	if genre := strings.TrimSpace(filter.Genre); genre != "" {
		q = q.Where("id IN (?)", s.db.WithContext(ctx).Model(&MovieGenreModel{}).Select("movie_id").Where("name = ?", genre))
	}
	if filter.Year > 0 {
		start, end := domain.YearRange(filter.Year)
		q = q.Where("release_date >= ? AND release_date < ?", start, end)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		q = q.Where(
			`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(overview) LIKE ? ESCAPE '\' OR LOWER(tagline) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern,
		)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	column, ok := movieSortColumns[sortField]
	if !ok {
		column = "popularity"
	}
	var models []MovieModel
	err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: order == domain.Desc}).
		Order("id").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}
	movies, err := s.withLinks(ctx, models)
	if err != nil {
		return nil, 0, err
	}
	return movies, total, nil
}

func (s *GormStore) DistinctGenres(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&MovieGenreModel{}).Distinct("name").Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// SimilarMovies matches on any shared genre name or shared director.
func (s *GormStore) SimilarMovies(ctx context.Context, movie domain.Movie, limit int) ([]domain.Movie, error) {
	genres := movie.GenreNames()
	directors := movie.Directors()
	if len(genres) == 0 && len(directors) == 0 {
		return []domain.Movie{}, nil
	}
	db := s.db.WithContext(ctx)
	byGenre := db.Model(&MovieGenreModel{}).Select("movie_id").Where("name IN ?", genres)
	byDirector := db.Model(&MovieDirectorModel{}).Select("movie_id").Where("name IN ?", directors)
	var match *gorm.DB
	switch {
	case len(genres) > 0 && len(directors) > 0:
		match = db.Where("id IN (?)", byGenre).Or("id IN (?)", byDirector)
	case len(genres) > 0:
		match = db.Where("id IN (?)", byGenre)
	default:
		match = db.Where("id IN (?)", byDirector)
	}
	var models []MovieModel
	err := db.Where("id <> ?", movie.ID).
		Where(match).
		Order("vote_average DESC").
		Order("popularity DESC").
		Order("id").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return s.withLinks(ctx, models)
}

// withLinks converts models and attaches their similar/recommendation ids.
func (s *GormStore) withLinks(ctx context.Context, models []MovieModel) ([]domain.Movie, error) {
	out := make([]domain.Movie, 0, len(models))
	if len(models) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	var links []MovieLinkModel
	if err := s.db.WithContext(ctx).Where("movie_id IN ?", ids).Order("position").Find(&links).Error; err != nil {
		return nil, err
	}
	byMovie := make(map[string][]MovieLinkModel, len(models))
	for _, l := range links {
		byMovie[l.MovieID] = append(byMovie[l.MovieID], l)
	}
	for _, m := range models {
		movie := movieFromModel(m)
		for _, l := range byMovie[m.ID] {
			switch l.Kind {
			case linkSimilar:
				movie.SimilarMovies = append(movie.SimilarMovies, l.TargetID)
			case linkRecommendation:
				movie.Recommendations = append(movie.Recommendations, l.TargetID)
			}
		}
		out = append(out, movie)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// orderByIDs returns items in the order of ids, skipping ids with no item.
func orderByIDs[T any](items []T, ids []string, key func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, item := range items {
		byID[key(item)] = item
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out
}
