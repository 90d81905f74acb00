package store

import (
	"context"
	"fmt"
	"time"

	"cinelog/pkg/domain"
	"gorm.io/gorm"
)

var listCountColumns = map[domain.MovieList]string{
	domain.ListFavorites: "favorites_count",
	domain.ListWatchlist: "watchlist_count",
	domain.ListWatched:   "movies_watched",
}

// CreateUser inserts a new account. Username or email collisions return
// ErrConflict.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

// UpdateUser writes profile, credential and status fields. Counters and
// lists are owned by the list operations and are not touched here.
func (s *GormStore) UpdateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"username":      model.Username,
		"email":         model.Email,
		"password_hash": model.PasswordHash,
		"first_name":    model.FirstName,
		"last_name":     model.LastName,
		"avatar":        model.Avatar,
		"bio":           model.Bio,
		"role":          model.Role,
		"is_verified":   model.IsVerified,
		"is_active":     model.IsActive,
		"last_login":    model.LastLogin,
		"preferences":   model.Preferences,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return s.getUser(ctx, "email = ?", email)
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *GormStore) getUser(ctx context.Context, query string, arg any) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUsersByIDs returns existing users in the order of ids.
func (s *GormStore) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	var models []UserModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, userFromModel(m))
	}
	return orderByIDs(users, ids, func(u domain.User) string { return u.ID }), nil
}

func (s *GormStore) UserCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *GormStore) GetUserLists(ctx context.Context, userID string) (domain.UserLists, error) {
	lists := domain.UserLists{
		Favorites: []string{},
		Watchlist: []string{},
		Watched:   []domain.WatchedEntry{},
		Following: []string{},
		Followers: []string{},
	}
	db := s.db.WithContext(ctx)
	var rows []UserMovieModel
	if err := db.Where("user_id = ?", userID).Order("created_at").Find(&rows).Error; err != nil {
		return lists, err
	}
	for _, row := range rows {
		switch domain.MovieList(row.List) {
		case domain.ListFavorites:
			lists.Favorites = append(lists.Favorites, row.MovieID)
		case domain.ListWatchlist:
			lists.Watchlist = append(lists.Watchlist, row.MovieID)
		case domain.ListWatched:
			lists.Watched = append(lists.Watched, domain.WatchedEntry{
				MovieID:   row.MovieID,
				WatchedAt: row.CreatedAt,
				Rating:    row.Rating,
				Review:    row.Note,
			})
		}
	}
	if err := db.Model(&FollowModel{}).Where("follower_id = ?", userID).Order("created_at").Pluck("followee_id", &lists.Following).Error; err != nil {
		return lists, err
	}
	if err := db.Model(&FollowModel{}).Where("followee_id = ?", userID).Order("created_at").Pluck("follower_id", &lists.Followers).Error; err != nil {
		return lists, err
	}
	return lists, nil
}

func (s *GormStore) ListFollowing(ctx context.Context, userID string, page domain.Page) ([]domain.User, int64, error) {
	return s.listFollowEdges(ctx, "follows.followee_id = users.id", "follows.follower_id = ?", userID, page)
}

func (s *GormStore) ListFollowers(ctx context.Context, userID string, page domain.Page) ([]domain.User, int64, error) {
	return s.listFollowEdges(ctx, "follows.follower_id = users.id", "follows.followee_id = ?", userID, page)
}

func (s *GormStore) listFollowEdges(ctx context.Context, join, where, userID string, page domain.Page) ([]domain.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&UserModel{}).
		Joins("JOIN follows ON "+join).
		Where(where, userID).
		Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []UserModel
	if err := q.Order("follows.created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, userFromModel(m))
	}
	return users, total, nil
}

// ToggleFollow adds or removes the follower -> followee edge and reports
// whether the edge exists afterwards. Both users must exist.
func (s *GormStore) ToggleFollow(ctx context.Context, followerID, followeeID string, at time.Time) (bool, error) {
	following := false
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&UserModel{}).Where("id IN ?", []string{followerID, followeeID}).Count(&count).Error; err != nil {
			return err
		}
		if count != 2 {
			return ErrNotFound
		}
		res := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Delete(&FollowModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		following = true
		return tx.Create(&FollowModel{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: at}).Error
	})
	return following, translate(err)
}

// ToggleMovieList flips membership of movieID in a favorites or watchlist
// list and adjusts the matching counter in the same transaction.
func (s *GormStore) ToggleMovieList(ctx context.Context, userID string, list domain.MovieList, movieID string, at time.Time) (bool, error) {
	column, ok := listCountColumns[list]
	if !ok || list == domain.ListWatched {
		return false, fmt.Errorf("toggle list %q: unsupported", list)
	}
	added := false
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND list = ? AND movie_id = ?", userID, string(list), movieID).Delete(&UserMovieModel{})
		if res.Error != nil {
			return res.Error
		}
		counter := decrementFloor(column)
		if res.RowsAffected == 0 {
			row := UserMovieModel{UserID: userID, List: string(list), MovieID: movieID, CreatedAt: at}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			counter = increment(column)
			added = true
		}
		return bumpCounter(tx, userID, column, counter)
	})
	return added, translate(err)
}

// UpsertWatched records a watched movie. An existing entry is overwritten
// in place; only a new entry increments moviesWatched.
func (s *GormStore) UpsertWatched(ctx context.Context, userID string, entry domain.WatchedEntry) (bool, error) {
	created := false
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&UserMovieModel{}).
			Where("user_id = ? AND list = ? AND movie_id = ?", userID, string(domain.ListWatched), entry.MovieID).
			Updates(map[string]any{
				"rating":     entry.Rating,
				"note":       entry.Review,
				"created_at": entry.WatchedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		row := UserMovieModel{
			UserID:    userID,
			List:      string(domain.ListWatched),
			MovieID:   entry.MovieID,
			Rating:    entry.Rating,
			Note:      entry.Review,
			CreatedAt: entry.WatchedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		created = true
		return bumpCounter(tx, userID, "movies_watched", increment("movies_watched"))
	})
	return created, translate(err)
}

func bumpCounter(tx *gorm.DB, userID, column string, expr any) error {
	res := tx.Model(&UserModel{}).Where("id = ?", userID).UpdateColumn(column, expr)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReconcileUserStats recomputes every counter from source rows and stores
// the result. averageRating is the mean of the user's live review ratings.
func (s *GormStore) ReconcileUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	var stats domain.UserStats
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&UserModel{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		var counts []struct {
			List  string
			Total int
		}
		if err := tx.Model(&UserMovieModel{}).Select("list, COUNT(*) AS total").
			Where("user_id = ?", userID).Group("list").Scan(&counts).Error; err != nil {
			return err
		}
		for _, c := range counts {
			switch domain.MovieList(c.List) {
			case domain.ListFavorites:
				stats.FavoritesCount = c.Total
			case domain.ListWatchlist:
				stats.WatchlistCount = c.Total
			case domain.ListWatched:
				stats.MoviesWatched = c.Total
			}
		}
		var ratings []int
		if err := tx.Model(&ReviewModel{}).Where("user_id = ? AND state <> ?", userID, string(domain.ReviewDeleted)).
			Pluck("rating", &ratings).Error; err != nil {
			return err
		}
		agg := domain.AggregateRatings(ratings)
		stats.ReviewsWritten = agg.TotalReviews
		stats.AverageRating = agg.AverageRating
		return tx.Model(&UserModel{}).Where("id = ?", userID).UpdateColumns(map[string]any{
			"movies_watched":  stats.MoviesWatched,
			"reviews_written": stats.ReviewsWritten,
			"favorites_count": stats.FavoritesCount,
			"watchlist_count": stats.WatchlistCount,
			"average_rating":  stats.AverageRating,
		}).Error
	})
	return stats, translate(err)
}
