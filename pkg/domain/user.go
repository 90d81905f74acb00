package domain

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

func ValidTheme(t Theme) bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeAuto
}

type NotificationPreferences struct {
	Email           bool `json:"email" bson:"email"`
	Push            bool `json:"push" bson:"push"`
	Reviews         bool `json:"reviews" bson:"reviews"`
	Recommendations bool `json:"recommendations" bson:"recommendations"`
}

type Preferences struct {
	Theme         Theme                   `json:"theme" bson:"theme"`
	Language      string                  `json:"language" bson:"language"`
	Notifications NotificationPreferences `json:"notifications" bson:"notifications"`
}

// DefaultPreferences are applied to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:    ThemeDark,
		Language: "en",
		Notifications: NotificationPreferences{
			Email:           true,
			Push:            true,
			Reviews:         true,
			Recommendations: true,
		},
	}
}

// UserStats are denormalized counters kept in step with list and review
// mutations inside the same store transaction.
type UserStats struct {
	MoviesWatched  int     `json:"moviesWatched" bson:"moviesWatched"`
	ReviewsWritten int     `json:"reviewsWritten" bson:"reviewsWritten"`
	FavoritesCount int     `json:"favoritesCount" bson:"favoritesCount"`
	WatchlistCount int     `json:"watchlistCount" bson:"watchlistCount"`
	AverageRating  float64 `json:"averageRating" bson:"averageRating"`
}

type User struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	FirstName    string      `json:"firstName,omitempty"`
	LastName     string      `json:"lastName,omitempty"`
	Avatar       string      `json:"avatar,omitempty"`
	Bio          string      `json:"bio,omitempty"`
	Role         UserRole    `json:"role"`
	IsVerified   bool        `json:"isVerified"`
	IsActive     bool        `json:"isActive"`
	LastLogin    *time.Time  `json:"lastLogin,omitempty"`
	Preferences  Preferences `json:"preferences"`
	Stats        UserStats   `json:"stats"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Summary is the author projection embedded in reviews, replies and
// follow lists.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Avatar:    u.Avatar,
	}
}

type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// WatchedEntry records one watched movie; a user holds at most one entry
// per movie.
type WatchedEntry struct {
	MovieID   string    `json:"movieId"`
	WatchedAt time.Time `json:"watchedAt"`
	Rating    *int      `json:"rating,omitempty"`
	Review    string    `json:"review,omitempty"`
}

// UserLists are the user-owned movie lists and both sides of the follow
// relation.
type UserLists struct {
	Favorites []string       `json:"favorites"`
	Watchlist []string       `json:"watchlist"`
	Watched   []WatchedEntry `json:"watched"`
	Following []string       `json:"following"`
	Followers []string       `json:"followers"`
}

// MovieList names a set-style user list.
type MovieList string

const (
	ListFavorites MovieList = "favorites"
	ListWatchlist MovieList = "watchlist"
	ListWatched   MovieList = "watched"
)

// ParseMovieList maps a route segment to a list.
func ParseMovieList(raw string) (MovieList, bool) {
	switch MovieList(raw) {
	case ListFavorites, ListWatchlist, ListWatched:
		return MovieList(raw), true
	}
	return "", false
}
