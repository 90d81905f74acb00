package store

import (
	"time"

	"cinelog/pkg/domain"
	"gorm.io/datatypes"
)

// MovieModel is the relational movie row. Nested TMDb collections are JSON
// columns; genres and directors are duplicated into join tables so that
// filters and similarity can be answered in SQL.
type MovieModel struct {
	ID                  string `gorm:"primaryKey;type:varchar(36)"`
	Title               string `gorm:"not null;index"`
	Overview            string `gorm:"type:text"`
	PosterPath          string
	BackdropPath        string
	ReleaseDate         time.Time `gorm:"index"`
	Runtime             int
	VoteAverage         float64 `gorm:"index"`
	VoteCount           int
	Popularity          float64 `gorm:"index"`
	OriginalLanguage    string
	OriginalTitle       string
	Adult               bool
	Video               bool
	Status              string
	Tagline             string
	Homepage            string
	IMDbID              string `gorm:"column:imdb_id"`
	Revenue             int64
	Budget              int64
	TrailerURL          string
	Genres              datatypes.JSONSlice[domain.Genre]
	ProductionCompanies datatypes.JSONSlice[domain.ProductionCompany]
	ProductionCountries datatypes.JSONSlice[domain.ProductionCountry]
	SpokenLanguages     datatypes.JSONSlice[domain.SpokenLanguage]
	Cast                datatypes.JSONSlice[domain.CastMember]
	Crew                datatypes.JSONSlice[domain.CrewMember]
	Keywords            datatypes.JSONSlice[string]
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (MovieModel) TableName() string { return "movies" }

type MovieGenreModel struct {
	MovieID string `gorm:"primaryKey;type:varchar(36)"`
	Name    string `gorm:"primaryKey;index"`
}

func (MovieGenreModel) TableName() string { return "movie_genres" }

type MovieDirectorModel struct {
	MovieID string `gorm:"primaryKey;type:varchar(36)"`
	Name    string `gorm:"primaryKey;index"`
}

func (MovieDirectorModel) TableName() string { return "movie_directors" }

const (
	linkSimilar        = "similar"
	linkRecommendation = "recommendation"
)

// MovieLinkModel holds weak references between movies.
type MovieLinkModel struct {
	MovieID  string `gorm:"primaryKey;type:varchar(36)"`
	Kind     string `gorm:"primaryKey;size:16"`
	TargetID string `gorm:"primaryKey;type:varchar(36)"`
	Position int
}

func (MovieLinkModel) TableName() string { return "movie_links" }

type UserModel struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	Username       string `gorm:"uniqueIndex;size:30;not null"`
	Email          string `gorm:"uniqueIndex;not null"`
	PasswordHash   string `gorm:"not null"`
	FirstName      string `gorm:"size:50"`
	LastName       string `gorm:"size:50"`
	Avatar         string
	Bio            string `gorm:"size:500"`
	Role           string `gorm:"size:16;not null"`
	IsVerified     bool
	IsActive       bool
	LastLogin      *time.Time
	Preferences    datatypes.JSONType[domain.Preferences]
	MoviesWatched  int
	ReviewsWritten int
	FavoritesCount int
	WatchlistCount int
	AverageRating  float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (UserModel) TableName() string { return "users" }

// UserMovieModel is one membership of a movie in a user list. Only watched
// rows carry a rating and note.
type UserMovieModel struct {
	UserID    string `gorm:"primaryKey;type:varchar(36)"`
	List      string `gorm:"primaryKey;size:16"`
	MovieID   string `gorm:"primaryKey;type:varchar(36)"`
	Rating    *int
	Note      string `gorm:"size:1000"`
	CreatedAt time.Time
}

func (UserMovieModel) TableName() string { return "user_movies" }

// FollowModel is one edge of the follow graph. Both "following" and
// "followers" are read from the same row.
type FollowModel struct {
	FollowerID string `gorm:"primaryKey;type:varchar(36)"`
	FolloweeID string `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt  time.Time
}

func (FollowModel) TableName() string { return "follows" }

type ReviewModel struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"type:varchar(36);index;not null"`
	MovieID   string `gorm:"type:varchar(36);index;not null"`
	Rating    int    `gorm:"not null"`
	Title     string `gorm:"size:100"`
	Content   string `gorm:"type:text;not null"`
	Spoiler   bool
	State     string `gorm:"size:16;index;not null"`
	EditedAt  *time.Time
	DeletedAt *time.Time
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (ReviewModel) TableName() string { return "reviews" }

type ReviewVoteModel struct {
	ReviewID  string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"primaryKey;type:varchar(36)"`
	Helpful   bool
	CreatedAt time.Time
}

func (ReviewVoteModel) TableName() string { return "review_votes" }

type ReviewReplyModel struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	ReviewID  string `gorm:"type:varchar(36);index;not null"`
	UserID    string `gorm:"type:varchar(36);not null"`
	Content   string `gorm:"size:1000;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ReviewReplyModel) TableName() string { return "review_replies" }

func movieToModel(m domain.Movie) MovieModel {
	return MovieModel{
		ID:                  m.ID,
		Title:               m.Title,
		Overview:            m.Overview,
		PosterPath:          m.PosterPath,
		BackdropPath:        m.BackdropPath,
		ReleaseDate:         m.ReleaseDate.UTC(),
		Runtime:             m.Runtime,
		VoteAverage:         m.VoteAverage,
		VoteCount:           m.VoteCount,
		Popularity:          m.Popularity,
		OriginalLanguage:    m.OriginalLanguage,
		OriginalTitle:       m.OriginalTitle,
		Adult:               m.Adult,
		Video:               m.Video,
		Status:              string(m.Status),
		Tagline:             m.Tagline,
		Homepage:            m.Homepage,
		IMDbID:              m.IMDbID,
		Revenue:             m.Revenue,
		Budget:              m.Budget,
		TrailerURL:          m.TrailerURL,
		Genres:              datatypes.NewJSONSlice(m.Genres),
		ProductionCompanies: datatypes.NewJSONSlice(m.ProductionCompanies),
		ProductionCountries: datatypes.NewJSONSlice(m.ProductionCountries),
		SpokenLanguages:     datatypes.NewJSONSlice(m.SpokenLanguages),
		Cast:                datatypes.NewJSONSlice(m.Cast),
		Crew:                datatypes.NewJSONSlice(m.Crew),
		Keywords:            datatypes.NewJSONSlice(m.Keywords),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func movieFromModel(m MovieModel) domain.Movie {
	movie := domain.Movie{
		ID:                  m.ID,
		Title:               m.Title,
		Overview:            m.Overview,
		PosterPath:          m.PosterPath,
		BackdropPath:        m.BackdropPath,
		ReleaseDate:         m.ReleaseDate.UTC(),
		Runtime:             m.Runtime,
		VoteAverage:         m.VoteAverage,
		VoteCount:           m.VoteCount,
		Popularity:          m.Popularity,
		OriginalLanguage:    m.OriginalLanguage,
		OriginalTitle:       m.OriginalTitle,
		Adult:               m.Adult,
		Video:               m.Video,
		Status:              domain.MovieStatus(m.Status),
		Tagline:             m.Tagline,
		Homepage:            m.Homepage,
		IMDbID:              m.IMDbID,
		Revenue:             m.Revenue,
		Budget:              m.Budget,
		TrailerURL:          m.TrailerURL,
		Genres:              m.Genres,
		ProductionCompanies: m.ProductionCompanies,
		ProductionCountries: m.ProductionCountries,
		SpokenLanguages:     m.SpokenLanguages,
		Cast:                m.Cast,
		Crew:                m.Crew,
		Keywords:            m.Keywords,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	movie.Normalize()
	return movie
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Avatar:         u.Avatar,
		Bio:            u.Bio,
		Role:           string(u.Role),
		IsVerified:     u.IsVerified,
		IsActive:       u.IsActive,
		LastLogin:      u.LastLogin,
		Preferences:    datatypes.NewJSONType(u.Preferences),
		MoviesWatched:  u.Stats.MoviesWatched,
		ReviewsWritten: u.Stats.ReviewsWritten,
		FavoritesCount: u.Stats.FavoritesCount,
		WatchlistCount: u.Stats.WatchlistCount,
		AverageRating:  u.Stats.AverageRating,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Avatar:       m.Avatar,
		Bio:          m.Bio,
		Role:         domain.UserRole(m.Role),
		IsVerified:   m.IsVerified,
		IsActive:     m.IsActive,
		LastLogin:    m.LastLogin,
		Preferences:  m.Preferences.Data(),
		Stats: domain.UserStats{
			MoviesWatched:  m.MoviesWatched,
			ReviewsWritten: m.ReviewsWritten,
			FavoritesCount: m.FavoritesCount,
			WatchlistCount: m.WatchlistCount,
			AverageRating:  m.AverageRating,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:        r.ID,
		UserID:    r.UserID,
		MovieID:   r.MovieID,
		Rating:    r.Rating,
		Title:     r.Title,
		Content:   r.Content,
		Spoiler:   r.Spoiler,
		State:     string(r.State),
		EditedAt:  r.EditedAt,
		DeletedAt: r.DeletedAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func reviewFromModel(m ReviewModel, votes []ReviewVoteModel, replies []ReviewReplyModel) domain.Review {
	r := domain.Review{
		ID:         m.ID,
		UserID:     m.UserID,
		MovieID:    m.MovieID,
		Rating:     m.Rating,
		Title:      m.Title,
		Content:    m.Content,
		Spoiler:    m.Spoiler,
		State:      domain.ReviewState(m.State),
		EditedAt:   m.EditedAt,
		DeletedAt:  m.DeletedAt,
		Helpful:    []domain.Vote{},
		NotHelpful: []domain.Vote{},
		Replies:    make([]domain.Reply, 0, len(replies)),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	for _, v := range votes {
		vote := domain.Vote{UserID: v.UserID, CreatedAt: v.CreatedAt}
		if v.Helpful {
			r.Helpful = append(r.Helpful, vote)
		} else {
			r.NotHelpful = append(r.NotHelpful, vote)
		}
	}
	for _, rep := range replies {
		r.Replies = append(r.Replies, domain.Reply{
			ID:        rep.ID,
			UserID:    rep.UserID,
			Content:   rep.Content,
			CreatedAt: rep.CreatedAt,
			UpdatedAt: rep.UpdatedAt,
		})
	}
	return r
}
