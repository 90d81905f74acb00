package store

import (
	"time"

	"cinelog/pkg/domain"
)

type movieDoc struct {
	ID                  string                     `bson:"_id"`
	Title               string                     `bson:"title"`
	Overview            string                     `bson:"overview"`
	PosterPath          string                     `bson:"poster_path,omitempty"`
	BackdropPath        string                     `bson:"backdrop_path,omitempty"`
	ReleaseDate         time.Time                  `bson:"release_date"`
	Runtime             int                        `bson:"runtime"`
	Genres              []domain.Genre             `bson:"genres"`
	VoteAverage         float64                    `bson:"vote_average"`
	VoteCount           int                        `bson:"vote_count"`
	Popularity          float64                    `bson:"popularity"`
	OriginalLanguage    string                     `bson:"original_language,omitempty"`
	OriginalTitle       string                     `bson:"original_title,omitempty"`
	Adult               bool                       `bson:"adult"`
	Video               bool                       `bson:"video"`
	ProductionCompanies []domain.ProductionCompany `bson:"production_companies"`
	ProductionCountries []domain.ProductionCountry `bson:"production_countries"`
	SpokenLanguages     []domain.SpokenLanguage    `bson:"spoken_languages"`
	Status              string                     `bson:"status"`
	Tagline             string                     `bson:"tagline,omitempty"`
	Homepage            string                     `bson:"homepage,omitempty"`
	IMDbID              string                     `bson:"imdb_id,omitempty"`
	Revenue             int64                      `bson:"revenue"`
	Budget              int64                      `bson:"budget"`
	TrailerURL          string                     `bson:"trailer_url,omitempty"`
	Cast                []domain.CastMember        `bson:"cast"`
	Crew                []domain.CrewMember        `bson:"crew"`
	Keywords            []string                   `bson:"keywords"`
	SimilarMovies       []string                   `bson:"similar_movies"`
	Recommendations     []string                   `bson:"recommendations"`
	// Directors is derived from Crew for similarity lookups.
	Directors []string  `bson:"directors"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func movieToDoc(m domain.Movie) movieDoc {
	return movieDoc{
		ID:                  m.ID,
		Title:               m.Title,
		Overview:            m.Overview,
		PosterPath:          m.PosterPath,
		BackdropPath:        m.BackdropPath,
		ReleaseDate:         m.ReleaseDate.UTC(),
		Runtime:             m.Runtime,
		Genres:              m.Genres,
		VoteAverage:         m.VoteAverage,
		VoteCount:           m.VoteCount,
		Popularity:          m.Popularity,
		OriginalLanguage:    m.OriginalLanguage,
		OriginalTitle:       m.OriginalTitle,
		Adult:               m.Adult,
		Video:               m.Video,
		ProductionCompanies: m.ProductionCompanies,
		ProductionCountries: m.ProductionCountries,
		SpokenLanguages:     m.SpokenLanguages,
		Status:              string(m.Status),
		Tagline:             m.Tagline,
		Homepage:            m.Homepage,
		IMDbID:              m.IMDbID,
		Revenue:             m.Revenue,
		Budget:              m.Budget,
		TrailerURL:          m.TrailerURL,
		Cast:                m.Cast,
		Crew:                m.Crew,
		Keywords:            m.Keywords,
		SimilarMovies:       m.SimilarMovies,
		Recommendations:     m.Recommendations,
		Directors:           append([]string{}, m.Directors()...),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func (d movieDoc) toDomain() domain.Movie {
	m := domain.Movie{
		ID:                  d.ID,
		Title:               d.Title,
		Overview:            d.Overview,
		PosterPath:          d.PosterPath,
		BackdropPath:        d.BackdropPath,
		ReleaseDate:         d.ReleaseDate.UTC(),
		Runtime:             d.Runtime,
		Genres:              d.Genres,
		VoteAverage:         d.VoteAverage,
		VoteCount:           d.VoteCount,
		Popularity:          d.Popularity,
		OriginalLanguage:    d.OriginalLanguage,
		OriginalTitle:       d.OriginalTitle,
		Adult:               d.Adult,
		Video:               d.Video,
		ProductionCompanies: d.ProductionCompanies,
		ProductionCountries: d.ProductionCountries,
		SpokenLanguages:     d.SpokenLanguages,
		Status:              domain.MovieStatus(d.Status),
		Tagline:             d.Tagline,
		Homepage:            d.Homepage,
		IMDbID:              d.IMDbID,
		Revenue:             d.Revenue,
		Budget:              d.Budget,
		TrailerURL:          d.TrailerURL,
		Cast:                d.Cast,
		Crew:                d.Crew,
		Keywords:            d.Keywords,
		SimilarMovies:       d.SimilarMovies,
		Recommendations:     d.Recommendations,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	m.Normalize()
	return m
}

type watchedDoc struct {
	MovieID   string    `bson:"movie"`
	WatchedAt time.Time `bson:"watched_at"`
	Rating    *int      `bson:"rating,omitempty"`
	Review    string    `bson:"review,omitempty"`
}

type userDoc struct {
	ID           string             `bson:"_id"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	FirstName    string             `bson:"first_name,omitempty"`
	LastName     string             `bson:"last_name,omitempty"`
	Avatar       string             `bson:"avatar,omitempty"`
	Bio          string             `bson:"bio,omitempty"`
	Role         string             `bson:"role"`
	IsVerified   bool               `bson:"is_verified"`
	IsActive     bool               `bson:"is_active"`
	LastLogin    *time.Time         `bson:"last_login,omitempty"`
	Preferences  domain.Preferences `bson:"preferences"`
	Stats        domain.UserStats   `bson:"stats"`
	Favorites    []string           `bson:"favorites"`
	Watchlist    []string           `bson:"watchlist"`
	Watched      []watchedDoc       `bson:"watched"`
	Following    []string           `bson:"following"`
	Followers    []string           `bson:"followers"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func userToDoc(u domain.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Avatar:       u.Avatar,
		Bio:          u.Bio,
		Role:         string(u.Role),
		IsVerified:   u.IsVerified,
		IsActive:     u.IsActive,
		LastLogin:    u.LastLogin,
		Preferences:  u.Preferences,
		Stats:        u.Stats,
		Favorites:    []string{},
		Watchlist:    []string{},
		Watched:      []watchedDoc{},
		Following:    []string{},
		Followers:    []string{},
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Avatar:       d.Avatar,
		Bio:          d.Bio,
		Role:         domain.UserRole(d.Role),
		IsVerified:   d.IsVerified,
		IsActive:     d.IsActive,
		LastLogin:    d.LastLogin,
		Preferences:  d.Preferences,
		Stats:        d.Stats,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d userDoc) lists() domain.UserLists {
	lists := domain.UserLists{
		Favorites: append([]string{}, d.Favorites...),
		Watchlist: append([]string{}, d.Watchlist...),
		Watched:   make([]domain.WatchedEntry, 0, len(d.Watched)),
		Following: append([]string{}, d.Following...),
		Followers: append([]string{}, d.Followers...),
	}
	for _, w := range d.Watched {
		lists.Watched = append(lists.Watched, domain.WatchedEntry{
			MovieID:   w.MovieID,
			WatchedAt: w.WatchedAt,
			Rating:    w.Rating,
			Review:    w.Review,
		})
	}
	return lists
}

type voteDoc struct {
	UserID    string    `bson:"user"`
	CreatedAt time.Time `bson:"created_at"`
}

type replyDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// reviewDoc embeds votes and replies. Live mirrors State != deleted so the
// partial unique index can filter on an equality.
type reviewDoc struct {
	ID         string     `bson:"_id"`
	UserID     string     `bson:"user"`
	MovieID    string     `bson:"movie"`
	Rating     int        `bson:"rating"`
	Title      string     `bson:"title"`
	Content    string     `bson:"content"`
	Spoiler    bool       `bson:"spoiler"`
	State      string     `bson:"state"`
	Live       bool       `bson:"live"`
	EditedAt   *time.Time `bson:"edited_at,omitempty"`
	DeletedAt  *time.Time `bson:"deleted_at,omitempty"`
	Helpful    []voteDoc  `bson:"helpful"`
	NotHelpful []voteDoc  `bson:"not_helpful"`
	Replies    []replyDoc `bson:"replies"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

func reviewToDoc(r domain.Review) reviewDoc {
	d := reviewDoc{
		ID:         r.ID,
		UserID:     r.UserID,
		MovieID:    r.MovieID,
		Rating:     r.Rating,
		Title:      r.Title,
		Content:    r.Content,
		Spoiler:    r.Spoiler,
		State:      string(r.State),
		Live:       r.Live(),
		EditedAt:   r.EditedAt,
		DeletedAt:  r.DeletedAt,
		Helpful:    make([]voteDoc, 0, len(r.Helpful)),
		NotHelpful: make([]voteDoc, 0, len(r.NotHelpful)),
		Replies:    make([]replyDoc, 0, len(r.Replies)),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	for _, v := range r.Helpful {
		d.Helpful = append(d.Helpful, voteDoc{UserID: v.UserID, CreatedAt: v.CreatedAt})
	}
	for _, v := range r.NotHelpful {
		d.NotHelpful = append(d.NotHelpful, voteDoc{UserID: v.UserID, CreatedAt: v.CreatedAt})
	}
	for _, rep := range r.Replies {
		d.Replies = append(d.Replies, replyDoc(rep))
	}
	return d
}

func (d reviewDoc) toDomain() domain.Review {
	r := domain.Review{
		ID:         d.ID,
		UserID:     d.UserID,
		MovieID:    d.MovieID,
		Rating:     d.Rating,
		Title:      d.Title,
		Content:    d.Content,
		Spoiler:    d.Spoiler,
		State:      domain.ReviewState(d.State),
		EditedAt:   d.EditedAt,
		DeletedAt:  d.DeletedAt,
		Helpful:    make([]domain.Vote, 0, len(d.Helpful)),
		NotHelpful: make([]domain.Vote, 0, len(d.NotHelpful)),
		Replies:    make([]domain.Reply, 0, len(d.Replies)),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	for _, v := range d.Helpful {
		r.Helpful = append(r.Helpful, domain.Vote{UserID: v.UserID, CreatedAt: v.CreatedAt})
	}
	for _, v := range d.NotHelpful {
		r.NotHelpful = append(r.NotHelpful, domain.Vote{UserID: v.UserID, CreatedAt: v.CreatedAt})
	}
	for _, rep := range d.Replies {
		r.Replies = append(r.Replies, domain.Reply(rep))
	}
	return r
}
