package domain

import (
	"sort"
	"strings"
	"time"
)

type MovieStatus string

const (
	MovieRumored        MovieStatus = "Rumored"
	MoviePlanned        MovieStatus = "Planned"
	MovieInProduction   MovieStatus = "In Production"
	MoviePostProduction MovieStatus = "Post Production"
	MovieReleased       MovieStatus = "Released"
	MovieCanceled       MovieStatus = "Canceled"
)

// DirectorJob is the crew job used for director-based similarity.
const DirectorJob = "Director"

const MaxVoteAverage = 10.0

// ValidMovieStatus reports whether s is a known release status.
func ValidMovieStatus(s MovieStatus) bool {
	switch s {
	case MovieRumored, MoviePlanned, MovieInProduction, MoviePostProduction, MovieReleased, MovieCanceled:
		return true
	}
	return false
}

type Genre struct {
	ID   int    `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

type ProductionCompany struct {
	ID            int    `json:"id" bson:"id"`
	Name          string `json:"name" bson:"name"`
	LogoPath      string `json:"logo_path,omitempty" bson:"logo_path,omitempty"`
	OriginCountry string `json:"origin_country,omitempty" bson:"origin_country,omitempty"`
}

type ProductionCountry struct {
	ISO31661 string `json:"iso_3166_1" bson:"iso_3166_1"`
	Name     string `json:"name" bson:"name"`
}

type SpokenLanguage struct {
	ISO6391 string `json:"iso_639_1" bson:"iso_639_1"`
	Name    string `json:"name" bson:"name"`
}

type CastMember struct {
	ID          int    `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	Character   string `json:"character,omitempty" bson:"character,omitempty"`
	ProfilePath string `json:"profile_path,omitempty" bson:"profile_path,omitempty"`
	Order       int    `json:"order" bson:"order"`
}

type CrewMember struct {
	ID          int    `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	Job         string `json:"job" bson:"job"`
	Department  string `json:"department,omitempty" bson:"department,omitempty"`
	ProfilePath string `json:"profile_path,omitempty" bson:"profile_path,omitempty"`
}

// Movie mirrors TMDb metadata, so its wire format keeps TMDb's snake_case keys.
type Movie struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Overview            string              `json:"overview"`
	PosterPath          string              `json:"poster_path,omitempty"`
	BackdropPath        string              `json:"backdrop_path,omitempty"`
	ReleaseDate         time.Time           `json:"release_date"`
	Runtime             int                 `json:"runtime,omitempty"`
	Genres              []Genre             `json:"genres"`
	VoteAverage         float64             `json:"vote_average"`
	VoteCount           int                 `json:"vote_count"`
	Popularity          float64             `json:"popularity"`
	OriginalLanguage    string              `json:"original_language,omitempty"`
	OriginalTitle       string              `json:"original_title,omitempty"`
	Adult               bool                `json:"adult"`
	Video               bool                `json:"video"`
	ProductionCompanies []ProductionCompany `json:"production_companies"`
	ProductionCountries []ProductionCountry `json:"production_countries"`
	SpokenLanguages     []SpokenLanguage    `json:"spoken_languages"`
	Status              MovieStatus         `json:"status"`
	Tagline             string              `json:"tagline,omitempty"`
	Homepage            string              `json:"homepage,omitempty"`
	IMDbID              string              `json:"imdb_id,omitempty"`
	Revenue             int64               `json:"revenue"`
	Budget              int64               `json:"budget"`
	TrailerURL          string              `json:"trailer_url,omitempty"`
	Cast                []CastMember        `json:"cast"`
	Crew                []CrewMember        `json:"crew"`
	Keywords            []string            `json:"keywords"`
	SimilarMovies       []string            `json:"similar_movies"`
	Recommendations     []string            `json:"recommendations"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// MovieSummary is the projection used when a movie is embedded in another
// resource (similar movies, favorites, watched lists).
type MovieSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	PosterPath  string    `json:"poster_path,omitempty"`
	ReleaseDate time.Time `json:"release_date"`
	VoteAverage float64   `json:"vote_average"`
	Genres      []Genre   `json:"genres"`
}

func (m Movie) Summary() MovieSummary {
	return MovieSummary{
		ID:          m.ID,
		Title:       m.Title,
		PosterPath:  m.PosterPath,
		ReleaseDate: m.ReleaseDate,
		VoteAverage: m.VoteAverage,
		Genres:      m.Genres,
	}
}

// GenreNames returns genre names in display order.
func (m Movie) GenreNames() []string {
	out := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Directors returns the distinct names of crew members credited as Director.
func (m Movie) Directors() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range m.Crew {
		name := strings.TrimSpace(c.Name)
		if c.Job != DirectorJob || name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Normalize applies import-time invariants: vote average within [0,10],
// a known status, cast ordered by billing and non-nil collections.
func (m *Movie) Normalize() {
	m.Title = strings.TrimSpace(m.Title)
	switch {
	case m.VoteAverage < 0:
		m.VoteAverage = 0
	case m.VoteAverage > MaxVoteAverage:
		m.VoteAverage = MaxVoteAverage
	}
	if m.VoteCount < 0 {
		m.VoteCount = 0
	}
	if !ValidMovieStatus(m.Status) {
		m.Status = MovieReleased
	}
	sort.SliceStable(m.Cast, func(i, j int) bool { return m.Cast[i].Order < m.Cast[j].Order })
	if m.Genres == nil {
		m.Genres = []Genre{}
	}
	if m.Cast == nil {
		m.Cast = []CastMember{}
	}
	if m.Crew == nil {
		m.Crew = []CrewMember{}
	}
	if m.Keywords == nil {
		m.Keywords = []string{}
	}
	if m.ProductionCompanies == nil {
		m.ProductionCompanies = []ProductionCompany{}
	}
	if m.ProductionCountries == nil {
		m.ProductionCountries = []ProductionCountry{}
	}
	if m.SpokenLanguages == nil {
		m.SpokenLanguages = []SpokenLanguage{}
	}
	if m.SimilarMovies == nil {
		m.SimilarMovies = []string{}
	}
	if m.Recommendations == nil {
		m.Recommendations = []string{}
	}
}

// MovieSortField names the sortable movie columns.
type MovieSortField string

const (
	SortPopularity  MovieSortField = "popularity"
	SortVoteAverage MovieSortField = "vote_average"
	SortVoteCount   MovieSortField = "vote_count"
	SortReleaseDate MovieSortField = "release_date"
	SortTitle       MovieSortField = "title"
)

// ParseMovieSortField accepts snake_case and camelCase field names.
func ParseMovieSortField(raw string) (MovieSortField, bool) {
	switch strings.TrimSpace(raw) {
	case "", "popularity":
		return SortPopularity, true
	case "vote_average", "voteAverage", "rating":
		return SortVoteAverage, true
	case "vote_count", "voteCount":
		return SortVoteCount, true
	case "release_date", "releaseDate":
		return SortReleaseDate, true
	case "title":
		return SortTitle, true
	}
	return "", false
}

// MovieFilter selects movies for catalog listing.
type MovieFilter struct {
	Genre  string
	Year   int
	Search string
}

// YearRange returns the half-open interval [Jan 1 year, Jan 1 year+1) in UTC.
func YearRange(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
