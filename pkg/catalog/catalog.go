// Package catalog holds the bundled seed movies and the similarity linking
// applied when a catalog is imported.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cinelog/internal/util"
	"cinelog/pkg/domain"
)

// DefaultSimilarLinks is how many similar movies an import links per movie.
const DefaultSimilarLinks = 3

//go:embed movies.json
var bundled []byte

// ids derived from imdb id (or title and year) stay stable across imports
var idNamespace = uuid.MustParse("0b8f1f0e-6a55-4c1e-9d43-5f2f6c1c7a10")

// Default returns the bundled catalog.
func Default(now time.Time) ([]domain.Movie, error) {
	return Decode(bytes.NewReader(bundled), now)
}

// Load reads a JSON array of TMDb-shaped movies from path.
func Load(path string, now time.Time) ([]domain.Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f, now)
}

// Decode parses movies, assigns missing ids, normalizes them and stamps
// timestamps with now. Provided ids that are not uuids are mapped through
// MovieID.
func Decode(r io.Reader, now time.Time) ([]domain.Movie, error) {
	var movies []domain.Movie
	if err := json.NewDecoder(r).Decode(&movies); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(movies))
	for i := range movies {
		m := &movies[i]
		m.Normalize()
		if m.Title == "" {
			return nil, fmt.Errorf("catalog entry %d: title required", i)
		}
		m.ID = strings.TrimSpace(m.ID)
		switch {
		case m.ID == "":
			m.ID = stableID(*m)
		case !util.ValidID(m.ID):
			m.ID = MovieID(m.ID)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate movie %q", i, m.Title)
		}
		seen[m.ID] = struct{}{}
		m.ReleaseDate = m.ReleaseDate.UTC()
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
	}
	return movies, nil
}

// MovieID maps an external catalog key to the uuid it is stored under.
func MovieID(key string) string {
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func stableID(m domain.Movie) string {
	name := strings.TrimSpace(m.IMDbID)
	if name == "" {
		name = strings.ToLower(m.Title) + "|" + strconv.Itoa(m.ReleaseDate.Year())
	}
	return MovieID(name)
}

// LinkSimilar returns, per movie id, up to limit other movies that share a
// genre name or a director, in catalog order.
func LinkSimilar(movies []domain.Movie, limit int) map[string][]string {
	if limit <= 0 {
		limit = DefaultSimilarLinks
	}
	genres := make([]map[string]struct{}, len(movies))
	directors := make([]map[string]struct{}, len(movies))
	for i, m := range movies {
		genres[i] = toSet(m.GenreNames())
		directors[i] = toSet(m.Directors())
	}
	links := make(map[string][]string, len(movies))
	for i, m := range movies {
		similar := make([]string, 0, limit)
		for j, other := range movies {
			if i == j || other.ID == m.ID {
				continue
			}
			if overlaps(genres[i], genres[j]) || overlaps(directors[i], directors[j]) {
				similar = append(similar, other.ID)
				if len(similar) == limit {
					break
				}
			}
		}
		links[m.ID] = similar
	}
	return links
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func overlaps(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
