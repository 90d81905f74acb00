package catalog

import (
	"strings"
	"testing"
	"time"

	"cinelog/pkg/domain"
)

func TestDefaultCatalog(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	movies, err := Default(now)
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if len(movies) == 0 {
		t.Fatalf("expected bundled movies")
	}
	again, err := Default(now)
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	for i, m := range movies {
		if m.ID == "" {
			t.Fatalf("movie %q has no id", m.Title)
		}
		if m.ID != again[i].ID {
			t.Fatalf("ids must be stable, %q vs %q", m.ID, again[i].ID)
		}
		if m.VoteAverage < 0 || m.VoteAverage > domain.MaxVoteAverage {
			t.Fatalf("vote average out of range for %q: %v", m.Title, m.VoteAverage)
		}
		if !m.UpdatedAt.Equal(now) {
			t.Fatalf("expected updated at to be stamped")
		}
	}
}

func TestDecodeClampsAndRejects(t *testing.T) {
	now := time.Now().UTC()
	movies, err := Decode(strings.NewReader(`[{"title":" Heat ","vote_average":12.5,"status":"bogus","release_date":"1995-12-15T00:00:00Z"}]`), now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := movies[0]
	if m.Title != "Heat" || m.VoteAverage != 10 || m.Status != domain.MovieReleased {
		t.Fatalf("unexpected normalized movie: %+v", m)
	}
	if m.ID == "" {
		t.Fatalf("expected generated id")
	}

	if _, err := Decode(strings.NewReader(`[{"title":""}]`), now); err == nil {
		t.Fatalf("expected error for missing title")
	}
	if _, err := Decode(strings.NewReader(`[{"title":"A","imdb_id":"tt1"},{"title":"B","imdb_id":"tt1"}]`), now); err == nil {
		t.Fatalf("expected error for duplicate movie")
	}
}

func TestLinkSimilar(t *testing.T) {
	director := func(name string) []domain.CrewMember {
		return []domain.CrewMember{{Name: name, Job: domain.DirectorJob}}
	}
	movies := []domain.Movie{
		{ID: "a", Genres: []domain.Genre{{Name: "Drama"}}, Crew: director("X")},
		{ID: "b", Genres: []domain.Genre{{Name: "Drama"}}},
		{ID: "c", Genres: []domain.Genre{{Name: "Comedy"}}, Crew: director("X")},
		{ID: "d", Genres: []domain.Genre{{Name: "Horror"}}},
		{ID: "e", Genres: []domain.Genre{{Name: "Drama"}}},
		{ID: "f", Genres: []domain.Genre{{Name: "Drama"}}},
	}
	links := LinkSimilar(movies, 3)
	if got := strings.Join(links["a"], ","); got != "b,c,e" {
		t.Fatalf("unexpected links for a: %s", got)
	}
	if got := strings.Join(links["c"], ","); got != "a" {
		t.Fatalf("unexpected links for c: %s", got)
	}
	if len(links["d"]) != 0 {
		t.Fatalf("expected no links for d, got %v", links["d"])
	}
}

func TestDecodeMapsExternalIDs(t *testing.T) {
	const kept = "6f1d3c2a-8b4e-4f5a-9c7d-0e1f2a3b4c5d"
	movies, err := Decode(strings.NewReader(`[{"id":"heat","title":"Heat"},{"id":" `+kept+` ","title":"Ronin"}]`), time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if movies[0].ID != MovieID("heat") || movies[0].ID == "heat" {
		t.Fatalf("expected mapped id, got %q", movies[0].ID)
	}
	if movies[1].ID != kept {
		t.Fatalf("expected uuid id to be kept, got %q", movies[1].ID)
	}
	if MovieID("heat") != MovieID("heat") || MovieID("heat") == MovieID("ronin") {
		t.Fatalf("movie ids must be stable and distinct")
	}
}
