package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cinelog/pkg/catalog"
	"cinelog/pkg/domain"
	"cinelog/pkg/store"
)

func newSeedStore(t *testing.T) *store.GormStore {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSeedBundledCatalogLinksSimilarMovies(t *testing.T) {
	st := newSeedStore(t)
	ctx := context.Background()

	res, err := seed(ctx, st, options{links: 3}, time.Now().UTC())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Imported == 0 || res.Linked == 0 {
		t.Fatalf("unexpected summary %+v", res)
	}
	_, total, err := st.ListMovies(ctx, domain.MovieFilter{}, domain.SortTitle, domain.Asc, domain.Page{Number: 1, Limit: 1})
	if err != nil {
		t.Fatalf("list movies: %v", err)
	}
	if int(total) != res.Imported {
		t.Fatalf("stored %d movies, imported %d", total, res.Imported)
	}

	// reseeding upserts instead of duplicating
	if _, err := seed(ctx, st, options{links: 3}, time.Now().UTC()); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	_, again, err := st.ListMovies(ctx, domain.MovieFilter{}, domain.SortTitle, domain.Asc, domain.Page{Number: 1, Limit: 1})
	if err != nil {
		t.Fatalf("list movies: %v", err)
	}
	if again != total {
		t.Fatalf("reseed changed movie count from %d to %d", total, again)
	}
}

func TestSeedFromFileWithClear(t *testing.T) {
	st := newSeedStore(t)
	ctx := context.Background()
	if _, err := seed(ctx, st, options{links: 3}, time.Now().UTC()); err != nil {
		t.Fatalf("seed bundled: %v", err)
	}

	path := filepath.Join(t.TempDir(), "movies.json")
	content := `[
  {"id":"heat","title":"Heat","release_date":"1995-12-15T00:00:00Z","genres":[{"id":80,"name":"Crime"}]},
  {"id":"ronin","title":"Ronin","release_date":"1998-09-25T00:00:00Z","genres":[{"id":80,"name":"Crime"}]}
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	res, err := seed(ctx, st, options{file: path, clear: true, links: 3}, time.Now().UTC())
	if err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if res.Imported != 2 || res.Linked != 2 {
		t.Fatalf("unexpected summary %+v", res)
	}
	_, total, err := st.ListMovies(ctx, domain.MovieFilter{}, domain.SortTitle, domain.Asc, domain.Page{Number: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list movies: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected clear to leave only the file's movies, got %d", total)
	}
	heat, ok, err := st.GetMovie(ctx, catalog.MovieID("heat"))
	if err != nil || !ok {
		t.Fatalf("get heat: ok=%v err=%v", ok, err)
	}
	if len(heat.SimilarMovies) != 1 || heat.SimilarMovies[0] != catalog.MovieID("ronin") {
		t.Fatalf("unexpected similar links %v", heat.SimilarMovies)
	}
}

func TestSeedMissingFile(t *testing.T) {
	st := newSeedStore(t)
	if _, err := seed(context.Background(), st, options{file: filepath.Join(t.TempDir(), "nope.json")}, time.Now()); err == nil {
		t.Fatalf("expected error for missing catalog file")
	}
}
