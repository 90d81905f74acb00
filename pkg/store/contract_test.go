package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"cinelog/pkg/domain"
)

// The checks below run against every Store implementation. Callers create
// the users (and reviews) each check names.

// checkDuplicateLiveReview expects user u1 and leaves live review r1 on m1.
func checkDuplicateLiveReview(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateReview(ctx, testReview("r1", "u1", "m1", 8)); err != nil {
		t.Fatalf("create review: %v", err)
	}
	if err := s.CreateReview(ctx, testReview("r2", "u1", "m1", 5)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for second live review, got %v", err)
	}
}

// checkVotesExclusive expects review r1 and exercises voters u2 and u3.
func checkVotesExclusive(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	steps := []struct {
		voter   string
		helpful bool
		want    domain.Reactions
	}{
		{"u2", true, domain.Reactions{HelpfulCount: 1, TotalReactions: 1}},
		{"u2", true, domain.Reactions{HelpfulCount: 1, TotalReactions: 1}},
		{"u2", false, domain.Reactions{NotHelpfulCount: 1, TotalReactions: 1}},
		{"u3", true, domain.Reactions{HelpfulCount: 1, NotHelpfulCount: 1, TotalReactions: 2}},
	}
	for i, step := range steps {
		got, err := s.SetVote(ctx, "r1", step.voter, step.helpful, now)
		if err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
		if got != step.want {
			t.Fatalf("vote %d: reactions = %+v, want %+v", i, got, step.want)
		}
	}

	got, err := s.RetractVote(ctx, "r1", "u2")
	if err != nil {
		t.Fatalf("retract: %v", err)
	}
	if want := (domain.Reactions{HelpfulCount: 1, TotalReactions: 1}); got != want {
		t.Fatalf("after retract = %+v, want %+v", got, want)
	}

	review, _, err := s.GetReview(ctx, "r1")
	if err != nil {
		t.Fatalf("get review: %v", err)
	}
	if len(review.Helpful) != 1 || review.Helpful[0].UserID != "u3" || len(review.NotHelpful) != 0 {
		t.Fatalf("voter lists overlap: helpful=%+v notHelpful=%+v", review.Helpful, review.NotHelpful)
	}

	if _, err := s.SetVote(ctx, "missing", "u2", true, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing review, got %v", err)
	}
}

// checkToggleFollowTwice expects users u1 and u2.
func checkToggleFollowTwice(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	following, err := s.ToggleFollow(ctx, "u1", "u2", now)
	if err != nil || !following {
		t.Fatalf("follow: following=%v err=%v", following, err)
	}
	alice, bob := followLists(t, s)
	if !reflect.DeepEqual(alice.Following, []string{"u2"}) || !reflect.DeepEqual(bob.Followers, []string{"u1"}) {
		t.Fatalf("follow not mirrored: following=%v followers=%v", alice.Following, bob.Followers)
	}

	following, err = s.ToggleFollow(ctx, "u1", "u2", now)
	if err != nil || following {
		t.Fatalf("unfollow: following=%v err=%v", following, err)
	}
	alice, bob = followLists(t, s)
	if len(alice.Following) != 0 || len(bob.Followers) != 0 {
		t.Fatalf("graph not restored: following=%v followers=%v", alice.Following, bob.Followers)
	}

	if _, err := s.ToggleFollow(ctx, "u1", "missing", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing target, got %v", err)
	}
}

func followLists(t *testing.T, s Store) (domain.UserLists, domain.UserLists) {
	t.Helper()
	ctx := context.Background()
	alice, err := s.GetUserLists(ctx, "u1")
	if err != nil {
		t.Fatalf("lists u1: %v", err)
	}
	bob, err := s.GetUserLists(ctx, "u2")
	if err != nil {
		t.Fatalf("lists u2: %v", err)
	}
	return alice, bob
}

// checkWatchedTwice expects user u1.
func checkWatchedTwice(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	first, second := 7, 9

	created, err := s.UpsertWatched(ctx, "u1", domain.WatchedEntry{MovieID: "m1", WatchedAt: time.Now().UTC(), Rating: &first})
	if err != nil || !created {
		t.Fatalf("first watch: created=%v err=%v", created, err)
	}
	created, err = s.UpsertWatched(ctx, "u1", domain.WatchedEntry{MovieID: "m1", WatchedAt: time.Now().UTC(), Rating: &second, Review: "again"})
	if err != nil || created {
		t.Fatalf("second watch: created=%v err=%v", created, err)
	}

	lists, err := s.GetUserLists(ctx, "u1")
	if err != nil {
		t.Fatalf("lists: %v", err)
	}
	if len(lists.Watched) != 1 {
		t.Fatalf("expected one watched entry, got %d", len(lists.Watched))
	}
	entry := lists.Watched[0]
	if entry.Rating == nil || *entry.Rating != 9 || entry.Review != "again" {
		t.Fatalf("watched entry not updated: %+v", entry)
	}

	user, _, err := s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Stats.MoviesWatched != 1 {
		t.Fatalf("expected movies watched 1, got %d", user.Stats.MoviesWatched)
	}
}
