package app

import (
	"context"
	"errors"
	"testing"
)

func TestToggleFollowTwiceRestoresGraph(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	res, err := env.app.ToggleFollow(ctx, alice, bob.ID)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if !res.Following || res.FollowersCount != 1 {
		t.Fatalf("unexpected follow result %+v", res)
	}
	following, err := env.app.ListFollowing(ctx, alice.ID, 1, 20)
	if err != nil {
		t.Fatalf("following: %v", err)
	}
	if len(following.Users) != 1 || following.Users[0].ID != bob.ID || following.Pagination.Total != 1 {
		t.Fatalf("unexpected following %+v", following)
	}
	followers, err := env.app.ListFollowers(ctx, bob.ID, 1, 20)
	if err != nil {
		t.Fatalf("followers: %v", err)
	}
	if len(followers.Users) != 1 || followers.Users[0].ID != alice.ID {
		t.Fatalf("unexpected followers %+v", followers)
	}

	res, err = env.app.ToggleFollow(ctx, alice, bob.ID)
	if err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if res.Following || res.FollowersCount != 0 {
		t.Fatalf("unexpected unfollow result %+v", res)
	}
	lists, err := env.store.GetUserLists(ctx, bob.ID)
	if err != nil {
		t.Fatalf("lists: %v", err)
	}
	if len(lists.Followers) != 0 || len(lists.Following) != 0 {
		t.Fatalf("graph not restored: %+v", lists)
	}
}

func TestToggleFollowRejectsSelfAndMissing(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	alice := env.user(t, "alice")

	if _, err := env.app.ToggleFollow(ctx, alice, alice.ID); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("expected self reference error, got %v", err)
	}
	if _, err := env.app.ToggleFollow(ctx, alice, absentID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if _, err := env.app.ListFollowers(ctx, absentID, 1, 20); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestToggleListsAdjustCounters(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.movie(t, movieA, "Inception", 2010, "Action")
	alice := env.user(t, "alice")

	added, err := env.app.ToggleFavorite(ctx, alice, movieA)
	if err != nil || !added {
		t.Fatalf("favorite: added=%v err=%v", added, err)
	}
	added, err = env.app.ToggleWatchlist(ctx, alice, movieA)
	if err != nil || !added {
		t.Fatalf("watchlist: added=%v err=%v", added, err)
	}
	u, _, _ := env.store.GetUserByID(ctx, alice.ID)
	if u.Stats.FavoritesCount != 1 || u.Stats.WatchlistCount != 1 {
		t.Fatalf("unexpected counters %+v", u.Stats)
	}

	added, err = env.app.ToggleFavorite(ctx, alice, movieA)
	if err != nil || added {
		t.Fatalf("unfavorite: added=%v err=%v", added, err)
	}
	u, _, _ = env.store.GetUserByID(ctx, alice.ID)
	if u.Stats.FavoritesCount != 0 || u.Stats.WatchlistCount != 1 {
		t.Fatalf("unexpected counters after removal %+v", u.Stats)
	}

	if _, err := env.app.ToggleFavorite(ctx, alice, absentID); !errors.Is(err, ErrMovieNotFound) {
		t.Fatalf("expected movie not found, got %v", err)
	}
}

func TestMarkWatchedTwiceKeepsOneEntry(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.movie(t, movieA, "Inception", 2010, "Action")
	alice := env.user(t, "alice")

	first, second := 6, 9
	if _, created, err := env.app.MarkWatched(ctx, alice, movieA, WatchedInput{Rating: &first}); err != nil || !created {
		t.Fatalf("first watch: created=%v err=%v", created, err)
	}
	if _, created, err := env.app.MarkWatched(ctx, alice, movieA, WatchedInput{Rating: &second, Review: "better"}); err != nil || created {
		t.Fatalf("second watch: created=%v err=%v", created, err)
	}
	lists, err := env.store.GetUserLists(ctx, alice.ID)
	if err != nil {
		t.Fatalf("lists: %v", err)
	}
	if len(lists.Watched) != 1 || lists.Watched[0].Rating == nil || *lists.Watched[0].Rating != 9 || lists.Watched[0].Review != "better" {
		t.Fatalf("unexpected watched list %+v", lists.Watched)
	}
	u, _, _ := env.store.GetUserByID(ctx, alice.ID)
	if u.Stats.MoviesWatched != 1 {
		t.Fatalf("expected moviesWatched=1, got %d", u.Stats.MoviesWatched)
	}

	bad := 11
	if _, _, err := env.app.MarkWatched(ctx, alice, movieA, WatchedInput{Rating: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetProfilePopulatesListsAndHidesEmail(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.movie(t, movieA, "Inception", 2010, "Action")
	env.movie(t, movieB, "Dunkirk", 2017, "Action")
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	if _, err := env.app.ToggleFavorite(ctx, alice, movieA); err != nil {
		t.Fatalf("favorite: %v", err)
	}
	if _, err := env.app.ToggleWatchlist(ctx, alice, movieB); err != nil {
		t.Fatalf("watchlist: %v", err)
	}
	if _, _, err := env.app.MarkWatched(ctx, alice, movieB, WatchedInput{}); err != nil {
		t.Fatalf("watched: %v", err)
	}
	if _, err := env.app.CreateReview(ctx, alice, movieA, ReviewInput{Rating: 8, Content: "good"}); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := env.app.ToggleFollow(ctx, bob, alice.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}

	profile, err := env.app.GetProfile(ctx, alice.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if len(profile.Favorites) != 1 || profile.Favorites[0].Title != "Inception" {
		t.Fatalf("unexpected favorites %+v", profile.Favorites)
	}
	if len(profile.Watchlist) != 1 || len(profile.Watched) != 1 || profile.Watched[0].Movie.ID != movieB {
		t.Fatalf("unexpected watchlist/watched %+v %+v", profile.Watchlist, profile.Watched)
	}
	if len(profile.RecentReviews) != 1 || profile.RecentReviews[0].Movie == nil {
		t.Fatalf("unexpected recent reviews %+v", profile.RecentReviews)
	}
	if profile.FollowersCount != 1 || profile.FollowingCount != 0 {
		t.Fatalf("unexpected follow counts %d/%d", profile.FollowersCount, profile.FollowingCount)
	}

	if _, err := env.app.GetProfile(ctx, absentID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}
