package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"cinelog/internal/util"
	"cinelog/pkg/domain"
	"cinelog/pkg/storage"
	"cinelog/pkg/store"
)

const (
	profileReviewLimit = 20
	maxFollowLimit     = 50
	maxWatchedNoteLen  = 1000
)

// UserView is the account as shown to its owner. Avatar object keys are
// replaced with presigned URLs.
type UserView struct {
	domain.User
	FullName string `json:"fullName"`
}

// Profile is the public view of a user: no email, no credentials.
type Profile struct {
	ID             string                `json:"id"`
	Username       string                `json:"username"`
	FirstName      string                `json:"firstName,omitempty"`
	LastName       string                `json:"lastName,omitempty"`
	FullName       string                `json:"fullName"`
	Avatar         string                `json:"avatar,omitempty"`
	Bio            string                `json:"bio,omitempty"`
	Role           domain.UserRole       `json:"role"`
	Stats          domain.UserStats      `json:"stats"`
	Favorites      []domain.MovieSummary `json:"favorites"`
	Watchlist      []domain.MovieSummary `json:"watchlist"`
	Watched        []WatchedView         `json:"watched"`
	FollowingCount int                   `json:"followingCount"`
	FollowersCount int                   `json:"followersCount"`
	RecentReviews  []ReviewView          `json:"recentReviews"`
	CreatedAt      time.Time             `json:"createdAt"`
}

type WatchedView struct {
	domain.WatchedEntry
	Movie domain.MovieSummary `json:"movie"`
}

// FollowCard is one entry of a following or followers list.
type FollowCard struct {
	domain.UserSummary
	Bio   string           `json:"bio,omitempty"`
	Stats domain.UserStats `json:"stats"`
}

type FollowList struct {
	Users      []FollowCard
	Pagination Pagination
}

type FollowResult struct {
	Following      bool `json:"following"`
	FollowersCount int  `json:"followersCount"`
}

// WatchedInput is the optional rating and note attached to a watched movie.
type WatchedInput struct {
	Rating *int   `json:"rating"`
	Review string `json:"review"`
}

// GetProfile assembles a public profile with populated lists and recent
// reviews. Lists drop movies that no longer exist.
func (a *App) GetProfile(ctx context.Context, userID string) (Profile, error) {
	user, err := a.requireUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		FullName:  user.FullName(),
		Avatar:    a.presentAvatar(ctx, user.Avatar),
		Bio:       user.Bio,
		Role:      user.Role,
		Stats:     user.Stats,
		CreatedAt: user.CreatedAt,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lists, err := a.store.GetUserLists(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("user lists: %w", err)
		}
		ids := make([]string, 0, len(lists.Favorites)+len(lists.Watchlist)+len(lists.Watched))
		ids = append(ids, lists.Favorites...)
		ids = append(ids, lists.Watchlist...)
		for _, w := range lists.Watched {
			ids = append(ids, w.MovieID)
		}
		movies, err := a.store.GetMoviesByIDs(gctx, dedupe(ids))
		if err != nil {
			return fmt.Errorf("list movies: %w", err)
		}
		byID := make(map[string]domain.MovieSummary, len(movies))
		for _, m := range movies {
			byID[m.ID] = m.Summary()
		}
		profile.Favorites = pick(lists.Favorites, byID)
		profile.Watchlist = pick(lists.Watchlist, byID)
		profile.Watched = make([]WatchedView, 0, len(lists.Watched))
		for _, w := range lists.Watched {
			if m, ok := byID[w.MovieID]; ok {
				profile.Watched = append(profile.Watched, WatchedView{WatchedEntry: w, Movie: m})
			}
		}
		profile.FollowingCount = len(lists.Following)
		profile.FollowersCount = len(lists.Followers)
		return nil
	})
	g.Go(func() error {
		reviews, _, err := a.store.ListReviews(gctx, store.ReviewQuery{
			UserID: user.ID,
			Sort:   domain.ReviewSortCreated,
			Order:  domain.Desc,
			Page:   domain.Page{Number: 1, Limit: profileReviewLimit},
		})
		if err != nil {
			return fmt.Errorf("recent reviews: %w", err)
		}
		views, err := a.reviewViews(gctx, reviews, true)
		if err != nil {
			return err
		}
		profile.RecentReviews = views
		return nil
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func pick(ids []string, byID map[string]domain.MovieSummary) []domain.MovieSummary {
	out := make([]domain.MovieSummary, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ToggleFollow follows or unfollows target on behalf of actor.
func (a *App) ToggleFollow(ctx context.Context, actor domain.User, targetID string) (FollowResult, error) {
	if err := checkID("user", targetID); err != nil {
		return FollowResult{}, err
	}
	if actor.ID == targetID {
		return FollowResult{}, ErrCannotFollowSelf
	}
	following, err := a.store.ToggleFollow(ctx, actor.ID, targetID, a.now().UTC())
	if err != nil {
		return FollowResult{}, lookupError(err, ErrUserNotFound)
	}
	_, total, err := a.store.ListFollowers(ctx, targetID, domain.Page{Number: 1, Limit: 1})
	if err != nil {
		return FollowResult{}, fmt.Errorf("count followers: %w", err)
	}
	return FollowResult{Following: following, FollowersCount: int(total)}, nil
}

// ToggleFavorite adds or removes movieID from the user's favorites and
// reports whether it is now present.
func (a *App) ToggleFavorite(ctx context.Context, user domain.User, movieID string) (bool, error) {
	return a.toggleList(ctx, user, domain.ListFavorites, movieID)
}

func (a *App) ToggleWatchlist(ctx context.Context, user domain.User, movieID string) (bool, error) {
	return a.toggleList(ctx, user, domain.ListWatchlist, movieID)
}

func (a *App) toggleList(ctx context.Context, user domain.User, list domain.MovieList, movieID string) (bool, error) {
	if _, err := a.requireMovie(ctx, movieID); err != nil {
		return false, err
	}
	added, err := a.store.ToggleMovieList(ctx, user.ID, list, movieID, a.now().UTC())
	if err != nil {
		return false, lookupError(err, ErrUserNotFound)
	}
	return added, nil
}

// MarkWatched records movieID as watched and reports whether the entry is
// new. Marking it again overwrites the rating, note and time of the
// existing entry.
func (a *App) MarkWatched(ctx context.Context, user domain.User, movieID string, in WatchedInput) (domain.WatchedEntry, bool, error) {
	if in.Rating != nil && (*in.Rating < domain.MinRating || *in.Rating > domain.MaxRating) {
		return domain.WatchedEntry{}, false, invalid("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	note := strings.TrimSpace(in.Review)
	if utf8.RuneCountInString(note) > maxWatchedNoteLen {
		return domain.WatchedEntry{}, false, invalid("review must be at most %d characters", maxWatchedNoteLen)
	}
	if _, err := a.requireMovie(ctx, movieID); err != nil {
		return domain.WatchedEntry{}, false, err
	}
	entry := domain.WatchedEntry{
		MovieID:   movieID,
		WatchedAt: a.now().UTC(),
		Rating:    in.Rating,
		Review:    note,
	}
	created, err := a.store.UpsertWatched(ctx, user.ID, entry)
	if err != nil {
		return domain.WatchedEntry{}, false, lookupError(err, ErrUserNotFound)
	}
	return entry, created, nil
}

func (a *App) ListFollowing(ctx context.Context, userID string, page, limit int) (FollowList, error) {
	return a.listFollow(ctx, userID, page, limit, a.store.ListFollowing)
}

func (a *App) ListFollowers(ctx context.Context, userID string, page, limit int) (FollowList, error) {
	return a.listFollow(ctx, userID, page, limit, a.store.ListFollowers)
}

type followLister func(ctx context.Context, userID string, page domain.Page) ([]domain.User, int64, error)

func (a *App) listFollow(ctx context.Context, userID string, number, limit int, list followLister) (FollowList, error) {
	if _, err := a.requireUser(ctx, userID); err != nil {
		return FollowList{}, err
	}
	page := pageOf(number, limit, maxFollowLimit)
	users, total, err := list(ctx, userID, page)
	if err != nil {
		return FollowList{}, fmt.Errorf("list follow edges: %w", err)
	}
	cards := make([]FollowCard, 0, len(users))
	for _, u := range users {
		cards = append(cards, FollowCard{UserSummary: a.userSummary(ctx, u), Bio: u.Bio, Stats: u.Stats})
	}
	return FollowList{Users: cards, Pagination: newPagination(page, total)}, nil
}

func (a *App) presentUser(ctx context.Context, u domain.User) UserView {
	u.Avatar = a.presentAvatar(ctx, u.Avatar)
	return UserView{User: u, FullName: u.FullName()}
}

func (a *App) userSummary(ctx context.Context, u domain.User) domain.UserSummary {
	s := u.Summary()
	s.Avatar = a.presentAvatar(ctx, s.Avatar)
	return s
}

// presentAvatar turns a stored object key into a presigned URL. External
// avatar URLs pass through unchanged.
func (a *App) presentAvatar(ctx context.Context, avatar string) string {
	if !storage.IsObjectKey(avatar) {
		return avatar
	}
	if a.objects == nil {
		return ""
	}
	url, err := a.objects.PresignGet(ctx, avatar, a.avatarURLTTL)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			util.LoggerFromContext(ctx).Warn("presign avatar failed", "key", avatar, "err", err)
		}
		return ""
	}
	return url
}
