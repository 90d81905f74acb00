package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"cinelog/internal/util"
	"cinelog/pkg/domain"
	"cinelog/pkg/store"
)

// ReviewInput is the body of a new review.
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=10"`
	Title   string `json:"title" validate:"max=100"`
	Content string `json:"content" validate:"required,max=2000"`
	Spoiler bool   `json:"spoiler"`
}

// ReviewUpdate is an owner's partial edit. Absent fields are unchanged.
type ReviewUpdate struct {
	Rating  *int    `json:"rating"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Spoiler *bool   `json:"spoiler"`
}

// ReviewListQuery pages a review list.
type ReviewListQuery struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
}

// ReviewView is a review with its author, movie and reaction counts
// populated for output.
type ReviewView struct {
	domain.Review
	User            *domain.UserSummary  `json:"user,omitempty"`
	Movie           *domain.MovieSummary `json:"movie,omitempty"`
	Replies         []ReplyView          `json:"replies"`
	HelpfulCount    int                  `json:"helpfulCount"`
	NotHelpfulCount int                  `json:"notHelpfulCount"`
	TotalReactions  int                  `json:"totalReactions"`
	IsEdited        bool                 `json:"isEdited"`
}

type ReplyView struct {
	domain.Reply
	User *domain.UserSummary `json:"user,omitempty"`
}

type ReviewList struct {
	Reviews    []ReviewView
	Pagination Pagination
}

// CreateReview records user's review of movieID. A user holds at most one
// live review per movie.
func (a *App) CreateReview(ctx context.Context, user domain.User, movieID string, in ReviewInput) (ReviewView, error) {
	movie, err := a.requireMovie(ctx, movieID)
	if err != nil {
		return ReviewView{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := check(in); err != nil {
		return ReviewView{}, err
	}

	now := a.now().UTC()
	review := domain.Review{
		ID:         util.NewID(),
		UserID:     user.ID,
		MovieID:    movie.ID,
		Rating:     in.Rating,
		Title:      in.Title,
		Content:    in.Content,
		Spoiler:    in.Spoiler,
		State:      domain.ReviewActive,
		Helpful:    []domain.Vote{},
		NotHelpful: []domain.Vote{},
		Replies:    []domain.Reply{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.CreateReview(ctx, review); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ReviewView{}, ErrReviewExists
		}
		return ReviewView{}, fmt.Errorf("create review: %w", err)
	}
	summary := movie.Summary()
	view := a.reviewView(review, map[string]domain.UserSummary{user.ID: a.userSummary(ctx, user)})
	view.Movie = &summary
	return view, nil
}

// GetReview returns a live review with author, movie and reply authors.
func (a *App) GetReview(ctx context.Context, id string) (ReviewView, error) {
	review, err := a.liveReview(ctx, id)
	if err != nil {
		return ReviewView{}, err
	}
	views, err := a.reviewViews(ctx, []domain.Review{review}, true)
	if err != nil {
		return ReviewView{}, err
	}
	return views[0], nil
}

// UpdateReview applies an owner's edit and moves the review to edited.
func (a *App) UpdateReview(ctx context.Context, user domain.User, id string, in ReviewUpdate) (ReviewView, error) {
	patch, err := reviewPatch(in)
	if err != nil {
		return ReviewView{}, err
	}
	review, err := a.liveReview(ctx, id)
	if err != nil {
		return ReviewView{}, err
	}
	if review.UserID != user.ID {
		return ReviewView{}, forbidden("not authorized to update this review")
	}
	review.ApplyEdit(patch, a.now().UTC())
	if err := a.store.UpdateReview(ctx, review); err != nil {
		return ReviewView{}, lookupError(err, ErrReviewNotFound)
	}
	views, err := a.reviewViews(ctx, []domain.Review{review}, true)
	if err != nil {
		return ReviewView{}, err
	}
	return views[0], nil
}

func reviewPatch(in ReviewUpdate) (domain.ReviewPatch, error) {
	patch := domain.ReviewPatch{Rating: in.Rating, Spoiler: in.Spoiler}
	if in.Rating != nil && (*in.Rating < domain.MinRating || *in.Rating > domain.MaxRating) {
		return patch, invalid("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if utf8.RuneCountInString(title) > domain.MaxReviewTitleLen {
			return patch, invalid("title must be at most %d characters", domain.MaxReviewTitleLen)
		}
		patch.Title = &title
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return patch, invalid("content is required")
		}
		if utf8.RuneCountInString(content) > domain.MaxReviewContentLen {
			return patch, invalid("content must be at most %d characters", domain.MaxReviewContentLen)
		}
		patch.Content = &content
	}
	if patch.Empty() {
		return patch, invalid("no changes supplied")
	}
	return patch, nil
}

// DeleteReview soft-deletes a review. Owners and admins may delete.
func (a *App) DeleteReview(ctx context.Context, user domain.User, id string) error {
	review, err := a.liveReview(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != user.ID && !user.IsAdmin() {
		return forbidden("not authorized to delete this review")
	}
	if err := a.store.DeleteReview(ctx, id, a.now().UTC()); err != nil {
		return lookupError(err, ErrReviewNotFound)
	}
	return nil
}

// Vote records a helpful or not-helpful reaction, replacing any earlier
// vote by the same user.
func (a *App) Vote(ctx context.Context, user domain.User, reviewID string, helpful bool) (domain.Reactions, error) {
	if err := checkID("review", reviewID); err != nil {
		return domain.Reactions{}, err
	}
	reactions, err := a.store.SetVote(ctx, reviewID, user.ID, helpful, a.now().UTC())
	if err != nil {
		return domain.Reactions{}, lookupError(err, ErrReviewNotFound)
	}
	return reactions, nil
}

// RetractVote removes the user's reaction, if any.
func (a *App) RetractVote(ctx context.Context, user domain.User, reviewID string) (domain.Reactions, error) {
	if err := checkID("review", reviewID); err != nil {
		return domain.Reactions{}, err
	}
	reactions, err := a.store.RetractVote(ctx, reviewID, user.ID)
	if err != nil {
		return domain.Reactions{}, lookupError(err, ErrReviewNotFound)
	}
	return reactions, nil
}

func replyContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", invalid("content is required")
	}
	if utf8.RuneCountInString(content) > domain.MaxReplyContentLen {
		return "", invalid("content must be at most %d characters", domain.MaxReplyContentLen)
	}
	return content, nil
}

func (a *App) AddReply(ctx context.Context, user domain.User, reviewID, content string) (ReplyView, error) {
	if err := checkID("review", reviewID); err != nil {
		return ReplyView{}, err
	}
	content, err := replyContent(content)
	if err != nil {
		return ReplyView{}, err
	}
	now := a.now().UTC()
	reply := domain.Reply{
		ID:        util.NewID(),
		UserID:    user.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.AddReply(ctx, reviewID, reply); err != nil {
		return ReplyView{}, lookupError(err, ErrReviewNotFound)
	}
	summary := a.userSummary(ctx, user)
	return ReplyView{Reply: reply, User: &summary}, nil
}

// UpdateReply edits a reply. Only its author may edit it.
func (a *App) UpdateReply(ctx context.Context, user domain.User, reviewID, replyID, content string) (ReplyView, error) {
	content, err := replyContent(content)
	if err != nil {
		return ReplyView{}, err
	}
	reply, err := a.findReply(ctx, reviewID, replyID)
	if err != nil {
		return ReplyView{}, err
	}
	if reply.UserID != user.ID {
		return ReplyView{}, forbidden("not authorized to update this reply")
	}
	now := a.now().UTC()
	if err := a.store.UpdateReply(ctx, reviewID, replyID, content, now); err != nil {
		return ReplyView{}, lookupError(err, ErrReplyNotFound)
	}
	reply.Content = content
	reply.UpdatedAt = now
	summary := a.userSummary(ctx, user)
	return ReplyView{Reply: reply, User: &summary}, nil
}

// DeleteReply removes a reply. Its author and admins may delete it.
func (a *App) DeleteReply(ctx context.Context, user domain.User, reviewID, replyID string) error {
	reply, err := a.findReply(ctx, reviewID, replyID)
	if err != nil {
		return err
	}
	if reply.UserID != user.ID && !user.IsAdmin() {
		return forbidden("not authorized to delete this reply")
	}
	if err := a.store.DeleteReply(ctx, reviewID, replyID); err != nil {
		return lookupError(err, ErrReplyNotFound)
	}
	return nil
}

func (a *App) findReply(ctx context.Context, reviewID, replyID string) (domain.Reply, error) {
	review, err := a.liveReview(ctx, reviewID)
	if err != nil {
		return domain.Reply{}, err
	}
	if err := checkID("reply", replyID); err != nil {
		return domain.Reply{}, err
	}
	idx := review.FindReply(replyID)
	if idx < 0 {
		return domain.Reply{}, ErrReplyNotFound
	}
	return review.Replies[idx], nil
}

// ListMovieReviews pages the live reviews of a movie.
func (a *App) ListMovieReviews(ctx context.Context, movieID string, q ReviewListQuery) (ReviewList, error) {
	if _, err := a.requireMovie(ctx, movieID); err != nil {
		return ReviewList{}, err
	}
	sortField, ok := domain.ParseReviewSortField(q.SortBy)
	if !ok {
		return ReviewList{}, invalid("sortBy must be one of: createdAt, helpful, rating")
	}
	order, ok := domain.ParseSortOrder(q.Order)
	if !ok {
		return ReviewList{}, invalid("order must be asc or desc")
	}
	page := pageOf(q.Page, q.Limit, maxPageLimit)
	return a.listReviews(ctx, store.ReviewQuery{MovieID: movieID, Sort: sortField, Order: order, Page: page}, false)
}

// ListUserReviews pages a user's live reviews, newest first.
func (a *App) ListUserReviews(ctx context.Context, userID string, q ReviewListQuery) (ReviewList, error) {
	if _, err := a.requireUser(ctx, userID); err != nil {
		return ReviewList{}, err
	}
	page := pageOf(q.Page, q.Limit, maxUserReviewsLimit)
	return a.listReviews(ctx, store.ReviewQuery{UserID: userID, Sort: domain.ReviewSortCreated, Order: domain.Desc, Page: page}, true)
}

func (a *App) listReviews(ctx context.Context, q store.ReviewQuery, withMovie bool) (ReviewList, error) {
	reviews, total, err := a.store.ListReviews(ctx, q)
	if err != nil {
		return ReviewList{}, fmt.Errorf("list reviews: %w", err)
	}
	views, err := a.reviewViews(ctx, reviews, withMovie)
	if err != nil {
		return ReviewList{}, err
	}
	return ReviewList{Reviews: views, Pagination: newPagination(q.Page, total)}, nil
}

func (a *App) liveReview(ctx context.Context, id string) (domain.Review, error) {
	if err := checkID("review", id); err != nil {
		return domain.Review{}, err
	}
	review, ok, err := a.store.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, fmt.Errorf("get review: %w", err)
	}
	if !ok || !review.Live() {
		return domain.Review{}, ErrReviewNotFound
	}
	return review, nil
}

// reviewViews populates authors (of reviews and replies) and, optionally,
// movies. Missing users or movies are left unpopulated.
func (a *App) reviewViews(ctx context.Context, reviews []domain.Review, withMovie bool) ([]ReviewView, error) {
	userIDs := make([]string, 0, len(reviews))
	movieIDs := make([]string, 0, len(reviews))
	for _, r := range reviews {
		userIDs = append(userIDs, r.UserID)
		movieIDs = append(movieIDs, r.MovieID)
		for _, reply := range r.Replies {
			userIDs = append(userIDs, reply.UserID)
		}
	}

	authors := map[string]domain.UserSummary{}
	movies := map[string]domain.MovieSummary{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := a.store.GetUsersByIDs(gctx, dedupe(userIDs))
		if err != nil {
			return fmt.Errorf("review authors: %w", err)
		}
		for _, u := range users {
			authors[u.ID] = a.userSummary(gctx, u)
		}
		return nil
	})
	if withMovie {
		g.Go(func() error {
			found, err := a.store.GetMoviesByIDs(gctx, dedupe(movieIDs))
			if err != nil {
				return fmt.Errorf("review movies: %w", err)
			}
			for _, m := range found {
				movies[m.ID] = m.Summary()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ReviewView, 0, len(reviews))
	for _, r := range reviews {
		view := a.reviewView(r, authors)
		if m, ok := movies[r.MovieID]; ok {
			view.Movie = &m
		}
		out = append(out, view)
	}
	return out, nil
}

func (a *App) reviewView(r domain.Review, authors map[string]domain.UserSummary) ReviewView {
	reactions := r.Reactions()
	view := ReviewView{
		Review:          r,
		Replies:         make([]ReplyView, 0, len(r.Replies)),
		HelpfulCount:    reactions.HelpfulCount,
		NotHelpfulCount: reactions.NotHelpfulCount,
		TotalReactions:  reactions.TotalReactions,
		IsEdited:        r.IsEdited(),
	}
	if u, ok := authors[r.UserID]; ok {
		view.User = &u
	}
	for _, reply := range r.Replies {
		rv := ReplyView{Reply: reply}
		if u, ok := authors[reply.UserID]; ok {
			rv.User = &u
		}
		view.Replies = append(view.Replies, rv)
	}
	return view
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
