package store

import (
	"context"
	"time"

	"cinelog/pkg/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	liveReviewCond  = "state <> 'deleted'"
	helpfulCountSQL = "(SELECT COUNT(*) FROM review_votes v WHERE v.review_id = reviews.id AND v.helpful = TRUE)"
)

// CreateReview inserts a review and bumps the author's reviewsWritten.
// A live review for the same (user, movie) yields ErrConflict.
func (s *GormStore) CreateReview(ctx context.Context, r domain.Review) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		var live int64
		if err := tx.Model(&ReviewModel{}).
			Where("user_id = ? AND movie_id = ?", r.UserID, r.MovieID).
			Where(liveReviewCond).
			Count(&live).Error; err != nil {
			return err
		}
		if live > 0 {
			return ErrConflict
		}
		model := reviewToModel(r)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return bumpCounter(tx, r.UserID, "reviews_written", increment("reviews_written"))
	}))
}

// GetReview returns a review in any state, with votes and replies.
func (s *GormStore) GetReview(ctx context.Context, id string) (domain.Review, bool, error) {
	var model ReviewModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	reviews, err := s.hydrateReviews(s.db.WithContext(ctx), []ReviewModel{model})
	if err != nil {
		return domain.Review{}, false, err
	}
	return reviews[0], true, nil
}

// UpdateReview persists an owner edit. Deleted reviews are not updated.
func (s *GormStore) UpdateReview(ctx context.Context, r domain.Review) error {
	res := s.db.WithContext(ctx).Model(&ReviewModel{}).
		Where("id = ?", r.ID).
		Where(liveReviewCond).
		Updates(map[string]any{
			"rating":     r.Rating,
			"title":      r.Title,
			"content":    r.Content,
			"spoiler":    r.Spoiler,
			"state":      string(r.State),
			"edited_at":  r.EditedAt,
			"updated_at": r.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReview soft-deletes a live review and decrements the author's
// reviewsWritten, floored at zero.
func (s *GormStore) DeleteReview(ctx context.Context, id string, at time.Time) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		var model ReviewModel
		if err := tx.Where("id = ?", id).Where(liveReviewCond).First(&model).Error; err != nil {
			return err
		}
		if err := tx.Model(&ReviewModel{}).Where("id = ?", id).Updates(map[string]any{
			"state":      string(domain.ReviewDeleted),
			"deleted_at": at,
			"updated_at": at,
		}).Error; err != nil {
			return err
		}
		res := tx.Model(&UserModel{}).Where("id = ?", model.UserID).
			UpdateColumn("reviews_written", decrementFloor("reviews_written"))
		return res.Error
	}))
}

// ListReviews pages live reviews of a movie or an author.
func (s *GormStore) ListReviews(ctx context.Context, q ReviewQuery) ([]domain.Review, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&ReviewModel{}).Where(liveReviewCond)
	if q.MovieID != "" {
		query = query.Where("movie_id = ?", q.MovieID)
	}
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	desc := q.Order == domain.Desc
	switch q.Sort {
	case domain.ReviewSortHelpful:
		query = query.Order(clause.OrderByColumn{
			Column: clause.Column{Name: helpfulCountSQL, Raw: true},
			Desc:   desc,
		})
	case domain.ReviewSortRating:
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: "rating"}, Desc: desc})
	}
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: desc}).Order("id")
	var models []ReviewModel
	if err := query.Offset(q.Page.Offset()).Limit(q.Page.Limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	reviews, err := s.hydrateReviews(db, models)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// MovieRatings returns the ratings of every live review of a movie.
func (s *GormStore) MovieRatings(ctx context.Context, movieID string) ([]int, error) {
	var ratings []int
	err := s.db.WithContext(ctx).Model(&ReviewModel{}).
		Where("movie_id = ?", movieID).
		Where(liveReviewCond).
		Order("created_at").
		Pluck("rating", &ratings).Error
	if err != nil {
		return nil, err
	}
	return ratings, nil
}

// SetVote replaces any vote by userID on the review with a new one, so a
// user is never in both lists.
func (s *GormStore) SetVote(ctx context.Context, reviewID, userID string, helpful bool, at time.Time) (domain.Reactions, error) {
	var reactions domain.Reactions
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := requireLiveReview(tx, reviewID); err != nil {
			return err
		}
		if err := tx.Where("review_id = ? AND user_id = ?", reviewID, userID).Delete(&ReviewVoteModel{}).Error; err != nil {
			return err
		}
		vote := ReviewVoteModel{ReviewID: reviewID, UserID: userID, Helpful: helpful, CreatedAt: at}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		var err error
		reactions, err = countReactions(tx, reviewID)
		return err
	})
	return reactions, translate(err)
}

// RetractVote removes userID from both vote lists.
func (s *GormStore) RetractVote(ctx context.Context, reviewID, userID string) (domain.Reactions, error) {
	var reactions domain.Reactions
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := requireLiveReview(tx, reviewID); err != nil {
			return err
		}
		if err := tx.Where("review_id = ? AND user_id = ?", reviewID, userID).Delete(&ReviewVoteModel{}).Error; err != nil {
			return err
		}
		var err error
		reactions, err = countReactions(tx, reviewID)
		return err
	})
	return reactions, translate(err)
}

func countReactions(tx *gorm.DB, reviewID string) (domain.Reactions, error) {
	var rows []struct {
		Helpful bool
		Total   int
	}
	if err := tx.Model(&ReviewVoteModel{}).Select("helpful, COUNT(*) AS total").
		Where("review_id = ?", reviewID).Group("helpful").Scan(&rows).Error; err != nil {
		return domain.Reactions{}, err
	}
	var out domain.Reactions
	for _, row := range rows {
		if row.Helpful {
			out.HelpfulCount = row.Total
		} else {
			out.NotHelpfulCount = row.Total
		}
	}
	out.TotalReactions = out.HelpfulCount + out.NotHelpfulCount
	return out, nil
}

func (s *GormStore) AddReply(ctx context.Context, reviewID string, reply domain.Reply) error {
	return translate(s.transaction(ctx, func(tx *gorm.DB) error {
		if err := requireLiveReview(tx, reviewID); err != nil {
			return err
		}
		model := ReviewReplyModel{
			ID:        reply.ID,
			ReviewID:  reviewID,
			UserID:    reply.UserID,
			Content:   reply.Content,
			CreatedAt: reply.CreatedAt,
			UpdatedAt: reply.UpdatedAt,
		}
		return tx.Create(&model).Error
	}))
}

func (s *GormStore) UpdateReply(ctx context.Context, reviewID, replyID, content string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&ReviewReplyModel{}).
		Where("id = ? AND review_id = ?", replyID, reviewID).
		Updates(map[string]any{"content": content, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReply removes the reply row; replies have no soft-delete state.
func (s *GormStore) DeleteReply(ctx context.Context, reviewID, replyID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND review_id = ?", replyID, reviewID).Delete(&ReviewReplyModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func requireLiveReview(tx *gorm.DB, reviewID string) error {
	var count int64
	if err := tx.Model(&ReviewModel{}).Where("id = ?", reviewID).Where(liveReviewCond).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// hydrateReviews loads votes and replies for models in two queries.
func (s *GormStore) hydrateReviews(db *gorm.DB, models []ReviewModel) ([]domain.Review, error) {
	out := make([]domain.Review, 0, len(models))
	if len(models) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	var votes []ReviewVoteModel
	if err := db.Where("review_id IN ?", ids).Order("created_at").Find(&votes).Error; err != nil {
		return nil, err
	}
	var replies []ReviewReplyModel
	if err := db.Where("review_id IN ?", ids).Order("created_at").Order("id").Find(&replies).Error; err != nil {
		return nil, err
	}
	votesByReview := make(map[string][]ReviewVoteModel)
	for _, v := range votes {
		votesByReview[v.ReviewID] = append(votesByReview[v.ReviewID], v)
	}
	repliesByReview := make(map[string][]ReviewReplyModel)
	for _, r := range replies {
		repliesByReview[r.ReviewID] = append(repliesByReview[r.ReviewID], r)
	}
	for _, m := range models {
		out = append(out, reviewFromModel(m, votesByReview[m.ID], repliesByReview[m.ID]))
	}
	return out, nil
}
