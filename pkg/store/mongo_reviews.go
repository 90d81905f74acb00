package store

import (
	"context"
	"errors"
	"time"

	"cinelog/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateReview relies on the live_user_movie partial index for uniqueness.
func (s *MongoStore) CreateReview(ctx context.Context, r domain.Review) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.reviews.InsertOne(sc, reviewToDoc(r)); err != nil {
			return err
		}
		res, err := s.users.UpdateByID(sc, r.UserID, bson.M{"$inc": bson.M{"stats.reviewsWritten": 1}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *MongoStore) GetReview(ctx context.Context, id string) (domain.Review, bool, error) {
	var doc reviewDoc
	if err := s.reviews.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return doc.toDomain(), true, nil
}

func (s *MongoStore) UpdateReview(ctx context.Context, r domain.Review) error {
	res, err := s.reviews.UpdateOne(ctx, bson.M{"_id": r.ID, "live": true}, bson.M{"$set": bson.M{
		"rating":     r.Rating,
		"title":      r.Title,
		"content":    r.Content,
		"spoiler":    r.Spoiler,
		"state":      string(r.State),
		"edited_at":  r.EditedAt,
		"updated_at": r.UpdatedAt,
	}})
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteReview(ctx context.Context, id string, at time.Time) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var doc reviewDoc
		err := s.reviews.FindOneAndUpdate(sc, bson.M{"_id": id, "live": true}, bson.M{"$set": bson.M{
			"state":      string(domain.ReviewDeleted),
			"live":       false,
			"deleted_at": at,
			"updated_at": at,
		}}).Decode(&doc)
		if err != nil {
			return err
		}
		_, err = s.users.UpdateByID(sc, doc.UserID, bson.A{
			bson.M{"$set": bson.M{"stats.reviewsWritten": floorDecrement("$stats.reviewsWritten")}},
		})
		return err
	})
}

func (s *MongoStore) ListReviews(ctx context.Context, q ReviewQuery) ([]domain.Review, int64, error) {
	filter := bson.M{"live": true}
	if q.MovieID != "" {
		filter["movie"] = q.MovieID
	}
	if q.UserID != "" {
		filter["user"] = q.UserID
	}
	total, err := s.reviews.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	dir := sortDirection(q.Order)
	var sortKeys bson.D
	switch q.Sort {
	case domain.ReviewSortHelpful:
		sortKeys = append(sortKeys, bson.E{Key: "helpful_count", Value: dir})
	case domain.ReviewSortRating:
		sortKeys = append(sortKeys, bson.E{Key: "rating", Value: dir})
	}
	sortKeys = append(sortKeys, bson.E{Key: "created_at", Value: dir}, bson.E{Key: "_id", Value: 1})

	pipeline := mongo.Pipeline{{{Key: "$match", Value: filter}}}
	if q.Sort == domain.ReviewSortHelpful {
		pipeline = append(pipeline, bson.D{{Key: "$addFields", Value: bson.M{
			"helpful_count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$helpful", bson.A{}}}},
		}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: sortKeys}},
		bson.D{{Key: "$skip", Value: int64(q.Page.Offset())}},
		bson.D{{Key: "$limit", Value: int64(q.Page.Limit)}},
	)
	cur, err := s.reviews.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	var docs []reviewDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]domain.Review, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, total, nil
}

func (s *MongoStore) MovieRatings(ctx context.Context, movieID string) ([]int, error) {
	return s.ratings(ctx, bson.M{"movie": movieID, "live": true})
}

// SetVote removes userID from both vote arrays and appends it to the chosen
// one in a single pipeline update.
func (s *MongoStore) SetVote(ctx context.Context, reviewID, userID string, helpful bool, at time.Time) (domain.Reactions, error) {
	return s.updateVotes(ctx, reviewID, votePipeline(userID, helpful, at))
}

func votePipeline(userID string, helpful bool, at time.Time) bson.A {
	target := "not_helpful"
	if helpful {
		target = "helpful"
	}
	vote := bson.M{"$literal": bson.A{bson.M{"user": userID, "created_at": at}}}
	return bson.A{
		withoutVoter(userID),
		bson.M{"$set": bson.M{target: bson.M{"$concatArrays": bson.A{"$" + target, vote}}}},
	}
}

func (s *MongoStore) RetractVote(ctx context.Context, reviewID, userID string) (domain.Reactions, error) {
	return s.updateVotes(ctx, reviewID, bson.A{withoutVoter(userID)})
}

func (s *MongoStore) updateVotes(ctx context.Context, reviewID string, pipeline bson.A) (domain.Reactions, error) {
	var doc reviewDoc
	err := s.reviews.FindOneAndUpdate(ctx, bson.M{"_id": reviewID, "live": true}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return domain.Reactions{}, translateMongo(err)
	}
	return doc.toDomain().Reactions(), nil
}

func withoutVoter(userID string) bson.M {
	drop := func(field string) bson.M {
		return bson.M{"$filter": bson.M{
			"input": bson.M{"$ifNull": bson.A{"$" + field, bson.A{}}},
			"as":    "v",
			"cond":  bson.M{"$ne": bson.A{"$$v.user", userID}},
		}}
	}
	return bson.M{"$set": bson.M{"helpful": drop("helpful"), "not_helpful": drop("not_helpful")}}
}

func (s *MongoStore) AddReply(ctx context.Context, reviewID string, reply domain.Reply) error {
	res, err := s.reviews.UpdateOne(ctx, bson.M{"_id": reviewID, "live": true},
		bson.M{"$push": bson.M{"replies": replyDoc(reply)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UpdateReply(ctx context.Context, reviewID, replyID, content string, at time.Time) error {
	res, err := s.reviews.UpdateOne(ctx, bson.M{"_id": reviewID, "replies._id": replyID}, bson.M{"$set": bson.M{
		"replies.$.content":    content,
		"replies.$.updated_at": at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteReply(ctx context.Context, reviewID, replyID string) error {
	res, err := s.reviews.UpdateOne(ctx, bson.M{"_id": reviewID, "replies._id": replyID},
		bson.M{"$pull": bson.M{"replies": bson.M{"_id": replyID}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
