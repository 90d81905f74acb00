package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinelog/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// embedded list field and its counter for each toggleable list
var mongoListFields = map[domain.MovieList][2]string{
	domain.ListFavorites: {"favorites", "stats.favoritesCount"},
	domain.ListWatchlist: {"watchlist", "stats.watchlistCount"},
}

func (s *MongoStore) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.users.InsertOne(ctx, userToDoc(u))
	return translateMongo(err)
}

func (s *MongoStore) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := s.users.UpdateByID(ctx, u.ID, bson.M{"$set": bson.M{
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"avatar":        u.Avatar,
		"bio":           u.Bio,
		"role":          string(u.Role),
		"is_verified":   u.IsVerified,
		"is_active":     u.IsActive,
		"last_login":    u.LastLogin,
		"preferences":   u.Preferences,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	return s.getUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	return s.getUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	return s.getUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) getUser(ctx context.Context, filter bson.M) (domain.User, bool, error) {
	doc, found, err := s.getUserDoc(ctx, filter)
	if err != nil || !found {
		return domain.User{}, found, err
	}
	return doc.toDomain(), true, nil
}

func (s *MongoStore) getUserDoc(ctx context.Context, filter bson.M) (userDoc, bool, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return userDoc{}, false, nil
		}
		return userDoc{}, false, err
	}
	return doc, true, nil
}

func (s *MongoStore) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return orderByIDs(users, ids, func(u domain.User) string { return u.ID }), nil
}

func (s *MongoStore) UserCount(ctx context.Context) (int64, error) {
	return s.users.CountDocuments(ctx, bson.M{})
}

func (s *MongoStore) GetUserLists(ctx context.Context, userID string) (domain.UserLists, error) {
	doc, found, err := s.getUserDoc(ctx, bson.M{"_id": userID})
	if err != nil {
		return domain.UserLists{}, err
	}
	if !found {
		return userDoc{}.lists(), nil
	}
	return doc.lists(), nil
}

func (s *MongoStore) ListFollowing(ctx context.Context, userID string, page domain.Page) ([]domain.User, int64, error) {
	return s.listFollowEdges(ctx, userID, func(d userDoc) []string { return d.Following }, page)
}

func (s *MongoStore) ListFollowers(ctx context.Context, userID string, page domain.Page) ([]domain.User, int64, error) {
	return s.listFollowEdges(ctx, userID, func(d userDoc) []string { return d.Followers }, page)
}

// listFollowEdges pages an embedded id array newest first. Ids that no
// longer resolve to a user are dropped before counting.
func (s *MongoStore) listFollowEdges(ctx context.Context, userID string, edges func(userDoc) []string, page domain.Page) ([]domain.User, int64, error) {
	doc, found, err := s.getUserDoc(ctx, bson.M{"_id": userID})
	if err != nil || !found {
		return []domain.User{}, 0, err
	}
	ids := edges(doc)
	newestFirst := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		newestFirst = append(newestFirst, ids[i])
	}
	users, err := s.GetUsersByIDs(ctx, newestFirst)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(users))
	start := page.Offset()
	if start >= len(users) {
		return []domain.User{}, total, nil
	}
	end := start + page.Limit
	if end > len(users) {
		end = len(users)
	}
	return users[start:end], total, nil
}

func (s *MongoStore) ToggleFollow(ctx context.Context, followerID, followeeID string, at time.Time) (bool, error) {
	following := false
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		following = false
		count, err := s.users.CountDocuments(sc, bson.M{"_id": bson.M{"$in": bson.A{followerID, followeeID}}})
		if err != nil {
			return err
		}
		if count != 2 {
			return ErrNotFound
		}
		res, err := s.users.UpdateOne(sc,
			bson.M{"_id": followerID, "following": followeeID},
			bson.M{"$pull": bson.M{"following": followeeID}, "$set": bson.M{"updated_at": at}})
		if err != nil {
			return err
		}
		if res.ModifiedCount > 0 {
			_, err = s.users.UpdateByID(sc, followeeID, bson.M{"$pull": bson.M{"followers": followerID}})
			return err
		}
		following = true
		if _, err := s.users.UpdateByID(sc, followerID, bson.M{
			"$addToSet": bson.M{"following": followeeID},
			"$set":      bson.M{"updated_at": at},
		}); err != nil {
			return err
		}
		_, err = s.users.UpdateByID(sc, followeeID, bson.M{"$addToSet": bson.M{"followers": followerID}})
		return err
	})
	return following, err
}

// ToggleMovieList flips membership with conditional single-document updates,
// so the array and its counter always move together.
func (s *MongoStore) ToggleMovieList(ctx context.Context, userID string, list domain.MovieList, movieID string, at time.Time) (bool, error) {
	fields, ok := mongoListFields[list]
	if !ok {
		return false, fmt.Errorf("toggle list %q: unsupported", list)
	}
	field, counter := fields[0], fields[1]
	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID, field: movieID}, bson.A{
			bson.M{"$set": bson.M{
				field: bson.M{"$filter": bson.M{
					"input": "$" + field,
					"as":    "id",
					"cond":  bson.M{"$ne": bson.A{"$$id", movieID}},
				}},
				counter:      floorDecrement("$" + counter),
				"updated_at": at,
			}},
		})
		if err != nil {
			return false, err
		}
		if res.MatchedCount > 0 {
			return false, nil
		}
		res, err = s.users.UpdateOne(ctx, bson.M{"_id": userID, field: bson.M{"$ne": movieID}}, bson.M{
			"$push": bson.M{field: movieID},
			"$inc":  bson.M{counter: 1},
			"$set":  bson.M{"updated_at": at},
		})
		if err != nil {
			return false, err
		}
		if res.MatchedCount > 0 {
			return true, nil
		}
		if _, found, err := s.getUserDoc(ctx, bson.M{"_id": userID}); err != nil {
			return false, err
		} else if !found {
			return false, ErrNotFound
		}
	}
	return false, fmt.Errorf("toggle list %q: concurrent update", list)
}

func (s *MongoStore) UpsertWatched(ctx context.Context, userID string, entry domain.WatchedEntry) (bool, error) {
	doc := watchedDoc{MovieID: entry.MovieID, WatchedAt: entry.WatchedAt, Rating: entry.Rating, Review: entry.Review}
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "watched.movie": entry.MovieID},
		bson.M{"$set": bson.M{"watched.$": doc}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return false, nil
	}
	res, err = s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "watched.movie": bson.M{"$ne": entry.MovieID}},
		bson.M{"$push": bson.M{"watched": doc}, "$inc": bson.M{"stats.moviesWatched": 1}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return true, nil
}

func (s *MongoStore) ReconcileUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	var stats domain.UserStats
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		doc, found, err := s.getUserDoc(sc, bson.M{"_id": userID})
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		ratings, err := s.ratings(sc, bson.M{"user": userID, "live": true})
		if err != nil {
			return err
		}
		agg := domain.AggregateRatings(ratings)
		stats = domain.UserStats{
			MoviesWatched:  len(doc.Watched),
			ReviewsWritten: agg.TotalReviews,
			FavoritesCount: len(doc.Favorites),
			WatchlistCount: len(doc.Watchlist),
			AverageRating:  agg.AverageRating,
		}
		_, err = s.users.UpdateByID(sc, userID, bson.M{"$set": bson.M{"stats": stats}})
		return err
	})
	return stats, err
}

func (s *MongoStore) ratings(ctx context.Context, filter bson.M) ([]int, error) {
	opts := options.Find().
		SetProjection(bson.M{"rating": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.reviews.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Rating int `bson:"rating"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Rating)
	}
	return out, nil
}

// floorDecrement is an aggregation expression for max(0, field-1).
func floorDecrement(field string) bson.M {
	return bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{bson.M{"$ifNull": bson.A{field, 0}}, 1}}}}
}
