package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cinelog/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore implements Store on MongoDB. Votes, replies and user lists are
// embedded in their parent documents; operations spanning two documents use
// multi-document transactions, which need a replica set.
type MongoStore struct {
	client  *mongo.Client
	movies  *mongo.Collection
	users   *mongo.Collection
	reviews *mongo.Collection
}

// NewMongoStore connects, pings and ensures indexes.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if strings.TrimSpace(database) == "" {
		database = "cinelog"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	s := &MongoStore{
		client:  client,
		movies:  db.Collection("movies"),
		users:   db.Collection("users"),
		reviews: db.Collection("reviews"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.movies.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "overview", Value: "text"}, {Key: "tagline", Value: "text"}}},
		{Keys: bson.D{{Key: "genres.name", Value: 1}}},
		{Keys: bson.D{{Key: "directors", Value: 1}}},
		{Keys: bson.D{{Key: "release_date", Value: -1}}},
		{Keys: bson.D{{Key: "vote_average", Value: -1}}},
		{Keys: bson.D{{Key: "popularity", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("movie indexes: %w", err)
	}
	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	_, err = s.reviews.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user", Value: 1}, {Key: "movie", Value: 1}},
			Options: options.Index().
				SetName("live_user_movie").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"live": true}),
		},
		{Keys: bson.D{{Key: "movie", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("review indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return translateMongo(err)
}

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrConflict
	}
	return err
}

func (s *MongoStore) SaveMovies(ctx context.Context, movies []domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(movies))
	for _, movie := range movies {
		movie.Normalize()
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": movie.ID}).
			SetReplacement(movieToDoc(movie)).
			SetUpsert(true))
	}
	_, err := s.movies.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("save movies: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteAllMovies(ctx context.Context) error {
	_, err := s.movies.DeleteMany(ctx, bson.M{})
	return err
}

func (s *MongoStore) SetMovieLinks(ctx context.Context, movieID string, similar, recommendations []string) error {
	if similar == nil {
		similar = []string{}
	}
	if recommendations == nil {
		recommendations = []string{}
	}
	res, err := s.movies.UpdateByID(ctx, movieID, bson.M{"$set": bson.M{
		"similar_movies":  similar,
		"recommendations": recommendations,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) GetMovie(ctx context.Context, id string) (domain.Movie, bool, error) {
	var doc movieDoc
	if err := s.movies.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Movie{}, false, nil
		}
		return domain.Movie{}, false, err
	}
	return doc.toDomain(), true, nil
}

func (s *MongoStore) GetMoviesByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	if len(ids) == 0 {
		return []domain.Movie{}, nil
	}
	movies, err := s.findMovies(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	return orderByIDs(movies, ids, func(m domain.Movie) string { return m.ID }), nil
}

func (s *MongoStore) ListMovies(ctx context.Context, filter domain.MovieFilter, sortField domain.MovieSortField, order domain.SortOrder, page domain.Page) ([]domain.Movie, int64, error) {
	query := bson.M{}
	if genre := strings.TrimSpace(filter.Genre); genre != "" {
		query["genres.name"] = genre
	}
	if filter.Year > 0 {
		start, end := domain.YearRange(filter.Year)
		query["release_date"] = bson.M{"$gte": start, "$lt": end}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["$text"] = bson.M{"$search": search}
	}
	total, err := s.movies.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	column, ok := movieSortColumns[sortField]
	if !ok {
		column = "popularity"
	}
	opts := options.Find().
		SetSort(bson.D{{Key: column, Value: sortDirection(order)}, {Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	movies, err := s.findMovies(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return movies, total, nil
}

func (s *MongoStore) DistinctGenres(ctx context.Context) ([]string, error) {
	raw, err := s.movies.Distinct(ctx, "genres.name", bson.M{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if name, ok := v.(string); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MongoStore) SimilarMovies(ctx context.Context, movie domain.Movie, limit int) ([]domain.Movie, error) {
	var or bson.A
	if genres := movie.GenreNames(); len(genres) > 0 {
		or = append(or, bson.M{"genres.name": bson.M{"$in": genres}})
	}
	if directors := movie.Directors(); len(directors) > 0 {
		or = append(or, bson.M{"directors": bson.M{"$in": directors}})
	}
	if len(or) == 0 {
		return []domain.Movie{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "vote_average", Value: -1}, {Key: "popularity", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return s.findMovies(ctx, bson.M{"_id": bson.M{"$ne": movie.ID}, "$or": or}, opts)
}

func (s *MongoStore) findMovies(ctx context.Context, filter any, opts *options.FindOptions) ([]domain.Movie, error) {
	cur, err := s.movies.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []movieDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Movie, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func sortDirection(order domain.SortOrder) int {
	if order == domain.Asc {
		return 1
	}
	return -1
}
