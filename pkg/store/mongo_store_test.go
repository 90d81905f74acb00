package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"cinelog/pkg/domain"
)

func TestMovieDocRoundTrip(t *testing.T) {
	m := testMovie("m-inception", " Inception ", 2010, []string{"Action", "Sci-Fi"}, "Christopher Nolan")
	m.Crew = append(m.Crew,
		domain.CrewMember{ID: 2, Name: "Christopher Nolan", Job: domain.DirectorJob},
		domain.CrewMember{ID: 3, Name: "Hans Zimmer", Job: "Original Music Composer"},
	)
	m.SimilarMovies = []string{"m-interstellar"}
	m.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.UpdatedAt = m.CreatedAt
	m.Normalize()

	doc := movieToDoc(m)
	if !reflect.DeepEqual(doc.Directors, []string{"Christopher Nolan"}) {
		t.Fatalf("directors = %v", doc.Directors)
	}
	if got := doc.toDomain(); !reflect.DeepEqual(got, m) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, m)
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// indexes and queries address these keys
	for _, key := range []string{"_id", "genres", "directors", "release_date", "vote_average", "popularity", "similar_movies"} {
		if _, err := bson.Raw(raw).LookupErr(key); err != nil {
			t.Fatalf("movie document missing %q: %v", key, err)
		}
	}
	if v := bson.Raw(raw).Lookup("genres", "0", "name").StringValue(); v != "Action" {
		t.Fatalf("genres.name = %q", v)
	}
}

func TestUserDocListsStartEmpty(t *testing.T) {
	login := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	u := testUser("u1", "alice")
	u.LastLogin = &login
	u.Stats = domain.UserStats{ReviewsWritten: 2, AverageRating: 7.5}

	doc := userToDoc(u)
	if got := doc.toDomain(); !reflect.DeepEqual(got, u) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, u)
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// $push and $addToSet fail on null, so new users carry empty arrays
	for _, key := range []string{"favorites", "watchlist", "watched", "following", "followers"} {
		v, err := bson.Raw(raw).LookupErr(key)
		if err != nil {
			t.Fatalf("user document missing %q: %v", key, err)
		}
		if v.Type != bson.TypeArray {
			t.Fatalf("%q stored as %v, want array", key, v.Type)
		}
	}

	rating := 8
	doc.Favorites = []string{"m1"}
	doc.Watched = []watchedDoc{{MovieID: "m2", WatchedAt: login, Rating: &rating, Review: "tense"}}
	doc.Following = []string{"u2"}
	lists := doc.lists()
	if !reflect.DeepEqual(lists.Favorites, []string{"m1"}) || len(lists.Watchlist) != 0 || lists.Watchlist == nil {
		t.Fatalf("unexpected movie lists %+v", lists)
	}
	if len(lists.Watched) != 1 || lists.Watched[0].MovieID != "m2" || *lists.Watched[0].Rating != 8 {
		t.Fatalf("unexpected watched %+v", lists.Watched)
	}
	lists.Following[0] = "changed"
	if doc.Following[0] != "u2" {
		t.Fatalf("lists must not alias the document")
	}
}

func TestReviewDocMirrorsLive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := testReview("r1", "u1", "m1", 8)
	r.CreatedAt, r.UpdatedAt = now, now
	r.Helpful = []domain.Vote{{UserID: "u2", CreatedAt: now}}
	r.NotHelpful = []domain.Vote{{UserID: "u3", CreatedAt: now}}
	r.Replies = []domain.Reply{{ID: "p1", UserID: "u2", Content: "agreed", CreatedAt: now, UpdatedAt: now}}

	doc := reviewToDoc(r)
	if !doc.Live {
		t.Fatalf("active review must be live")
	}
	if got := doc.toDomain(); !reflect.DeepEqual(got, r) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, r)
	}

	r.State = domain.ReviewDeleted
	r.DeletedAt = &now
	if reviewToDoc(r).Live {
		t.Fatalf("deleted review must not be live")
	}

	empty := reviewToDoc(testReview("r2", "u1", "m1", 5))
	if empty.Helpful == nil || empty.NotHelpful == nil || empty.Replies == nil {
		t.Fatalf("vote and reply arrays must be non-nil: %+v", empty)
	}
}

func TestTranslateMongo(t *testing.T) {
	plain := errors.New("boom")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no documents", mongo.ErrNoDocuments, ErrNotFound},
		{"wrapped no documents", fmt.Errorf("find: %w", mongo.ErrNoDocuments), ErrNotFound},
		{"duplicate key write", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}, ErrConflict},
		{"duplicate key command", mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, ErrConflict},
		{"other write error", mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 121, Message: "validation"}}}, nil},
		{"store sentinel", ErrNotFound, ErrNotFound},
		{"plain", plain, plain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translateMongo(tc.in)
			switch {
			case tc.in == nil:
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
			case tc.want == nil:
				if errors.Is(got, ErrConflict) || errors.Is(got, ErrNotFound) || got.Error() != tc.in.Error() {
					t.Fatalf("expected passthrough, got %v", got)
				}
			case !errors.Is(got, tc.want):
				t.Fatalf("translateMongo(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestVotePipelineShape(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pipeline := votePipeline("u2", true, at)
	if len(pipeline) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(pipeline))
	}

	// the first stage drops the voter from both lists
	drop := pipeline[0].(bson.M)["$set"].(bson.M)
	for _, field := range []string{"helpful", "not_helpful"} {
		filter := drop[field].(bson.M)["$filter"].(bson.M)
		cond := filter["cond"].(bson.M)["$ne"].(bson.A)
		if cond[0] != "$$v.user" || cond[1] != "u2" {
			t.Fatalf("%s filter cond = %v", field, cond)
		}
		input := filter["input"].(bson.M)["$ifNull"].(bson.A)
		if input[0] != "$"+field {
			t.Fatalf("%s filter input = %v", field, input)
		}
	}

	// the second appends to the chosen list only
	set := pipeline[1].(bson.M)["$set"].(bson.M)
	if _, ok := set["not_helpful"]; ok || len(set) != 1 {
		t.Fatalf("append stage touches %v", set)
	}
	concat := set["helpful"].(bson.M)["$concatArrays"].(bson.A)
	if concat[0] != "$helpful" {
		t.Fatalf("append source = %v", concat[0])
	}
	vote := concat[1].(bson.M)["$literal"].(bson.A)[0].(bson.M)
	if vote["user"] != "u2" || vote["created_at"] != at {
		t.Fatalf("appended vote = %v", vote)
	}

	notHelpful := votePipeline("u2", false, at)[1].(bson.M)["$set"].(bson.M)
	if _, ok := notHelpful["not_helpful"]; !ok {
		t.Fatalf("not helpful vote appends to %v", notHelpful)
	}

	if !reflect.DeepEqual(floorDecrement("$stats.reviewsWritten"), bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{bson.M{"$ifNull": bson.A{"$stats.reviewsWritten", 0}}, 1}}}}) {
		t.Fatalf("unexpected floor decrement %v", floorDecrement("$stats.reviewsWritten"))
	}
}

// newMongoTestStore connects to MONGO_URI, which must point at a replica
// set. Each test gets its own database, dropped on cleanup.
func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	name := fmt.Sprintf("cinelog_test_%d", time.Now().UnixNano())
	s, err := NewMongoStore(ctx, uri, name)
	if err != nil {
		t.Fatalf("open mongo: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.client.Database(name).Drop(ctx)
		_ = s.Close()
	})
	return s
}

func TestMongoStoreContract(t *testing.T) {
	t.Run("duplicate live review", func(t *testing.T) {
		s := newMongoTestStore(t)
		createUsers(t, s, testUser("u1", "alice"))
		checkDuplicateLiveReview(t, s)

		if err := s.DeleteReview(context.Background(), "r1", time.Now().UTC()); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.CreateReview(context.Background(), testReview("r4", "u1", "m1", 6)); err != nil {
			t.Fatalf("a deleted review must free the slot: %v", err)
		}
	})
	t.Run("votes are exclusive", func(t *testing.T) {
		s := newMongoTestStore(t)
		createUsers(t, s, testUser("u1", "alice"))
		if err := s.CreateReview(context.Background(), testReview("r1", "u1", "m1", 8)); err != nil {
			t.Fatalf("create: %v", err)
		}
		checkVotesExclusive(t, s)
	})
	t.Run("toggle follow twice", func(t *testing.T) {
		s := newMongoTestStore(t)
		createUsers(t, s, testUser("u1", "alice"), testUser("u2", "bob"))
		checkToggleFollowTwice(t, s)
	})
	t.Run("watched twice", func(t *testing.T) {
		s := newMongoTestStore(t)
		createUsers(t, s, testUser("u1", "alice"))
		checkWatchedTwice(t, s)
	})
	t.Run("duplicate username", func(t *testing.T) {
		s := newMongoTestStore(t)
		createUsers(t, s, testUser("u1", "alice"))
		dup := testUser("u2", "alice")
		dup.Email = "other@example.com"
		if err := s.CreateUser(context.Background(), dup); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})
}
