package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinelog/internal/usertoken"
	"cinelog/internal/util"
	"cinelog/pkg/auth"
	"cinelog/pkg/domain"
	"cinelog/pkg/queue"
	"cinelog/pkg/storage"
	"cinelog/pkg/store"
)

// Config holds runtime configuration for the API application.
type Config struct {
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
	Store         store.Store

	Tokens         *usertoken.Manager
	Objects        storage.ObjectStore
	Jobs           JobQueue
	PasswordCost   int
	AvatarURLTTL   time.Duration
	MaxAvatarBytes int64

	// Now overrides the clock in tests.
	Now func() time.Time
}

// JobQueue is the subset of the Redis job queue the API needs.
type JobQueue interface {
	Enqueue(ctx context.Context, kind, subjectID string) (queue.Job, error)
	GetJob(ctx context.Context, jobID string) (queue.Job, bool, error)
}

// App implements the catalog, review, social and account operations on top
// of a Store.
type App struct {
	store          store.Store
	tokens         *usertoken.Manager
	objects        storage.ObjectStore
	jobs           JobQueue
	passwordCost   int
	avatarURLTTL   time.Duration
	maxAvatarBytes int64
	now            func() time.Time
}

// New constructs the application, opening the configured store when none
// is injected.
func New(cfg Config) (*App, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("token manager required")
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = auth.DefaultCost
	}
	if cfg.AvatarURLTTL == 0 {
		cfg.AvatarURLTTL = time.Hour
	}
	if cfg.MaxAvatarBytes == 0 {
		cfg.MaxAvatarBytes = 2 << 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dataStore := cfg.Store
	if dataStore == nil {
		var err error
		dataStore, err = openStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	return &App{
		store:          dataStore,
		tokens:         cfg.Tokens,
		objects:        cfg.Objects,
		jobs:           cfg.Jobs,
		passwordCost:   cfg.PasswordCost,
		avatarURLTTL:   cfg.AvatarURLTTL,
		maxAvatarBytes: cfg.MaxAvatarBytes,
		now:            cfg.Now,
	}, nil
}

func openStore(cfg Config) (store.Store, error) {
	return store.Open(context.Background(), store.OpenConfig{
		Driver:        cfg.StoreDriver,
		DatabaseURL:   cfg.DatabaseURL,
		SQLitePath:    cfg.SQLitePath,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
}

// Store exposes the underlying store for tooling that shares the app wiring.
func (a *App) Store() store.Store {
	return a.store
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// lookupError turns a store miss into the resource-specific sentinel.
func lookupError(err, notFound error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}

// checkID rejects ids that could not have been issued by this service.
func checkID(kind, id string) error {
	if !util.ValidID(id) {
		return invalid("invalid %s id", kind)
	}
	return nil
}

func (a *App) requireMovie(ctx context.Context, id string) (domain.Movie, error) {
	if err := checkID("movie", id); err != nil {
		return domain.Movie{}, err
	}
	movie, ok, err := a.store.GetMovie(ctx, id)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("get movie: %w", err)
	}
	if !ok {
		return domain.Movie{}, ErrMovieNotFound
	}
	return movie, nil
}

func (a *App) requireUser(ctx context.Context, id string) (domain.User, error) {
	if err := checkID("user", id); err != nil {
		return domain.User{}, err
	}
	user, ok, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}
