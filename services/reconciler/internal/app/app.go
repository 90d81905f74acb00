package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cinelog/pkg/domain"
	"cinelog/pkg/queue"
	"cinelog/pkg/store"
)

// ErrUnknownKind marks a job this worker has no handler for.
var ErrUnknownKind = errors.New("unknown job kind")

// Config holds runtime configuration.
type Config struct {
	StoreDriver   string
	DatabaseURL   string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
	Store         store.Store
	Queue         *queue.RedisQueue
	Concurrency   int
}

// App consumes maintenance jobs and repairs denormalized user counters.
type App struct {
	store       store.Store
	queue       *queue.RedisQueue
	concurrency int
}

// New constructs the reconciler with persistence.
func New(cfg Config) (*App, error) {
	if cfg.Queue == nil {
		return nil, errors.New("job queue required")
	}
	dataStore := cfg.Store
	if dataStore == nil {
		var err error
		dataStore, err = store.Open(context.Background(), store.OpenConfig{
			Driver:        cfg.StoreDriver,
			DatabaseURL:   cfg.DatabaseURL,
			SQLitePath:    cfg.SQLitePath,
			MongoURI:      cfg.MongoURI,
			MongoDatabase: cfg.MongoDatabase,
		})
		if err != nil {
			return nil, err
		}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &App{store: dataStore, queue: cfg.Queue, concurrency: concurrency}, nil
}

// Run blocks consuming jobs until ctx ends.
func (a *App) Run(ctx context.Context) error {
	slog.Info("reconciler workers started", "concurrency", a.concurrency)
	err := a.queue.Run(ctx, a.concurrency, a.process)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// GetJob returns a job by ID.
func (a *App) GetJob(ctx context.Context, id string) (queue.Job, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return a.queue.GetJob(ctx, id)
}

// Reconcile recomputes one user's counters from their lists and reviews.
func (a *App) Reconcile(ctx context.Context, userID string) (domain.UserStats, error) {
	stats, err := a.store.ReconcileUserStats(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("reconcile user %s: %w", userID, err)
	}
	return stats, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

func (a *App) process(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindReconcileStats:
		stats, err := a.Reconcile(ctx, job.SubjectID)
		if err != nil {
			return err
		}
		slog.Info("user stats reconciled",
			"job_id", job.ID,
			"user_id", job.SubjectID,
			"movies_watched", stats.MoviesWatched,
			"reviews_written", stats.ReviewsWritten,
			"favorites", stats.FavoritesCount,
			"watchlist", stats.WatchlistCount,
		)
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, job.Kind)
	}
}
