package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const migrateLockID int64 = 52814003

// liveReviewIndex enforces one non-deleted review per (user, movie).
// Postgres and SQLite both accept partial indexes with this syntax.
const liveReviewIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_live_user_movie
	ON reviews (user_id, movie_id) WHERE state <> 'deleted'`

// GormStore implements Store on GORM with Postgres in production and
// SQLite for tests and local development.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres database and runs migrations under an
// advisory lock so concurrent replicas do not race.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := openGorm(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewSQLiteStore opens (or creates) a SQLite database file. Writers share
// one connection so concurrent transactions queue instead of failing busy.
func NewSQLiteStore(path string) (*GormStore, error) {
	db, err := openGorm(sqlite.Open(path + "?_busy_timeout=5000&_foreign_keys=on"))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func openGorm(dialector gorm.Dialector) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&MovieModel{}, &MovieGenreModel{}, &MovieDirectorModel{}, &MovieLinkModel{},
		&UserModel{}, &UserMovieModel{}, &FollowModel{},
		&ReviewModel{}, &ReviewVoteModel{}, &ReviewReplyModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(liveReviewIndex).Error; err != nil {
		return fmt.Errorf("create live review index: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	}
	return err
}

// decrementFloor is a SET expression that never takes a counter below zero.
func decrementFloor(column string) any {
	return gorm.Expr(fmt.Sprintf("CASE WHEN %s > 0 THEN %s - 1 ELSE 0 END", column, column))
}

func increment(column string) any {
	return gorm.Expr(column + " + 1")
}
