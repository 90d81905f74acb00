package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"cinelog/internal/util"
	"cinelog/pkg/catalog"
	"cinelog/pkg/domain"
	"cinelog/pkg/store"
)

type options struct {
	file  string
	clear bool
	links int
}

type summary struct {
	Imported int
	Linked   int
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	var (
		openCfg  store.OpenConfig
		opts     options
		logLevel string
	)
	flag.StringVar(&openCfg.Driver, "driver", envOr("STORE_DRIVER", store.DriverPostgres), "store driver: postgres, sqlite or mongo")
	flag.StringVar(&openCfg.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres DSN")
	flag.StringVar(&openCfg.SQLitePath, "sqlite", os.Getenv("SQLITE_PATH"), "sqlite database file")
	flag.StringVar(&openCfg.MongoURI, "mongo-uri", os.Getenv("MONGO_URI"), "mongo connection URI")
	flag.StringVar(&openCfg.MongoDatabase, "mongo-db", envOr("MONGO_DATABASE", "cinelog"), "mongo database name")
	flag.StringVar(&opts.file, "file", "", "JSON catalog to import instead of the bundled one")
	flag.BoolVar(&opts.clear, "clear", false, "delete all movies before importing")
	flag.IntVar(&opts.links, "links", catalog.DefaultSimilarLinks, "similar movies linked per movie")
	flag.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	util.InitLogger(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, openCfg)
	if err != nil {
		slog.Error("open store failed", "driver", openCfg.Driver, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	res, err := seed(ctx, st, opts, time.Now().UTC())
	if err != nil {
		slog.Error("seed failed", "err", err)
		os.Exit(1)
	}
	slog.Info("catalog seeded", "movies", res.Imported, "linked", res.Linked, "cleared", opts.clear)
}

func seed(ctx context.Context, st store.Store, opts options, now time.Time) (summary, error) {
	var (
		movies []domain.Movie
		err    error
	)
	if opts.file != "" {
		movies, err = catalog.Load(opts.file, now)
	} else {
		movies, err = catalog.Default(now)
	}
	if err != nil {
		return summary{}, err
	}
	if len(movies) == 0 {
		return summary{}, errors.New("catalog is empty")
	}

	if opts.clear {
		if err := st.DeleteAllMovies(ctx); err != nil {
			return summary{}, fmt.Errorf("clear movies: %w", err)
		}
	}
	if err := st.SaveMovies(ctx, movies); err != nil {
		return summary{}, fmt.Errorf("save movies: %w", err)
	}

	links := catalog.LinkSimilar(movies, opts.links)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	linked := 0
	for _, m := range movies {
		similar := links[m.ID]
		if len(similar) == 0 {
			continue
		}
		linked++
		g.Go(func() error {
			if err := st.SetMovieLinks(gctx, m.ID, similar, m.Recommendations); err != nil {
				return fmt.Errorf("link %s: %w", m.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary{}, err
	}
	return summary{Imported: len(movies), Linked: linked}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
