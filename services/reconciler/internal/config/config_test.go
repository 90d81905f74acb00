package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUEUE_CONCURRENCY", "4")
	cfg, err := Load(writeConfig(t, `
port: "8090"
storeDriver: "SQLite"
sqlitePath: "cinelog.db"
redisAddr: "localhost:6379"
`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Fatalf("store driver = %q", cfg.StoreDriver)
	}
	if cfg.QueueStream != "cinelog:jobs" || cfg.QueueGroup != "reconciler" {
		t.Fatalf("queue defaults not applied: %+v", cfg)
	}
	if cfg.QueueConcurrency != 4 {
		t.Fatalf("concurrency = %d, want 4", cfg.QueueConcurrency)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	cases := map[string]struct {
		content string
		want    string
	}{
		"missing redis": {
			content: "port: \"8090\"\nstoreDriver: sqlite\nsqlitePath: a.db\n",
			want:    "redisAddr",
		},
		"missing database url": {
			content: "port: \"8090\"\nredisAddr: localhost:6379\n",
			want:    "databaseURL",
		},
		"bad retry delay": {
			content: "port: \"8090\"\nstoreDriver: sqlite\nsqlitePath: a.db\nredisAddr: localhost:6379\nqueueRetryDelay: soon\n",
			want:    "queueRetryDelay",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
