// Command waitfordb blocks until the Postgres database in DATABASE_URL
// accepts connections. It is meant to run before the server in compose and
// CI setups.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/Skotchmaster/online_store/internal/config"
	"github.com/Skotchmaster/online_store/internal/logging"
)

const (
	defaultTimeout = 60 * time.Second
	retryInterval  = 2 * time.Second
	pingTimeout    = 2 * time.Second
)

type pinger interface {
	PingContext(ctx context.Context) error
}

func main() {
	log := logging.New(config.EnvDefault("LOG_LEVEL", "info"))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(2)
	}
	timeout, err := config.EnvDurationDefault("WAIT_FOR_DB_TIMEOUT", defaultTimeout)
	if err != nil || timeout <= 0 {
		log.Error("invalid WAIT_FOR_DB_TIMEOUT", "error", err)
		os.Exit(2)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := wait(context.Background(), db, timeout, retryInterval); err != nil {
		log.Error("postgres not ready", "error", err)
		db.Close()
		os.Exit(1)
	}
	log.Info("postgres ready")
}

// wait pings db until it answers or timeout elapses.
func wait(ctx context.Context, db pinger, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		pctx, pcancel := context.WithTimeout(ctx, pingTimeout)
		err := db.PingContext(pctx)
		pcancel()
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("not ready within %s: %w", timeout, err)
		case <-time.After(interval):
		}
	}
}
