package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gmwils/cihui/data"
	"github.com/gmwils/cihui/handlers"
	"github.com/gmwils/cihui/migrations"
)

// Pending store operations older than this get timed out by the sweeper.
const maxPendingAge = time.Minute

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	poolURL := env("CIHUI_PG_CONN_URL", data.DefaultPgPoolURL)
	migrationURL := env("CIHUI_PG_MIGRATION_URL", data.DefaultPgMigrationURL)
	addr := env("CIHUI_LISTEN_ADDR", ":8080")

	mconn, err := data.CreatePGXConnForMigration(ctx, migrationURL)
	if err != nil {
		log.Error("could not connect for migration", "error", err)
		os.Exit(1)
	}
	if err := data.MigrateDB(ctx, mconn, migrations.FS, data.TernMigrationTable); err != nil {
		log.Error("could not migrate schema", "error", err)
		os.Exit(1)
	}
	if err := mconn.Close(ctx); err != nil {
		log.Warn("could not close migration connection", "error", err)
	}

	pool, err := data.CreatePGXPool(ctx, poolURL)
	if err != nil {
		log.Error("could not connect to data store", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dispatcher := data.NewDispatcher(pool, log)
	go func() {
		for range time.Tick(maxPendingAge / 2) {
			if n := dispatcher.SweepStale(maxPendingAge); n > 0 {
				log.Warn("swept stale store operations", "count", n)
			}
		}
	}()

	lists := data.NewListData(dispatcher, log)
	accounts := data.NewAccountData(dispatcher, log,
		env("CIHUI_API_USER", "user"), env("CIHUI_API_PASS", "secret"))

	secret := os.Getenv("CIHUI_COOKIE_SECRET")
	if secret == "" {
		log.Warn("CIHUI_COOKIE_SECRET not set; sessions will not survive restarts")
		secret = data.NewRandomSecret()
	}

	h := &handlers.Handler{
		Lists:    lists,
		Accounts: accounts,
		Sessions: handlers.NewSessionSigner(secret),
		Log:      log,
	}
	mux := http.NewServeMux()
	h.Register(mux)

	log.Info("server starting", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
