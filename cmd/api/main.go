package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"questflow/internal/api"
	"questflow/internal/config"
	"questflow/internal/storage"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer tc.Close()

	var db *storage.DB
	if cfg.ProgressBackend == config.BackendPostgres {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		db, err = storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
	}

	h := api.NewServer(cfg, tc, db)
	log.Printf("questflow api listening on %s backend=%s data_out=%s", cfg.APIAddr, cfg.ProgressBackend, cfg.DataOutRoot)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
