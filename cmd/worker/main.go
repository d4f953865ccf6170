package main

import (
	"context"
	"log"
	"time"

	"questflow/internal/activities"
	"questflow/internal/config"
	"questflow/internal/providers"
	"questflow/internal/storage"
	"questflow/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
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
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	var db *storage.DB
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		db, err = storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			log.Fatal(err)
		}
	}

	pm, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pm.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(cfg, db, pm))

	log.Printf("questflow worker listening on %s queue=%s llm_providers=%q (%d) backend=%s", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.LLMProviders, pm.LLMCount(), cfg.ProgressBackend)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
