package main

import (
	"context"
	"log"
	"time"

	"docuchat/internal/activities"
	"docuchat/internal/config"
	"docuchat/internal/objectstore"
	"docuchat/internal/storage"
	"docuchat/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	objects, err := objectstore.NewFS(cfg.ObjectStoreRoot)
	if err != nil {
		log.Fatal(err)
	}
	a, err := activities.New(cfg, db, objects)
	if err != nil {
		log.Fatal(err)
	}
	activities.Register(w, a)

	log.Printf("docuchat worker listening on %s queue=%s embed_providers=%q", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.EmbedProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
