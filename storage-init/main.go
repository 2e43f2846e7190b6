// Command storage-init prepares the MongoDB database for the task manager
// server. It is safe to run on every deploy.
package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Hasinur3813/task-manager-server/config"
	"github.com/Hasinur3813/task-manager-server/storage"
)

const initTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("database", cfg.MongoDatabase).Info("storage init starting")

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	store, err := storage.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.WithError(err).Warn("mongodb disconnect")
		}
	}()

	if err := store.Ping(ctx); err != nil {
		log.Fatalf("storage ping: %v", err)
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("ensure indexes: %v", err)
	}

	log.Info("storage init complete")
}
