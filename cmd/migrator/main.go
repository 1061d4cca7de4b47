package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"blog/internal/config"
	"blog/internal/storage/migrations"
	"blog/internal/storage/mongodb"
)

func main() {
	var (
		down    int
		prune   bool
		version bool
	)
	flag.String("config", "", "path to config file (or use CONFIG_PATH env)")
	flag.IntVar(&down, "down", 0, "roll back this many migrations instead of applying")
	flag.BoolVar(&prune, "prune", false, "delete expired refresh tokens after migrating")
	flag.BoolVar(&version, "version", false, "print the current migration version and exit")
	flag.Parse()

	configPath := config.FetchConfigPath()
	if configPath == "" {
		log.Fatal("config path is required: pass -config or set CONFIG_PATH")
	}
	cfg := config.LoadConfig(configPath)

	uri, database := cfg.Mongo.URI, cfg.Mongo.Database

	switch {
	case version:
		printVersion(uri, database)
		return
	case down > 0:
		if err := migrations.Down(uri, database, down); err != nil {
			log.Fatalf("failed to roll back migrations: %v", err)
		}
		log.Printf("Rolled back %d migration(s)", down)
	default:
		applied, err := migrations.Up(uri, database)
		if err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
		if !applied {
			log.Println("No migrations to apply")
		} else {
			log.Println("Migrations applied")
		}
	}

	printVersion(uri, database)

	if prune {
		pruneTokens(uri, database)
	}

	fmt.Println("Database migration completed successfully")
}

func printVersion(uri, database string) {
	v, dirty, err := migrations.Version(uri, database)
	if err != nil {
		log.Fatalf("failed to read migration version: %v", err)
	}
	log.Printf("Migration version %d (dirty=%t)", v, dirty)
}

func pruneTokens(uri, database string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("Connecting to MongoDB...")

	storage, err := mongodb.New(ctx, uri, database)
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	defer storage.Close(ctx)

	n, err := storage.PruneRefreshTokens(ctx, time.Now())
	if err != nil {
		log.Fatalf("failed to prune refresh tokens: %v", err)
	}
	log.Printf("Pruned %d expired refresh token(s)", n)
}
