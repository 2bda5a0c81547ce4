//cmd/seeder/main.go
package main

import (
	"context"
	"embed"
	"log"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-campaigns/internal/config"
	"github.com/unclebandit/notification-campaigns/internal/db"
	"github.com/unclebandit/notification-campaigns/internal/logger"
)

//go:embed seed/*.sql
var seedFS embed.FS

func main() {
	cfg := config.Load()

	logg, err := logger.New(cfg.Log, "campaign-seeder")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logg.Sync()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DB, logg)
	if err != nil {
		logg.Fatal("database unavailable", zap.Error(err))
	}
	defer conn.Close()

	if err := db.EnsureSchema(ctx, conn); err != nil {
		logg.Fatal("schema setup failed", zap.Error(err))
	}

	seedFiles := []string{
		"seed/recipients.sql",
	}

	for _, file := range seedFiles {
		content, err := seedFS.ReadFile(file)
		if err != nil {
			logg.Fatal("failed to read seed file", zap.String("file", file), zap.Error(err))
		}

		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			logg.Fatal("failed to execute seed file", zap.String("file", file), zap.Error(err))
		}
		logg.Info("seeded", zap.String("file", file))
	}

	logg.Info("database seeding completed successfully")
}
