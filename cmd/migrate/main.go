package main

import (
	"context"
	"flag"
	"time"

	"github.com/fekuna/omnipos-erp-sync/config"
	"github.com/fekuna/omnipos-erp-sync/migrations"
	"github.com/fekuna/omnipos-erp-sync/pkg/database/postgres"
	"github.com/fekuna/omnipos-erp-sync/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	down := flag.Bool("down", false, "drop the schema instead of creating it")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.LoadEnv()

	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment: true,
		Encoding:      "console",
		Level:         "info",
	})
	defer appLogger.Sync()

	db, err := postgres.NewPostgres(&postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()

	files := migrations.Up
	if *down {
		files = migrations.Down
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	for _, file := range files {
		if err := apply(ctx, db, file); err != nil {
			appLogger.Fatal("Migration failed", zap.String("file", file), zap.Error(err))
		}
		appLogger.Info("Migration applied", zap.String("file", file), zap.String("db_name", cfg.Postgres.DBName))
	}
}

// apply runs one embedded SQL file inside a transaction.
func apply(ctx context.Context, db *sqlx.DB, file string) error {
	body, err := migrations.FS.ReadFile(file)
	if err != nil {
		return err
	}
	return postgres.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, string(body))
		return err
	})
}
