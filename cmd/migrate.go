package cmd

import (
	"context"
	"log"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/db"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/logger"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run the embedded db migrations",
	}
	migrateRollback bool
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
}

func runMigration(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	initLogger(cfg)
	lg := logger.LoggerWrapper()

	// sqlite is schema-managed by AutoMigrate when it is opened
	if cfg.Database.Driver == "sqlite" {
		sqliteDB, err := openDatabase(cfg.Database, lg)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		lg.Info("sqlite schema is up to date")
		return sqliteDB.Close()
	}

	conn, err := goose.OpenDBWithDriver("pgx", cfg.Database.Source)
	if err != nil {
		log.Fatalf("goose: failed to open DB: %v\n", err)
	}
	defer conn.Close()

	goose.SetBaseFS(db.Migrations)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("goose: %v", err)
	}

	command := "up"
	if migrateRollback {
		command = "down"
	}
	if err := goose.RunContext(ctx, command, conn, db.MigrationsDir); err != nil {
		log.Fatalf("goose %s: %v", command, err)
	}

	lg.Info("migrations applied", "command", command)
	return nil
}
