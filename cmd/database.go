package cmd

import (
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel"
)

// database bundles the gorm handle used by repositories with the sqlx
// handle over the same pool, used for health checks and raw lookups.
type database struct {
	Gorm *gorm.DB
	SQL  *sqlx.DB
}

func (d *database) Close() error {
	return d.SQL.Close()
}

func openDatabase(cfg internal.DatabaseConfig, lg *slog.Logger) (*database, error) {
	gormCfg := &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Warn)}

	switch cfg.Driver {
	case "sqlite":
		gdb, err := gorm.Open(sqlite.Open(cfg.Source), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		if err := gdb.AutoMigrate(datamodel.All()...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
		lg.Warn("using sqlite database; intended for local runs only", "source", cfg.Source)
		return &database{Gorm: gdb, SQL: sqlx.NewDb(sqlDB, "sqlite3")}, nil
	default:
		sqlxDB, err := initDB(cfg)
		if err != nil {
			return nil, err
		}
		gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlxDB.DB}), gormCfg)
		if err != nil {
			_ = sqlxDB.Close()
			return nil, fmt.Errorf("failed to open gorm over pgx: %w", err)
		}
		return &database{Gorm: gdb, SQL: sqlxDB}, nil
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
