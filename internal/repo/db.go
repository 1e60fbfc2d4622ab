// Package repo is the GORM persistence layer for recipes, ingredients and
// idempotency records. Operations are free functions taking a context and a
// *gorm.DB so callers control transactions; services reach them through the
// RecipeRepo interface.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Supported values for the DB_DRIVER setting.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// pool holds database/sql connection pool limits.
type pool struct {
	maxOpen, maxIdle  int
	idleTime, maxLife time.Duration
}

func (p pool) apply(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idleTime)
	sqlDB.SetConnMaxLifetime(p.maxLife)
	return nil
}

var (
	sqlitePool   = pool{maxOpen: 10, maxIdle: 10, idleTime: 5 * time.Minute, maxLife: 30 * time.Minute}
	postgresPool = pool{maxOpen: 25, maxIdle: 10, idleTime: 5 * time.Minute, maxLife: 30 * time.Minute}

	// WAL lets readers proceed during a write; busy_timeout makes writers
	// wait for the lock instead of failing with SQLITE_BUSY.
	sqlitePragmas = []string{
		"journal_mode=WAL",
		"synchronous=NORMAL",
		"foreign_keys=ON",
		"busy_timeout=5000",
	}
)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
}

// Open connects to driver ("sqlite" by default, or "postgres"), tunes the
// pool and registers the OpenTelemetry tracing plugin. sqlite uses path,
// postgres uses dsn.
func Open(driver, path, dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "", DriverSQLite:
		db, err = OpenSQLite(path)
	case DriverPostgres:
		db, err = OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	// Spans only; Prometheus metrics come from the HTTP and search layers.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}
	return db, nil
}

// OpenSQLite opens or creates the database file at path. The parent
// directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec("PRAGMA " + p).Error; err != nil {
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}
	if err := sqlitePool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenPostgres connects with a keyword/value or URL DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres requires a DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := postgresPool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the schema: ingredients, recipes, the
// recipe_ingredients join table and idempotency.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Ingredient{},
		&domain.Recipe{},
		&domain.Idempotency{},
	)
}
