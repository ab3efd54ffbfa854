package database

import (
	"fmt"
	"time"

	"arena-indexer/internal/config"
	"arena-indexer/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the configured store and tunes its connection pool
func Connect(cfg *config.Config, log *logrus.Logger) error {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	default:
		dialector = postgres.Open(cfg.GetDSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	DB = db
	log.WithField("driver", cfg.Database.Driver).Info("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB, log *logrus.Logger) error {
	groups := []struct {
		name   string
		models []interface{}
	}{
		{"arena", []interface{}{
			&models.Market{},
			&models.MarketOutcome{},
			&models.Participant{},
		}},
		{"shares", []interface{}{
			&models.OutcomeShare{},
			&models.Trade{},
			&models.UserPosition{},
		}},
		{"amm", []interface{}{
			&models.AMMPool{},
			&models.LiquidityPosition{},
			&models.LiquidityEvent{},
			&models.Swap{},
		}},
		{"orders", []interface{}{
			&models.LimitOrder{},
		}},
		{"indexer", []interface{}{
			&models.ProcessedTransaction{},
		}},
	}

	for _, group := range groups {
		for _, model := range group.models {
			if err := db.AutoMigrate(model); err != nil {
				return fmt.Errorf("migrate %s models (%T): %w", group.name, model, err)
			}
		}
	}

	log.Info("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
