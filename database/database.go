package database

import (
	"errors"
	"fmt"
	"time"

	"board-restful/auth"
	"board-restful/config"
	"board-restful/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured store. sqlite is limited to one connection
// so that ":memory:" databases are shared by every query.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.URL)
	case "postgres":
		dialector = postgres.Open(cfg.URL)
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	// GORM logger configuration
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info", "debug":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate creates or updates the board tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// InitDB opens the store, migrates it and seeds the administrator account.
func InitDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database connection successful and migrations complete.", zap.String("driver", cfg.Database.Driver))

	if err := SeedAdmin(db, cfg.AdminUsername, cfg.AdminPassword, log); err != nil {
		return nil, err
	}
	return db, nil
}

// SeedAdmin creates the administrator account if it does not exist yet, and
// promotes an existing account holding the reserved username. Nothing is seeded
// when password is empty; the administrator then registers through the API
// with the reserved username.
func SeedAdmin(db *gorm.DB, username, password string, log *zap.Logger) error {
	if password == "" {
		return nil
	}

	var existing models.User
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		if existing.IsAdmin() {
			return nil
		}
		if err := db.Model(&existing).Update("role", models.RoleAdmin).Error; err != nil {
			return fmt.Errorf("failed to promote admin user: %w", err)
		}
		log.Warn("Promoted existing account holding the admin username", zap.String("username", username))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("error checking for admin user: %w", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Username: username,
		Password: hashed,
		Nickname: "Admin",
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create initial admin user: %w", err)
	}
	log.Info("Created initial admin user", zap.String("username", username))
	return nil
}
