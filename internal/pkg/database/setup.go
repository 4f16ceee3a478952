package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// ErrMissingCredentials is returned when the server-held DB credentials are absent.
var ErrMissingCredentials = errors.New("privileged database credentials are not configured (DB_USER, DB_PASSWORD, DB_NAME)")

// Config holds the privileged MySQL connection settings.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string

	MaxRetries int
	RetryDelay time.Duration
}

// LoadConfig reads the database settings from the environment.
func LoadConfig() Config {
	return Config{
		User:       env.GetEnv("DB_USER", ""),
		Password:   env.GetEnv("DB_PASSWORD", ""),
		Host:       env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:       env.GetEnv("DB_PORT", "3306"),
		Name:       env.GetEnv("DB_NAME", ""),
		MaxRetries: env.GetEnvInt("DB_CONNECT_RETRIES", maxRetries),
		RetryDelay: retryDelay,
	}
}

// HasCredentials reports whether enough is configured to attempt a connection.
func (c Config) HasCredentials() bool {
	return strings.TrimSpace(c.User) != "" && strings.TrimSpace(c.Name) != ""
}

// DSN renders "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local".
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

// Open connects to MySQL with retries and materializes the document table.
func Open(cfg Config) (*gorm.DB, error) {
	if !cfg.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < retries; i++ {
		db, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(), // data source name
			DefaultStringSize:         256,       // default size for string fields
			DisableDatetimePrecision:  true,      // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,      // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,      // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false,     // auto configure based on currently MySQL version
		}), &gorm.Config{})
		if err == nil {
			if err = Migrate(db); err != nil {
				return nil, err
			}
			return db, nil
		}

		log.Warnf("Failed to connect to database (try %d/%d): %v", i+1, retries, err)
		if i < retries-1 {
			log.Infof("Retrying in %v...", cfg.RetryDelay)
			time.Sleep(cfg.RetryDelay)
		}
	}

	return nil, fmt.Errorf("connect to privileged database: %w", err)
}

// Migrate creates the tables the document store needs.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.CatalogDocument{}); err != nil {
		return fmt.Errorf("auto-migrate catalog documents: %w", err)
	}
	return nil
}
