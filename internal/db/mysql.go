package db

import (
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"bookshelf/internal/model"
)

// NewMySQL returns a connected GORM DB instance.
//
// The DSN is forced to report matched rather than changed rows so that conditional
// updates can tell "no such record" apart from "record already had these values".
func NewMySQL(dsn string) (*gorm.DB, error) {
	parsed, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	parsed.ClientFoundRows = true
	parsed.ParseTime = true

	db, err := gorm.Open(mysql.Open(parsed.FormatDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the tables owned by this service.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
