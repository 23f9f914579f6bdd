// Package db opens the MySQL connection that backs the loan book.
package db

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"microfi-backend/internal/domain/funding"
	"microfi-backend/internal/domain/installment"
	"microfi-backend/internal/domain/loan"
	"microfi-backend/internal/domain/transfer"
)

func OpenGorm(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates/updates the loan book and settlement tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&loan.Loan{},
		&funding.Contribution{},
		&installment.Installment{},
		&transfer.Record{},
	)
}
