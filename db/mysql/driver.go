// Package mysql opens the shared MySQL combat log used when several arena
// processes write to one database.
package mysql

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool sizes the database/sql pool. Zero fields fall back to the defaults.
type Pool struct {
	MaxOpen int
	MaxIdle int
	MaxLife time.Duration
}

func (p Pool) withDefaults() Pool {
	if p.MaxOpen <= 0 {
		p.MaxOpen = 50
	}
	if p.MaxIdle <= 0 || p.MaxIdle > p.MaxOpen {
		p.MaxIdle = min(10, p.MaxOpen)
	}
	if p.MaxLife <= 0 {
		p.MaxLife = time.Hour
	}
	return p
}

// Open connects to dsn. The combat log is append-only, so gorm's implicit
// per-write transaction is skipped.
func Open(dsn string, pool Pool) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               dsn,
		DefaultStringSize: 256,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	pool = pool.withDefaults()
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(pool.MaxLife)
	return db, nil
}
