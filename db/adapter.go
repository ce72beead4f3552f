// Package db opens the gorm connection for combat telemetry.
package db

import (
	"errors"
	"fmt"

	"github.com/kasuganosora/combatcore/config"
	dbmysql "github.com/kasuganosora/combatcore/db/mysql"
	dbsqlite "github.com/kasuganosora/combatcore/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeNone   = "none"
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// ErrDisabled is returned by Open when persistence is switched off.
var ErrDisabled = errors.New("db: persistence disabled")

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeNone, "":
		return nil, ErrDisabled
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("db: mysql mode needs database.mysql_dsn")
		}
		return dbmysql.Open(cfg.MySQLDSN, dbmysql.Pool{
			MaxOpen: cfg.MySQLMaxOpen,
			MaxIdle: cfg.MySQLMaxIdle,
			MaxLife: cfg.MySQLMaxLife,
		})
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
