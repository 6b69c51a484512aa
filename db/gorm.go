package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/TheManchineel/titilda-music/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig is shared by every GORM handle. Queries go through the global
// zap logger and only slow or failing statements are reported.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(logger.Printf{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// ConnectGormDB wraps an existing MySQL pool so GORM and database/sql share
// the same connections.
func ConnectGormDB(conn *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: conn}), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}
	return gdb, nil
}
