package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jcarter/tradepilot/internal/goals"
)

// NewDatabase opens the sqlite database at path and migrates the goal
// schema: the mutable goals table plus the two append-only logs.
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&goals.Goal{},
		&goals.ProgressSample{},
		&goals.DailySession{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
