package goals

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateGoal(goal *Goal) error {
	return d.db.Create(goal).Error
}

func (d *Database) GetGoal(goalID string) (*Goal, error) {
	var goal Goal
	if err := d.db.Where("goal_id = ?", goalID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &goal, nil
}

func (d *Database) UpdateGoal(goal *Goal) error {
	return d.db.Save(goal).Error
}

func (d *Database) ListGoals() ([]Goal, error) {
	var list []Goal
	if err := d.db.Order("priority DESC, created_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (d *Database) ListGoalsByStatus(status string) ([]Goal, error) {
	var list []Goal
	if err := d.db.Where("status = ?", status).Order("priority DESC, created_at ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateGoalWithSample persists the goal row and appends the progress sample
// in one transaction, so a crash cannot separate the two.
func (d *Database) UpdateGoalWithSample(goal *Goal, sample *ProgressSample) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(goal).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Create(sample).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (d *Database) CreateDailySession(session *DailySession) error {
	return d.db.Create(session).Error
}

func (d *Database) GetDailySessions(goalID string, since time.Time) ([]DailySession, error) {
	var sessions []DailySession
	err := d.db.Where("goal_id = ? AND session_date > ?", goalID, since.Format("2006-01-02")).
		Order("session_date DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (d *Database) GetProgressHistory(goalID string, since time.Time) ([]ProgressSample, error) {
	var samples []ProgressSample
	err := d.db.Where("goal_id = ? AND created_at > ?", goalID, since).
		Order("created_at DESC").
		Find(&samples).Error
	if err != nil {
		return nil, err
	}
	return samples, nil
}
