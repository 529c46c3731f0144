// Package database persists users and their download activity in sqlite.
// Activity writes are best-effort; a broken database never blocks a delivery.
package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"moul.io/zapgorm2"
)

type User struct {
	ID        int64 `gorm:"primaryKey"`
	Username  string
	FirstName string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Activity is one resolved-and-requested download, kept for usage stats.
type Activity struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"index"`
	Platform  string
	Action    string
	Target    string
	CreatedAt time.Time
}

type Database struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewDatabase(path string, logger *zap.Logger) (*Database, error) {
	gormLogger := zapgorm2.New(logger)
	gormLogger.SetAsDefault()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	return &Database{db: db, log: logger.Sugar().Named("database")}, nil
}

// Migrate creates or updates the schema.
func (d *Database) Migrate() error {
	return d.db.AutoMigrate(&User{}, &Activity{})
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertUser records a user on first contact and refreshes their profile
// fields on later ones.
func (d *Database) UpsertUser(user User) error {
	existing := User{ID: user.ID}
	err := d.db.First(&existing, user.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.db.Create(&user).Error
	}
	if err != nil {
		return err
	}
	return d.db.Model(&existing).Updates(User{
		Username:  user.Username,
		FirstName: user.FirstName,
		Language:  user.Language,
	}).Error
}

func (d *Database) GetUser(id int64) (*User, error) {
	var user User
	err := d.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LogActivity is fire-and-forget: failures are logged and swallowed so stats
// can never break a delivery.
func (d *Database) LogActivity(userID int64, platform, action, target string) {
	activity := Activity{
		UserID:   userID,
		Platform: platform,
		Action:   action,
		Target:   target,
	}
	if err := d.db.Create(&activity).Error; err != nil {
		d.log.Warnw("failed to log activity", "user_id", userID, "action", action, "error", err)
	}
}

// CountUsers returns the total number of known users.
func (d *Database) CountUsers() (int64, error) {
	var count int64
	err := d.db.Model(&User{}).Count(&count).Error
	return count, err
}

// RecentActivity returns the newest activities, newest first.
func (d *Database) RecentActivity(limit int) ([]Activity, error) {
	var activities []Activity
	err := d.db.Order("created_at DESC").Limit(limit).Find(&activities).Error
	return activities, err
}
