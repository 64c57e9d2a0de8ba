package migrations

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"project/backend/models"
)

// SchemaMigration records an applied migration so each one runs once.
type SchemaMigration struct {
	ID        string `gorm:"primaryKey;size:100"`
	AppliedAt time.Time
}

type migration struct {
	id      string
	migrate func(db *gorm.DB) error
}

// The list is append-only; entries run in order.
var all = []migration{
	{
		id: "0001_initial",
		migrate: func(db *gorm.DB) error {
			return db.AutoMigrate(
				&models.User{},
				&models.Organization{},
				&models.Group{},
				&models.GroupMembership{},
				&models.ContentLibrary{},
				&models.ContentLibraryPermission{},
				&models.ContentLibraryBlockImportTask{},
				&models.CourseGoal{},
				&models.HistoricalCourseGoal{},
			)
		},
	},
	{
		// Make unsubscribe tokens unique on course goals and indexed on the
		// historical table. Rows created before tokens existed keep NULL
		// (Postgres allows multiple NULLs under a unique index); new rows get
		// a token from the create hook.
		id: "0002_course_goal_unsubscribe_token",
		migrate: func(db *gorm.DB) error {
			if err := db.Exec(
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_course_goals_unsubscribe_token ON course_goals (unsubscribe_token)",
			).Error; err != nil {
				return err
			}
			return db.Exec(
				"CREATE INDEX IF NOT EXISTS idx_historical_course_goals_unsubscribe_token ON historical_course_goals (unsubscribe_token)",
			).Error
		},
	},
}

// Run applies every unapplied migration in order, recording each in the
// schema_migrations table.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return err
	}

	for _, m := range all {
		var count int64
		if err := db.Model(&SchemaMigration{}).Where("id = ?", m.id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		if err := m.migrate(db); err != nil {
			return fmt.Errorf("migration %s: %w", m.id, err)
		}
		record := SchemaMigration{ID: m.id, AppliedAt: time.Now()}
		if err := db.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}
