package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Goal keys
const (
	GoalCertify  = "certify"
	GoalComplete = "complete"
	GoalExplore  = "explore"
	GoalUnsure   = "unsure"
)

// History record types
const (
	HistoryCreated = "+"
	HistoryChanged = "~"
	HistoryDeleted = "-"
)

// CourseGoal records what a learner wants out of a course and whether they
// receive goal reminder emails.
type CourseGoal struct {
	gorm.Model
	UserID                uint   `gorm:"not null;uniqueIndex:idx_goal_user_course"`
	User                  User   `gorm:"foreignKey:UserID"`
	CourseID              string `gorm:"size:255;not null;uniqueIndex:idx_goal_user_course"`
	GoalKey               string `gorm:"size:100;default:unsure"` // certify, complete, explore, unsure
	DaysPerWeek           int    `gorm:"default:0"`
	SubscribedToReminders bool   `gorm:"default:false"`
	// Used to validate unsubscribe requests without requiring a login.
	// Generated once at creation and never rewritten afterwards. The unique
	// index lives in the 0002 migration, not in a tag.
	UnsubscribeToken *uuid.UUID `gorm:"type:uuid"`
}

// HistoricalCourseGoal is an append-only snapshot of a CourseGoal, written on
// every create, update and delete.
type HistoricalCourseGoal struct {
	ID                    uint `gorm:"primaryKey"`
	GoalID                uint `gorm:"index;not null"`
	UserID                uint
	CourseID              string `gorm:"size:255"`
	GoalKey               string `gorm:"size:100"`
	DaysPerWeek           int
	SubscribedToReminders bool
	UnsubscribeToken      *uuid.UUID `gorm:"type:uuid"`
	HistoryType           string     `gorm:"size:1"` // +, ~, -
	HistoryDate           time.Time  `gorm:"autoCreateTime"`
}

func (g *CourseGoal) BeforeCreate(tx *gorm.DB) error {
	if g.UnsubscribeToken == nil {
		token := uuid.New()
		g.UnsubscribeToken = &token
	}
	return nil
}

func (g *CourseGoal) AfterCreate(tx *gorm.DB) error {
	return tx.Create(g.snapshot(HistoryCreated)).Error
}

func (g *CourseGoal) AfterUpdate(tx *gorm.DB) error {
	return tx.Create(g.snapshot(HistoryChanged)).Error
}

func (g *CourseGoal) AfterDelete(tx *gorm.DB) error {
	return tx.Create(g.snapshot(HistoryDeleted)).Error
}

func (g *CourseGoal) snapshot(historyType string) *HistoricalCourseGoal {
	return &HistoricalCourseGoal{
		GoalID:                g.ID,
		UserID:                g.UserID,
		CourseID:              g.CourseID,
		GoalKey:               g.GoalKey,
		DaysPerWeek:           g.DaysPerWeek,
		SubscribedToReminders: g.SubscribedToReminders,
		UnsubscribeToken:      g.UnsubscribeToken,
		HistoryType:           historyType,
	}
}
