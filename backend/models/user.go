package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"default:user"` // user, admin
}

// Organization owns content libraries. ShortName is the org part of a
// library's opaque key ("lib:<short_name>:<slug>").
type Organization struct {
	gorm.Model
	ShortName string `gorm:"unique;not null"`
	Name      string
}

type Group struct {
	gorm.Model
	Name    string `gorm:"unique;not null"`
	Members []GroupMembership
}

type GroupMembership struct {
	gorm.Model
	GroupID uint `gorm:"not null;uniqueIndex:idx_group_member"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_group_member"`
}
