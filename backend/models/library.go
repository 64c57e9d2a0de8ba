package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Library types
const (
	LibraryTypeComplex = "complex"
	LibraryTypeVideo   = "video"
	LibraryTypeProblem = "problem"
)

// Library licenses
const (
	LicenseAllRightsReserved = "all-rights-reserved"
	LicenseCreativeCommons   = "creative-commons"
)

// Permission access levels
const (
	AccessLevelAdmin  = "admin"  // administer users and author content
	AccessLevelAuthor = "author" // author content
	AccessLevelRead   = "read"   // read-only
)

// Import task states
const (
	TaskCreated    = "created"    // created, but not queued to run
	TaskPending    = "pending"    // created and queued to run
	TaskRunning    = "running"    // running
	TaskFailed     = "failed"     // finished, but some blocks failed to import
	TaskSuccessful = "successful" // finished successfully
)

var (
	ErrUserGroupExclusive = errors.New("one and only one of 'user' and 'group' must be set")
	ErrProgressOutOfRange = errors.New("progress must be between 0.0 and 1.0")
	ErrInvalidLibraryKey  = errors.New("invalid library key")
)

// ContentLibrary is a collection of content (blocks and/or static assets).
// Actual content lives in an external bundle store under BundleUUID; this row
// only tracks settings local to this instance, like who may edit the library.
type ContentLibrary struct {
	gorm.Model
	OrgID      uint         `gorm:"not null;uniqueIndex:idx_library_org_slug"`
	Org        Organization `gorm:"foreignKey:OrgID"`
	Slug       string       `gorm:"not null;uniqueIndex:idx_library_org_slug"`
	BundleUUID uuid.UUID    `gorm:"type:uuid;unique;not null"`
	Type       string       `gorm:"size:25;default:complex"`             // complex, video, problem
	License    string       `gorm:"size:25;default:all-rights-reserved"` // all-rights-reserved, creative-commons

	// Allow any user, even unregistered, to view and interact with the
	// library's content in the learner-facing app.
	AllowPublicLearning bool `gorm:"default:false"`
	// Allow any user with authoring access to view the library's content and
	// copy it into their own courses.
	AllowPublicRead bool `gorm:"default:false"`

	PermissionGrants []ContentLibraryPermission      `gorm:"foreignKey:LibraryID;constraint:OnDelete:CASCADE"`
	ImportTasks      []ContentLibraryBlockImportTask `gorm:"foreignKey:LibraryID;constraint:OnDelete:CASCADE"`
}

// Key returns the library's opaque key, e.g. "lib:DemoOrg:my-slug".
// Org must be preloaded.
func (l *ContentLibrary) Key() string {
	return fmt.Sprintf("lib:%s:%s", l.Org.ShortName, l.Slug)
}

// ParseLibraryKey splits an opaque key of the form "lib:<org>:<slug>".
func ParseLibraryKey(key string) (org string, slug string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "lib" || parts[1] == "" || parts[2] == "" {
		return "", "", ErrInvalidLibraryKey
	}
	return parts[1], parts[2], nil
}

// GetLibraryByKey looks a library up by the org short name and slug encoded in
// its opaque key. Org is preloaded on the result.
func GetLibraryByKey(db *gorm.DB, key string) (*ContentLibrary, error) {
	org, slug, err := ParseLibraryKey(key)
	if err != nil {
		return nil, err
	}
	var library ContentLibrary
	err = db.Preload("Org").
		Joins("JOIN organizations ON organizations.id = content_libraries.org_id").
		Where("organizations.short_name = ? AND content_libraries.slug = ?", org, slug).
		First(&library).Error
	if err != nil {
		return nil, err
	}
	return &library, nil
}

// ContentLibraryPermission grants one access level to exactly one of a user or
// a group for one library.
type ContentLibraryPermission struct {
	gorm.Model
	LibraryID uint           `gorm:"not null;uniqueIndex:idx_perm_library_user;uniqueIndex:idx_perm_library_group"`
	Library   ContentLibrary `gorm:"foreignKey:LibraryID"`
	// One of the following must be set (but not both):
	UserID      *uint  `gorm:"uniqueIndex:idx_perm_library_user"`
	User        *User  `gorm:"foreignKey:UserID"`
	GroupID     *uint  `gorm:"uniqueIndex:idx_perm_library_group"`
	Group       *Group `gorm:"foreignKey:GroupID"`
	AccessLevel string `gorm:"size:30;not null"` // admin, author, read
}

// Validate enforces the user/group exclusivity rule. Kept at the application
// layer rather than as a database constraint.
func (p *ContentLibraryPermission) Validate() error {
	if (p.UserID == nil) == (p.GroupID == nil) {
		return ErrUserGroupExclusive
	}
	return nil
}

func (p *ContentLibraryPermission) BeforeSave(tx *gorm.DB) error {
	return p.Validate()
}

// ContentLibraryBlockImportTask tracks a job importing blocks into a library
// from an external source (e.g. a course in the modulestore).
type ContentLibraryBlockImportTask struct {
	gorm.Model
	LibraryID uint           `gorm:"not null"`
	Library   ContentLibrary `gorm:"foreignKey:LibraryID"`
	State     string         `gorm:"size:30;default:created"` // created, pending, running, failed, successful
	Progress  float64        `gorm:"default:0"`               // fraction from 0.0 to 1.0
	CourseID  string         `gorm:"size:255;index;not null"` // opaque key of the imported course
}

// SaveProgress writes only the progress fraction (plus updated_at), leaving
// the rest of the row, state included, untouched.
func (t *ContentLibraryBlockImportTask) SaveProgress(db *gorm.DB, progress float64) error {
	if progress < 0.0 || progress > 1.0 {
		return ErrProgressOutOfRange
	}
	t.Progress = progress
	return db.Model(t).Update("progress", progress).Error
}

// ExecuteImportTask loads the task, marks it running, persists that, then runs
// work. A work error moves the task to failed and is returned unchanged; on
// success the task moves to successful. The final state is persisted either
// way. Two concurrent executions on the same task ID are not guarded against.
func ExecuteImportTask(db *gorm.DB, taskID uint, work func(task *ContentLibraryBlockImportTask) error) error {
	var task ContentLibraryBlockImportTask
	if err := db.First(&task, taskID).Error; err != nil {
		return err
	}

	task.State = TaskRunning
	if err := db.Save(&task).Error; err != nil {
		return err
	}

	if err := work(&task); err != nil {
		task.State = TaskFailed
		if saveErr := db.Save(&task).Error; saveErr != nil {
			return errors.Join(err, saveErr)
		}
		return err
	}

	task.State = TaskSuccessful
	return db.Save(&task).Error
}
