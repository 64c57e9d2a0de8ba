package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

// The has-many relations must resolve against the children's LibraryID
// columns; a bad foreign key here breaks AutoMigrate for the whole schema.
func TestLibraryRelationsResolve(t *testing.T) {
	s, err := schema.Parse(&ContentLibrary{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, name := range []string{"PermissionGrants", "ImportTasks"} {
		rel, ok := s.Relationships.Relations[name]
		require.True(t, ok, "relation %s missing", name)
		require.Len(t, rel.References, 1)
		assert.Equal(t, "LibraryID", rel.References[0].ForeignKey.Name)
	}
}

func TestParseLibraryKey(t *testing.T) {
	org, slug, err := ParseLibraryKey("lib:DemoOrg:my-library")
	assert.NoError(t, err)
	assert.Equal(t, "DemoOrg", org)
	assert.Equal(t, "my-library", slug)

	for _, key := range []string{"", "lib:", "lib:org", "lib::slug", "lib:org:", "course:org:slug", "org:slug"} {
		_, _, err := ParseLibraryKey(key)
		assert.ErrorIs(t, err, ErrInvalidLibraryKey, "key %q should be rejected", key)
	}
}

func TestLibraryKeyRoundTrip(t *testing.T) {
	library := ContentLibrary{
		Org:  Organization{ShortName: "DemoOrg"},
		Slug: "my-library",
	}
	assert.Equal(t, "lib:DemoOrg:my-library", library.Key())

	org, slug, err := ParseLibraryKey(library.Key())
	assert.NoError(t, err)
	assert.Equal(t, "DemoOrg", org)
	assert.Equal(t, "my-library", slug)
}

func TestPermissionValidate(t *testing.T) {
	userID := uint(1)
	groupID := uint(2)

	neither := ContentLibraryPermission{AccessLevel: AccessLevelRead}
	assert.ErrorIs(t, neither.Validate(), ErrUserGroupExclusive)

	both := ContentLibraryPermission{UserID: &userID, GroupID: &groupID, AccessLevel: AccessLevelRead}
	assert.ErrorIs(t, both.Validate(), ErrUserGroupExclusive)

	userOnly := ContentLibraryPermission{UserID: &userID, AccessLevel: AccessLevelAdmin}
	assert.NoError(t, userOnly.Validate())

	groupOnly := ContentLibraryPermission{GroupID: &groupID, AccessLevel: AccessLevelAuthor}
	assert.NoError(t, groupOnly.Validate())
}

func TestSaveProgressRange(t *testing.T) {
	task := ContentLibraryBlockImportTask{State: TaskCreated}

	// Out-of-range values are rejected before any database write, so a nil
	// handle is safe here.
	assert.ErrorIs(t, task.SaveProgress(nil, -0.1), ErrProgressOutOfRange)
	assert.ErrorIs(t, task.SaveProgress(nil, 1.1), ErrProgressOutOfRange)
	assert.Equal(t, TaskCreated, task.State)
	assert.Equal(t, 0.0, task.Progress)
}
