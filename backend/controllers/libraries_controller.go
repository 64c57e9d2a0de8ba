package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"project/backend/config"
	"project/backend/importer"
	"project/backend/models"
	"project/backend/utils"
)

type LibrariesController struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Source importer.BlockSource
	Store  importer.BundleStore
}

func NewLibrariesController(db *gorm.DB, cfg *config.Config, source importer.BlockSource, store importer.BundleStore) *LibrariesController {
	return &LibrariesController{DB: db, Cfg: cfg, Source: source, Store: store}
}

func libraryJSON(library *models.ContentLibrary) fiber.Map {
	return fiber.Map{
		"id":                    library.ID,
		"key":                   library.Key(),
		"org":                   library.Org.ShortName,
		"slug":                  library.Slug,
		"bundle_uuid":           library.BundleUUID,
		"type":                  library.Type,
		"license":               library.License,
		"allow_public_learning": library.AllowPublicLearning,
		"allow_public_read":     library.AllowPublicRead,
	}
}

func (lc *LibrariesController) GetLibraries(c *fiber.Ctx) error {
	org := c.Query("org")
	libType := c.Query("type")

	query := lc.DB.Preload("Org").
		Joins("JOIN organizations ON organizations.id = content_libraries.org_id")

	if org != "" {
		query = query.Where("organizations.short_name = ?", org)
	}
	if libType != "" {
		query = query.Where("content_libraries.type = ?", libType)
	}

	var libraries []models.ContentLibrary
	if err := query.Find(&libraries).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	result := make([]fiber.Map, 0, len(libraries))
	for i := range libraries {
		result = append(result, libraryJSON(&libraries[i]))
	}

	return c.JSON(result)
}

func (lc *LibrariesController) GetLibrary(c *fiber.Ctx) error {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, models.ErrInvalidLibraryKey) {
			return utils.BadRequest(c, "Invalid library key")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Library not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(libraryJSON(library))
}

func (lc *LibrariesController) CreateLibrary(c *fiber.Ctx) error {
	var input struct {
		Org                 string `json:"org"`
		Slug                string `json:"slug"`
		BundleUUID          string `json:"bundle_uuid"`
		Type                string `json:"type"`
		License             string `json:"license"`
		AllowPublicLearning bool   `json:"allow_public_learning"`
		AllowPublicRead     bool   `json:"allow_public_read"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if input.Org == "" || input.Slug == "" {
		return utils.BadRequest(c, "Both 'org' and 'slug' are required")
	}

	var org models.Organization
	if err := lc.DB.Where("short_name = ?", input.Org).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Organization not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	// (org, slug) is the library's permanent identity.
	var count int64
	lc.DB.Model(&models.ContentLibrary{}).
		Where("org_id = ? AND slug = ?", org.ID, input.Slug).
		Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A library with this org and slug already exists",
		})
	}

	bundleUUID := uuid.New()
	if input.BundleUUID != "" {
		parsed, err := uuid.Parse(input.BundleUUID)
		if err != nil {
			return utils.BadRequest(c, "Invalid bundle UUID")
		}
		bundleUUID = parsed
	}

	library := models.ContentLibrary{
		OrgID:               org.ID,
		Slug:                input.Slug,
		BundleUUID:          bundleUUID,
		Type:                input.Type,
		License:             input.License,
		AllowPublicLearning: input.AllowPublicLearning,
		AllowPublicRead:     input.AllowPublicRead,
	}
	if library.Type == "" {
		library.Type = models.LibraryTypeComplex
	}
	if library.License == "" {
		library.License = models.LicenseAllRightsReserved
	}

	if err := lc.DB.Create(&library).Error; err != nil {
		return utils.InternalServerError(c, "Could not create library")
	}
	library.Org = org

	return utils.Created(c, libraryJSON(&library))
}

func (lc *LibrariesController) UpdateLibrary(c *fiber.Ctx) error {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Library not found")
		}
		return utils.BadRequest(c, "Invalid library key")
	}

	// Org, slug and bundle UUID are permanent; only settings may change.
	var input struct {
		Type                string `json:"type"`
		License             string `json:"license"`
		AllowPublicLearning *bool  `json:"allow_public_learning"`
		AllowPublicRead     *bool  `json:"allow_public_read"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if input.Type != "" {
		library.Type = input.Type
	}
	if input.License != "" {
		library.License = input.License
	}
	if input.AllowPublicLearning != nil {
		library.AllowPublicLearning = *input.AllowPublicLearning
	}
	if input.AllowPublicRead != nil {
		library.AllowPublicRead = *input.AllowPublicRead
	}

	if err := lc.DB.Save(library).Error; err != nil {
		return utils.InternalServerError(c, "Could not update library")
	}

	return c.JSON(libraryJSON(library))
}

func (lc *LibrariesController) DeleteLibrary(c *fiber.Ctx) error {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Library not found")
		}
		return utils.BadRequest(c, "Invalid library key")
	}

	// Hard delete throughout: tombstones would keep holding the (org, slug)
	// pair and the bundle UUID, making them unusable forever.
	err = lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("library_id = ?", library.ID).Delete(&models.ContentLibraryPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("library_id = ?", library.ID).Delete(&models.ContentLibraryBlockImportTask{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(library).Error
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not delete library")
	}

	return utils.NoContent(c)
}

func (lc *LibrariesController) GetPermissions(c *fiber.Ctx) error {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Library not found")
		}
		return utils.BadRequest(c, "Invalid library key")
	}

	var grants []models.ContentLibraryPermission
	err = lc.DB.Preload("User").Preload("Group").
		Joins("LEFT JOIN users ON users.id = content_library_permissions.user_id").
		Joins("LEFT JOIN groups ON groups.id = content_library_permissions.group_id").
		Where("content_library_permissions.library_id = ?", library.ID).
		Order("users.username, groups.name").
		Find(&grants).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	result := make([]fiber.Map, 0, len(grants))
	for _, grant := range grants {
		entry := fiber.Map{
			"id":           grant.ID,
			"access_level": grant.AccessLevel,
		}
		if grant.User != nil {
			entry["username"] = grant.User.Username
		}
		if grant.Group != nil {
			entry["group"] = grant.Group.Name
		}
		result = append(result, entry)
	}

	return c.JSON(result)
}

func (lc *LibrariesController) GrantPermission(c *fiber.Ctx) error {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Library not found")
		}
		return utils.BadRequest(c, "Invalid library key")
	}

	var input struct {
		Username    string `json:"username"`
		Group       string `json:"group"`
		AccessLevel string `json:"access_level"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	switch input.AccessLevel {
	case models.AccessLevelAdmin, models.AccessLevelAuthor, models.AccessLevelRead:
	default:
		return utils.BadRequest(c, "Invalid access level")
	}

	grant := models.ContentLibraryPermission{
		LibraryID:   library.ID,
		AccessLevel: input.AccessLevel,
	}

	if input.Username != "" {
		var user models.User
		if err := lc.DB.Where("username = ?", input.Username).First(&user).Error; err != nil {
			return utils.NotFound(c, "User not found")
		}
		grant.UserID = &user.ID
	}
	if input.Group != "" {
		var group models.Group
		if err := lc.DB.Where("name = ?", input.Group).First(&group).Error; err != nil {
			return utils.NotFound(c, "Group not found")
		}
		grant.GroupID = &group.ID
	}

	if err := grant.Validate(); err != nil {
		return utils.ValidationError(c, err)
	}

	// Re-granting to the same user or group updates the existing grant's
	// access level rather than hitting the unique index.
	query := lc.DB.Where("library_id = ?", library.ID)
	if grant.UserID != nil {
		query = query.Where("user_id = ?", *grant.UserID)
	} else {
		query = query.Where("group_id = ?", *grant.GroupID)
	}

	var existing models.ContentLibraryPermission
	err = query.First(&existing).Error
	if err == nil {
		existing.AccessLevel = grant.AccessLevel
		if err := lc.DB.Save(&existing).Error; err != nil {
			return utils.InternalServerError(c, "Could not update permission")
		}
		return c.JSON(fiber.Map{
			"id":           existing.ID,
			"access_level": existing.AccessLevel,
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.InternalServerError(c, "Could not query database")
	}

	if err := lc.DB.Create(&grant).Error; err != nil {
		if errors.Is(err, models.ErrUserGroupExclusive) {
			return utils.ValidationError(c, err)
		}
		return utils.InternalServerError(c, "Could not create permission")
	}

	return utils.Created(c, fiber.Map{
		"id":           grant.ID,
		"access_level": grant.AccessLevel,
	})
}

func (lc *LibrariesController) RevokePermission(c *fiber.Ctx) error {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Library not found")
		}
		return utils.BadRequest(c, "Invalid library key")
	}

	permID, err := strconv.Atoi(c.Params("permID"))
	if err != nil {
		return utils.BadRequest(c, "Invalid permission ID")
	}

	var grant models.ContentLibraryPermission
	if err := lc.DB.Where("id = ? AND library_id = ?", permID, library.ID).First(&grant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Permission not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	// Hard delete so the (library, user/group) slot can be granted again.
	if err := lc.DB.Unscoped().Delete(&grant).Error; err != nil {
		return utils.InternalServerError(c, "Could not delete permission")
	}

	return utils.NoContent(c)
}

func taskJSON(task *models.ContentLibraryBlockImportTask) fiber.Map {
	return fiber.Map{
		"id":         task.ID,
		"state":      task.State,
		"progress":   task.Progress,
		"course_id":  task.CourseID,
		"created_at": task.CreatedAt,
		"updated_at": task.UpdatedAt,
	}
}

func (lc *LibrariesController) GetImportTasks(c *fiber.Ctx) error {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Library not found")
		}
		return utils.BadRequest(c, "Invalid library key")
	}

	var tasks []models.ContentLibraryBlockImportTask
	err = lc.DB.Where("library_id = ?", library.ID).
		Order("created_at DESC, updated_at DESC").
		Find(&tasks).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	result := make([]fiber.Map, 0, len(tasks))
	for i := range tasks {
		result = append(result, taskJSON(&tasks[i]))
	}

	return c.JSON(result)
}

func (lc *LibrariesController) GetImportTask(c *fiber.Ctx) error {
	task, status, err := lc.findTask(c)
	if err != nil {
		return utils.Error(c, status, err)
	}
	return c.JSON(taskJSON(task))
}

func (lc *LibrariesController) CreateImportTask(c *fiber.Ctx) error {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Library not found")
		}
		return utils.BadRequest(c, "Invalid library key")
	}

	var input struct {
		CourseID string `json:"course_id"`
		Run      *bool  `json:"run"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.CourseID == "" {
		return utils.BadRequest(c, "'course_id' is required")
	}

	task := models.ContentLibraryBlockImportTask{
		LibraryID: library.ID,
		State:     models.TaskCreated,
		CourseID:  input.CourseID,
	}
	if err := lc.DB.Create(&task).Error; err != nil {
		return utils.InternalServerError(c, "Could not create import task")
	}

	if input.Run == nil || *input.Run {
		if err := lc.runImport(task.ID); err != nil {
			// The task row already records the failed state; the response
			// carries the cause.
			lc.DB.First(&task, task.ID)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"task":  taskJSON(&task),
				"error": err.Error(),
			})
		}
		lc.DB.First(&task, task.ID)
	}

	return utils.Created(c, taskJSON(&task))
}

func (lc *LibrariesController) RunImportTask(c *fiber.Ctx) error {
	task, status, err := lc.findTask(c)
	if err != nil {
		return utils.Error(c, status, err)
	}

	if task.State != models.TaskCreated && task.State != models.TaskPending {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Task has already run",
			"state": task.State,
		})
	}

	runErr := lc.runImport(task.ID)
	lc.DB.First(task, task.ID)

	if runErr != nil {
		return c.JSON(fiber.Map{
			"task":  taskJSON(task),
			"error": runErr.Error(),
		})
	}
	return c.JSON(taskJSON(task))
}

func (lc *LibrariesController) findTask(c *fiber.Ctx) (*models.ContentLibraryBlockImportTask, int, error) {
	library, err := models.GetLibraryByKey(lc.DB, c.Params("key"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.StatusNotFound, errors.New("library not found")
		}
		return nil, fiber.StatusBadRequest, errors.New("invalid library key")
	}

	taskID, err := strconv.Atoi(c.Params("taskID"))
	if err != nil {
		return nil, fiber.StatusBadRequest, errors.New("invalid task ID")
	}

	var task models.ContentLibraryBlockImportTask
	if err := lc.DB.Where("id = ? AND library_id = ?", taskID, library.ID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.StatusNotFound, errors.New("task not found")
		}
		return nil, fiber.StatusInternalServerError, errors.New("could not query database")
	}
	return &task, 0, nil
}

// runImport drives the task through its lifecycle: running while blocks are
// copied, then failed or successful.
func (lc *LibrariesController) runImport(taskID uint) error {
	return models.ExecuteImportTask(lc.DB, taskID, func(task *models.ContentLibraryBlockImportTask) error {
		var library models.ContentLibrary
		if err := lc.DB.First(&library, task.LibraryID).Error; err != nil {
			return err
		}

		imp := &importer.Importer{
			Source: lc.Source,
			Store:  lc.Store,
			Progress: func(progress float64) error {
				return task.SaveProgress(lc.DB, progress)
			},
		}
		return imp.Run(task.CourseID, library.BundleUUID)
	})
}
