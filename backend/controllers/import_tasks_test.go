package controllers_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project/backend/models"
)

func TestImportTaskLifecycle(t *testing.T) {
	createOrg(t, "ImportOrg")
	key := createLibrary(t, "ImportOrg", "imports")

	resp := doJSON("POST", "/api/admin/libraries/"+key+"/import-tasks", adminToken, map[string]interface{}{
		"course_id": "course-v1:DemoOrg+CS101+2026",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	result := decode(resp)
	task := result["data"].(map[string]interface{})
	assert.Equal(t, models.TaskSuccessful, task["state"])
	assert.Equal(t, 1.0, task["progress"])
	assert.Equal(t, "course-v1:DemoOrg+CS101+2026", task["course_id"])
}

func TestImportTaskFailureKeepsError(t *testing.T) {
	createOrg(t, "FailOrg")
	key := createLibrary(t, "FailOrg", "failures")

	resp := doJSON("POST", "/api/admin/libraries/"+key+"/import-tasks", adminToken, map[string]interface{}{
		"course_id": "course-v1:DemoOrg+Broken+2026",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	result := decode(resp)
	assert.Contains(t, result["error"], "badblock")
	task := result["task"].(map[string]interface{})
	assert.Equal(t, models.TaskFailed, task["state"])
	// One block copied before the failure.
	assert.InDelta(t, 1.0/3.0, task["progress"].(float64), 0.001)
}

func TestImportTaskDeferredRun(t *testing.T) {
	createOrg(t, "DeferOrg")
	key := createLibrary(t, "DeferOrg", "deferred")

	resp := doJSON("POST", "/api/admin/libraries/"+key+"/import-tasks", adminToken, map[string]interface{}{
		"course_id": "course-v1:DemoOrg+Empty+2026",
		"run":       false,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	result := decode(resp)
	task := result["data"].(map[string]interface{})
	assert.Equal(t, models.TaskCreated, task["state"])
	taskID := strconv.Itoa(int(task["id"].(float64)))

	resp = doJSON("POST", "/api/admin/libraries/"+key+"/import-tasks/"+taskID+"/run", adminToken, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	final := decode(resp)
	assert.Equal(t, models.TaskSuccessful, final["state"])
	assert.Equal(t, 1.0, final["progress"])

	// A finished task cannot be run again.
	resp = doJSON("POST", "/api/admin/libraries/"+key+"/import-tasks/"+taskID+"/run", adminToken, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestExecuteImportTaskStateSequence(t *testing.T) {
	createOrg(t, "ExecOrg")
	key := createLibrary(t, "ExecOrg", "exec")
	library, err := models.GetLibraryByKey(db, key)
	require.NoError(t, err)

	task := models.ContentLibraryBlockImportTask{
		LibraryID: library.ID,
		State:     models.TaskPending,
		CourseID:  "course-v1:DemoOrg+CS101+2026",
	}
	require.NoError(t, db.Create(&task).Error)

	var observed string
	err = models.ExecuteImportTask(db, task.ID, func(running *models.ContentLibraryBlockImportTask) error {
		// The running state is already persisted when work starts.
		var current models.ContentLibraryBlockImportTask
		if err := db.First(&current, running.ID).Error; err != nil {
			return err
		}
		observed = current.State
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskRunning, observed)

	var final models.ContentLibraryBlockImportTask
	require.NoError(t, db.First(&final, task.ID).Error)
	assert.Equal(t, models.TaskSuccessful, final.State)
}

func TestExecuteImportTaskPropagatesError(t *testing.T) {
	createOrg(t, "ErrOrg")
	key := createLibrary(t, "ErrOrg", "errors")
	library, err := models.GetLibraryByKey(db, key)
	require.NoError(t, err)

	task := models.ContentLibraryBlockImportTask{
		LibraryID: library.ID,
		CourseID:  "course-v1:DemoOrg+CS101+2026",
	}
	require.NoError(t, db.Create(&task).Error)

	boom := errors.New("import exploded")
	err = models.ExecuteImportTask(db, task.ID, func(*models.ContentLibraryBlockImportTask) error {
		return boom
	})
	// The original error comes back unchanged.
	assert.ErrorIs(t, err, boom)

	var final models.ContentLibraryBlockImportTask
	require.NoError(t, db.First(&final, task.ID).Error)
	assert.Equal(t, models.TaskFailed, final.State)
}

func TestExecuteImportTaskMissingRow(t *testing.T) {
	err := models.ExecuteImportTask(db, 999999, func(*models.ContentLibraryBlockImportTask) error {
		t.Fatal("work must not run for a missing task")
		return nil
	})
	assert.Error(t, err)
}

func TestSaveProgressLeavesStateAlone(t *testing.T) {
	createOrg(t, "ProgOrg")
	key := createLibrary(t, "ProgOrg", "progress")
	library, err := models.GetLibraryByKey(db, key)
	require.NoError(t, err)

	task := models.ContentLibraryBlockImportTask{
		LibraryID: library.ID,
		State:     models.TaskCreated,
		CourseID:  "course-v1:DemoOrg+CS101+2026",
	}
	require.NoError(t, db.Create(&task).Error)

	require.NoError(t, task.SaveProgress(db, 0.4))

	var reloaded models.ContentLibraryBlockImportTask
	require.NoError(t, db.First(&reloaded, task.ID).Error)
	assert.Equal(t, models.TaskCreated, reloaded.State)
	assert.Equal(t, 0.4, reloaded.Progress)
	assert.True(t, reloaded.UpdatedAt.After(reloaded.CreatedAt) || reloaded.UpdatedAt.Equal(reloaded.CreatedAt))
}

func TestImportTaskListOrdering(t *testing.T) {
	createOrg(t, "ListOrg")
	key := createLibrary(t, "ListOrg", "listing")

	for i := 0; i < 3; i++ {
		resp := doJSON("POST", "/api/admin/libraries/"+key+"/import-tasks", adminToken, map[string]interface{}{
			"course_id": "course-v1:DemoOrg+Empty+2026",
			"run":       false,
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON("GET", "/api/libraries/"+key+"/import-tasks", userToken, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
