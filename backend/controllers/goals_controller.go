package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"project/backend/config"
	"project/backend/models"
	"project/backend/utils"
)

type GoalsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewGoalsController(db *gorm.DB, cfg *config.Config) *GoalsController {
	return &GoalsController{DB: db, Cfg: cfg}
}

func goalJSON(goal *models.CourseGoal) fiber.Map {
	return fiber.Map{
		"id":                      goal.ID,
		"course_id":               goal.CourseID,
		"goal_key":                goal.GoalKey,
		"days_per_week":           goal.DaysPerWeek,
		"subscribed_to_reminders": goal.SubscribedToReminders,
	}
}

// SetGoal creates or updates the caller's goal for a course. The unsubscribe
// token is never taken from the request; it is generated once on creation.
func (gc *GoalsController) SetGoal(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, gc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var input struct {
		CourseID              string `json:"course_id"`
		GoalKey               string `json:"goal_key"`
		DaysPerWeek           *int   `json:"days_per_week"`
		SubscribedToReminders *bool  `json:"subscribed_to_reminders"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.CourseID == "" {
		return utils.BadRequest(c, "'course_id' is required")
	}

	switch input.GoalKey {
	case "", models.GoalCertify, models.GoalComplete, models.GoalExplore, models.GoalUnsure:
	default:
		return utils.BadRequest(c, "Invalid goal key")
	}

	var goal models.CourseGoal
	err = gc.DB.Where("user_id = ? AND course_id = ?", userID, input.CourseID).First(&goal).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.InternalServerError(c, "Could not query database")
		}
		goal = models.CourseGoal{
			UserID:   userID,
			CourseID: input.CourseID,
			GoalKey:  models.GoalUnsure,
		}
	}

	if input.GoalKey != "" {
		goal.GoalKey = input.GoalKey
	}
	if input.DaysPerWeek != nil {
		goal.DaysPerWeek = *input.DaysPerWeek
	}
	if input.SubscribedToReminders != nil {
		goal.SubscribedToReminders = *input.SubscribedToReminders
	}

	if err := gc.DB.Save(&goal).Error; err != nil {
		return utils.InternalServerError(c, "Could not save goal")
	}

	return c.JSON(fiber.Map{
		"message": "Goal saved",
		"goal":    goalJSON(&goal),
	})
}

func (gc *GoalsController) GetGoal(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, gc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var goal models.CourseGoal
	err = gc.DB.Where("user_id = ? AND course_id = ?", userID, c.Params("courseID")).First(&goal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Goal not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(goalJSON(&goal))
}

func (gc *GoalsController) DeleteGoal(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, gc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var goal models.CourseGoal
	err = gc.DB.Where("user_id = ? AND course_id = ?", userID, c.Params("courseID")).First(&goal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Goal not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	// Hard delete: a soft-deleted row would keep occupying the
	// (user, course) unique index and block setting a new goal later.
	// The history table keeps the trail.
	if err := gc.DB.Unscoped().Delete(&goal).Error; err != nil {
		return utils.InternalServerError(c, "Could not delete goal")
	}

	return utils.NoContent(c)
}

// Unsubscribe turns reminder emails off for the goal matching the token.
// The token is the only credential; no login is required.
func (gc *GoalsController) Unsubscribe(c *fiber.Ctx) error {
	token, err := uuid.Parse(c.Params("token"))
	if err != nil {
		return utils.BadRequest(c, "Invalid unsubscribe token")
	}

	var goal models.CourseGoal
	err = gc.DB.Where("unsubscribe_token = ?", token).First(&goal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Unknown unsubscribe token")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	goal.SubscribedToReminders = false
	if err := gc.DB.Save(&goal).Error; err != nil {
		return utils.InternalServerError(c, "Could not update goal")
	}

	return c.JSON(fiber.Map{
		"message":   "Unsubscribed from goal reminders",
		"course_id": goal.CourseID,
	})
}
