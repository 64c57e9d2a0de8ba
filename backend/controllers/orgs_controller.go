package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"project/backend/config"
	"project/backend/models"
	"project/backend/utils"
)

type OrgsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewOrgsController(db *gorm.DB, cfg *config.Config) *OrgsController {
	return &OrgsController{DB: db, Cfg: cfg}
}

func (oc *OrgsController) CreateOrg(c *fiber.Ctx) error {
	var input struct {
		ShortName string `json:"short_name"`
		Name      string `json:"name"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.ShortName == "" {
		return utils.BadRequest(c, "'short_name' is required")
	}

	org := models.Organization{
		ShortName: input.ShortName,
		Name:      input.Name,
	}
	if err := oc.DB.Create(&org).Error; err != nil {
		return utils.InternalServerError(c, "Could not create organization")
	}

	return utils.Created(c, fiber.Map{
		"id":         org.ID,
		"short_name": org.ShortName,
		"name":       org.Name,
	})
}

func (oc *OrgsController) GetOrgs(c *fiber.Ctx) error {
	var orgs []models.Organization
	if err := oc.DB.Order("short_name").Find(&orgs).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	result := make([]fiber.Map, 0, len(orgs))
	for _, org := range orgs {
		result = append(result, fiber.Map{
			"id":         org.ID,
			"short_name": org.ShortName,
			"name":       org.Name,
		})
	}

	return c.JSON(result)
}

func (oc *OrgsController) CreateGroup(c *fiber.Ctx) error {
	var input struct {
		Name string `json:"name"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Name == "" {
		return utils.BadRequest(c, "'name' is required")
	}

	group := models.Group{Name: input.Name}
	if err := oc.DB.Create(&group).Error; err != nil {
		return utils.InternalServerError(c, "Could not create group")
	}

	return utils.Created(c, fiber.Map{
		"id":   group.ID,
		"name": group.Name,
	})
}

func (oc *OrgsController) AddGroupMember(c *fiber.Ctx) error {
	groupID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid group ID")
	}

	var input struct {
		Username string `json:"username"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var group models.Group
	if err := oc.DB.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Group not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	var user models.User
	if err := oc.DB.Where("username = ?", input.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "User not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	membership := models.GroupMembership{
		GroupID: group.ID,
		UserID:  user.ID,
	}
	if err := oc.DB.Create(&membership).Error; err != nil {
		return utils.InternalServerError(c, "Could not add group member")
	}

	return utils.Created(c, fiber.Map{
		"group":    group.Name,
		"username": user.Username,
	})
}
