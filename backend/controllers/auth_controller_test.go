package controllers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	resp := doJSON("POST", "/api/auth/register", "", map[string]string{
		"username":      "newuser",
		"email":         "newuser@example.com",
		"password_hash": "password123",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	result := decode(resp)
	assert.NotEmpty(t, result["token"])
	assert.NotEmpty(t, result["user"])
}

func TestLogin(t *testing.T) {
	resp := doJSON("POST", "/api/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "password",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	result := decode(resp)
	assert.NotEmpty(t, result["token"])
	assert.NotEmpty(t, result["user"])
}

func TestLoginBadPassword(t *testing.T) {
	resp := doJSON("POST", "/api/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGetProfile(t *testing.T) {
	resp := doJSON("GET", "/api/user/profile", userToken, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	result := decode(resp)
	assert.Equal(t, "testuser", result["username"])
	assert.Equal(t, "user@example.com", result["email"])
}

func TestAdminRouteRequiresAdmin(t *testing.T) {
	resp := doJSON("POST", "/api/admin/orgs", userToken, map[string]string{
		"short_name": "NopeOrg",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON("POST", "/api/admin/orgs", "", map[string]string{
		"short_name": "NopeOrg",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
