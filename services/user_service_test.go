// kodata-dao/services/user_service_test.go
package services

import (
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kodata-dao/models"
)

func TestUpdateProfilePartialFields(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	user := seedUser(t, db, "0x04a1old")
	require.NoError(t, db.Model(user).Update("username", "koda").Error)

	app := fiber.New()
	app.Put("/profile", asUser(user.ID, false), svc.UpdateProfile)
	app.Get("/profile", asUser(user.ID, false), svc.GetProfile)

	// Only the provided field changes.
	resp := doJSON(t, app, "PUT", "/profile", fiber.Map{"starknet_address": "0x04a1new"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got models.User
	decodeBody(t, resp, &got)
	assert.Equal(t, "0x04a1new", got.StarknetAddress)
	assert.Equal(t, "koda", got.Username)

	resp = doJSON(t, app, "PUT", "/profile", fiber.Map{"username": strings.Repeat("x", 33)})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, "GET", "/profile", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &got)
	assert.Equal(t, "koda", got.Username)
	assert.Equal(t, "0x04a1new", got.StarknetAddress)
}

func TestLeaderboardOrdersByReputation(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)

	top := seedUser(t, db, "")
	require.NoError(t, db.Model(top).Update("reputation", 50).Error)
	mid := seedUser(t, db, "")
	require.NoError(t, db.Model(mid).Update("reputation", 20).Error)
	seedUser(t, db, "")

	app := fiber.New()
	app.Get("/leaderboard", svc.Leaderboard)

	resp := doJSON(t, app, "GET", "/leaderboard", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var entries []struct {
		Rank       int    `json:"rank"`
		UserID     string `json:"user_id"`
		Reputation int64  `json:"reputation"`
	}
	decodeBody(t, resp, &entries)
	require.Len(t, entries, 3)
	assert.Equal(t, top.ID, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, mid.ID, entries[1].UserID)
	assert.EqualValues(t, 0, entries[2].Reputation)

	resp = doJSON(t, app, "GET", "/leaderboard?limit=1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &entries)
	assert.Len(t, entries, 1)
}

func TestPromoteAndDemote(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)

	admin := seedAdmin(t, db)
	user := seedUser(t, db, "")

	app := fiber.New()
	app.Post("/promote/:id", asUser(admin.ID, true), svc.Promote)
	app.Post("/demote/:id", asUser(admin.ID, true), svc.Demote)

	resp := doJSON(t, app, "POST", "/promote/"+user.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var got models.User
	require.NoError(t, db.First(&got, "id = ?", user.ID).Error)
	assert.True(t, got.IsAdmin)

	resp = doJSON(t, app, "POST", "/demote/"+user.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.NoError(t, db.First(&got, "id = ?", user.ID).Error)
	assert.False(t, got.IsAdmin)

	resp = doJSON(t, app, "POST", "/promote/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
