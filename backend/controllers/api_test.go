package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cyberverse/backend/config"
	"cyberverse/backend/models"
	"cyberverse/backend/routes"
	"cyberverse/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, utils.MigrateDB(db))

	cfg := &config.Config{
		JWTSecret:  "testsecret",
		ServerPort: "8080",
	}

	app := fiber.New()
	routes.SetupRoutes(app, db, cfg)

	return app, db
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeMap(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func registerUser(t *testing.T, app *fiber.App, username string) string {
	t.Helper()

	resp := doRequest(t, app, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeMap(t, resp)
	token, ok := body["token"].(string)
	require.True(t, ok, "register response must contain a token")
	return token
}

func seedLab(t *testing.T, db *gorm.DB, stepCount int) (models.Lab, []models.LabStep) {
	t.Helper()

	lab := models.Lab{
		Title:       "SQL Injection Basics",
		ShortDesc:   "Break a vulnerable login form",
		Category:    "web",
		Difficulty:  "beginner",
		AccessLevel: "public",
		Points:      100,
	}
	require.NoError(t, db.Create(&lab).Error)

	steps := make([]models.LabStep, 0, stepCount)
	for i := 1; i <= stepCount; i++ {
		step := models.LabStep{
			LabID:         lab.ID,
			Title:         fmt.Sprintf("Step %d", i),
			Instructions:  "Find the flag",
			Flag:          fmt.Sprintf("CTF{step_%d}", i),
			SequenceOrder: i,
		}
		require.NoError(t, db.Create(&step).Error)
		steps = append(steps, step)
	}

	return lab, steps
}

func TestRegisterAndAccount(t *testing.T) {
	app, db := setupApp(t)

	token := registerUser(t, app, "neo")

	resp := doRequest(t, app, "GET", "/api/account", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	account := decodeMap(t, resp)
	assert.Equal(t, "neo", account["name"])
	assert.Equal(t, "neo@example.com", account["email"])
	assert.Equal(t, "local", account["provider"])

	// signup must have created the profile row
	var count int64
	db.Model(&models.Profile{}).Count(&count)
	assert.EqualValues(t, 1, count)

	// without a session the endpoint is a 401
	resp = doRequest(t, app, "GET", "/api/account", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRecordsHistory(t *testing.T) {
	app, db := setupApp(t)

	registerUser(t, app, "trinity")

	resp := doRequest(t, app, "POST", "/api/auth/login", "", map[string]string{
		"username": "trinity",
		"password": "password123",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeMap(t, resp)
	assert.NotEmpty(t, body["token"])

	var count int64
	db.Model(&models.LoginHistory{}).Count(&count)
	assert.EqualValues(t, 1, count)

	resp = doRequest(t, app, "POST", "/api/auth/login", "", map[string]string{
		"username": "trinity",
		"password": "wrong",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLoginBumpsSummaryActivity(t *testing.T) {
	app, db := setupApp(t)

	lab, _ := seedLab(t, db, 1)
	token := registerUser(t, app, "mouse")

	resp := doRequest(t, app, "POST", fmt.Sprintf("/api/labs/%d/start", lab.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// age the stamp so the login bump is observable
	var summary models.UserProgressSummary
	require.NoError(t, db.First(&summary).Error)
	summary.LastActivityAt = time.Now().Add(-24 * time.Hour)
	require.NoError(t, db.Save(&summary).Error)

	resp = doRequest(t, app, "POST", "/api/auth/login", "", map[string]string{
		"username": "mouse",
		"password": "password123",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var after models.UserProgressSummary
	require.NoError(t, db.First(&after, summary.ID).Error)
	assert.True(t, after.LastActivityAt.After(summary.LastActivityAt), "login counts as activity")

	// a user without labs still has no summary row after logging in
	registerUser(t, app, "apoc")
	resp = doRequest(t, app, "POST", "/api/auth/login", "", map[string]string{
		"username": "apoc",
		"password": "password123",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rows int64
	db.Model(&models.UserProgressSummary{}).Count(&rows)
	assert.EqualValues(t, 1, rows)
}

func TestUnauthenticatedRequestsWriteNothing(t *testing.T) {
	app, db := setupApp(t)

	lab, steps := seedLab(t, db, 1)

	resp := doRequest(t, app, "POST", fmt.Sprintf("/api/labs/%d/start", lab.ID), "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, "POST",
		fmt.Sprintf("/api/labs/%d/steps/%d/progress", lab.ID, steps[0].ID), "",
		map[string]bool{"completed": true})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var progressRows, stepRows int64
	db.Model(&models.LabProgress{}).Count(&progressRows)
	db.Model(&models.LabStepProgress{}).Count(&stepRows)
	assert.EqualValues(t, 0, progressRows)
	assert.EqualValues(t, 0, stepRows)
}

func TestLabLifecycle(t *testing.T) {
	app, db := setupApp(t)

	lab, steps := seedLab(t, db, 3)
	token := registerUser(t, app, "morpheus")

	resp := doRequest(t, app, "POST", fmt.Sprintf("/api/labs/%d/start", lab.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeMap(t, resp)
	progress := body["progress"].(map[string]interface{})
	assert.Equal(t, models.LabStatusInProgress, progress["Status"])

	// complete the three steps one at a time
	for i, step := range steps {
		resp = doRequest(t, app, "POST",
			fmt.Sprintf("/api/labs/%d/steps/%d/progress", lab.ID, step.ID), token,
			map[string]bool{"completed": true})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body = decodeMap(t, resp)
		labProgress := body["progress"].(map[string]interface{})
		if i < len(steps)-1 {
			assert.Equal(t, models.LabStatusInProgress, labProgress["Status"])
		} else {
			assert.Equal(t, models.LabStatusCompleted, labProgress["Status"])
			assert.EqualValues(t, 100, labProgress["CompletionPercentage"])
		}
	}

	resp = doRequest(t, app, "GET", "/api/progress/overview", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	overview := decodeMap(t, resp)
	assert.EqualValues(t, 1, overview["total_labs"])
	assert.EqualValues(t, 1, overview["completed_labs"])
	assert.EqualValues(t, 100, overview["completion_percentage"])
}

func TestCompleteLabWithoutSteps(t *testing.T) {
	app, db := setupApp(t)

	lab, _ := seedLab(t, db, 0)
	token := registerUser(t, app, "tank")

	resp := doRequest(t, app, "POST", fmt.Sprintf("/api/labs/%d/complete", lab.ID), token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestResourceBoard(t *testing.T) {
	app, db := setupApp(t)

	token := registerUser(t, app, "oracle")

	resp := doRequest(t, app, "POST", "/api/resources", token, map[string]interface{}{
		"title":       "OWASP Top 10",
		"url":         "https://owasp.org/top10",
		"description": "The classic web vulnerability list",
		"tags":        []string{"web", "reference"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var resource models.Resource
	require.NoError(t, db.First(&resource).Error)

	// first upvote counts, the second is a no-op
	resp = doRequest(t, app, "POST", fmt.Sprintf("/api/resources/%d/upvote", resource.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = doRequest(t, app, "POST", fmt.Sprintf("/api/resources/%d/upvote", resource.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeMap(t, resp)
	assert.EqualValues(t, 1, body["upvotes"])

	resp = doRequest(t, app, "POST", fmt.Sprintf("/api/resources/%d/comments", resource.ID), token,
		map[string]string{"text": "Great starting point"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doRequest(t, app, "GET", "/api/resources/?tag=web", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "OWASP Top 10", list[0]["title"])
	assert.EqualValues(t, 1, list[0]["comments"])
	assert.Equal(t, "oracle", list[0]["author"])
}

func TestEmptyListingsAreArrays(t *testing.T) {
	app, _ := setupApp(t)

	token := registerUser(t, app, "link")

	// nothing has been created, so every listing must be an empty array,
	// never null
	for _, path := range []string{
		"/api/labs/",
		"/api/labs/available",
		"/api/phishing/scenarios",
		"/api/resources/",
	} {
		resp := doRequest(t, app, "GET", path, token, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, path)

		var list []map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list), path)
		assert.NotNil(t, list, path)
		assert.Len(t, list, 0, path)
	}
}

func TestUpvoteRaceLoserIsNoOp(t *testing.T) {
	app, db := setupApp(t)

	token := registerUser(t, app, "niobe")

	resp := doRequest(t, app, "POST", "/api/resources", token, map[string]interface{}{
		"title": "GTFOBins",
		"url":   "https://gtfobins.github.io",
		"tags":  []string{"privesc"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var resource models.Resource
	require.NoError(t, db.First(&resource).Error)
	var user models.User
	require.NoError(t, db.Where("username = ?", "niobe").First(&user).Error)

	// a concurrent request already recorded the vote between this handler's
	// read and its insert
	require.NoError(t, db.Create(&models.ResourceVote{
		ResourceID: resource.ID,
		UserID:     user.ID,
	}).Error)

	resp = doRequest(t, app, "POST", fmt.Sprintf("/api/resources/%d/upvote", resource.ID), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeMap(t, resp)
	assert.Equal(t, "Already upvoted", body["message"])

	var votes int64
	db.Model(&models.ResourceVote{}).Count(&votes)
	assert.EqualValues(t, 1, votes)
}

func TestPhishingAttempt(t *testing.T) {
	app, db := setupApp(t)

	scenario := models.PhishingScenario{
		Subject:     "Your account will be suspended",
		Sender:      "security@paypa1.com",
		Body:        "Click here to verify your account immediately.",
		IsPhish:     true,
		Explanation: "Misspelled domain and urgency pressure are classic phishing markers.",
		Difficulty:  "beginner",
	}
	require.NoError(t, db.Create(&scenario).Error)

	token := registerUser(t, app, "switch")

	// the listing must not leak the verdict
	resp := doRequest(t, app, "GET", "/api/phishing/scenarios", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "IsPhish")
	assert.NotContains(t, list[0], "explanation")

	resp = doRequest(t, app, "POST", fmt.Sprintf("/api/phishing/scenarios/%d/attempt", scenario.ID), token,
		map[string]bool{"is_phish": true})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeMap(t, resp)
	assert.Equal(t, true, body["correct"])
	assert.NotEmpty(t, body["explanation"])
	assert.NotEmpty(t, body["attempt_id"])

	resp = doRequest(t, app, "GET", "/api/phishing/stats", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	stats := decodeMap(t, resp)
	assert.EqualValues(t, 1, stats["scenarios_seen"])
	assert.EqualValues(t, 1, stats["correct_calls"])
	assert.EqualValues(t, 1, stats["accuracy"])
}

func TestAdminGuard(t *testing.T) {
	app, db := setupApp(t)

	token := registerUser(t, app, "cypher")

	newLab := map[string]interface{}{
		"Title":       "Forensics 101",
		"Category":    "forensics",
		"Difficulty":  "beginner",
		"AccessLevel": "public",
	}

	resp := doRequest(t, app, "POST", "/api/admin/labs/", token, newLab)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "cypher").
		Update("role", "admin").Error)

	resp = doRequest(t, app, "POST", "/api/admin/labs/", token, newLab)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var count int64
	db.Model(&models.Lab{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestUpdateProfile(t *testing.T) {
	app, _ := setupApp(t)

	token := registerUser(t, app, "dozer")

	resp := doRequest(t, app, "PUT", "/api/user/profile", token, map[string]string{
		"display_name": "Dozer",
		"bio":          "Ship operator",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, "GET", "/api/user/profile", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeMap(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Dozer", data["display_name"])
	assert.Equal(t, "Ship operator", data["bio"])
}
