package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"cyberverse/backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenExpiry(t *testing.T, tokenString, secret string) time.Time {
	t.Helper()

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	return time.Unix(int64(exp), 0)
}

func TestGenerateJWTTokenUsesConfiguredTTL(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret", TokenTTL: 15 * time.Minute}

	tokenString, err := GenerateJWTToken(7, cfg)
	require.NoError(t, err)

	expiry := tokenExpiry(t, tokenString, cfg.JWTSecret)
	assert.InDelta(t, time.Until(expiry).Minutes(), 15, 1)
}

func TestGenerateJWTTokenDefaultTTL(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret"}

	tokenString, err := GenerateJWTToken(7, cfg)
	require.NoError(t, err)

	expiry := tokenExpiry(t, tokenString, cfg.JWTSecret)
	assert.InDelta(t, time.Until(expiry).Hours(), 72, 1)
}

func TestExtractUserIDFromToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "testsecret", TokenTTL: time.Hour}

	tokenString, err := GenerateJWTToken(42, cfg)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/whoami", func(c *fiber.Ctx) error {
		userID, err := ExtractUserIDFromToken(c, cfg)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"bare token", tokenString, fiber.StatusOK},
		{"bearer scheme", "Bearer " + tokenString, fiber.StatusOK},
		{"missing header", "", fiber.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
