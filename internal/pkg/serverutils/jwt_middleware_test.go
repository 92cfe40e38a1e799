package serverutils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func newJwtTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/protected", JwtMiddleware, func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"user_id":         ctx.Locals("user_id"),
			"organization_id": ctx.Locals("organization_id"),
		})
	})
	return app
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestJwtMiddleware(t *testing.T) {
	const secret = "test-secret"
	t.Setenv("JWT_SECRET", secret)

	app := newJwtTestApp()
	userId := uuid.New().String()
	orgId := uuid.New().String()

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{
			name:       "valid identity claims",
			token:      signToken(t, secret, jwt.MapClaims{"user_id": userId, "organization_id": orgId}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing token",
			token:      "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong signing key",
			token:      signToken(t, "other-secret", jwt.MapClaims{"user_id": userId, "organization_id": orgId}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing organization claim",
			token:      signToken(t, secret, jwt.MapClaims{"user_id": userId}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non-uuid user claim",
			token:      signToken(t, secret, jwt.MapClaims{"user_id": "alice", "organization_id": orgId}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non-uuid organization claim",
			token:      signToken(t, secret, jwt.MapClaims{"user_id": userId, "organization_id": "acme"}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			res, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
		})
	}
}
