package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", tutorerr.ErrInvalidRequest), fiber.StatusBadRequest},
		{&ValidationError{Fields: map[string]string{"user_id": "is required"}}, fiber.StatusBadRequest},
		{fmt.Errorf("conversation c1: %w", tutorerr.ErrConversationNotFound), fiber.StatusNotFound},
		{tutorerr.ErrQuizNotFound, fiber.StatusNotFound},
		{tutorerr.ErrConversationExists, fiber.StatusConflict},
		{tutorerr.ErrInvalidTransition, fiber.StatusConflict},
		{fmt.Errorf("%w: %w", tutorerr.ErrGeneration, errors.New("timeout")), fiber.StatusBadGateway},
		{fiber.NewError(fiber.StatusUnauthorized, "Missing token"), fiber.StatusUnauthorized},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func newApp(t *testing.T, handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(logger.NewFromZap(zaptest.NewLogger(t))))
	app.Get("/", handler)
	return app
}

func decode(t *testing.T, body io.Reader) ErrorResponse {
	var out ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestErrorHandlerHidesInternalDetails(t *testing.T) {
	app := newApp(t, func(ctx *fiber.Ctx) error {
		return errors.New("pq: password authentication failed")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.False(t, body.Success)
	assert.Equal(t, "Internal server error", body.Message)
}

func TestErrorHandlerValidationFields(t *testing.T) {
	type request struct {
		UserId    string `json:"user_id" validate:"required"`
		UserInput string `json:"user_input" validate:"required,max=5"`
	}
	app := newApp(t, func(ctx *fiber.Ctx) error {
		return ValidateRequest(request{UserInput: "too long"})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.Equal(t, "Validation failed", body.Message)
	assert.Equal(t, "is required", body.Errors["user_id"])
	assert.Equal(t, "must be at most 5 characters", body.Errors["user_input"])
}

func TestErrorHandlerPassesNotFoundMessage(t *testing.T) {
	app := newApp(t, func(ctx *fiber.Ctx) error {
		return fmt.Errorf("conversation c9: %w", tutorerr.ErrConversationNotFound)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decode(t, resp.Body).Message, "c9")
}

func signed(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJwtMiddleware(t *testing.T) {
	const secret = "s3cret"
	app := newApp(t, func(ctx *fiber.Ctx) error { return nil })
	app.Get("/me", NewJwtMiddleware(secret), func(ctx *fiber.Ctx) error {
		return ctx.SendString(UserID(ctx, "fallback"))
	})

	call := func(header string) (int, string) {
		req := httptest.NewRequest("GET", "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(raw)
	}

	status, body := call("Bearer " + signed(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1"}))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u1", body)

	status, _ = call("")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call("Bearer " + signed(t, "other", jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1"}))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call("Bearer " + signed(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{"role": "user"}))
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestJwtMiddlewareDisabled(t *testing.T) {
	app := fiber.New()
	app.Get("/me", NewJwtMiddleware(""), func(ctx *fiber.Ctx) error {
		return ctx.SendString(UserID(ctx, "from-body"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "from-body", string(raw))
}
