package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/trading-backend/shared"
)

func performErrorRequest(t *testing.T, err error) (*http.Response, map[string]interface{}) {
	t.Helper()

	app := fiber.New()
	app.Get("/fail", func(c *fiber.Ctx) error {
		return errorResponse(c, err)
	})

	response, requestErr := app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil))
	require.NoError(t, requestErr)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	return response, body
}

func TestErrorResponseStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", shared.NewNotFoundError("USER_NOT_FOUND", "no such user", "svc", "op"), http.StatusNotFound},
		{"validation", shared.NewValidationError("PRICE_OUT_OF_BAND", "price rejected", "svc", "op"), http.StatusBadRequest},
		{"conflict", shared.NewConflictError("REPORT_EXISTS", "lock held", "svc", "op", nil), http.StatusConflict},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			response, body := performErrorRequest(t, testCase.err)
			assert.Equal(t, testCase.status, response.StatusCode)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}
