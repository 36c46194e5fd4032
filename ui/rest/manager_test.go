package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdigest/ingest/domains/account"
	domainManager "github.com/zapdigest/ingest/domains/manager"
	pkgError "github.com/zapdigest/ingest/pkg/error"
	"github.com/zapdigest/ingest/repository"
	"github.com/zapdigest/ingest/ui/rest/middleware"
	"gorm.io/gorm"
)

type stubManagerUsecase struct {
	lastUser *account.User
	lastReq  domainManager.ActionRequest
	result   map[string]any
	err      error
}

func (s *stubManagerUsecase) Handle(ctx context.Context, user *account.User, req domainManager.ActionRequest) (map[string]any, error) {
	s.lastUser = user
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newManagerApp(t *testing.T, stub *stubManagerUsecase) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := newRestTestDB(t)
	seedIngestTenant(t, db)

	app := fiber.New()
	app.Use(middleware.Recovery())
	api := app.Group("/api")
	api.Use(middleware.BearerAuth(repository.NewAccountGormRepository(db)))
	InitRestManager(api, stub)
	return app, db
}

func TestManagerEndpoint_RequiresBearerToken(t *testing.T) {
	app, _ := newManagerApp(t, &stubManagerUsecase{result: map[string]any{}})

	body, _ := json.Marshal(map[string]any{"action": "test_connection"})
	req := httptest.NewRequest(fiber.MethodPost, "/api/manager", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestManagerEndpoint_RejectsUnknownToken(t *testing.T) {
	app, _ := newManagerApp(t, &stubManagerUsecase{result: map[string]any{}})

	body, _ := json.Marshal(map[string]any{"action": "test_connection"})
	req := httptest.NewRequest(fiber.MethodPost, "/api/manager", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer nope")

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestManagerEndpoint_ExecutesAction(t *testing.T) {
	stub := &stubManagerUsecase{result: map[string]any{"success": true, "count": 3}}
	app, _ := newManagerApp(t, stub)

	body, _ := json.Marshal(map[string]any{"action": "fetch_groups"})
	req := httptest.NewRequest(fiber.MethodPost, "/api/manager", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer tok123")

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var parsed struct {
		Code    string         `json:"code"`
		Results map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, "SUCCESS", parsed.Code)
	assert.Equal(t, true, parsed.Results["success"])

	require.NotNil(t, stub.lastUser, "the authenticated user reaches the usecase")
	assert.Equal(t, "user1", stub.lastUser.ID)
	assert.Equal(t, "fetch_groups", stub.lastReq.Action)
}

func TestManagerEndpoint_UsecaseErrorMapsToStatus(t *testing.T) {
	stub := &stubManagerUsecase{err: pkgError.ValidationError("Invalid action: bogus")}
	app, _ := newManagerApp(t, stub)

	body, _ := json.Marshal(map[string]any{"action": "bogus"})
	req := httptest.NewRequest(fiber.MethodPost, "/api/manager", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer tok123")

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, "VALIDATION_ERROR", parsed.Code)
	assert.Contains(t, parsed.Message, "Invalid action")
}
