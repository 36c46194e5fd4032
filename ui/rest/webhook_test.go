package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdigest/ingest/core/config"
	"github.com/zapdigest/ingest/pkg/msgworker"
	"github.com/zapdigest/ingest/repository"
	"github.com/zapdigest/ingest/ui/rest/middleware"
	"github.com/zapdigest/ingest/usecase"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRestTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	return db
}

func newIngestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := newRestTestDB(t)

	cfg := &config.Config{
		Webhook: config.WebhookConfig{
			AuthToken:      "abc123",
			MinContentLen:  2,
			SecretCacheTTL: 300,
		},
	}

	accountRepo := repository.NewAccountGormRepository(db)
	instanceRepo := repository.NewInstanceGormRepository(db)
	groupRepo := repository.NewGroupGormRepository(db)
	messageRepo := repository.NewMessageGormRepository(db)
	systemRepo := repository.NewSystemGormRepository(db)
	keywordRepo := repository.NewKeywordGormRepository(db)

	alertService := usecase.NewAlertService(keywordRepo, accountRepo, messageRepo)
	service := usecase.NewWebhookService(cfg, accountRepo, instanceRepo, groupRepo, messageRepo, systemRepo, alertService)

	pool := msgworker.NewEventWorkerPool(2, 16)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	app := fiber.New()
	app.Use(middleware.Recovery())
	InitRestWebhook(app, service, pool)
	return app, db
}

func seedIngestTenant(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Table("plans").Create(map[string]any{
		"id": "plan1", "slug": "pro", "name": "Pro",
		"max_groups": -1, "max_messages_per_day": -1, "retention_days": 30,
	}).Error)
	require.NoError(t, db.Table("organizations").Create(map[string]any{
		"id": "org1", "name": "Acme", "plan_id": "plan1",
	}).Error)
	require.NoError(t, db.Table("users").Create(map[string]any{
		"id": "user1", "organization_id": "org1", "email": "owner@acme.io", "api_token": "tok123",
	}).Error)
	require.NoError(t, db.Table("instances").Create(map[string]any{
		"id": "inst1", "user_id": "user1", "name": "acme_instance",
		"status": "connected", "qr_code": "", "created_at": now, "updated_at": now,
	}).Error)
}

func webhookBody(instanceName, remoteJID, text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event":    "messages.upsert",
		"instance": instanceName,
		"data": map[string]any{
			"key": map[string]any{
				"remoteJid": remoteJID,
				"fromMe":    false,
				"id":        "WAMID-1",
			},
			"pushName":         "Maria",
			"message":          map[string]any{"conversation": text},
			"messageType":      "conversation",
			"messageTimestamp": time.Now().Unix(),
		},
	})
	return body
}

func TestIngestEndpoint_RejectsMissingToken(t *testing.T) {
	app, _ := newIngestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/webhook", bytes.NewReader(webhookBody("acme_instance", "100@g.us", "oi")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestIngestEndpoint_RejectsWrongToken(t *testing.T) {
	app, _ := newIngestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/webhook?token=wrong", bytes.NewReader(webhookBody("acme_instance", "100@g.us", "oi")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestIngestEndpoint_ProcessesWithQueryToken(t *testing.T) {
	app, db := newIngestApp(t)
	seedIngestTenant(t, db)

	req := httptest.NewRequest(fiber.MethodPost, "/webhook?token=abc123",
		bytes.NewReader(webhookBody("acme_instance", "100@g.us", "Preciso de ajuda urgente")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"processed"}`, string(raw))

	// The event is processed asynchronously by the pool.
	assert.Eventually(t, func() bool {
		var count int64
		db.Table("messages").Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIngestEndpoint_AcceptsTokenWithPathSuffix(t *testing.T) {
	app, db := newIngestApp(t)
	seedIngestTenant(t, db)

	// Some provider versions append a path fragment to the configured token.
	req := httptest.NewRequest(fiber.MethodPost, "/webhook?token=abc123/messages-upsert",
		bytes.NewReader(webhookBody("acme_instance", "100@g.us", "segunda mensagem valida")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestIngestEndpoint_AcceptsBearerToken(t *testing.T) {
	app, _ := newIngestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/webhook", bytes.NewReader(webhookBody("acme_instance", "100@g.us", "oi tudo bem")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer abc123")

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestIngestEndpoint_InvalidJSON(t *testing.T) {
	app, _ := newIngestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/webhook?token=abc123", bytes.NewReader([]byte(`{not json`)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Invalid payload", body["error"])
}

func TestIngestEndpoint_UnknownEventStillAccepted(t *testing.T) {
	app, _ := newIngestApp(t)

	payload, _ := json.Marshal(map[string]any{
		"event":    "PRESENCE_UPDATE",
		"instance": "acme_instance",
		"data":     map[string]any{},
	})
	req := httptest.NewRequest(fiber.MethodPost, "/webhook?token=abc123", bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestIngestEndpoint_OrderPreservedPerChat(t *testing.T) {
	app, db := newIngestApp(t)
	seedIngestTenant(t, db)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/webhook?token=abc123",
			bytes.NewReader(webhookBody("acme_instance", "100@g.us", fmt.Sprintf("mensagem numero %d", i))))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req, 2000)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	require.Eventually(t, func() bool {
		var count int64
		db.Table("messages").Count(&count)
		return count == 5
	}, 2*time.Second, 10*time.Millisecond)

	var contents []string
	require.NoError(t, db.Table("messages").Order("created_at, content").Pluck("content", &contents).Error)
	assert.Equal(t, []string{
		"mensagem numero 0", "mensagem numero 1", "mensagem numero 2",
		"mensagem numero 3", "mensagem numero 4",
	}, contents)
}
