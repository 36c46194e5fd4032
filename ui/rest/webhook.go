package rest

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	domainWebhook "github.com/zapdigest/ingest/domains/webhook"
	"github.com/zapdigest/ingest/pkg/msgworker"
	"github.com/zapdigest/ingest/pkg/webhookauth"
)

type Webhook struct {
	Service domainWebhook.IWebhookUsecase
	Pool    *msgworker.EventWorkerPool
}

// InitRestWebhook registers the public provider ingestion endpoint. It lives
// outside the bearer-auth group; its only protection is the shared secret.
func InitRestWebhook(app fiber.Router, service domainWebhook.IWebhookUsecase, pool *msgworker.EventWorkerPool) Webhook {
	rest := Webhook{Service: service, Pool: pool}
	app.Post("/webhook", rest.Ingest)
	return rest
}

// Ingest authenticates and parses the webhook synchronously, then hands the
// event to the worker pool so the provider gets its acknowledgment without
// waiting on any processing.
func (handler *Webhook) Ingest(c *fiber.Ctx) error {
	creds := webhookauth.Credentials{
		QueryToken:    c.Query("token"),
		Authorization: c.Get(fiber.HeaderAuthorization),
		HeaderToken:   c.Get("X-Webhook-Token"),
	}

	result := webhookauth.Result{Valid: false, Reason: webhookauth.ReasonTokenNotConfigured}
	for _, secret := range handler.Service.ResolveSecrets(c.UserContext()) {
		result = webhookauth.Validate(creds, secret)
		if result.Valid {
			break
		}
	}
	if !result.Valid {
		logrus.Warnf("[WEBHOOK] Rejected request: %s", result.Reason)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var payload domainWebhook.Payload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		logrus.WithError(err).Error("[WEBHOOK] Unparseable payload")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Invalid payload",
			"details": err.Error(),
		})
	}

	accepted := handler.Pool.TryDispatch(msgworker.EventJob{
		InstanceName: payload.Instance,
		ChatID:       payload.ChatID(),
		Handler: func(ctx context.Context) error {
			handler.Service.LogPayload(ctx, payload)
			handler.Service.ProcessEvent(ctx, payload)
			return nil
		},
	})
	if !accepted {
		logrus.Warnf("[WEBHOOK] Pool saturated, event %s from %s dropped", payload.Event, payload.Instance)
	}

	return c.JSON(fiber.Map{"status": "processed"})
}
