package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zapdigest/ingest/core/config"
	"github.com/zapdigest/ingest/domains/account"
	"github.com/zapdigest/ingest/domains/alert"
	"github.com/zapdigest/ingest/domains/group"
	"github.com/zapdigest/ingest/domains/instance"
	"github.com/zapdigest/ingest/domains/message"
	"github.com/zapdigest/ingest/domains/system"
	"github.com/zapdigest/ingest/domains/webhook"
	"github.com/zapdigest/ingest/pkg/ttlcache"
)

const secretCacheKey = "webhook:shared_secret"

type serviceWebhook struct {
	cfg          *config.Config
	accountRepo  account.IAccountRepository
	instanceRepo instance.IInstanceRepository
	groupRepo    group.IGroupRepository
	messageRepo  message.IMessageRepository
	systemRepo   system.ISystemRepository
	alertService alert.IAlertUsecase
	cache        *ttlcache.Cache
}

func NewWebhookService(
	cfg *config.Config,
	accountRepo account.IAccountRepository,
	instanceRepo instance.IInstanceRepository,
	groupRepo group.IGroupRepository,
	messageRepo message.IMessageRepository,
	systemRepo system.ISystemRepository,
	alertService alert.IAlertUsecase,
) webhook.IWebhookUsecase {
	return &serviceWebhook{
		cfg:          cfg,
		accountRepo:  accountRepo,
		instanceRepo: instanceRepo,
		groupRepo:    groupRepo,
		messageRepo:  messageRepo,
		systemRepo:   systemRepo,
		alertService: alertService,
		cache:        ttlcache.New(),
	}
}

// ResolveSecrets returns every candidate shared secret: the environment value
// first, then the system_settings fallback behind a TTL cache. A request
// validating against any of them is accepted, so rotating the secret in the
// DB does not invalidate in-flight provider configuration.
func (s *serviceWebhook) ResolveSecrets(ctx context.Context) []string {
	var secrets []string
	env := strings.TrimSpace(s.cfg.Webhook.AuthToken)
	if env != "" {
		secrets = append(secrets, env)
	}
	if db := s.databaseSecret(ctx); db != "" && db != env {
		secrets = append(secrets, db)
	}
	return secrets
}

func (s *serviceWebhook) databaseSecret(ctx context.Context) string {
	if v, ok := s.cache.GetString(secretCacheKey); ok {
		return v
	}
	v, err := s.systemRepo.GetSetting(ctx, system.SettingWebhookToken)
	if err != nil {
		logrus.WithError(err).Warn("[WEBHOOK] Failed to read shared secret from settings")
		return ""
	}
	// Empty values are cached too, so a missing setting does not turn every
	// request into a settings query.
	ttl := time.Duration(s.cfg.Webhook.SecretCacheTTL) * time.Second
	s.cache.Set(secretCacheKey, strings.TrimSpace(v), ttl)
	return strings.TrimSpace(v)
}

// ProcessEvent runs the pipeline for one provider event. It is called from a
// pool worker after the HTTP response went out; nothing here may panic
// through or return an error to the webhook caller.
func (s *serviceWebhook) ProcessEvent(ctx context.Context, payload webhook.Payload) {
	switch payload.Type() {
	case webhook.EventConnectionUpdate:
		s.handleConnectionUpdate(ctx, payload)
	case webhook.EventGroupUpsert:
		s.handleGroupUpsert(ctx, payload)
	case webhook.EventMessageUpsert:
		s.handleMessageUpsert(ctx, payload)
	default:
		logrus.Debugf("[WEBHOOK] Ignoring event %q from instance %s", payload.Event, payload.Instance)
	}
}

// LogPayload records the raw webhook body for debugging, best-effort.
func (s *serviceWebhook) LogPayload(ctx context.Context, payload webhook.Payload) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.systemRepo.LogWebhook(ctx, payload.Event, payload.Instance, string(body)); err != nil {
		logrus.WithError(err).Debug("[WEBHOOK] Failed to record webhook log")
	}
}

func (s *serviceWebhook) handleConnectionUpdate(ctx context.Context, payload webhook.Payload) {
	var data webhook.ConnectionData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		logrus.WithError(err).Warnf("[WEBHOOK] Malformed connection payload from %s", payload.Instance)
		return
	}

	inst, err := s.instanceRepo.GetByName(ctx, payload.Instance)
	if err != nil {
		logrus.WithError(err).Warnf("[WEBHOOK] Connection update for unknown instance %s", payload.Instance)
		return
	}

	status := instance.StatusFromProviderState(data.State)
	clearQR := status == instance.StatusConnected
	if err := s.instanceRepo.UpdateStatus(ctx, inst.ID, status, clearQR); err != nil {
		logrus.WithError(err).Errorf("[WEBHOOK] Failed to update status for instance %s", inst.Name)
		return
	}

	if status == instance.StatusDisconnected && inst.Status != instance.StatusDisconnected {
		notif := &system.Notification{
			Title:    "WhatsApp Desconectado",
			Message:  fmt.Sprintf("A instância %q foi desconectada. Verifique o status no painel.", inst.Name),
			Type:     "error",
			Scope:    system.NotificationScopeSuperAdmin,
			Metadata: map[string]any{"instance_name": inst.Name},
		}
		if err := s.systemRepo.CreateNotification(ctx, notif); err != nil {
			logrus.WithError(err).Warn("[WEBHOOK] Failed to record disconnect notification")
		}
	}

	logrus.Infof("[WEBHOOK] Instance %s status updated to %s", inst.Name, status)
}

// handleGroupUpsert refreshes display names from a group-metadata event. The
// payload arrives singular or batched; a bad entry never aborts its siblings.
func (s *serviceWebhook) handleGroupUpsert(ctx context.Context, payload webhook.Payload) {
	groups := webhook.DecodeGroupData(payload.Data)
	if len(groups) == 0 {
		return
	}

	inst, err := s.instanceRepo.GetByName(ctx, payload.Instance)
	if err != nil {
		logrus.Infof("[WEBHOOK] Instance %s not found, skipping group upsert", payload.Instance)
		return
	}

	for _, g := range groups {
		if g.ID == "" || g.Subject == "" {
			continue
		}
		if err := s.groupRepo.UpsertMetadata(ctx, inst.ID, g.ID, g.Subject); err != nil {
			logrus.WithError(err).Warnf("[WEBHOOK] Failed to upsert group %s", g.ID)
			continue
		}
		logrus.Debugf("[WEBHOOK] Upserted group metadata: %s (%s)", g.Subject, g.ID)
	}
}
