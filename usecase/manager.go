package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zapdigest/ingest/core/config"
	"github.com/zapdigest/ingest/domains/account"
	"github.com/zapdigest/ingest/domains/group"
	"github.com/zapdigest/ingest/domains/instance"
	"github.com/zapdigest/ingest/domains/manager"
	"github.com/zapdigest/ingest/domains/webhook"
	"github.com/zapdigest/ingest/infrastructure/evolution"
	pkgError "github.com/zapdigest/ingest/pkg/error"
	"github.com/zapdigest/ingest/validations"
)

type serviceManager struct {
	cfg            *config.Config
	provider       *evolution.Client
	instanceRepo   instance.IInstanceRepository
	groupRepo      group.IGroupRepository
	webhookService webhook.IWebhookUsecase
}

func NewManagerService(
	cfg *config.Config,
	provider *evolution.Client,
	instanceRepo instance.IInstanceRepository,
	groupRepo group.IGroupRepository,
	webhookService webhook.IWebhookUsecase,
) manager.IManagerUsecase {
	return &serviceManager{
		cfg:            cfg,
		provider:       provider,
		instanceRepo:   instanceRepo,
		groupRepo:      groupRepo,
		webhookService: webhookService,
	}
}

// Handle executes one control-plane action for the authenticated user.
func (s *serviceManager) Handle(ctx context.Context, user *account.User, req manager.ActionRequest) (map[string]any, error) {
	if err := validations.ValidateManagerAction(ctx, req); err != nil {
		return nil, err
	}

	logrus.Infof("[MANAGER] Action: %s | User: %s", req.Action, user.ID)

	switch req.Action {
	case manager.ActionTestConnection:
		return s.testConnection(ctx)
	case manager.ActionFetchGroups:
		return s.fetchGroups(ctx, user)
	case manager.ActionCreateInstance:
		return s.createInstance(ctx, user, req.InstanceName)
	case manager.ActionFetchQR:
		return s.fetchQR(ctx, user)
	case manager.ActionFetchStatus:
		return s.fetchStatus(ctx, user)
	case manager.ActionSetWebhook:
		return s.setWebhook(ctx, user)
	case manager.ActionFindWebhook:
		return s.findWebhook(ctx, user)
	case manager.ActionLogoutInstance:
		return s.logoutInstance(ctx, user)
	case manager.ActionDeleteInstance:
		return s.deleteInstance(ctx, user)
	case manager.ActionSendMessage:
		return s.sendMessage(ctx, user, req)
	default:
		return nil, pkgError.ValidationError("Invalid action: " + req.Action)
	}
}

// webhookSettings builds the registration every instance must carry: this
// system's ingestion URL with the shared secret baked into the query string.
func (s *serviceManager) webhookSettings(ctx context.Context) evolution.WebhookSettings {
	secret := ""
	if secrets := s.webhookService.ResolveSecrets(ctx); len(secrets) > 0 {
		secret = secrets[0]
	}
	return evolution.WebhookSettings{
		Enabled:         true,
		URL:             s.cfg.IngestWebhookURL(secret),
		WebhookByEvents: true,
		Events:          evolution.SubscribedEvents,
	}
}

func (s *serviceManager) testConnection(ctx context.Context) (map[string]any, error) {
	entries, err := s.provider.FetchInstances(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":        true,
		"message":        "Connected",
		"instancesCount": len(entries),
	}, nil
}

// fetchGroups runs the full group synchronization: resolve the provider-side
// instance name, list groups with participants, derive admin flags, then
// batch-upsert the descriptive metadata.
func (s *serviceManager) fetchGroups(ctx context.Context, user *account.User) (map[string]any, error) {
	inst, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	realName, err := s.provider.ResolveInstanceName(ctx, inst.Name)
	if err != nil {
		return nil, err
	}

	groups, err := s.provider.FetchGroups(ctx, realName)
	if err != nil {
		return nil, err
	}

	myJID, err := s.provider.OwnerJID(ctx, realName)
	if err != nil {
		logrus.WithError(err).Warnf("[MANAGER] Could not resolve own JID for %s", realName)
		myJID = ""
	}

	entries := make([]group.SyncEntry, 0, len(groups))
	for _, g := range groups {
		if g.ID == "" {
			continue
		}
		entries = append(entries, group.SyncEntry{
			JID:               g.ID,
			Name:              g.DisplayName(),
			IsAdmin:           computeIsAdmin(g, myJID),
			ParticipantsCount: g.ParticipantsCount(),
		})
	}

	saved, err := s.groupRepo.SyncUpsert(ctx, inst.ID, entries)
	if err != nil {
		return nil, err
	}

	return map[string]any{"success": true, "count": saved}, nil
}

func (s *serviceManager) createInstance(ctx context.Context, user *account.User, requestedName string) (map[string]any, error) {
	name := requestedName
	if name == "" {
		name = defaultInstanceName(user.ID)
	}

	existing, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err == nil {
		name = existing.Name
	} else {
		existing = nil
	}

	hook := s.webhookSettings(ctx)
	if _, err := s.provider.CreateInstance(ctx, name, hook); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			logrus.Infof("[MANAGER] Instance %s exists, refreshing webhook", name)
			if _, err := s.provider.SetWebhook(ctx, name, hook); err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	}

	connectData, err := s.provider.ConnectInstance(ctx, name)
	if err != nil {
		return nil, err
	}

	status := instance.StatusConnecting
	if connectData.State() == "open" {
		status = instance.StatusConnected
	}
	qrCode := connectData.QR()
	if qrCode == "" {
		qrCode = connectData.Code
	}

	if existing != nil {
		if err := s.instanceRepo.UpdateQR(ctx, existing.ID, qrCode, status); err != nil {
			return nil, err
		}
	} else {
		inst := &instance.Instance{
			UserID: user.ID,
			Name:   name,
			Status: status,
			QRCode: qrCode,
		}
		if err := s.instanceRepo.Create(ctx, inst); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"success":     true,
		"status":      string(status),
		"qrCode":      qrCode,
		"pairingCode": connectData.PairingCode,
	}, nil
}

func (s *serviceManager) fetchQR(ctx context.Context, user *account.User) (map[string]any, error) {
	inst, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	connectData, err := s.provider.ConnectInstance(ctx, inst.Name)
	if err != nil {
		return nil, err
	}

	qrCode := connectData.QR()
	if qrCode == "" {
		qrCode = connectData.Code
	}
	if qrCode != "" {
		if err := s.instanceRepo.UpdateQR(ctx, inst.ID, qrCode, instance.StatusConnecting); err != nil {
			return nil, err
		}
	}

	return map[string]any{"qrCode": qrCode, "pairingCode": connectData.PairingCode}, nil
}

// fetchStatus polls the provider connection state. When connected it also
// verifies the webhook registration and repairs drift; those failures are
// swallowed so a broken webhook never breaks the status check.
func (s *serviceManager) fetchStatus(ctx context.Context, user *account.User) (map[string]any, error) {
	inst, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return map[string]any{"status": string(instance.StatusDisconnected)}, nil
	}

	state, err := s.provider.ConnectionState(ctx, inst.Name)
	if err != nil {
		return nil, err
	}
	status := instance.StatusFromProviderState(state)

	if status == instance.StatusConnected {
		s.healWebhook(ctx, inst.Name)
	}

	if err := s.instanceRepo.UpdateStatus(ctx, inst.ID, status, status == instance.StatusConnected); err != nil {
		return nil, err
	}

	return map[string]any{"status": string(status)}, nil
}

func (s *serviceManager) healWebhook(ctx context.Context, instanceName string) {
	current, err := s.provider.FindWebhook(ctx, instanceName)
	if err != nil {
		logrus.WithError(err).Warnf("[SELF-HEAL] Webhook check failed for %s", instanceName)
		return
	}

	expected := s.webhookSettings(ctx)
	if current.URL == expected.URL && current.Enabled {
		return
	}

	logrus.Infof("[SELF-HEAL] Webhook drift on %s, re-registering", instanceName)
	if _, err := s.provider.SetWebhook(ctx, instanceName, expected); err != nil {
		logrus.WithError(err).Errorf("[SELF-HEAL] Webhook repair failed for %s", instanceName)
		return
	}
	logrus.Infof("[SELF-HEAL] Webhook updated for %s", instanceName)
}

func (s *serviceManager) setWebhook(ctx context.Context, user *account.User) (map[string]any, error) {
	inst, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	response, err := s.provider.SetWebhook(ctx, inst.Name, s.webhookSettings(ctx))
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "response": response}, nil
}

func (s *serviceManager) findWebhook(ctx context.Context, user *account.User) (map[string]any, error) {
	inst, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	current, err := s.provider.FindWebhook(ctx, inst.Name)
	if err != nil {
		return nil, err
	}

	expected := s.webhookSettings(ctx)
	return map[string]any{
		"success":    true,
		"isCorrect":  current.URL == expected.URL,
		"hasToken":   strings.Contains(current.URL, "token="),
		"currentUrl": current.URL,
		"webhook":    current,
	}, nil
}

func (s *serviceManager) logoutInstance(ctx context.Context, user *account.User) (map[string]any, error) {
	inst, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return map[string]any{"success": true}, nil
	}

	if _, err := s.provider.LogoutInstance(ctx, inst.Name); err != nil {
		return nil, err
	}
	if err := s.instanceRepo.UpdateStatus(ctx, inst.ID, instance.StatusDisconnected, true); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

// deleteInstance tears the instance down at the provider and locally,
// cascading to its group records.
func (s *serviceManager) deleteInstance(ctx context.Context, user *account.User) (map[string]any, error) {
	inst, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return map[string]any{"success": true}, nil
	}

	if _, err := s.provider.DeleteInstance(ctx, inst.Name); err != nil {
		return nil, err
	}
	if err := s.groupRepo.DeleteByInstance(ctx, inst.ID); err != nil {
		return nil, err
	}
	if err := s.instanceRepo.Delete(ctx, inst.ID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (s *serviceManager) sendMessage(ctx context.Context, user *account.User, req manager.ActionRequest) (map[string]any, error) {
	inst, err := s.instanceRepo.GetByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.provider.SendText(ctx, inst.Name, req.To, req.Message); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func defaultInstanceName(userID string) string {
	id := userID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("zapdigest_%s", id)
}

// computeIsAdmin decides whether the instance's own identity has admin
// rights in a provider-reported group: it either owns the group or appears
// in the participant list with an admin rank.
func computeIsAdmin(g evolution.GroupEntry, myJID string) bool {
	if myJID == "" {
		return false
	}
	myNum := numberOf(myJID)
	if myNum == "" {
		return false
	}

	if ownerNum := numberOf(g.OwnerJID()); ownerNum != "" && ownerNum == myNum {
		return true
	}

	for _, p := range g.ParticipantList() {
		if numberOf(p.JIDValue()) == myNum && p.HasAdminRank() {
			return true
		}
	}
	return false
}

func numberOf(jid string) string {
	num, _, _ := strings.Cut(jid, "@")
	return num
}
