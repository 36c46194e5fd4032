package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/zapdigest/ingest/domains/account"
	"github.com/zapdigest/ingest/domains/group"
	"github.com/zapdigest/ingest/domains/instance"
	"github.com/zapdigest/ingest/domains/message"
	"github.com/zapdigest/ingest/domains/system"
	"github.com/zapdigest/ingest/domains/webhook"
	"github.com/zapdigest/ingest/pkg/timeutils"
)

// Onboarding verification codes pasted into a chat claim a pending group.
var linkingCodeRe = regexp.MustCompile(`(?i)(onb_[a-z0-9_]+|SB-[A-Z0-9]{4})`)

// handleMessageUpsert is the ingestion path for one inbound chat message:
// noise filtering, pending-group linking, admission (activation + quota),
// persistence, then keyword alerting. Every stage short-circuits silently;
// a dropped message is expected backpressure, not an error.
func (s *serviceWebhook) handleMessageUpsert(ctx context.Context, payload webhook.Payload) {
	var data webhook.MessageData
	if err := json.Unmarshal(payload.Data, &data); err != nil {
		logrus.WithError(err).Warnf("[INGEST] Malformed message payload from %s", payload.Instance)
		return
	}

	remoteJID := data.RemoteJID()
	if remoteJID == "" || webhook.IsStatusBroadcast(remoteJID) || data.FromMe() {
		return
	}
	if !webhook.IsGroupChat(remoteJID) {
		return
	}

	content := webhook.ExtractContent(data)
	if content == "" {
		return
	}

	s.tryLinkPendingGroup(ctx, payload.Instance, remoteJID, content)

	grp, inst, usr := s.admit(ctx, payload.Instance, remoteJID)
	if grp == nil {
		return
	}

	msg := s.persist(ctx, grp, usr, data, content)
	if msg == nil {
		return
	}

	s.alertService.Scan(ctx, inst.UserID, grp, msg)
}

// tryLinkPendingGroup scans the content for an onboarding verification code
// and, when a pending group carries it, claims that group for this chat.
// Linking is rare and critical; failures are logged and never stop admission.
func (s *serviceWebhook) tryLinkPendingGroup(ctx context.Context, instanceName, remoteJID, content string) {
	match := linkingCodeRe.FindString(content)
	if match == "" {
		return
	}
	code := strings.ToUpper(match)

	pending, err := s.groupRepo.GetPendingByExternalID(ctx, code)
	if err != nil {
		return
	}

	inst, err := s.instanceRepo.GetByName(ctx, instanceName)
	if err != nil {
		logrus.Warnf("[LINK] Code %s seen on unknown instance %s", code, instanceName)
		return
	}

	logrus.Infof("[LINK] Linking group %s -> %s (code %s)", pending.ID, remoteJID, code)
	linked, err := s.groupRepo.LinkPending(ctx, pending.ID, inst.ID, remoteJID)
	if err != nil {
		logrus.WithError(err).Warnf("[LINK] Failed to link group %s", pending.ID)
		return
	}

	notif := &system.Notification{
		Title:    "Grupo Conectado",
		Message:  fmt.Sprintf("O grupo %q foi vinculado com sucesso.", linked.Name),
		Type:     "success",
		Scope:    system.NotificationScopeOrganization,
		Metadata: map[string]any{"group_id": linked.ID},
	}
	if usr, err := s.accountRepo.GetUserByID(ctx, inst.UserID); err == nil {
		notif.OrganizationID = usr.OrganizationID
	}
	if err := s.systemRepo.CreateNotification(ctx, notif); err != nil {
		logrus.WithError(err).Warn("[LINK] Failed to record link notification")
	}
}

// admit resolves the target group and decides whether this message may be
// ingested: inactive or unknown groups are auto-activated while the plan has
// capacity, then the tenant's daily message quota is enforced against a
// fresh count. Returns nils when the event must be dropped.
func (s *serviceWebhook) admit(ctx context.Context, instanceName, chatID string) (*group.Group, *instance.Instance, *account.User) {
	inst, err := s.instanceRepo.GetByName(ctx, instanceName)
	if err != nil {
		logrus.Warnf("[INGEST] Message for unknown instance %s", instanceName)
		return nil, nil, nil
	}
	usr, err := s.accountRepo.GetUserByID(ctx, inst.UserID)
	if err != nil {
		logrus.WithError(err).Warnf("[INGEST] No user behind instance %s", instanceName)
		return nil, nil, nil
	}
	plan, err := s.accountRepo.GetPlanForUser(ctx, inst.UserID)
	if err != nil {
		logrus.WithError(err).Warnf("[INGEST] No plan for user %s", inst.UserID)
		return nil, nil, nil
	}

	grp, err := s.groupRepo.GetByJID(ctx, chatID)
	if err != nil {
		grp = nil
	}

	if grp == nil || !grp.IsActive {
		activeCount, err := s.groupRepo.CountActiveByInstance(ctx, inst.ID)
		if err != nil {
			logrus.WithError(err).Error("[INGEST] Failed to count active groups")
			return nil, nil, nil
		}
		if !plan.AllowsGroups(activeCount) {
			logrus.Infof("[INGEST] Group capacity reached for instance %s (%d/%d), dropping %s",
				inst.Name, activeCount, plan.MaxGroups, chatID)
			return nil, nil, nil
		}

		name := group.PlaceholderName
		if grp != nil && grp.Name != "" {
			name = grp.Name
		}
		grp, err = s.groupRepo.UpsertActive(ctx, inst.ID, chatID, name, time.Now().UTC())
		if err != nil {
			logrus.WithError(err).Errorf("[INGEST] Failed to activate group %s", chatID)
			return nil, nil, nil
		}
		logrus.Infof("[INGEST] Auto-activated group %s (%s)", grp.Name, chatID)
	}

	if grp == nil || !grp.IsActive {
		return nil, nil, nil
	}

	if plan.MaxMessagesPerDay != account.Unlimited {
		since := timeutils.StartOfDay(time.Now().UTC())
		todayCount, err := s.messageRepo.CountForInstanceSince(ctx, inst.ID, since)
		if err != nil {
			logrus.WithError(err).Error("[INGEST] Failed to count today's messages")
			return nil, nil, nil
		}
		if !plan.AllowsMessages(todayCount) {
			logrus.Infof("[INGEST] Daily quota reached for instance %s (%d/%d), dropping message",
				inst.Name, todayCount, plan.MaxMessagesPerDay)
			return nil, nil, nil
		}
	}

	return grp, inst, usr
}

// persist stores the message and stamps the group's last activity. Content
// below the minimum length is dropped, filtering stickers and reactions.
func (s *serviceWebhook) persist(ctx context.Context, grp *group.Group, usr *account.User, data webhook.MessageData, content string) *message.Message {
	if utf8.RuneCountInString(content) < s.cfg.Webhook.MinContentLen {
		return nil
	}

	senderName := data.PushName
	if senderName == "" {
		senderName = message.UnknownSender
	}
	msgType := data.MessageType
	if msgType == "" {
		msgType = "text"
	}

	now := time.Now().UTC()
	ts := timeutils.FromProviderTimestamp(data.MessageTimestamp)
	if ts.IsZero() {
		ts = now
	}

	platformID := ""
	if data.Key != nil {
		platformID = data.Key.ID
	}

	msg := &message.Message{
		GroupID:           grp.ID,
		OrganizationID:    usr.OrganizationID,
		SenderJID:         data.SenderJID(),
		SenderName:        senderName,
		Content:           content,
		MessageType:       msgType,
		PlatformMessageID: platformID,
		MessageTimestamp:  ts,
		CreatedAt:         now,
	}
	if err := s.messageRepo.Insert(ctx, msg); err != nil {
		logrus.WithError(err).Errorf("[INGEST] Failed to persist message for group %s", grp.ID)
		return nil
	}

	if err := s.groupRepo.TouchLastMessage(ctx, grp.ID, now); err != nil {
		logrus.WithError(err).Debugf("[INGEST] Failed to touch group %s", grp.ID)
	}

	logrus.Debugf("[INGEST] Message saved: %s @ %s", senderName, grp.Name)
	return msg
}
