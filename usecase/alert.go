package usecase

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/zapdigest/ingest/domains/account"
	"github.com/zapdigest/ingest/domains/alert"
	"github.com/zapdigest/ingest/domains/group"
	"github.com/zapdigest/ingest/domains/keyword"
	"github.com/zapdigest/ingest/domains/message"
)

type serviceAlert struct {
	keywordRepo keyword.IKeywordRepository
	accountRepo account.IAccountRepository
	messageRepo message.IMessageRepository
	notifiers   []alert.Notifier
}

func NewAlertService(
	keywordRepo keyword.IKeywordRepository,
	accountRepo account.IAccountRepository,
	messageRepo message.IMessageRepository,
	notifiers ...alert.Notifier,
) alert.IAlertUsecase {
	return &serviceAlert{
		keywordRepo: keywordRepo,
		accountRepo: accountRepo,
		messageRepo: messageRepo,
		notifiers:   notifiers,
	}
}

// Scan matches the persisted message against the tenant's active keyword
// monitors and fans out alerts. Runs after persistence only; every failure
// in here is logged and contained.
func (s *serviceAlert) Scan(ctx context.Context, userID string, grp *group.Group, msg *message.Message) {
	monitors, err := s.keywordRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		logrus.WithError(err).Warnf("[KEYWORD] Failed to load monitors for user %s", userID)
		return
	}
	if len(monitors) == 0 {
		return
	}

	for i := range monitors {
		monitor := &monitors[i]
		if !monitor.Matches(msg.Content) {
			continue
		}
		logrus.Infof("[KEYWORD] Match: %q (user %s)", monitor.Keyword, userID)

		s.logMatch(ctx, monitor, grp, msg)

		a := alert.Alert{
			Keyword:    monitor.Keyword,
			GroupName:  grp.Name,
			SenderName: msg.SenderName,
			Content:    msg.Content,
		}
		s.dispatch(ctx, userID, a)
	}
}

// logMatch records the match with the freshest message id for the sender in
// this group. The id lookup is best-effort; the match row is written anyway.
func (s *serviceAlert) logMatch(ctx context.Context, monitor *keyword.Monitor, grp *group.Group, msg *message.Message) {
	var messageID *string
	if msg.ID != "" {
		messageID = &msg.ID
	} else if id, err := s.messageRepo.FindLatestID(ctx, grp.ID, msg.SenderJID); err == nil {
		messageID = &id
	}
	if err := s.keywordRepo.LogMatch(ctx, monitor.ID, messageID); err != nil {
		logrus.WithError(err).Warnf("[KEYWORD] Failed to log match for monitor %s", monitor.ID)
	}
}

// dispatch fires every configured channel independently; one channel's
// failure or panic never silences the others.
func (s *serviceAlert) dispatch(ctx context.Context, userID string, a alert.Alert) {
	usr, err := s.accountRepo.GetUserByID(ctx, userID)
	if err != nil {
		logrus.WithError(err).Warnf("[KEYWORD] Cannot resolve alert destinations for user %s", userID)
		return
	}

	for _, n := range s.notifiers {
		destination := s.destinationFor(n, usr)
		if destination == "" {
			continue
		}
		s.send(ctx, n, destination, a)
	}
}

func (s *serviceAlert) destinationFor(n alert.Notifier, usr *account.User) string {
	switch n.Name() {
	case "email":
		return usr.AlertEmail()
	case "sms":
		if usr.SMSAlertsEnabled {
			return usr.PhoneNumber
		}
		return ""
	default:
		return ""
	}
}

func (s *serviceAlert) send(ctx context.Context, n alert.Notifier, destination string, a alert.Alert) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[KEYWORD] Panic in %s notifier: %v", n.Name(), r)
		}
	}()
	if err := n.Send(ctx, destination, a); err != nil {
		logrus.WithError(err).Warnf("[KEYWORD] %s alert delivery failed", n.Name())
	}
}
