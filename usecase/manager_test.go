package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdigest/ingest/core/config"
	"github.com/zapdigest/ingest/domains/account"
	"github.com/zapdigest/ingest/domains/manager"
	"github.com/zapdigest/ingest/infrastructure/evolution"
	pkgError "github.com/zapdigest/ingest/pkg/error"
	"github.com/zapdigest/ingest/repository"
)

// fakeProvider is a minimal Evolution API double that records webhook
// registrations.
type fakeProvider struct {
	mu              sync.Mutex
	setWebhookPaths []string
	setWebhookBody  map[string]evolution.WebhookSettings
	connectionState string
	currentWebhook  string
	createStatus    int
	createBody      string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		setWebhookBody:  map[string]evolution.WebhookSettings{},
		connectionState: "open",
		currentWebhook:  "https://old.example.com/webhook",
		createStatus:    http.StatusCreated,
		createBody:      `{"instance":{"instanceName":"acme_instance"}}`,
	}
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/instance/fetchInstances", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"instance":{"instanceName":"Acme_Instance","number":"5511988887777"}}]`))
	})
	mux.HandleFunc("/group/fetchAllGroups/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"owned@g.us","subject":"Meu Grupo","owner":"5511988887777@s.whatsapp.net","size":3},
			{"id":"admined@g.us","subject":"Moderado","owner":"other@s.whatsapp.net",
			 "participants":[{"id":"5511988887777@s.whatsapp.net","admin":"admin"},{"id":"other@s.whatsapp.net"}]},
			{"id":"member@g.us","subject":"Membro","owner":"other@s.whatsapp.net",
			 "participants":[{"id":"5511988887777@s.whatsapp.net"}]}
		]`))
	})
	mux.HandleFunc("/instance/connectionState/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		f.mu.Lock()
		state := f.connectionState
		f.mu.Unlock()
		w.Write([]byte(`{"instance":{"state":"` + state + `"}}`))
	})
	mux.HandleFunc("/webhook/find/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		f.mu.Lock()
		url := f.currentWebhook
		f.mu.Unlock()
		body, _ := json.Marshal(map[string]any{"webhook": map[string]any{"enabled": true, "url": url}})
		w.Write(body)
	})
	mux.HandleFunc("/webhook/set/", func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Webhook evolution.WebhookSettings `json:"webhook"`
		}
		json.NewDecoder(r.Body).Decode(&envelope)
		f.mu.Lock()
		f.setWebhookPaths = append(f.setWebhookPaths, r.URL.Path)
		f.setWebhookBody[r.URL.Path] = envelope.Webhook
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"webhook":{"enabled":true}}`))
	})
	mux.HandleFunc("/instance/create", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.createStatus)
		w.Write([]byte(f.createBody))
	})
	mux.HandleFunc("/instance/connect/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"base64":"data:image/png;base64,QQ==","pairingCode":"ABCD-1234","instance":{"state":"connecting"}}`))
	})
	mux.HandleFunc("/instance/delete/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"SUCCESS"}`))
	})
	mux.HandleFunc("/instance/logout/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"SUCCESS"}`))
	})
	return mux
}

func (f *fakeProvider) webhookSetCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.setWebhookPaths...)
}

func newManagerEnv(t *testing.T) (*testEnv, *fakeProvider, manager.IManagerUsecase) {
	t.Helper()
	env := newTestEnv(t)
	env.cfg.App.BaseUrl = "https://ingest.example.com"

	fake := newFakeProvider()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	provider := evolution.NewClient(config.ProviderConfig{
		BaseURL:       server.URL,
		APIKey:        "test-key",
		Timeout:       2,
		GroupsTimeout: 2,
	})
	instanceRepo := repository.NewInstanceGormRepository(env.db)
	mgr := NewManagerService(env.cfg, provider, instanceRepo, env.groupRepo, env.svc)
	return env, fake, mgr
}

func managerUser() *account.User {
	return &account.User{ID: "user1", OrganizationID: "org1"}
}

func TestManager_FetchGroups_SyncsWithAdminFlags(t *testing.T) {
	env, _, mgr := newManagerEnv(t)
	env.seedTenant(t, 10, -1)
	ctx := context.Background()

	result, err := mgr.Handle(ctx, managerUser(), manager.ActionRequest{Action: manager.ActionFetchGroups})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 3, result["count"])

	owned, err := env.groupRepo.GetByJID(ctx, "owned@g.us")
	require.NoError(t, err)
	assert.True(t, owned.IsAdmin, "group owner is admin")
	assert.Equal(t, "Meu Grupo", owned.Name)
	assert.Equal(t, 3, owned.ParticipantsCount)
	assert.False(t, owned.IsActive, "synced groups start inactive")

	admined, err := env.groupRepo.GetByJID(ctx, "admined@g.us")
	require.NoError(t, err)
	assert.True(t, admined.IsAdmin, "admin participant rank counts")
	assert.Equal(t, 2, admined.ParticipantsCount)

	member, err := env.groupRepo.GetByJID(ctx, "member@g.us")
	require.NoError(t, err)
	assert.False(t, member.IsAdmin)
}

func TestManager_FetchStatus_HealsWebhookDrift(t *testing.T) {
	env, fake, mgr := newManagerEnv(t)
	env.seedTenant(t, 10, -1)
	ctx := context.Background()

	require.NoError(t, env.db.Table("instances").Where("id = ?", "inst1").
		Updates(map[string]any{"status": "connecting", "qr_code": "stale-qr"}).Error)

	result, err := mgr.Handle(ctx, managerUser(), manager.ActionRequest{Action: manager.ActionFetchStatus})
	require.NoError(t, err)
	assert.Equal(t, "connected", result["status"])

	status, qr := env.instanceRow(t, "acme_instance")
	assert.Equal(t, "connected", status)
	assert.Empty(t, qr)

	calls := fake.webhookSetCalls()
	require.Len(t, calls, 1, "a drifted webhook must be re-registered")
	assert.Equal(t, "/webhook/set/acme_instance", calls[0])

	registered := fake.setWebhookBody[calls[0]]
	assert.True(t, registered.Enabled)
	assert.Equal(t, "https://ingest.example.com/webhook?token=abc123", registered.URL)
	assert.Equal(t, evolution.SubscribedEvents, registered.Events)
}

func TestManager_FetchStatus_NoHealWhenWebhookCorrect(t *testing.T) {
	env, fake, mgr := newManagerEnv(t)
	env.seedTenant(t, 10, -1)

	fake.currentWebhook = "https://ingest.example.com/webhook?token=abc123"

	_, err := mgr.Handle(context.Background(), managerUser(), manager.ActionRequest{Action: manager.ActionFetchStatus})
	require.NoError(t, err)
	assert.Empty(t, fake.webhookSetCalls())
}

func TestManager_FetchStatus_NoInstance(t *testing.T) {
	_, _, mgr := newManagerEnv(t)

	result, err := mgr.Handle(context.Background(), &account.User{ID: "ghost"}, manager.ActionRequest{Action: manager.ActionFetchStatus})
	require.NoError(t, err)
	assert.Equal(t, "disconnected", result["status"])
}

func TestManager_CreateInstance_ExistingFallsBackToSetWebhook(t *testing.T) {
	env, fake, mgr := newManagerEnv(t)
	env.seedTenant(t, 10, -1)
	ctx := context.Background()

	fake.createStatus = http.StatusForbidden
	fake.createBody = `{"response":{"message":["This instance already exists"]}}`

	result, err := mgr.Handle(ctx, managerUser(), manager.ActionRequest{Action: manager.ActionCreateInstance})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "connecting", result["status"])
	assert.Equal(t, "data:image/png;base64,QQ==", result["qrCode"])
	assert.Equal(t, "ABCD-1234", result["pairingCode"])

	calls := fake.webhookSetCalls()
	require.Len(t, calls, 1, "an existing instance gets its webhook refreshed")

	status, qr := env.instanceRow(t, "acme_instance")
	assert.Equal(t, "connecting", status)
	assert.Equal(t, "data:image/png;base64,QQ==", qr)
}

func TestManager_DeleteInstance_Cascades(t *testing.T) {
	env, _, mgr := newManagerEnv(t)
	env.seedTenant(t, 10, -1)
	ctx := context.Background()

	_, err := mgr.Handle(ctx, managerUser(), manager.ActionRequest{Action: manager.ActionFetchGroups})
	require.NoError(t, err)

	result, err := mgr.Handle(ctx, managerUser(), manager.ActionRequest{Action: manager.ActionDeleteInstance})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])

	var groups, instances int64
	require.NoError(t, env.db.Table("groups").Count(&groups).Error)
	require.NoError(t, env.db.Table("instances").Count(&instances).Error)
	assert.Equal(t, int64(0), groups)
	assert.Equal(t, int64(0), instances)
}

func TestManager_TestConnection(t *testing.T) {
	env, _, mgr := newManagerEnv(t)
	env.seedTenant(t, 10, -1)

	result, err := mgr.Handle(context.Background(), managerUser(), manager.ActionRequest{Action: manager.ActionTestConnection})
	require.NoError(t, err)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, 1, result["instancesCount"])
}

func TestManager_InvalidAction(t *testing.T) {
	_, _, mgr := newManagerEnv(t)

	_, err := mgr.Handle(context.Background(), managerUser(), manager.ActionRequest{Action: "drop_tables"})

	var verr pkgError.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestManager_SendMessage_RequiresToAndMessage(t *testing.T) {
	_, _, mgr := newManagerEnv(t)

	_, err := mgr.Handle(context.Background(), managerUser(), manager.ActionRequest{Action: manager.ActionSendMessage})

	var verr pkgError.ValidationError
	assert.ErrorAs(t, err, &verr)
}
