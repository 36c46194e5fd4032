package evolution

import "strings"

// InstanceEntry is one element of the provider's fetchInstances response.
// Evolution API versions disagree on the envelope, so every known field
// placement is decoded and accessors pick the first non-empty value.
type InstanceEntry struct {
	InstanceName string          `json:"instanceName"`
	Name         string          `json:"name"`
	Owner        string          `json:"owner"`
	Number       string          `json:"number"`
	Instance     *instanceNested `json:"instance"`
}

type instanceNested struct {
	InstanceName string `json:"instanceName"`
	Name         string `json:"name"`
	Owner        string `json:"owner"`
	Number       string `json:"number"`
	State        string `json:"state"`
}

func (e InstanceEntry) ResolvedName() string {
	if e.Instance != nil && e.Instance.InstanceName != "" {
		return e.Instance.InstanceName
	}
	if e.InstanceName != "" {
		return e.InstanceName
	}
	if e.Name != "" {
		return e.Name
	}
	if e.Instance != nil {
		return e.Instance.Name
	}
	return ""
}

func (e InstanceEntry) OwnerJID() string {
	candidates := []string{e.Owner, e.Number}
	if e.Instance != nil {
		candidates = append(candidates, e.Instance.Owner, e.Instance.Number)
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if strings.Contains(c, "@") {
			return c
		}
		return c + "@s.whatsapp.net"
	}
	return ""
}

// Participant of a provider-reported group. Admin rank comes as a string
// ("admin" / "superadmin") on some versions and a boolean on others.
type Participant struct {
	ID      string `json:"id"`
	JID     string `json:"jid"`
	Admin   string `json:"admin"`
	IsAdmin bool   `json:"is_admin"`
}

func (p Participant) JIDValue() string {
	if p.ID != "" {
		return p.ID
	}
	return p.JID
}

func (p Participant) HasAdminRank() bool {
	return p.IsAdmin || p.Admin == "admin" || p.Admin == "superadmin"
}

// GroupEntry is one element of the provider's fetchAllGroups response.
type GroupEntry struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject"`
	Name         string        `json:"name"`
	Owner        string        `json:"owner"`
	Size         int           `json:"size"`
	Participants []Participant `json:"participants"`
	Metadata     *groupNested  `json:"metadata"`
}

type groupNested struct {
	Owner        string        `json:"owner"`
	Participants []Participant `json:"participants"`
}

func (g GroupEntry) DisplayName() string {
	if g.Subject != "" {
		return g.Subject
	}
	if g.Name != "" {
		return g.Name
	}
	return "Unnamed Group"
}

func (g GroupEntry) OwnerJID() string {
	if g.Owner != "" {
		return g.Owner
	}
	if g.Metadata != nil {
		return g.Metadata.Owner
	}
	return ""
}

func (g GroupEntry) ParticipantList() []Participant {
	if len(g.Participants) > 0 {
		return g.Participants
	}
	if g.Metadata != nil {
		return g.Metadata.Participants
	}
	return nil
}

func (g GroupEntry) ParticipantsCount() int {
	if g.Size > 0 {
		return g.Size
	}
	return len(g.ParticipantList())
}

// WebhookSettings is the per-instance webhook registration at the provider.
// The provider's API is camelCase here, unlike its event payloads.
type WebhookSettings struct {
	Enabled         bool     `json:"enabled"`
	URL             string   `json:"url"`
	WebhookByEvents bool     `json:"webhookByEvents"`
	Events          []string `json:"events"`
}

// SubscribedEvents is the full event set an instance webhook is registered
// for. Only a subset is consumed downstream; the rest are logged and dropped.
var SubscribedEvents = []string{
	"MESSAGES_UPSERT",
	"CONNECTION_UPDATE",
	"GROUPS_UPSERT",
	"GROUP_UPDATE",
	"GROUP_PARTICIPANTS_UPDATE",
}

// ConnectResult is the provider response for a connect / QR request.
type ConnectResult struct {
	Base64      string `json:"base64"`
	Code        string `json:"code"`
	PairingCode string `json:"pairingCode"`
	QRCode      *struct {
		Base64 string `json:"base64"`
		Code   string `json:"code"`
	} `json:"qrcode"`
	Instance *struct {
		State string `json:"state"`
	} `json:"instance"`
}

func (r ConnectResult) QR() string {
	if r.Base64 != "" {
		return r.Base64
	}
	if r.QRCode != nil {
		return r.QRCode.Base64
	}
	return ""
}

func (r ConnectResult) State() string {
	if r.Instance != nil {
		return r.Instance.State
	}
	return ""
}
