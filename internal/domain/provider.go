package domain

// ProviderType tags the live-chat provider a tenant hands conversations to.
type ProviderType string

const (
	ProviderZendesk             ProviderType = "zendesk"
	ProviderFront               ProviderType = "front"
	ProviderSalesforce          ProviderType = "salesforce"
	ProviderSalesforceMessaging ProviderType = "salesforce-messaging"
)

// HandoffConfiguration is the per-tenant provider configuration resolved from
// settings. It is immutable once loaded; the orchestrator only reads it.
type HandoffConfiguration struct {
	Type ProviderType

	// Zendesk / Front style credentials.
	APIKey    string
	APISecret string
	AppID     string
	Subdomain string

	// Salesforce chat identifiers.
	OrgID        string
	ButtonID     string
	DeploymentID string
	ChatHostURL  string

	// Webhook signature verification secret for push-based providers.
	SigningSecret string

	AllowAnonymousHandoff   bool
	SurveyLink              string
	EnableAvailabilityCheck bool
}

// Valid reports whether the configuration carries the credentials its
// provider type requires.
func (c HandoffConfiguration) Valid() bool {
	switch c.Type {
	case ProviderZendesk, ProviderFront:
		return c.APIKey != "" && c.APISecret != "" && c.AppID != ""
	case ProviderSalesforce, ProviderSalesforceMessaging:
		return c.OrgID != "" && c.DeploymentID != "" && c.ChatHostURL != ""
	default:
		return false
	}
}
