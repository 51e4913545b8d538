package dto

import "encoding/json"

// WebhookRequest is the inbound provider webhook body.
type WebhookRequest struct {
	Webhook WebhookInfo    `json:"webhook"`
	Events  []WebhookEvent `json:"events"`
}

// WebhookInfo identifies the provider-side webhook registration.
type WebhookInfo struct {
	ID string `json:"id"`
}

// WebhookEvent is one provider push event inside a webhook delivery.
type WebhookEvent struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// WebhookEventPayload is the minimal payload shape needed for routing.
type WebhookEventPayload struct {
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}
