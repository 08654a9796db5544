package model

import (
	"fmt"
)

const (
	WebhookTypeLink         = "LINK"
	WebhookTypeItem         = "ITEM"
	WebhookTypeTransactions = "TRANSACTIONS"
)

const (
	LinkCodeHandoff         = "HANDOFF"
	LinkCodeItemAddResult   = "ITEM_ADD_RESULT"
	LinkCodeSessionFinished = "SESSION_FINISHED"
)

const (
	ItemCodeError             = "ERROR"
	ItemCodePendingExpiration = "PENDING_EXPIRATION"
	ItemCodeUserPermissionRevoked = "USER_PERMISSION_REVOKED"
)

// InstitutionMetadata is the optional institution block on LINK events.
type InstitutionMetadata struct {
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
}

// WebhookError is the error block Plaid attaches to ITEM webhooks.
type WebhookError struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// WebhookEnvelope is the parsed body of an inbound Plaid webhook. It is
// validated at the boundary before dispatch so the handlers downstream
// never see a duck-typed payload.
type WebhookEnvelope struct {
	WebhookType   string               `json:"webhook_type"`
	WebhookCode   string               `json:"webhook_code"`
	ItemID        string               `json:"item_id,omitempty"`
	LinkSessionID string               `json:"link_session_id,omitempty"`
	LinkToken     string               `json:"link_token,omitempty"`
	PublicToken   string               `json:"public_token,omitempty"`
	PublicTokens  []string             `json:"public_tokens,omitempty"`
	Status        LinkFinishStatus     `json:"status,omitempty"`
	Institution   *InstitutionMetadata `json:"institution,omitempty"`
	Error         *WebhookError        `json:"error,omitempty"`
}

// Validate checks the envelope carries the fields its type requires.
func (e *WebhookEnvelope) Validate() error {
	if e.WebhookType == "" {
		return fmt.Errorf("webhook_type is required")
	}
	if e.WebhookCode == "" {
		return fmt.Errorf("webhook_code is required")
	}
	if e.WebhookType == WebhookTypeLink && e.LinkToken == "" {
		return fmt.Errorf("link_token is required for LINK webhooks")
	}
	if e.WebhookType == WebhookTypeItem && e.ItemID == "" {
		return fmt.Errorf("item_id is required for ITEM webhooks")
	}
	return nil
}

// IsLink reports whether the envelope belongs to the Link-session family.
func (e *WebhookEnvelope) IsLink() bool {
	return e.WebhookType == WebhookTypeLink
}
