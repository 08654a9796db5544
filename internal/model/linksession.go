package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// LinkSession is one user-facing Plaid Link flow. The link token is the
// join key webhooks resolve the session by, since the first LINK webhook
// in a flow may carry only link_token, not link_session_id.
type LinkSession struct {
	ID            string            `db:"id" json:"id"`
	UserID        string            `db:"user_id" json:"userId"`
	LinkToken     string            `db:"link_token" json:"-"`
	LinkSessionID *string           `db:"link_session_id" json:"linkSessionId,omitempty"`
	Status        LinkSessionStatus `db:"status" json:"status"`
	ItemsAdded    int               `db:"items_added" json:"itemsAdded"`
	PublicTokens  pq.StringArray    `db:"public_tokens" json:"-"`
	Metadata      *json.RawMessage  `db:"metadata" json:"metadata,omitempty"`
	CompletedAt   *time.Time        `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updatedAt"`
}

type CreateLinkSessionParams struct {
	UserID    string
	LinkToken string
	Metadata  *json.RawMessage
}

// UpdateLinkSessionParams is a partial patch. Nil fields are left
// untouched by the repository.
type UpdateLinkSessionParams struct {
	LinkSessionID *string
	Status        *LinkSessionStatus
	PublicTokens  pq.StringArray
	Metadata      *json.RawMessage
	CompletedAt   *time.Time
}

// ItemDescriptor is the short record of one item added during a flow.
type ItemDescriptor struct {
	ItemID          string `json:"itemId"`
	InstitutionName string `json:"institutionName,omitempty"`
}

// TokenFailure records one public token whose exchange failed during the
// SESSION_FINISHED loop.
type TokenFailure struct {
	PublicToken string `json:"publicToken"`
	Reason      string `json:"reason"`
}

// ExchangeOutcome summarizes the per-token exchange results of a
// SESSION_FINISHED webhook so partial success is queryable instead of
// only visible in logs.
type ExchangeOutcome struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []TokenFailure `json:"failed"`
}

// SessionMetadata is the typed shape of the link_sessions metadata
// column.
type SessionMetadata struct {
	LastItemAdded *ItemDescriptor  `json:"lastItemAdded,omitempty"`
	PlaidStatus   string           `json:"plaidStatus,omitempty"`
	FinishedAt    *time.Time       `json:"finishedAt,omitempty"`
	Error         string           `json:"error,omitempty"`
	Exchange      *ExchangeOutcome `json:"exchange,omitempty"`
}

// ParseSessionMetadata decodes the metadata column, treating a missing or
// empty value as a zero metadata.
func ParseSessionMetadata(raw *json.RawMessage) (SessionMetadata, error) {
	var meta SessionMetadata
	if raw == nil || len(*raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(*raw, &meta); err != nil {
		return meta, fmt.Errorf("parse session metadata: %w", err)
	}
	return meta, nil
}

// Raw serializes the metadata back into the column form.
func (m SessionMetadata) Raw() (*json.RawMessage, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal session metadata: %w", err)
	}
	raw := json.RawMessage(data)
	return &raw, nil
}
