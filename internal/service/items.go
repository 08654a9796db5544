package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/finbridge/plaid-link-go/internal/errors"
	"github.com/finbridge/plaid-link-go/internal/model"
	"github.com/finbridge/plaid-link-go/internal/plaid"
	"github.com/finbridge/plaid-link-go/internal/repository"
)

// ItemService owns reads and writes of the items ledger. Access tokens
// pass through the cipher on the way in and never leave this package in
// plaintext except for upstream Plaid calls.
type ItemService struct {
	items  repository.ItemRepository
	cipher *TokenCipher
}

func NewItemService(items repository.ItemRepository, cipher *TokenCipher) *ItemService {
	return &ItemService{
		items:  items,
		cipher: cipher,
	}
}

// SaveItem persists the result of a public token exchange as an item
// owned by userID. Re-saving an existing item_id refreshes the stored
// credential instead of creating a second row.
func (s *ItemService) SaveItem(ctx context.Context, userID string, exchange *plaid.ExchangeResult, institution *model.InstitutionMetadata) (*model.Item, error) {
	encrypted, err := s.cipher.Encrypt(exchange.AccessToken)
	if err != nil {
		return nil, apperrors.Internal("failed to encrypt access token").WithCause(err)
	}

	params := model.UpsertItemParams{
		UserID:      userID,
		ItemID:      exchange.ItemID,
		AccessToken: encrypted,
	}
	if institution != nil {
		if institution.InstitutionID != "" {
			params.InstitutionID = &institution.InstitutionID
		}
		if institution.Name != "" {
			params.InstitutionName = &institution.Name
		}
	}

	item, err := s.items.Upsert(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("userId", userID).
		Str("itemId", item.ItemID).
		Str("institution", stringOrEmpty(item.InstitutionName)).
		Msg("item saved")

	return item, nil
}

// HasItem reports whether the user already owns a live item with the
// given Plaid item id. This is the de-duplication guard between
// ITEM_ADD_RESULT and SESSION_FINISHED.
func (s *ItemService) HasItem(ctx context.Context, userID, itemID string) (bool, error) {
	item, err := s.items.FindByUserAndItemID(ctx, userID, itemID)
	if err != nil {
		return false, apperrors.Database(err)
	}
	return item != nil, nil
}

// ListItems returns the user's non-deleted items. Status, errorCode and
// errorMessage pass through verbatim for the connected-items view.
func (s *ItemService) ListItems(ctx context.Context, userID string) ([]model.Item, error) {
	items, err := s.items.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return items, nil
}

type ConnectStatusResult struct {
	ActiveItems int `json:"activeItems"`
	Connected   bool `json:"connected"`
}

// ConnectStatus derives the authoritative connected-item count from a
// count query rather than the session counter.
func (s *ItemService) ConnectStatus(ctx context.Context, userID string) (*ConnectStatusResult, error) {
	count, err := s.items.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return &ConnectStatusResult{
		ActiveItems: count,
		Connected:   count > 0,
	}, nil
}

// MarkItemError records an error reported by an ITEM webhook against the
// stored item.
func (s *ItemService) MarkItemError(ctx context.Context, itemID string, webhookErr *model.WebhookError) error {
	var code, message *string
	if webhookErr != nil {
		code = &webhookErr.ErrorCode
		message = &webhookErr.ErrorMessage
	}
	if err := s.items.UpdateStatus(ctx, itemID, model.ItemStatusError, code, message); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// MarkItemRevoked records that the user revoked access on the Plaid side.
func (s *ItemService) MarkItemRevoked(ctx context.Context, itemID string) error {
	if err := s.items.UpdateStatus(ctx, itemID, model.ItemStatusRevoked, nil, nil); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// AccessToken decrypts the stored credential for an upstream Plaid call.
func (s *ItemService) AccessToken(item *model.Item) (string, error) {
	token, err := s.cipher.Decrypt(item.AccessToken)
	if err != nil {
		return "", fmt.Errorf("decrypt access token: %w", err)
	}
	return token, nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
