package service

import (
	"context"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/finbridge/plaid-link-go/internal/audit"
	"github.com/finbridge/plaid-link-go/internal/database"
	apperrors "github.com/finbridge/plaid-link-go/internal/errors"
	"github.com/finbridge/plaid-link-go/internal/model"
	"github.com/finbridge/plaid-link-go/internal/plaid"
	"github.com/finbridge/plaid-link-go/internal/repository"
)

// ItemDeletionService enforces the deletion cooldown: no user completes
// more than one deletion per cooldown window, no matter how many
// requests they issue. The check and the soft delete run in one
// transaction so concurrent requests cannot both pass the gate.
// txRunner is the slice of database.DB the deletion path needs.
type txRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type ItemDeletionService struct {
	db       txRunner
	items    repository.ItemRepository
	plaid    plaid.API
	cipher   *TokenCipher
	cooldown time.Duration
	now      func() time.Time
}

func NewItemDeletionService(
	db *database.DB,
	items repository.ItemRepository,
	plaidClient plaid.API,
	cipher *TokenCipher,
	cooldown time.Duration,
) *ItemDeletionService {
	return &ItemDeletionService{
		db:       db,
		items:    items,
		plaid:    plaidClient,
		cipher:   cipher,
		cooldown: cooldown,
		now:      time.Now,
	}
}

type DeletionInfo struct {
	CanDelete        bool       `json:"canDelete"`
	LastDeletionDate *time.Time `json:"lastDeletionDate,omitempty"`
	DaysUntilNext    int        `json:"daysUntilNext,omitempty"`
}

// GetDeletionInfo is a pure read used to gate the deletion UI and to
// enrich rejected deletion responses.
func (s *ItemDeletionService) GetDeletionInfo(ctx context.Context, userID string) (*DeletionInfo, error) {
	last, err := s.items.LastDeletionAt(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return s.deletionInfo(last), nil
}

func (s *ItemDeletionService) deletionInfo(last *time.Time) *DeletionInfo {
	if last == nil {
		return &DeletionInfo{CanDelete: true}
	}

	elapsed := s.now().Sub(*last)
	if elapsed >= s.cooldown {
		return &DeletionInfo{CanDelete: true, LastDeletionDate: last}
	}

	remaining := s.cooldown - elapsed
	days := int(math.Ceil(remaining.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return &DeletionInfo{
		CanDelete:        false,
		LastDeletionDate: last,
		DaysUntilNext:    days,
	}
}

// DeleteItemWithRateLimit soft-deletes an item if the user's most recent
// deletion is outside the cooldown window. A rejection is idempotent: it
// never consumes the window.
func (s *ItemDeletionService) DeleteItemWithRateLimit(ctx context.Context, userID, itemID string) error {
	var item *model.Item

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.items.WithTx(tx)

		last, err := repo.LastDeletionAt(ctx, userID)
		if err != nil {
			return apperrors.Database(err)
		}
		if info := s.deletionInfo(last); !info.CanDelete {
			audit.Log(ctx, audit.Event{
				Type:   audit.EventDeletionRejected,
				UserID: userID,
				Details: map[string]interface{}{
					"itemId":        itemID,
					"daysUntilNext": info.DaysUntilNext,
				},
			})
			return apperrors.RateLimited(info.DaysUntilNext)
		}

		item, err = repo.FindByUserAndItemID(ctx, userID, itemID)
		if err != nil {
			return apperrors.Database(err)
		}
		if item == nil {
			return apperrors.NotFound("Item")
		}

		deleted, err := repo.SoftDelete(ctx, userID, itemID, s.now())
		if err != nil {
			return apperrors.Database(err)
		}
		if !deleted {
			return apperrors.NotFound("Item")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Upstream revocation is best effort after the local delete commits.
	// A dead Plaid item must not wedge the deletion ledger.
	s.removeUpstream(ctx, item)

	audit.Log(ctx, audit.Event{
		Type:   audit.EventItemDelete,
		UserID: userID,
		Details: map[string]interface{}{
			"itemId": itemID,
		},
	})

	log.Info().
		Str("userId", userID).
		Str("itemId", itemID).
		Msg("item deleted")
	return nil
}

func (s *ItemDeletionService) removeUpstream(ctx context.Context, item *model.Item) {
	accessToken, err := s.cipher.Decrypt(item.AccessToken)
	if err != nil {
		log.Warn().Err(err).Str("itemId", item.ItemID).Msg("could not decrypt access token for upstream removal")
		return
	}
	if err := s.plaid.RemoveItem(ctx, accessToken); err != nil {
		log.Warn().Err(err).Str("itemId", item.ItemID).Msg("plaid item removal failed, local delete stands")
	}
}
