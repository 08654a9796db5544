package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/finbridge/plaid-link-go/internal/model"
)

type ItemRepository interface {
	FindByUser(ctx context.Context, userID string) ([]model.Item, error)
	FindByItemID(ctx context.Context, itemID string) (*model.Item, error)
	FindByUserAndItemID(ctx context.Context, userID, itemID string) (*model.Item, error)
	Upsert(ctx context.Context, params model.UpsertItemParams) (*model.Item, error)
	UpdateStatus(ctx context.Context, itemID string, status model.ItemStatus, errorCode, errorMessage *string) error
	SoftDelete(ctx context.Context, userID, itemID string, at time.Time) (bool, error)
	LastDeletionAt(ctx context.Context, userID string) (*time.Time, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ItemRepository
}

// itemDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type itemDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type itemRepo struct {
	db itemDB
}

func NewItemRepository(db *sqlx.DB) ItemRepository {
	return &itemRepo{db: db}
}

func (r *itemRepo) WithTx(tx *sqlx.Tx) ItemRepository {
	return &itemRepo{db: tx}
}

func (r *itemRepo) FindByUser(ctx context.Context, userID string) ([]model.Item, error) {
	var items []model.Item
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM plaid_items
		WHERE user_id = $1 AND status != 'deleted'
		ORDER BY created_at DESC
	`, userID)
	return items, err
}

func (r *itemRepo) FindByItemID(ctx context.Context, itemID string) (*model.Item, error) {
	var item model.Item
	err := r.db.GetContext(ctx, &item, `
		SELECT * FROM plaid_items WHERE item_id = $1
	`, itemID)
	return HandleNotFound(&item, err)
}

func (r *itemRepo) FindByUserAndItemID(ctx context.Context, userID, itemID string) (*model.Item, error) {
	var item model.Item
	err := r.db.GetContext(ctx, &item, `
		SELECT * FROM plaid_items
		WHERE user_id = $1 AND item_id = $2 AND status != 'deleted'
	`, userID, itemID)
	return HandleNotFound(&item, err)
}

// Upsert inserts an item or, when the Plaid item_id already exists,
// refreshes its credentials and reactivates it. The unique index on
// item_id is what makes concurrent ITEM_ADD_RESULT / SESSION_FINISHED
// deliveries converge on one row.
func (r *itemRepo) Upsert(ctx context.Context, params model.UpsertItemParams) (*model.Item, error) {
	var item model.Item
	err := r.db.GetContext(ctx, &item, `
		INSERT INTO plaid_items
			(user_id, item_id, access_token, institution_id, institution_name, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		ON CONFLICT (item_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			institution_id = COALESCE(EXCLUDED.institution_id, plaid_items.institution_id),
			institution_name = COALESCE(EXCLUDED.institution_name, plaid_items.institution_name),
			status = 'active',
			error_code = NULL,
			error_message = NULL,
			deleted_at = NULL,
			updated_at = NOW()
		RETURNING *
	`, params.UserID, params.ItemID, params.AccessToken, params.InstitutionID, params.InstitutionName)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepo) UpdateStatus(ctx context.Context, itemID string, status model.ItemStatus, errorCode, errorMessage *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE plaid_items SET
			status = $2,
			error_code = $3,
			error_message = $4,
			updated_at = NOW()
		WHERE item_id = $1
	`, itemID, status, errorCode, errorMessage)
	return err
}

// SoftDelete marks an item deleted and stamps deleted_at, which doubles
// as the deletion record the cooldown is measured from. Returns false
// when the user owns no live item with that id.
func (r *itemRepo) SoftDelete(ctx context.Context, userID, itemID string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE plaid_items SET
			status = 'deleted',
			deleted_at = $3,
			updated_at = $3
		WHERE user_id = $1 AND item_id = $2 AND status != 'deleted'
	`, userID, itemID, at)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *itemRepo) LastDeletionAt(ctx context.Context, userID string) (*time.Time, error) {
	var last sql.NullTime
	err := r.db.GetContext(ctx, &last, `
		SELECT MAX(deleted_at) FROM plaid_items WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (r *itemRepo) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM plaid_items
		WHERE user_id = $1 AND status = 'active'
	`, userID)
	return count, err
}

func (r *itemRepo) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM plaid_items
		WHERE status = 'deleted' AND deleted_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
