package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/finbridge/plaid-link-go/internal/model"
)

type LinkSessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.LinkSession, error)
	FindByLinkToken(ctx context.Context, linkToken string) (*model.LinkSession, error)
	Create(ctx context.Context, params model.CreateLinkSessionParams) (*model.LinkSession, error)
	Update(ctx context.Context, id string, params model.UpdateLinkSessionParams) error
	IncrementItemsAdded(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, metadata *json.RawMessage) error
	ExpireStale(ctx context.Context, olderThan time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) LinkSessionRepository
}

// linkSessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type linkSessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type linkSessionRepo struct {
	db linkSessionDB
}

func NewLinkSessionRepository(db *sqlx.DB) LinkSessionRepository {
	return &linkSessionRepo{db: db}
}

func (r *linkSessionRepo) WithTx(tx *sqlx.Tx) LinkSessionRepository {
	return &linkSessionRepo{db: tx}
}

func (r *linkSessionRepo) FindByID(ctx context.Context, id string) (*model.LinkSession, error) {
	var session model.LinkSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM link_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *linkSessionRepo) FindByLinkToken(ctx context.Context, linkToken string) (*model.LinkSession, error) {
	var session model.LinkSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM link_sessions WHERE link_token = $1
	`, linkToken)
	return HandleNotFound(&session, err)
}

func (r *linkSessionRepo) Create(ctx context.Context, params model.CreateLinkSessionParams) (*model.LinkSession, error) {
	var session model.LinkSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO link_sessions (user_id, link_token, status, metadata)
		VALUES ($1, $2, 'created', $3)
		RETURNING *
	`, params.UserID, params.LinkToken, params.Metadata)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Update applies a partial patch; nil fields keep their current value.
func (r *linkSessionRepo) Update(ctx context.Context, id string, params model.UpdateLinkSessionParams) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE link_sessions SET
			link_session_id = COALESCE($2, link_session_id),
			status = COALESCE($3, status),
			public_tokens = COALESCE($4, public_tokens),
			metadata = COALESCE($5, metadata),
			completed_at = COALESCE($6, completed_at),
			updated_at = NOW()
		WHERE id = $1
	`, id, params.LinkSessionID, params.Status, params.PublicTokens, params.Metadata, params.CompletedAt)
	return err
}

func (r *linkSessionRepo) IncrementItemsAdded(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE link_sessions SET
			items_added = items_added + 1,
			updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *linkSessionRepo) MarkFailed(ctx context.Context, id string, metadata *json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE link_sessions SET
			status = 'failed',
			metadata = COALESCE($2, metadata),
			updated_at = NOW()
		WHERE id = $1
	`, id, metadata)
	return err
}

// ExpireStale fails sessions that never reached a terminal state within
// the link TTL, so abandoned Link flows do not linger as active.
func (r *linkSessionRepo) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE link_sessions SET
			status = 'failed',
			metadata = COALESCE(metadata, '{}'::jsonb) || '{"error":"link session expired"}'::jsonb,
			updated_at = NOW()
		WHERE status IN ('created', 'active') AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
