package service

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	apperrors "github.com/finbridge/plaid-link-go/internal/errors"
	"github.com/finbridge/plaid-link-go/internal/model"
	"github.com/finbridge/plaid-link-go/internal/plaid"
	"github.com/finbridge/plaid-link-go/internal/repository"
	"github.com/finbridge/plaid-link-go/internal/util"
)

// LinkReconciler consumes Plaid webhook deliveries and evolves the link
// session and item ledgers. Deliveries may be duplicated, reordered or
// concurrent; every write here is a guarded single-row update keyed by
// link_token or item_id, so redelivery converges instead of duplicating.
type LinkReconciler struct {
	sessions repository.LinkSessionRepository
	items    *ItemService
	plaid    plaid.API
}

func NewLinkReconciler(sessions repository.LinkSessionRepository, items *ItemService, plaidClient plaid.API) *LinkReconciler {
	return &LinkReconciler{
		sessions: sessions,
		items:    items,
		plaid:    plaidClient,
	}
}

// HandleWebhook dispatches a validated envelope. LINK events drive the
// session state machine; everything else goes through the generic item
// status path.
func (r *LinkReconciler) HandleWebhook(ctx context.Context, env *model.WebhookEnvelope) error {
	if env.IsLink() {
		return r.handleLinkWebhook(ctx, env)
	}
	return r.handleGenericWebhook(ctx, env)
}

func (r *LinkReconciler) handleLinkWebhook(ctx context.Context, env *model.WebhookEnvelope) error {
	session, err := r.sessions.FindByLinkToken(ctx, env.LinkToken)
	if err != nil {
		return apperrors.Database(err)
	}
	if session == nil {
		// Webhooks for sessions this server never created (test
		// traffic, stale retries) must not fail the endpoint: a 5xx
		// makes Plaid retry indefinitely.
		log.Info().
			Str("webhookCode", env.WebhookCode).
			Str("linkToken", util.MaskToken(env.LinkToken)).
			Msg("link webhook for unknown session, ignoring")
		return nil
	}

	switch env.WebhookCode {
	case model.LinkCodeHandoff:
		err = r.handleHandoff(ctx, session, env)
	case model.LinkCodeItemAddResult:
		err = r.handleItemAddResult(ctx, session, env)
	case model.LinkCodeSessionFinished:
		err = r.handleSessionFinished(ctx, session, env)
	default:
		log.Info().
			Str("webhookCode", env.WebhookCode).
			Str("sessionId", session.ID).
			Msg("unhandled link webhook code")
		return nil
	}

	if err != nil {
		r.markSessionFailed(ctx, session, err)
		return err
	}
	return nil
}

// handleHandoff records the Plaid-assigned session identifier and
// activates the session. Later events may carry only link_session_id.
func (r *LinkReconciler) handleHandoff(ctx context.Context, session *model.LinkSession, env *model.WebhookEnvelope) error {
	status := model.LinkSessionStatusActive
	patch := model.UpdateLinkSessionParams{Status: &status}
	if env.LinkSessionID != "" {
		patch.LinkSessionID = &env.LinkSessionID
	}

	if err := r.sessions.Update(ctx, session.ID, patch); err != nil {
		return apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("linkSessionId", env.LinkSessionID).
		Msg("link session handoff")
	return nil
}

// handleItemAddResult processes one item added mid-flow. The exchange
// failure propagates: the whole delivery fails and Plaid retries it; the
// item upsert keeps that retry from duplicating anything.
func (r *LinkReconciler) handleItemAddResult(ctx context.Context, session *model.LinkSession, env *model.WebhookEnvelope) error {
	if env.PublicToken == "" {
		log.Warn().
			Str("sessionId", session.ID).
			Msg("ITEM_ADD_RESULT without public_token, skipping")
		return nil
	}

	exchange, err := r.plaid.ExchangePublicToken(ctx, env.PublicToken)
	if err != nil {
		logExchangeFailure(session.ID, env.PublicToken, err)
		return apperrors.TokenExchange(err)
	}

	item, err := r.items.SaveItem(ctx, session.UserID, exchange, env.Institution)
	if err != nil {
		return err
	}

	// Legacy behavior: the counter moves on every delivery, including
	// redelivered ones. The authoritative count is the item count query.
	if err := r.sessions.IncrementItemsAdded(ctx, session.ID); err != nil {
		return apperrors.Database(err)
	}

	meta, err := model.ParseSessionMetadata(session.Metadata)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("unreadable session metadata, resetting")
	}
	meta.LastItemAdded = &model.ItemDescriptor{
		ItemID:          item.ItemID,
		InstitutionName: stringOrEmpty(item.InstitutionName),
	}
	raw, err := meta.Raw()
	if err != nil {
		return apperrors.Internal("failed to serialize session metadata").WithCause(err)
	}

	status := model.LinkSessionStatusActive
	patch := model.UpdateLinkSessionParams{
		Status:   &status,
		Metadata: raw,
	}
	if env.LinkSessionID != "" {
		patch.LinkSessionID = &env.LinkSessionID
	}
	if err := r.sessions.Update(ctx, session.ID, patch); err != nil {
		return apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("itemId", item.ItemID).
		Msg("item added to link session")
	return nil
}

// handleSessionFinished finalizes the flow. On SUCCESS the public_tokens
// array is drained with continue-on-error semantics: one bad token must
// not abandon the rest, and tokens whose items already exist (persisted
// by a racing ITEM_ADD_RESULT) are skipped. Finalization runs regardless
// of per-token outcomes.
func (r *LinkReconciler) handleSessionFinished(ctx context.Context, session *model.LinkSession, env *model.WebhookEnvelope) error {
	meta, err := model.ParseSessionMetadata(session.Metadata)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("unreadable session metadata, resetting")
	}

	if env.Status == model.LinkFinishSuccess && len(env.PublicTokens) > 0 {
		outcome := &model.ExchangeOutcome{}
		for _, publicToken := range env.PublicTokens {
			exchange, err := r.plaid.ExchangePublicToken(ctx, publicToken)
			if err != nil {
				logExchangeFailure(session.ID, publicToken, err)
				outcome.Failed = append(outcome.Failed, model.TokenFailure{
					PublicToken: publicToken,
					Reason:      err.Error(),
				})
				continue
			}

			exists, err := r.items.HasItem(ctx, session.UserID, exchange.ItemID)
			if err != nil {
				return err
			}
			if exists {
				log.Debug().
					Str("sessionId", session.ID).
					Str("itemId", exchange.ItemID).
					Msg("item already persisted, skipping duplicate")
				outcome.Succeeded = append(outcome.Succeeded, exchange.ItemID)
				continue
			}

			if _, err := r.items.SaveItem(ctx, session.UserID, exchange, env.Institution); err != nil {
				return err
			}
			outcome.Succeeded = append(outcome.Succeeded, exchange.ItemID)
		}
		meta.Exchange = outcome
	}

	now := time.Now()
	meta.PlaidStatus = string(env.Status)
	meta.FinishedAt = &now

	raw, err := meta.Raw()
	if err != nil {
		return apperrors.Internal("failed to serialize session metadata").WithCause(err)
	}

	status := model.LinkSessionStatusFailed
	if env.Status == model.LinkFinishSuccess {
		status = model.LinkSessionStatusCompleted
	}

	patch := model.UpdateLinkSessionParams{
		Status:      &status,
		Metadata:    raw,
		CompletedAt: &now,
	}
	if env.LinkSessionID != "" {
		patch.LinkSessionID = &env.LinkSessionID
	}
	if len(env.PublicTokens) > 0 {
		patch.PublicTokens = pq.StringArray(env.PublicTokens)
	}
	if err := r.sessions.Update(ctx, session.ID, patch); err != nil {
		return apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("status", string(status)).
		Str("plaidStatus", string(env.Status)).
		Int("publicTokens", len(env.PublicTokens)).
		Msg("link session finished")
	return nil
}

// handleGenericWebhook covers the non-LINK families this service cares
// about: item error and revocation notices. Everything else is logged
// and acknowledged.
func (r *LinkReconciler) handleGenericWebhook(ctx context.Context, env *model.WebhookEnvelope) error {
	if env.WebhookType == model.WebhookTypeItem {
		switch env.WebhookCode {
		case model.ItemCodeError, model.ItemCodePendingExpiration:
			return r.items.MarkItemError(ctx, env.ItemID, env.Error)
		case model.ItemCodeUserPermissionRevoked:
			return r.items.MarkItemRevoked(ctx, env.ItemID)
		}
	}

	log.Info().
		Str("webhookType", env.WebhookType).
		Str("webhookCode", env.WebhookCode).
		Msg("unhandled webhook, acknowledged")
	return nil
}

// markSessionFailed annotates the session with the failure before the
// error propagates to the route. Best effort: partial item progress is
// preserved and redelivery is expected.
func (r *LinkReconciler) markSessionFailed(ctx context.Context, session *model.LinkSession, cause error) {
	meta, parseErr := model.ParseSessionMetadata(session.Metadata)
	if parseErr != nil {
		meta = model.SessionMetadata{}
	}
	meta.Error = cause.Error()

	raw, rawErr := meta.Raw()
	if rawErr != nil {
		raw = nil
	}
	if err := r.sessions.MarkFailed(ctx, session.ID, raw); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to mark session failed")
	}
}

func logExchangeFailure(sessionID, publicToken string, err error) {
	event := log.Warn().
		Str("sessionId", sessionID).
		Str("publicToken", util.MaskToken(publicToken))

	switch {
	case plaid.IsInvalidToken(err):
		event.Err(err).Msg("public token rejected by plaid")
	case plaid.IsUnavailable(err):
		event.Err(err).Msg("plaid unavailable during token exchange")
	default:
		event.Err(err).Msg("token exchange failed")
	}
}
