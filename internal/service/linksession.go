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

// LinkSessionService starts Link flows: it issues a link token from
// Plaid and records the session row the webhook reconciler later joins
// against.
type LinkSessionService struct {
	sessions   repository.LinkSessionRepository
	plaid      plaid.API
	webhookURL string
}

func NewLinkSessionService(sessions repository.LinkSessionRepository, plaidClient plaid.API, webhookURL string) *LinkSessionService {
	return &LinkSessionService{
		sessions:   sessions,
		plaid:      plaidClient,
		webhookURL: webhookURL,
	}
}

type StartSessionResult struct {
	SessionID  string `json:"sessionId"`
	LinkToken  string `json:"linkToken"`
	Expiration string `json:"expiration,omitempty"`
}

// StartSession creates a link token and the created-state session row.
func (s *LinkSessionService) StartSession(ctx context.Context, userID string) (*StartSessionResult, error) {
	tokenResult, err := s.plaid.CreateLinkToken(ctx, plaid.CreateLinkTokenParams{
		UserID:     userID,
		WebhookURL: s.webhookURL,
	})
	if err != nil {
		return nil, apperrors.External("plaid", fmt.Errorf("create link token: %w", err))
	}

	session, err := s.sessions.Create(ctx, model.CreateLinkSessionParams{
		UserID:    userID,
		LinkToken: tokenResult.LinkToken,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("userId", userID).
		Msg("link session created")

	return &StartSessionResult{
		SessionID:  session.ID,
		LinkToken:  tokenResult.LinkToken,
		Expiration: tokenResult.Expiration,
	}, nil
}

// GetSession exposes a session for status polling by its owner.
func (s *LinkSessionService) GetSession(ctx context.Context, userID, sessionID string) (*model.LinkSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.UserID != userID {
		return nil, apperrors.NotFound("Link session")
	}
	return session, nil
}
