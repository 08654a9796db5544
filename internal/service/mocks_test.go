package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/finbridge/plaid-link-go/internal/database"
	"github.com/finbridge/plaid-link-go/internal/model"
	"github.com/finbridge/plaid-link-go/internal/plaid"
	"github.com/finbridge/plaid-link-go/internal/repository"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.LinkSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkSession), args.Error(1)
}

func (m *mockSessionRepo) FindByLinkToken(ctx context.Context, linkToken string) (*model.LinkSession, error) {
	args := m.Called(ctx, linkToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkSession), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateLinkSessionParams) (*model.LinkSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LinkSession), args.Error(1)
}

func (m *mockSessionRepo) Update(ctx context.Context, id string, params model.UpdateLinkSessionParams) error {
	args := m.Called(ctx, id, params)
	return args.Error(0)
}

func (m *mockSessionRepo) IncrementItemsAdded(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) MarkFailed(ctx context.Context, id string, metadata *json.RawMessage) error {
	args := m.Called(ctx, id, metadata)
	return args.Error(0)
}

func (m *mockSessionRepo) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.LinkSessionRepository {
	return m
}

type mockItemRepo struct {
	mock.Mock
}

func (m *mockItemRepo) FindByUser(ctx context.Context, userID string) ([]model.Item, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Item), args.Error(1)
}

func (m *mockItemRepo) FindByItemID(ctx context.Context, itemID string) (*model.Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Item), args.Error(1)
}

func (m *mockItemRepo) FindByUserAndItemID(ctx context.Context, userID, itemID string) (*model.Item, error) {
	args := m.Called(ctx, userID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Item), args.Error(1)
}

func (m *mockItemRepo) Upsert(ctx context.Context, params model.UpsertItemParams) (*model.Item, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Item), args.Error(1)
}

func (m *mockItemRepo) UpdateStatus(ctx context.Context, itemID string, status model.ItemStatus, errorCode, errorMessage *string) error {
	args := m.Called(ctx, itemID, status, errorCode, errorMessage)
	return args.Error(0)
}

func (m *mockItemRepo) SoftDelete(ctx context.Context, userID, itemID string, at time.Time) (bool, error) {
	args := m.Called(ctx, userID, itemID, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockItemRepo) LastDeletionAt(ctx context.Context, userID string) (*time.Time, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *mockItemRepo) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockItemRepo) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockItemRepo) WithTx(tx *sqlx.Tx) repository.ItemRepository {
	return m
}

type mockPlaidAPI struct {
	mock.Mock
}

func (m *mockPlaidAPI) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResult, error) {
	args := m.Called(ctx, publicToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plaid.ExchangeResult), args.Error(1)
}

func (m *mockPlaidAPI) CreateLinkToken(ctx context.Context, params plaid.CreateLinkTokenParams) (*plaid.LinkTokenResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plaid.LinkTokenResult), args.Error(1)
}

func (m *mockPlaidAPI) RemoveItem(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

// fakeTxRunner satisfies the transaction boundary without a live
// database; the mock repositories ignore the nil tx.
type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}
