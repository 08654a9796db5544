package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/finbridge/plaid-link-go/internal/errors"
)

func newDeletionService(items *mockItemRepo, api *mockPlaidAPI, now time.Time) *ItemDeletionService {
	return &ItemDeletionService{
		db:       &fakeTxRunner{},
		items:    items,
		plaid:    api,
		cipher:   NewTokenCipher(""),
		cooldown: 30 * 24 * time.Hour,
		now:      func() time.Time { return now },
	}
}

func TestGetDeletionInfo_NoPriorDeletion(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)
	items.On("LastDeletionAt", mock.Anything, "user_1").Return(nil, nil)

	svc := newDeletionService(items, api, time.Now())
	info, err := svc.GetDeletionInfo(context.Background(), "user_1")

	require.NoError(t, err)
	assert.True(t, info.CanDelete)
	assert.Nil(t, info.LastDeletionDate)
	assert.Zero(t, info.DaysUntilNext)
}

func TestGetDeletionInfo_InsideCooldown(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * 24 * time.Hour)
	items.On("LastDeletionAt", mock.Anything, "user_1").Return(&last, nil)

	svc := newDeletionService(items, api, now)
	info, err := svc.GetDeletionInfo(context.Background(), "user_1")

	require.NoError(t, err)
	assert.False(t, info.CanDelete)
	assert.Equal(t, 20, info.DaysUntilNext)
	require.NotNil(t, info.LastDeletionDate)
	assert.Equal(t, last, *info.LastDeletionDate)
}

func TestGetDeletionInfo_CooldownElapsed(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	last := now.Add(-31 * 24 * time.Hour)
	items.On("LastDeletionAt", mock.Anything, "user_1").Return(&last, nil)

	svc := newDeletionService(items, api, now)
	info, err := svc.GetDeletionInfo(context.Background(), "user_1")

	require.NoError(t, err)
	assert.True(t, info.CanDelete)
	assert.Zero(t, info.DaysUntilNext)
}

func TestDeleteItem_FirstDeletionSucceeds(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	items.On("LastDeletionAt", mock.Anything, "user_1").Return(nil, nil)
	items.On("FindByUserAndItemID", mock.Anything, "user_1", "item_1").Return(testItem("user_1", "item_1"), nil)
	items.On("SoftDelete", mock.Anything, "user_1", "item_1", now).Return(true, nil)
	api.On("RemoveItem", mock.Anything, "access-sandbox-item_1").Return(nil)

	svc := newDeletionService(items, api, now)
	err := svc.DeleteItemWithRateLimit(context.Background(), "user_1", "item_1")

	require.NoError(t, err)
	items.AssertExpectations(t)
	api.AssertExpectations(t)
}

// A second deletion inside the window is rejected before any row is
// touched, and the rejection reports how many days remain.
func TestDeleteItem_RejectedInsideCooldown(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	last := now.Add(-1 * 24 * time.Hour)
	items.On("LastDeletionAt", mock.Anything, "user_1").Return(&last, nil)

	svc := newDeletionService(items, api, now)
	err := svc.DeleteItemWithRateLimit(context.Background(), "user_1", "item_2")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRateLimited, apperrors.GetCode(err))

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	details, ok := appErr.Details.(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 29, details["daysUntilNext"])

	items.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "RemoveItem", mock.Anything, mock.Anything)
}

// Advancing the clock past the window unlocks the next deletion.
func TestDeleteItem_AllowedAfterCooldown(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	last := now.Add(-30*24*time.Hour - time.Minute)
	items.On("LastDeletionAt", mock.Anything, "user_1").Return(&last, nil)
	items.On("FindByUserAndItemID", mock.Anything, "user_1", "item_2").Return(testItem("user_1", "item_2"), nil)
	items.On("SoftDelete", mock.Anything, "user_1", "item_2", now).Return(true, nil)
	api.On("RemoveItem", mock.Anything, "access-sandbox-item_2").Return(nil)

	svc := newDeletionService(items, api, now)
	err := svc.DeleteItemWithRateLimit(context.Background(), "user_1", "item_2")

	require.NoError(t, err)
	items.AssertExpectations(t)
}

func TestDeleteItem_UnknownItem(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)
	now := time.Now()

	items.On("LastDeletionAt", mock.Anything, "user_1").Return(nil, nil)
	items.On("FindByUserAndItemID", mock.Anything, "user_1", "item_missing").Return(nil, nil)

	svc := newDeletionService(items, api, now)
	err := svc.DeleteItemWithRateLimit(context.Background(), "user_1", "item_missing")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	api.AssertNotCalled(t, "RemoveItem", mock.Anything, mock.Anything)
}

// Upstream revocation failing must not fail the request. The local soft
// delete already committed and that is the record that matters.
func TestDeleteItem_UpstreamRemovalBestEffort(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)
	now := time.Now()

	items.On("LastDeletionAt", mock.Anything, "user_1").Return(nil, nil)
	items.On("FindByUserAndItemID", mock.Anything, "user_1", "item_1").Return(testItem("user_1", "item_1"), nil)
	items.On("SoftDelete", mock.Anything, "user_1", "item_1", mock.Anything).Return(true, nil)
	api.On("RemoveItem", mock.Anything, mock.Anything).Return(errors.New("plaid: 500"))

	svc := newDeletionService(items, api, now)
	err := svc.DeleteItemWithRateLimit(context.Background(), "user_1", "item_1")

	require.NoError(t, err)
	api.AssertCalled(t, "RemoveItem", mock.Anything, "access-sandbox-item_1")
}

// Stored tokens are encrypted; the upstream call must receive the
// plaintext, not the ciphertext.
func TestDeleteItem_DecryptsTokenForUpstream(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)
	now := time.Now()

	cipher := NewTokenCipher("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	encrypted, err := cipher.Encrypt("access-sandbox-plain")
	require.NoError(t, err)

	item := testItem("user_1", "item_1")
	item.AccessToken = encrypted

	items.On("LastDeletionAt", mock.Anything, "user_1").Return(nil, nil)
	items.On("FindByUserAndItemID", mock.Anything, "user_1", "item_1").Return(item, nil)
	items.On("SoftDelete", mock.Anything, "user_1", "item_1", mock.Anything).Return(true, nil)
	api.On("RemoveItem", mock.Anything, "access-sandbox-plain").Return(nil)

	svc := newDeletionService(items, api, now)
	svc.cipher = cipher

	require.NoError(t, svc.DeleteItemWithRateLimit(context.Background(), "user_1", "item_1"))
	api.AssertExpectations(t)
}

func TestDeleteItem_SoftDeleteRace(t *testing.T) {
	items := new(mockItemRepo)
	api := new(mockPlaidAPI)
	now := time.Now()

	items.On("LastDeletionAt", mock.Anything, "user_1").Return(nil, nil)
	items.On("FindByUserAndItemID", mock.Anything, "user_1", "item_1").Return(testItem("user_1", "item_1"), nil)
	// Another request deleted the row between the read and the guarded
	// update.
	items.On("SoftDelete", mock.Anything, "user_1", "item_1", mock.Anything).Return(false, nil)

	svc := newDeletionService(items, api, now)
	err := svc.DeleteItemWithRateLimit(context.Background(), "user_1", "item_1")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	api.AssertNotCalled(t, "RemoveItem", mock.Anything, mock.Anything)
}
