package model

import (
	"time"
)

// Item is one linked financial institution connection, owned by exactly
// one user. The access token is stored encrypted at rest and is never
// serialized into responses or logs.
type Item struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"userId"`
	ItemID          string     `db:"item_id" json:"itemId"`
	AccessToken     string     `db:"access_token" json:"-"`
	InstitutionID   *string    `db:"institution_id" json:"institutionId,omitempty"`
	InstitutionName *string    `db:"institution_name" json:"institutionName,omitempty"`
	Status          ItemStatus `db:"status" json:"status"`
	ErrorCode       *string    `db:"error_code" json:"errorCode,omitempty"`
	ErrorMessage    *string    `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt       *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

type UpsertItemParams struct {
	UserID          string
	ItemID          string
	AccessToken     string
	InstitutionID   *string
	InstitutionName *string
}
