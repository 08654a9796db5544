package model

type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusActive  ItemStatus = "active"
	ItemStatusError   ItemStatus = "error"
	ItemStatusRevoked ItemStatus = "revoked"
	ItemStatusDeleted ItemStatus = "deleted"
)

type LinkSessionStatus string

const (
	LinkSessionStatusCreated   LinkSessionStatus = "created"
	LinkSessionStatusActive    LinkSessionStatus = "active"
	LinkSessionStatusCompleted LinkSessionStatus = "completed"
	LinkSessionStatusFailed    LinkSessionStatus = "failed"
)

// LinkFinishStatus is the terminal status Plaid reports in a
// SESSION_FINISHED webhook.
type LinkFinishStatus string

const (
	LinkFinishSuccess LinkFinishStatus = "SUCCESS"
	LinkFinishExit    LinkFinishStatus = "EXIT"
	LinkFinishError   LinkFinishStatus = "ERROR"
)
