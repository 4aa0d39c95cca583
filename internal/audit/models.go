package audit

import (
	"encoding/json"
	"time"
)

type Action string

const (
	ActionOrderPlaced        Action = "ORDER_PLACED"
	ActionAdminOrderUpdate   Action = "ADMIN_ORDER_UPDATE"
	ActionAdminProductCreate Action = "ADMIN_PRODUCT_CREATE"
	ActionAdminProductUpdate Action = "ADMIN_PRODUCT_UPDATE"
	ActionAdminProductDelete Action = "ADMIN_PRODUCT_DELETE"
	ActionReviewSubmit       Action = "REVIEW_SUBMIT"
	ActionAdminReviewApprove Action = "ADMIN_REVIEW_APPROVE"
	ActionAdminReviewReject  Action = "ADMIN_REVIEW_REJECT"
	ActionAdminReviewDelete  Action = "ADMIN_REVIEW_DELETE"
)

type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
)

// Entry is one row of audit_log. EventID is unique, so replays of an event are no-ops.
type Entry struct {
	EventID    string          `json:"event_id"`
	Action     Action          `json:"action"`
	Level      Level           `json:"level"`
	ResourceID string          `json:"resource_id"`
	UserID     *string         `json:"user_id,omitempty"`
	Metadata   json.RawMessage `json:"metadata"`
	OccurredAt time.Time       `json:"occurred_at"`
}
