package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Project status values. Status only moves forward:
// pending -> processing -> completed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Payment status values. pending -> paid, never reverts.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

type Project struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	InputImageURL      string
	OutputImageURL     sql.NullString
	Prompt             string
	Status             string
	PaymentStatus      string
	PaymentAmountCents int64
	CheckoutSessionID  sql.NullString
	PaymentIntentID    sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
